package google

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"regexp"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"
	gmail "google.golang.org/api/gmail/v1"
	"google.golang.org/api/option"
)

// tokenServer fakes Google's token endpoint.
type tokenServer struct {
	*httptest.Server
	calls       atomic.Int32
	failRefresh bool
}

func newTokenServer(t *testing.T) *tokenServer {
	t.Helper()
	ts := &tokenServer{}
	ts.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ts.calls.Add(1)
		if err := r.ParseForm(); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		switch r.PostForm.Get("grant_type") {
		case "refresh_token":
			if ts.failRefresh {
				w.WriteHeader(http.StatusBadRequest)
				fmt.Fprint(w, `{"error":"invalid_grant"}`)
				return
			}
			fmt.Fprint(w, `{"access_token":"refreshed","token_type":"Bearer","expires_in":3600}`)
		case "authorization_code":
			if r.PostForm.Get("code") != "good-code" {
				w.WriteHeader(http.StatusBadRequest)
				fmt.Fprint(w, `{"error":"invalid_grant"}`)
				return
			}
			fmt.Fprint(w, `{"access_token":"granted","refresh_token":"refresh-1","token_type":"Bearer","expires_in":3600}`)
		default:
			http.Error(w, "unsupported grant", http.StatusBadRequest)
		}
	}))
	t.Cleanup(ts.Close)
	return ts
}

func newTestProvider(t *testing.T, tokenURL string) *CredentialProvider {
	t.Helper()
	dir := t.TempDir()
	secret := filepath.Join(dir, "client-secret.json")
	body := fmt.Sprintf(`{"installed":{"client_id":"cid","client_secret":"csecret",`+
		`"auth_uri":"https://accounts.example.com/auth","token_uri":%q,"redirect_uris":["http://localhost"]}}`, tokenURL+"/token")
	require.NoError(t, os.WriteFile(secret, []byte(body), 0o600))

	p := NewGmailCredentials(secret, filepath.Join(dir, "tokens"), "")
	return p
}

func failConsent(t *testing.T) ConsentFunc {
	return func(context.Context, *oauth2.Config) (*oauth2.Token, error) {
		t.Error("consent must not run")
		return nil, errors.New("unexpected consent")
	}
}

func TestCredentialProvider_TokenFile(t *testing.T) {
	p := &CredentialProvider{APIName: "gmail", APIVersion: "v1", Prefix: "_work", TokenDir: "/tmp/tokens"}
	assert.Equal(t, "/tmp/tokens/token_gmail_v1_work.json", p.TokenFile())

	p = &CredentialProvider{APIName: "gmail", APIVersion: "v1"}
	assert.Equal(t, filepath.Join("token files", "token_gmail_v1.json"), p.TokenFile())
}

func TestCredentialProvider_ReusesValidToken(t *testing.T) {
	srv := newTokenServer(t)
	p := newTestProvider(t, srv.URL)
	p.Consent = failConsent(t)

	stored := &oauth2.Token{AccessToken: "stored", RefreshToken: "r", Expiry: time.Now().Add(time.Hour)}
	require.NoError(t, p.store().Save(stored))
	assert.True(t, p.HasToken())

	ts, err := p.TokenSource(context.Background())
	require.NoError(t, err)
	tok, err := ts.Token()
	require.NoError(t, err)
	assert.Equal(t, "stored", tok.AccessToken)
	assert.Zero(t, srv.calls.Load())
}

func TestCredentialProvider_RefreshesExpiredToken(t *testing.T) {
	srv := newTokenServer(t)
	p := newTestProvider(t, srv.URL)
	p.Consent = failConsent(t)

	require.NoError(t, p.store().Save(&oauth2.Token{
		AccessToken:  "old",
		RefreshToken: "r",
		Expiry:       time.Now().Add(-time.Hour),
	}))

	ts, err := p.TokenSource(context.Background())
	require.NoError(t, err)
	tok, err := ts.Token()
	require.NoError(t, err)
	assert.Equal(t, "refreshed", tok.AccessToken)

	saved, err := p.store().Load()
	require.NoError(t, err)
	assert.Equal(t, "refreshed", saved.AccessToken)
	assert.Equal(t, "r", saved.RefreshToken)
}

func TestCredentialProvider_RefreshFailureRemovesToken(t *testing.T) {
	srv := newTokenServer(t)
	srv.failRefresh = true
	p := newTestProvider(t, srv.URL)
	p.Consent = failConsent(t)

	require.NoError(t, p.store().Save(&oauth2.Token{
		AccessToken:  "old",
		RefreshToken: "revoked",
		Expiry:       time.Now().Add(-time.Hour),
	}))

	_, err := p.TokenSource(context.Background())
	require.ErrorIs(t, err, ErrCredentialsInvalid)
	assert.False(t, p.HasToken())
}

func TestCredentialProvider_ConsentWhenNoToken(t *testing.T) {
	srv := newTokenServer(t)
	p := newTestProvider(t, srv.URL)

	var consented bool
	p.Consent = func(_ context.Context, conf *oauth2.Config) (*oauth2.Token, error) {
		consented = true
		assert.Equal(t, "cid", conf.ClientID)
		assert.Equal(t, GmailScopes, conf.Scopes)
		return &oauth2.Token{AccessToken: "granted", RefreshToken: "r", Expiry: time.Now().Add(time.Hour)}, nil
	}

	ts, err := p.TokenSource(context.Background())
	require.NoError(t, err)
	assert.True(t, consented)

	tok, err := ts.Token()
	require.NoError(t, err)
	assert.Equal(t, "granted", tok.AccessToken)

	saved, err := p.store().Load()
	require.NoError(t, err)
	assert.Equal(t, "granted", saved.AccessToken)
}

func TestCredentialProvider_ConsentRequired(t *testing.T) {
	srv := newTokenServer(t)
	p := newTestProvider(t, srv.URL)

	_, err := p.TokenSource(context.Background())
	assert.ErrorIs(t, err, ErrConsentRequired)
}

func TestCredentialProvider_CorruptTokenFallsBackToConsent(t *testing.T) {
	srv := newTokenServer(t)
	p := newTestProvider(t, srv.URL)
	require.NoError(t, os.MkdirAll(filepath.Dir(p.TokenFile()), 0o700))
	require.NoError(t, os.WriteFile(p.TokenFile(), []byte("not json"), 0o600))

	_, err := p.TokenSource(context.Background())
	assert.ErrorIs(t, err, ErrConsentRequired)
}

func TestCredentialProvider_MissingClientSecret(t *testing.T) {
	p := NewGmailCredentials(filepath.Join(t.TempDir(), "missing.json"), t.TempDir(), "")
	_, err := p.TokenSource(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read client secret")
}

func TestCredentialProvider_GmailService(t *testing.T) {
	srv := newTokenServer(t)
	p := newTestProvider(t, srv.URL)
	require.NoError(t, p.store().Save(&oauth2.Token{AccessToken: "stored", Expiry: time.Now().Add(time.Hour)}))

	svc, err := p.GmailService(context.Background())
	require.NoError(t, err)
	assert.NotNil(t, svc)
}

func TestCredentialProvider_GmailServiceFailureRemovesToken(t *testing.T) {
	srv := newTokenServer(t)
	p := newTestProvider(t, srv.URL)
	require.NoError(t, p.store().Save(&oauth2.Token{AccessToken: "stored", Expiry: time.Now().Add(time.Hour)}))
	p.newGmail = func(context.Context, ...option.ClientOption) (*gmail.Service, error) {
		return nil, errors.New("bad credentials")
	}

	_, err := p.GmailService(context.Background())
	require.ErrorIs(t, err, ErrCredentialsInvalid)
	assert.Contains(t, err.Error(), "bad credentials")
	assert.False(t, p.HasToken())
}

func TestFileTokenStore(t *testing.T) {
	s := FileTokenStore{Path: filepath.Join(t.TempDir(), "nested", "token.json")}

	_, err := s.Load()
	assert.ErrorIs(t, err, os.ErrNotExist)
	assert.NoError(t, s.Remove())

	require.NoError(t, s.Save(&oauth2.Token{AccessToken: "a", RefreshToken: "b"}))
	info, err := os.Stat(s.Path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	tok, err := s.Load()
	require.NoError(t, err)
	assert.Equal(t, "a", tok.AccessToken)

	require.NoError(t, s.Remove())
	_, err = os.Stat(s.Path)
	assert.True(t, os.IsNotExist(err))
}

// browserWriter plays the user: it follows the printed consent URL back to
// the loopback redirect with the given code.
type browserWriter struct {
	code string
}

var urlPattern = regexp.MustCompile(`https?://\S+`)

func (b *browserWriter) Write(p []byte) (int, error) {
	raw := urlPattern.FindString(string(p))
	u, err := url.Parse(raw)
	if err != nil {
		return 0, err
	}
	q := u.Query()
	target := q.Get("redirect_uri") + "?code=" + url.QueryEscape(b.code) + "&state=" + url.QueryEscape(q.Get("state"))
	go func() {
		resp, err := http.Get(target)
		if err == nil {
			_ = resp.Body.Close()
		}
	}()
	return len(p), nil
}

func TestLoopbackConsent(t *testing.T) {
	srv := newTokenServer(t)
	conf := &oauth2.Config{
		ClientID:     "cid",
		ClientSecret: "csecret",
		Endpoint:     oauth2.Endpoint{AuthURL: "https://accounts.example.com/auth", TokenURL: srv.URL + "/token"},
		Scopes:       GmailScopes,
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	tok, err := LoopbackConsent(&browserWriter{code: "good-code"})(ctx, conf)
	require.NoError(t, err)
	assert.Equal(t, "granted", tok.AccessToken)
	assert.Equal(t, "refresh-1", tok.RefreshToken)
	assert.Empty(t, conf.RedirectURL, "caller config is not modified")
}

func TestLoopbackConsent_ContextCancelled(t *testing.T) {
	conf := &oauth2.Config{ClientID: "cid", Endpoint: oauth2.Endpoint{AuthURL: "https://accounts.example.com/auth"}}

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := LoopbackConsent(&nopWriter{})(ctx, conf)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

type nopWriter struct{}

func (nopWriter) Write(p []byte) (int, error) { return len(p), nil }

func TestCredentialProvider_AuthURL(t *testing.T) {
	p := newTestProvider(t, "https://oauth.example.com")

	raw, err := p.AuthURL("state-1")
	require.NoError(t, err)

	u, err := url.Parse(raw)
	require.NoError(t, err)
	q := u.Query()
	assert.Equal(t, "cid", q.Get("client_id"))
	assert.Equal(t, ManualRedirectURL, q.Get("redirect_uri"))
	assert.Equal(t, "state-1", q.Get("state"))
	assert.Equal(t, "offline", q.Get("access_type"))
}

func TestCredentialProvider_SaveAuthCode(t *testing.T) {
	srv := newTokenServer(t)
	p := newTestProvider(t, srv.URL)

	err := p.SaveAuthCode(context.Background(), "bad-code")
	require.Error(t, err)
	assert.False(t, p.HasToken())

	require.NoError(t, p.SaveAuthCode(context.Background(), "good-code"))
	saved, err := p.store().Load()
	require.NoError(t, err)
	assert.Equal(t, "granted", saved.AccessToken)
	assert.Equal(t, "refresh-1", saved.RefreshToken)
}
