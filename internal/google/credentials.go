package google

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"

	"golang.org/x/oauth2"
	googleoauth "golang.org/x/oauth2/google"
	gmail "google.golang.org/api/gmail/v1"
	"google.golang.org/api/option"

	"github.com/teemow/inboxquery/internal/instrumentation"
	"github.com/teemow/inboxquery/internal/logging"
)

// DefaultTokenDir is where tokens are kept relative to the working directory.
const DefaultTokenDir = "token files"

var (
	// ErrCredentialsInvalid means the stored token could not be used and was
	// removed. Run the consent flow again.
	ErrCredentialsInvalid = errors.New("google credentials are invalid; run `inboxquery auth` to authorize again")
	// ErrConsentRequired is returned when no usable token exists and the
	// provider is not allowed to prompt.
	ErrConsentRequired = errors.New("no google token found; run `inboxquery auth` first")
)

// ConsentFunc obtains a fresh token from the user.
type ConsentFunc func(ctx context.Context, conf *oauth2.Config) (*oauth2.Token, error)

// CredentialProvider issues tokens for one Google API.
type CredentialProvider struct {
	ClientSecretFile string
	APIName          string
	APIVersion       string
	Scopes           []string
	// Prefix is appended to the token file name to keep several accounts apart.
	Prefix   string
	TokenDir string

	// Consent runs when there is no token to reuse or refresh. Nil returns
	// ErrConsentRequired instead of prompting.
	Consent ConsentFunc

	Metrics *instrumentation.Metrics
	Logger  *slog.Logger

	// newGmail is replaced in tests.
	newGmail func(ctx context.Context, opts ...option.ClientOption) (*gmail.Service, error)
}

// NewGmailCredentials returns a provider for the Gmail v1 API.
func NewGmailCredentials(clientSecretFile, tokenDir, prefix string) *CredentialProvider {
	return &CredentialProvider{
		ClientSecretFile: clientSecretFile,
		APIName:          GmailAPIName,
		APIVersion:       GmailAPIVersion,
		Scopes:           GmailScopes,
		Prefix:           prefix,
		TokenDir:         tokenDir,
	}
}

// TokenFile is the path of the persisted token:
// <TokenDir>/token_<api>_<version><prefix>.json.
func (p *CredentialProvider) TokenFile() string {
	dir := p.TokenDir
	if dir == "" {
		dir = DefaultTokenDir
	}
	return filepath.Join(dir, fmt.Sprintf("token_%s_%s%s.json", p.APIName, p.APIVersion, p.Prefix))
}

func (p *CredentialProvider) store() FileTokenStore {
	return FileTokenStore{Path: p.TokenFile()}
}

func (p *CredentialProvider) logger() *slog.Logger {
	if p.Logger == nil {
		return slog.Default()
	}
	return p.Logger
}

// HasToken reports whether a token file exists.
func (p *CredentialProvider) HasToken() bool {
	_, err := os.Stat(p.TokenFile())
	return err == nil
}

// OAuthConfig reads the installed-app client secret.
func (p *CredentialProvider) OAuthConfig() (*oauth2.Config, error) {
	data, err := os.ReadFile(p.ClientSecretFile)
	if err != nil {
		return nil, fmt.Errorf("failed to read client secret %s: %w", p.ClientSecretFile, err)
	}
	conf, err := googleoauth.ConfigFromJSON(data, p.Scopes...)
	if err != nil {
		return nil, fmt.Errorf("failed to parse client secret: %w", err)
	}
	return conf, nil
}

// TokenSource returns a token source backed by the persisted token.
//
// A valid token is reused as is. An expired token with a refresh token is
// refreshed and saved. In every other case Consent runs and its token is
// saved.
func (p *CredentialProvider) TokenSource(ctx context.Context) (oauth2.TokenSource, error) {
	conf, err := p.OAuthConfig()
	if err != nil {
		return nil, err
	}
	store := p.store()
	log := p.logger().With(logging.Service(p.APIName))

	tok, err := store.Load()
	switch {
	case err == nil:
	case errors.Is(err, fs.ErrNotExist):
		tok = nil
	default:
		log.WarnContext(ctx, "ignoring unreadable token file", logging.Err(err))
		tok = nil
	}

	switch {
	case tok != nil && tok.Valid():
		log.DebugContext(ctx, "reusing stored token")
	case tok != nil && tok.RefreshToken != "":
		refreshed, err := p.refresh(ctx, conf, tok)
		if err != nil {
			p.Metrics.RecordTokenRefresh(ctx, instrumentation.RefreshResultFailure)
			_ = store.Remove()
			return nil, fmt.Errorf("%w: refresh failed: %v", ErrCredentialsInvalid, err)
		}
		p.Metrics.RecordTokenRefresh(ctx, instrumentation.RefreshResultSuccess)
		log.InfoContext(ctx, "token refreshed", slog.String("token", logging.SanitizeToken(refreshed.AccessToken)))
		tok = refreshed
	default:
		if p.Consent == nil {
			return nil, ErrConsentRequired
		}
		granted, err := p.Consent(ctx, conf)
		if err != nil {
			return nil, fmt.Errorf("consent flow failed: %w", err)
		}
		p.Metrics.RecordTokenRefresh(ctx, instrumentation.RefreshResultConsent)
		if err := store.Save(granted); err != nil {
			return nil, err
		}
		log.InfoContext(ctx, "token granted", slog.String("path", store.Path))
		tok = granted
	}

	onNew := func(*oauth2.Token) {
		p.Metrics.RecordTokenRefresh(ctx, instrumentation.RefreshResultSuccess)
	}
	return newPersistingTokenSource(ctx, conf, tok, store, onNew), nil
}

func (p *CredentialProvider) refresh(ctx context.Context, conf *oauth2.Config, tok *oauth2.Token) (*oauth2.Token, error) {
	refreshed, err := conf.TokenSource(ctx, tok).Token()
	if err != nil {
		return nil, err
	}
	if err := p.store().Save(refreshed); err != nil {
		return nil, err
	}
	return refreshed, nil
}

// ManualRedirectURL is the redirect of the copy-and-paste consent flow. The
// browser cannot load it; the code is read from the address bar instead.
const ManualRedirectURL = "http://localhost"

// AuthURL returns the consent URL of the copy-and-paste flow.
func (p *CredentialProvider) AuthURL(state string) (string, error) {
	conf, err := p.OAuthConfig()
	if err != nil {
		return "", err
	}
	conf.RedirectURL = ManualRedirectURL
	return conf.AuthCodeURL(state, oauth2.AccessTypeOffline, oauth2.ApprovalForce), nil
}

// SaveAuthCode exchanges a code from AuthURL for a token and stores it.
func (p *CredentialProvider) SaveAuthCode(ctx context.Context, code string) error {
	conf, err := p.OAuthConfig()
	if err != nil {
		return err
	}
	conf.RedirectURL = ManualRedirectURL

	tok, err := conf.Exchange(ctx, code)
	if err != nil {
		return fmt.Errorf("failed to exchange authorization code: %w", err)
	}
	p.Metrics.RecordTokenRefresh(ctx, instrumentation.RefreshResultConsent)
	if err := p.store().Save(tok); err != nil {
		return err
	}
	p.logger().InfoContext(ctx, "token granted", logging.Service(p.APIName), slog.String("path", p.TokenFile()))
	return nil
}

// GmailService builds an authenticated Gmail client. When the service cannot
// be constructed the token file is deleted and ErrCredentialsInvalid is
// returned.
func (p *CredentialProvider) GmailService(ctx context.Context) (*gmail.Service, error) {
	ts, err := p.TokenSource(ctx)
	if err != nil {
		return nil, err
	}

	newGmail := p.newGmail
	if newGmail == nil {
		newGmail = gmail.NewService
	}
	svc, err := newGmail(ctx, option.WithTokenSource(ts))
	if err != nil {
		if rmErr := p.store().Remove(); rmErr != nil {
			p.logger().WarnContext(ctx, "failed to remove token file", logging.Err(rmErr))
		}
		return nil, fmt.Errorf("%w: %v", ErrCredentialsInvalid, err)
	}
	return svc, nil
}
