package google

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/google/uuid"
	"golang.org/x/oauth2"
)

const consentPage = `<html><body><p>Authorization complete. You can close this window.</p></body></html>`

// LoopbackConsent returns a ConsentFunc that prints the consent URL to out
// and waits for Google to redirect the browser back to a listener on
// 127.0.0.1 with an ephemeral port.
func LoopbackConsent(out io.Writer) ConsentFunc {
	return func(ctx context.Context, conf *oauth2.Config) (*oauth2.Token, error) {
		ln, err := net.Listen("tcp", "127.0.0.1:0")
		if err != nil {
			return nil, fmt.Errorf("failed to start loopback listener: %w", err)
		}

		c := *conf
		c.RedirectURL = "http://" + ln.Addr().String() + "/"
		state := uuid.NewString()

		codes := make(chan string, 1)
		errs := make(chan error, 1)
		srv := &http.Server{
			ReadHeaderTimeout: 10 * time.Second,
			Handler: http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				q := r.URL.Query()
				if q.Get("state") != state {
					http.Error(w, "state mismatch", http.StatusBadRequest)
					return
				}
				if reason := q.Get("error"); reason != "" {
					http.Error(w, "authorization denied", http.StatusForbidden)
					select {
					case errs <- fmt.Errorf("authorization denied: %s", reason):
					default:
					}
					return
				}
				code := q.Get("code")
				if code == "" {
					http.Error(w, "missing code", http.StatusBadRequest)
					return
				}
				w.Header().Set("Content-Type", "text/html; charset=utf-8")
				_, _ = io.WriteString(w, consentPage)
				select {
				case codes <- code:
				default:
				}
			}),
		}
		go func() {
			if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
				select {
				case errs <- err:
				default:
				}
			}
		}()
		defer srv.Close()

		authURL := c.AuthCodeURL(state, oauth2.AccessTypeOffline, oauth2.ApprovalForce)
		fmt.Fprintf(out, "Open the following URL in your browser to authorize access:\n\n%s\n\n", authURL)

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case err := <-errs:
			return nil, err
		case code := <-codes:
			tok, err := c.Exchange(ctx, code)
			if err != nil {
				return nil, fmt.Errorf("failed to exchange auth code: %w", err)
			}
			return tok, nil
		}
	}
}
