package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/teemow/inboxquery/internal/config"
	"github.com/teemow/inboxquery/internal/gmail"
	"github.com/teemow/inboxquery/internal/google"
	"github.com/teemow/inboxquery/internal/instrumentation"
	"github.com/teemow/inboxquery/internal/llm"
	"github.com/teemow/inboxquery/internal/logging"
	"github.com/teemow/inboxquery/internal/session"
	"github.com/teemow/inboxquery/internal/sqlstore"
)

// ErrNoCredentials is returned when a Gmail tool runs on a server without a
// credential provider.
var ErrNoCredentials = errors.New("gmail credentials are not configured")

// Option configures a ServerContext.
type Option func(*ServerContext)

// WithCredentials sets the provider used to build the Gmail client on first
// use.
func WithCredentials(p *google.CredentialProvider) Option {
	return func(sc *ServerContext) { sc.credentials = p }
}

// WithGmailClient sets a ready Gmail client.
func WithGmailClient(c *gmail.Client) Option {
	return func(sc *ServerContext) { sc.gmailClient = c }
}

// WithStore sets the SQLite store.
func WithStore(s *sqlstore.Store) Option {
	return func(sc *ServerContext) { sc.store = s }
}

// WithSessions sets the session manager.
func WithSessions(m *session.Manager) Option {
	return func(sc *ServerContext) { sc.sessions = m }
}

// WithCompleter sets the language model.
func WithCompleter(c llm.Completer) Option {
	return func(sc *ServerContext) { sc.completer = c }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(sc *ServerContext) { sc.logger = l }
}

// ServerContext holds the dependencies shared by the MCP tools.
type ServerContext struct {
	ctx    context.Context
	cancel context.CancelFunc
	cfg    *config.Config
	logger *slog.Logger

	credentials *google.CredentialProvider
	gmailClient *gmail.Client
	store       *sqlstore.Store
	sessions    *session.Manager
	completer   llm.Completer

	metrics     *instrumentation.Metrics
	auditLogger *instrumentation.AuditLogger

	mu       sync.RWMutex
	shutdown bool
}

// NewServerContext creates a new server context. A nil cfg uses an empty
// configuration.
func NewServerContext(ctx context.Context, cfg *config.Config, opts ...Option) *ServerContext {
	shutdownCtx, cancel := context.WithCancel(ctx)
	if cfg == nil {
		cfg = &config.Config{}
	}

	sc := &ServerContext{
		ctx:    shutdownCtx,
		cancel: cancel,
		cfg:    cfg,
	}
	for _, o := range opts {
		o(sc)
	}
	if sc.logger == nil {
		sc.logger = slog.Default()
	}
	return sc
}

// Context returns the server context
func (sc *ServerContext) Context() context.Context {
	return sc.ctx
}

// Config returns the process configuration.
func (sc *ServerContext) Config() *config.Config {
	return sc.cfg
}

// Logger returns the server logger.
func (sc *ServerContext) Logger() *slog.Logger {
	return sc.logger
}

// Credentials returns the Google credential provider, or nil.
func (sc *ServerContext) Credentials() *google.CredentialProvider {
	return sc.credentials
}

// GmailClient returns the Gmail client, building it from the credential
// provider on first use. A failed build is not cached.
func (sc *ServerContext) GmailClient(ctx context.Context) (*gmail.Client, error) {
	sc.mu.Lock()
	defer sc.mu.Unlock()

	if sc.gmailClient != nil {
		return sc.gmailClient, nil
	}
	if sc.credentials == nil {
		return nil, ErrNoCredentials
	}

	svc, err := sc.credentials.GmailService(ctx)
	if err != nil {
		sc.logger.WarnContext(ctx, "failed to create Gmail client", logging.Err(err))
		return nil, err
	}
	sc.gmailClient = gmail.NewClientFromService(svc,
		gmail.WithLimiter(gmail.NewLimiter(sc.cfg.GmailRateLimit)),
		gmail.WithMetrics(sc.metrics),
		gmail.WithLogger(sc.logger),
	)
	return sc.gmailClient, nil
}

// Store returns the SQLite store, or nil.
func (sc *ServerContext) Store() *sqlstore.Store {
	return sc.store
}

// Sessions returns the session manager, creating one on first use.
func (sc *ServerContext) Sessions() *session.Manager {
	sc.mu.Lock()
	defer sc.mu.Unlock()
	if sc.sessions == nil {
		sc.sessions = session.NewManager(session.NewHub(sc.metrics), 0, sc.logger)
	}
	return sc.sessions
}

// Completer returns the language model, or llm.ErrNoAPIKey when none is
// configured.
func (sc *ServerContext) Completer() (llm.Completer, error) {
	sc.mu.RLock()
	defer sc.mu.RUnlock()
	if sc.completer == nil {
		return nil, llm.ErrNoAPIKey
	}
	return sc.completer, nil
}

// SetMetrics sets the metrics recorder used by tools and clients.
func (sc *ServerContext) SetMetrics(m *instrumentation.Metrics) {
	sc.mu.Lock()
	defer sc.mu.Unlock()
	sc.metrics = m
}

// Metrics returns the metrics recorder. It may be nil.
func (sc *ServerContext) Metrics() *instrumentation.Metrics {
	sc.mu.RLock()
	defer sc.mu.RUnlock()
	return sc.metrics
}

// SetAuditLogger sets the tool audit logger.
func (sc *ServerContext) SetAuditLogger(al *instrumentation.AuditLogger) {
	sc.mu.Lock()
	defer sc.mu.Unlock()
	sc.auditLogger = al
}

// AuditLogger returns the tool audit logger. It may be nil.
func (sc *ServerContext) AuditLogger() *instrumentation.AuditLogger {
	sc.mu.RLock()
	defer sc.mu.RUnlock()
	return sc.auditLogger
}

// IsShutdown returns whether the server has been shutdown
func (sc *ServerContext) IsShutdown() bool {
	sc.mu.RLock()
	defer sc.mu.RUnlock()
	return sc.shutdown
}

// Shutdown cancels the server context, stops session cleanup and closes the
// store.
func (sc *ServerContext) Shutdown() error {
	sc.mu.Lock()
	defer sc.mu.Unlock()

	if sc.shutdown {
		return nil
	}

	sc.shutdown = true
	sc.cancel()
	if sc.sessions != nil {
		sc.sessions.Stop()
	}
	if sc.store != nil {
		if err := sc.store.Close(); err != nil {
			return fmt.Errorf("close store: %w", err)
		}
	}
	return nil
}
