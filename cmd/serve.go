package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	mcpserver "github.com/mark3labs/mcp-go/server"
	"github.com/pkg/browser"
	"github.com/spf13/cobra"

	"github.com/teemow/inboxquery/internal/config"
	"github.com/teemow/inboxquery/internal/dashboard"
	"github.com/teemow/inboxquery/internal/google"
	"github.com/teemow/inboxquery/internal/instrumentation"
	"github.com/teemow/inboxquery/internal/llm"
	"github.com/teemow/inboxquery/internal/logging"
	"github.com/teemow/inboxquery/internal/resources"
	"github.com/teemow/inboxquery/internal/server"
	"github.com/teemow/inboxquery/internal/sqlstore"
	"github.com/teemow/inboxquery/internal/tools/gmail_tools"
	"github.com/teemow/inboxquery/internal/tools/google_tools"
	"github.com/teemow/inboxquery/internal/tools/sql_tools"
)

// Transports supported by serve.
const (
	TransportStdio          = "stdio"
	TransportStreamableHTTP = "streamable-http"
)

// serverKind selects which MCP server serve runs.
type serverKind string

const (
	kindGmail serverKind = "gmail"
	kindSQL   serverKind = "sql"
)

// MetricsConfig holds metrics server configuration
type MetricsConfig struct {
	Enabled bool
	Addr    string
}

type serveOptions struct {
	transport string
	httpAddr  string
	debug     bool
	metrics   MetricsConfig
	dashboard bool
}

func newServeCmd() *cobra.Command {
	opts := &serveOptions{}

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start an MCP server",
		Long: `Start one of the Model Context Protocol (MCP) servers.

Supports multiple transport types:
  - stdio: Standard input/output (default)
  - streamable-http: Streamable HTTP transport

Configuration is read from the environment and from a .env file in the
working directory.`,
	}

	cmd.PersistentFlags().BoolVar(&opts.debug, "debug", false, "Enable debug logging")
	cmd.PersistentFlags().StringVar(&opts.transport, "transport", TransportStdio, "Transport type: stdio or streamable-http")
	cmd.PersistentFlags().StringVar(&opts.httpAddr, "http-addr", ":8080", "HTTP server address (for streamable-http transport)")
	cmd.PersistentFlags().BoolVar(&opts.metrics.Enabled, "metrics-enabled", true, "Enable the metrics server on a dedicated port. Can also use METRICS_ENABLED env var.")
	cmd.PersistentFlags().StringVar(&opts.metrics.Addr, "metrics-addr", server.DefaultMetricsAddr, "Metrics server address. Can also use METRICS_ADDR env var.")

	gmailCmd := &cobra.Command{
		Use:   "gmail",
		Short: "Serve the Gmail tools",
		Long: `Serve tools that send, search, read and delete Gmail messages.

Run "inboxquery auth" once to store a Google token before starting the server.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			applyMetricsEnv(cmd, &opts.metrics)
			return runServe(kindGmail, *opts)
		},
	}

	sqlCmd := &cobra.Command{
		Use:   "sql",
		Short: "Serve the CSV and natural-language SQL tools",
		Long: `Serve tools that load CSV files into SQLite, translate questions into SQL
with a hosted language model and chart the results.

Unless --dashboard=false is given, a live dashboard is served on DASHBOARD_ADDR.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			applyMetricsEnv(cmd, &opts.metrics)
			return runServe(kindSQL, *opts)
		},
	}
	sqlCmd.Flags().BoolVar(&opts.dashboard, "dashboard", true, "Serve the live result dashboard")

	cmd.AddCommand(gmailCmd, sqlCmd)
	return cmd
}

// applyMetricsEnv lets METRICS_ENABLED and METRICS_ADDR override flags that
// were not set explicitly.
func applyMetricsEnv(cmd *cobra.Command, mc *MetricsConfig) {
	if !cmd.Flags().Changed("metrics-enabled") {
		switch os.Getenv("METRICS_ENABLED") {
		case "true":
			mc.Enabled = true
		case "false":
			mc.Enabled = false
		}
	}
	if !cmd.Flags().Changed("metrics-addr") {
		if addr := os.Getenv("METRICS_ADDR"); addr != "" {
			mc.Addr = addr
		}
	}
}

func runServe(kind serverKind, opts serveOptions) error {
	if opts.transport != TransportStdio && opts.transport != TransportStreamableHTTP {
		return fmt.Errorf("unsupported transport type: %s (supported: stdio, streamable-http)", opts.transport)
	}

	// Setup graceful shutdown
	shutdownCtx, cancel := signal.NotifyContext(context.Background(),
		os.Interrupt, syscall.SIGTERM)
	defer cancel()

	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if opts.debug {
		cfg.LogLevel = "debug"
	}
	logger := logging.NewLogger(cfg.LogLevel, cfg.LogFormat, os.Stderr)
	slog.SetDefault(logger)

	instrConfig, err := instrumentation.LoadConfig()
	if err != nil {
		return err
	}
	instrConfig.ServiceVersion = version

	provider, err := instrumentation.NewProvider(shutdownCtx, instrConfig, instrumentation.WithProviderLogger(logger))
	if err != nil {
		return fmt.Errorf("failed to create instrumentation provider: %w", err)
	}
	defer func() {
		if err := provider.Shutdown(context.Background()); err != nil {
			logger.Warn("instrumentation shutdown failed", logging.Err(err))
		}
	}()

	serverContext, err := newServerContext(shutdownCtx, kind, cfg, logger, provider)
	if err != nil {
		return err
	}
	if provider.Enabled() {
		serverContext.SetMetrics(provider.Metrics())
		serverContext.SetAuditLogger(instrumentation.NewAuditLoggerWithConfig(logger, instrConfig.AuditLogging))
	}
	defer func() {
		if err := serverContext.Shutdown(); err != nil {
			logger.Warn("server context shutdown failed", logging.Err(err))
		}
	}()

	// stdout carries the stdio transport, so metrics are only served next to
	// an HTTP transport.
	if opts.transport != TransportStdio && opts.metrics.Enabled && provider.HasPrometheusExporter() {
		metricsServer, err := server.NewMetricsServer(server.MetricsServerConfig{
			Addr:     opts.metrics.Addr,
			Provider: provider,
			Health:   server.NewHealthChecker(serverContext),
			Logger:   logger,
		})
		if err != nil {
			return fmt.Errorf("failed to create metrics server: %w", err)
		}
		go func() {
			if err := metricsServer.Start(); err != nil {
				logger.Error("metrics server stopped", logging.Err(err))
			}
		}()
		defer shutdownWithTimeout(logger, "metrics server", metricsServer.Shutdown)
	}

	hooks := &mcpserver.Hooks{}
	serverContext.Sessions().RegisterHooks(hooks)

	mcpSrv := mcpserver.NewMCPServer("inboxquery-"+string(kind), version,
		mcpserver.WithToolCapabilities(true),
		mcpserver.WithResourceCapabilities(false, false),
		mcpserver.WithHooks(hooks),
	)
	if err := registerTools(mcpSrv, serverContext, kind); err != nil {
		return err
	}

	var httpServer *server.HTTPServer
	if opts.transport == TransportStreamableHTTP {
		httpServer = server.NewHTTPServer(mcpSrv, serverContext)
	}

	if kind == kindSQL && opts.dashboard {
		var health dashboard.HealthEndpoints
		if httpServer != nil {
			health = httpServer.Health()
		} else {
			health = server.NewHealthChecker(serverContext)
		}
		dash := dashboard.New(dashboard.Config{
			Addr:     cfg.DashboardAddr,
			Sessions: serverContext.Sessions(),
			Health:   health,
			Metrics:  serverContext.Metrics(),
			Logger:   logger,
		})
		go func() {
			if err := dash.Start(); err != nil {
				logger.Error("dashboard stopped", logging.Err(err))
			}
		}()
		defer shutdownWithTimeout(logger, "dashboard", dash.Shutdown)

		logger.Info("dashboard available", slog.String("url", dash.URL()))
		if cfg.OpenBrowser {
			openBrowser(logger, dash.URL())
		}
	}

	logger.Info("starting MCP server",
		slog.String("server", string(kind)),
		slog.String("transport", opts.transport),
		slog.String("version", version))

	if httpServer != nil {
		return runStreamableHTTPServer(shutdownCtx, httpServer, opts.httpAddr, logger)
	}
	return runStdioServer(mcpSrv)
}

// newServerContext wires the dependencies of one server kind.
func newServerContext(ctx context.Context, kind serverKind, cfg *config.Config, logger *slog.Logger, provider *instrumentation.Provider) (*server.ServerContext, error) {
	scOpts := []server.Option{server.WithLogger(logger)}

	if cfg.LLMConfigured() {
		completer, err := llm.New(llm.Options{
			APIKey:      cfg.ClaudeAPIKey,
			BaseURL:     cfg.LLMBaseURL,
			Model:       cfg.LLMModel,
			MaxTokens:   cfg.LLMMaxTokens,
			Temperature: cfg.LLMTemp,
		}, provider.Metrics(), logger)
		if err != nil {
			return nil, fmt.Errorf("failed to create language model client: %w", err)
		}
		scOpts = append(scOpts, server.WithCompleter(completer))
	} else {
		logger.Warn("CLAUDE_API_KEY is not set; language model tools will fail")
	}

	switch kind {
	case kindGmail:
		creds := google.NewGmailCredentials(cfg.ClientSecretFile, cfg.TokenDir, cfg.TokenPrefix)
		creds.Metrics = provider.Metrics()
		creds.Logger = logger
		if !creds.HasToken() {
			logger.Warn("no Google token found; run `inboxquery auth` or the google_get_auth_url tool before using the Gmail tools",
				slog.String("token_file", creds.TokenFile()))
		}
		scOpts = append(scOpts, server.WithCredentials(creds))
	case kindSQL:
		store, err := sqlstore.Open(cfg.SQLiteDB,
			sqlstore.WithMetrics(provider.Metrics()),
			sqlstore.WithLogger(logger))
		if err != nil {
			return nil, fmt.Errorf("failed to open SQLite database: %w", err)
		}
		scOpts = append(scOpts, server.WithStore(store))
	}

	return server.NewServerContext(ctx, cfg, scOpts...), nil
}

// registerTools registers the tools and resources of one server kind.
func registerTools(mcpSrv *mcpserver.MCPServer, sc *server.ServerContext, kind serverKind) error {
	switch kind {
	case kindGmail:
		if err := gmail_tools.RegisterGmailTools(mcpSrv, sc); err != nil {
			return fmt.Errorf("failed to register Gmail tools: %w", err)
		}
		if err := google_tools.RegisterGoogleTools(mcpSrv, sc); err != nil {
			return fmt.Errorf("failed to register Google tools: %w", err)
		}
	case kindSQL:
		if err := sql_tools.RegisterSQLTools(mcpSrv, sc); err != nil {
			return fmt.Errorf("failed to register SQL tools: %w", err)
		}
		if err := resources.RegisterSQLResources(mcpSrv, sc); err != nil {
			return fmt.Errorf("failed to register SQL resources: %w", err)
		}
	default:
		return fmt.Errorf("unknown server: %s", kind)
	}
	return nil
}

func runStdioServer(mcpSrv *mcpserver.MCPServer) error {
	if err := mcpserver.ServeStdio(mcpSrv); err != nil {
		return fmt.Errorf("server stopped with error: %w", err)
	}
	return nil
}

func runStreamableHTTPServer(ctx context.Context, httpServer *server.HTTPServer, addr string, logger *slog.Logger) error {
	serverDone := make(chan error, 1)
	go func() {
		defer close(serverDone)
		if err := httpServer.Start(addr); err != nil {
			serverDone <- err
		}
	}()

	logger.Info("HTTP server listening", slog.String("addr", addr), slog.String("endpoint", server.MCPEndpoint))

	select {
	case <-ctx.Done():
		logger.Info("shutdown signal received, stopping HTTP server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), server.DefaultShutdownTimeout)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("error shutting down HTTP server: %w", err)
		}
	case err := <-serverDone:
		if err != nil {
			return fmt.Errorf("HTTP server stopped with error: %w", err)
		}
	}

	logger.Info("HTTP server gracefully stopped")
	return nil
}

func shutdownWithTimeout(logger *slog.Logger, name string, shutdown func(context.Context) error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := shutdown(ctx); err != nil {
		logger.Warn("shutdown failed", slog.String("component", name), logging.Err(err))
	}
}

// openBrowser opens url without writing to stdout, which may carry the
// stdio transport.
func openBrowser(logger *slog.Logger, url string) {
	browser.Stdout = os.Stderr
	if err := browser.OpenURL(url); err != nil {
		logger.Warn("failed to open browser", slog.String("url", url), logging.Err(err))
	}
}
