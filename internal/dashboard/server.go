package dashboard

import (
	"context"
	"encoding/json"
	"fmt"
	"html/template"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/felixge/httpsnoop"

	"github.com/teemow/inboxquery/internal/instrumentation"
	"github.com/teemow/inboxquery/internal/logging"
	"github.com/teemow/inboxquery/internal/session"
)

const (
	// DefaultAddr is where the dashboard listens when no address is configured.
	DefaultAddr = "127.0.0.1:8050"

	// WaitingMessage is shown while there is nothing to chart.
	WaitingMessage = "Waiting for a result..."

	readHeaderTimeout = 10 * time.Second
	idleTimeout       = 60 * time.Second
)

// HealthEndpoints registers liveness and readiness handlers.
type HealthEndpoints interface {
	RegisterHealthEndpoints(mux *http.ServeMux)
}

// Config holds the dashboard dependencies.
type Config struct {
	Addr     string
	Sessions *session.Manager
	Health   HealthEndpoints
	Metrics  *instrumentation.Metrics
	Logger   *slog.Logger
}

// Server serves the live result dashboard.
type Server struct {
	addr     string
	sessions *session.Manager
	health   HealthEndpoints
	metrics  *instrumentation.Metrics
	logger   *slog.Logger

	httpServer *http.Server
	done       chan struct{}
	closeOnce  sync.Once
}

// New creates a dashboard server.
func New(cfg Config) *Server {
	if cfg.Addr == "" {
		cfg.Addr = DefaultAddr
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Sessions == nil {
		cfg.Sessions = session.NewManager(nil, 0, cfg.Logger)
	}
	return &Server{
		addr:     cfg.Addr,
		sessions: cfg.Sessions,
		health:   cfg.Health,
		metrics:  cfg.Metrics,
		logger:   logging.WithService(cfg.Logger, "dashboard"),
		done:     make(chan struct{}),
	}
}

// URL returns the address browsers should open.
func (s *Server) URL() string {
	return "http://" + s.addr + "/"
}

// Handler returns the dashboard routes wrapped in request metrics.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /{$}", s.handleIndex)
	mux.HandleFunc("GET /chart", s.handleChart)
	mux.HandleFunc("GET /events", s.handleEvents)
	mux.HandleFunc("GET /api/result", s.handleResult)
	if s.health != nil {
		s.health.RegisterHealthEndpoints(mux)
	}
	return s.instrument(mux)
}

// Start serves the dashboard until Shutdown is called.
func (s *Server) Start() error {
	s.httpServer = &http.Server{
		Addr:              s.addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: readHeaderTimeout,
		IdleTimeout:       idleTimeout,
	}

	s.logger.Info("starting dashboard", "url", s.URL())
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("dashboard server: %w", err)
	}
	return nil
}

// Shutdown ends open event streams and stops the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.closeOnce.Do(func() { close(s.done) })
	if s.httpServer != nil {
		s.logger.Info("shutting down dashboard")
		return s.httpServer.Shutdown(ctx)
	}
	return nil
}

func (s *Server) instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		m := httpsnoop.CaptureMetrics(next, w, r)
		s.metrics.RecordHTTPRequest(r.Context(), r.Method, routeLabel(r.URL.Path), m.Code, m.Duration)
	})
}

// routeLabel keeps the path label bounded.
func routeLabel(path string) string {
	switch path {
	case "/", "/chart", "/events", "/api/result", "/healthz", "/readyz", "/healthz/detailed":
		return path
	default:
		return "other"
	}
}

// current returns the result to display: the last result of the named
// session, or of the session that stored a result most recently.
func (s *Server) current(sessionID string) (session.Result, bool) {
	var (
		sess *session.Session
		ok   bool
	)
	if sessionID != "" {
		sess, ok = s.sessions.Lookup(sessionID)
	} else {
		sess, ok = s.sessions.Latest()
	}
	if !ok {
		return session.Result{}, false
	}
	return sess.LastResult()
}

var indexTemplate = template.Must(template.New("index").Parse(`<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<title>Query Result Dashboard</title>
<style>
body { font-family: sans-serif; margin: 2em; }
iframe { width: 100%; height: 520px; border: none; }
#status { color: #555; margin-top: 1em; }
</style>
</head>
<body>
<h1>Query Result Dashboard</h1>
<label for="kind">Chart type</label>
<select id="kind">
{{range .Kinds}}<option value="{{.}}">{{.}}</option>
{{end}}</select>
<iframe id="chart" src="chart?kind={{.Kind}}{{if .Session}}&amp;session={{.Session}}{{end}}"></iframe>
<div id="status">{{.Status}}</div>
<script>
const session = {{.Session}};
const kind = document.getElementById("kind");
const chart = document.getElementById("chart");
const statusLine = document.getElementById("status");

function reload() {
  let src = "chart?kind=" + encodeURIComponent(kind.value);
  if (session) { src += "&session=" + encodeURIComponent(session); }
  chart.src = src;
  fetch("api/result" + (session ? "?session=" + encodeURIComponent(session) : ""))
    .then(r => r.json())
    .then(d => {
      statusLine.textContent = d.result ? d.result.sql + " (" + (d.result.result.rows || []).length + " rows)" : {{.Waiting}};
    })
    .catch(() => {});
}

kind.addEventListener("change", reload);
const events = new EventSource("events" + (session ? "?session=" + encodeURIComponent(session) : ""));
events.onmessage = reload;
</script>
</body>
</html>
`))

type indexData struct {
	Kinds   []Kind
	Kind    Kind
	Session string
	Status  string
	Waiting string
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	sessionID := r.URL.Query().Get("session")
	data := indexData{
		Kinds:   Kinds,
		Kind:    KindBar,
		Session: sessionID,
		Status:  WaitingMessage,
		Waiting: WaitingMessage,
	}
	if res, ok := s.current(sessionID); ok && !res.Set.Empty() {
		data.Status = fmt.Sprintf("%s (%d rows)", res.SQL, len(res.Set.Rows))
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := indexTemplate.Execute(w, data); err != nil {
		s.logger.Error("render index", logging.Err(err))
	}
}

func (s *Server) handleChart(w http.ResponseWriter, r *http.Request) {
	kind, err := ParseKind(r.URL.Query().Get("kind"))
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	res, ok := s.current(r.URL.Query().Get("session"))
	if !ok || res.Set.Empty() {
		_, _ = fmt.Fprintf(w, "<!DOCTYPE html><html><body><p>%s</p></body></html>", WaitingMessage)
		return
	}

	x, y := DefaultAxes(res.Set)
	if err := Render(w, kind, res.Set, x, y, res.SQL); err != nil {
		s.logger.Error("render chart", logging.Err(err))
	}
}

type resultResponse struct {
	Session string          `json:"session,omitempty"`
	Status  string          `json:"status"`
	Result  *session.Result `json:"result,omitempty"`
}

func (s *Server) handleResult(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	sessionID := r.URL.Query().Get("session")
	res, ok := s.current(sessionID)
	if !ok {
		w.WriteHeader(http.StatusNotFound)
		_ = json.NewEncoder(w).Encode(resultResponse{Session: sessionID, Status: "waiting"})
		return
	}
	_ = json.NewEncoder(w).Encode(resultResponse{Status: "ok", Result: &res})
}

// handleEvents streams a message for every stored result. With a session
// query parameter only that session's results are sent.
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	events, unsubscribe := s.sessions.Hub().Subscribe()
	defer unsubscribe()

	filter := r.URL.Query().Get("session")

	_, _ = fmt.Fprint(w, ": connected\n\n")
	flusher.Flush()

	for {
		select {
		case <-r.Context().Done():
			return
		case <-s.done:
			return
		case ev, open := <-events:
			if !open {
				return
			}
			if filter != "" && ev.Session != filter {
				continue
			}
			payload, err := json.Marshal(ev)
			if err != nil {
				s.logger.Error("encode event", logging.Err(err))
				continue
			}
			if _, err := fmt.Fprintf(w, "data: %s\n\n", payload); err != nil {
				return
			}
			flusher.Flush()
		}
	}
}
