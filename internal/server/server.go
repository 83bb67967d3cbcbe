package server

import (
	"context"
	"database/sql"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/ButBow/kernel-gmbh-sub000/internal/backup"
	"github.com/ButBow/kernel-gmbh-sub000/internal/content"
	"github.com/ButBow/kernel-gmbh-sub000/internal/handler"
	"github.com/ButBow/kernel-gmbh-sub000/internal/metrics"
	"github.com/ButBow/kernel-gmbh-sub000/internal/middleware"
	"github.com/ButBow/kernel-gmbh-sub000/internal/snapshot"
	"github.com/ButBow/kernel-gmbh-sub000/internal/store"
	ws "github.com/ButBow/kernel-gmbh-sub000/internal/websocket"
)

const defaultImportLimit = 10

// Config holds the settings the server wires into its components.
type Config struct {
	Backup backup.Config
	// SiteHost is stamped into exported manifests.
	SiteHost string
	// WSOrigins are origin patterns allowed to open /ws besides same-origin.
	WSOrigins []string
	// ImportLimit caps import and offsite requests per client per minute.
	ImportLimit int
}

type Server struct {
	db          *sql.DB
	hub         *ws.Hub
	backupH     *handler.BackupHandler
	backupMgr   *backup.Manager
	content     *content.Service
	rateLimiter *middleware.RateLimiter
	cfg         Config
	logger      *slog.Logger
}

func New(db *sql.DB, cfg Config, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.ImportLimit <= 0 {
		cfg.ImportLimit = defaultImportLimit
	}

	hub := ws.NewHub(logger)

	kv := store.NewKVStore(db)
	contentSvc := content.NewService(kv, snapshot.StandardDefaults, logger.With("component", "content"))
	engine := snapshot.NewEngine(snapshot.Config{
		Store:  kv,
		Source: cfg.SiteHost,
		Logger: logger.With("component", "snapshot"),
	})

	backupMgr := backup.NewManager(cfg.Backup, backup.Deps{
		Engine:  engine,
		Content: contentSvc,
		History: store.NewBackupStore(db),
		Metrics: metrics.NewMetrics(),
		Events:  hub,
		Logger:  logger,
	}, func(s backup.Status) {
		hub.Broadcast(ws.NewEvent("offsite", string(s.State), 0, map[string]any{
			"in_progress": s.InProgress,
			"error":       s.Error,
		}))
	})

	return &Server{
		db:          db,
		hub:         hub,
		backupH:     handler.NewBackupHandler(backupMgr, logger.With("component", "backup_handler")),
		backupMgr:   backupMgr,
		content:     contentSvc,
		rateLimiter: middleware.NewRateLimiter(),
		cfg:         cfg,
		logger:      logger,
	}
}

func (s *Server) BackupManager() *backup.Manager {
	return s.backupMgr
}

func (s *Server) Content() *content.Service {
	return s.content
}

func (s *Server) Hub() *ws.Hub {
	return s.hub
}

// Start runs the background jobs: scheduled offsite pushes and rate limiter
// cleanup. They stop when ctx is done.
func (s *Server) Start(ctx context.Context) {
	s.backupMgr.Start(ctx)

	go func() {
		ticker := time.NewTicker(time.Minute)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				s.rateLimiter.Cleanup()
			}
		}
	}()
}

// Stop waits for the offsite scheduler to finish.
func (s *Server) Stop() {
	s.backupMgr.Stop()
}

func (s *Server) Router() http.Handler {
	outerMux := http.NewServeMux()

	// The websocket upgrade bypasses request logging, which would hold the
	// connection's span open for its whole lifetime.
	outerMux.Handle("GET /ws", ws.HandleWebSocket(s.hub, s.cfg.WSOrigins, s.logger))

	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", s.healthHandler)
	mux.Handle("GET /metrics", promhttp.Handler())

	mux.HandleFunc("GET /api/backup/export", s.backupH.Export)
	mux.HandleFunc("POST /api/backup/validate", s.backupH.Validate)
	mux.HandleFunc("POST /api/backup/import", s.limited("import", s.backupH.Import))
	mux.HandleFunc("GET /api/backup/history", s.backupH.History)
	mux.HandleFunc("GET /api/backup/status", s.backupH.Status)
	mux.HandleFunc("POST /api/backup/offsite", s.limited("offsite", s.backupH.Offsite))
	mux.HandleFunc("POST /api/backup/offsite/restore", s.limited("import", s.backupH.Restore))

	outerMux.Handle("/", middleware.RequestLogger(s.logger.With("component", "http"))(mux))
	return outerMux
}

func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if err := s.db.PingContext(r.Context()); err != nil {
		w.WriteHeader(http.StatusServiceUnavailable)
		json.NewEncoder(w).Encode(map[string]string{"status": "unavailable", "error": err.Error()})
		return
	}
	stored, err := s.backupMgr.OffsiteBytes()
	if err != nil {
		s.logger.Warn("offsite usage", "error", err)
	}
	json.NewEncoder(w).Encode(map[string]any{
		"status":         "ok",
		"schema_version": snapshot.CurrentSchemaVersion,
		"offsite":        s.backupMgr.Status().State,
		"offsite_bytes":  stored,
		"ws_clients":     s.hub.ClientCount(),
	})
}

// limited wraps h with the per-client import rate limit. Routes sharing a
// name share a budget.
func (s *Server) limited(route string, h http.HandlerFunc) http.HandlerFunc {
	return middleware.RateLimit(s.rateLimiter, middleware.ByIP(route), s.cfg.ImportLimit, time.Minute)(h).ServeHTTP
}
