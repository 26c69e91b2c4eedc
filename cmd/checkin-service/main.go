package main

import (
	"context"
	"errors"
	"expvar"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"govlink/checkin-service/internal/audit"
	"govlink/checkin-service/internal/checkin"
	"govlink/checkin-service/internal/config"
	"govlink/checkin-service/internal/httpapi"
	"govlink/checkin-service/internal/hub"
	"govlink/checkin-service/internal/lookup"
	"govlink/checkin-service/internal/models"
	"govlink/checkin-service/internal/scan"
	"govlink/checkin-service/internal/store"
	"govlink/checkin-service/internal/store/postgres"
	"govlink/checkin-service/internal/store/redis"
	"govlink/checkin-service/internal/telemetry"

	"github.com/google/uuid"
	"github.com/igm/sockjs-go/sockjs"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/cors"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

var version = "dev"

var errMissingLookup = errors.New("either LOOKUP_URL or DB_DSN is required")

func main() {
	cfg := config.Load()
	logger := newLogger(cfg.LogLevel)
	slog.SetDefault(logger)

	shutdownTelemetry := telemetry.Setup("checkin-service", version, logger)
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = shutdownTelemetry(ctx)
	}()

	loc, err := cfg.Location()
	if err != nil {
		logger.Warn("unknown office timezone, using UTC", "timezone", cfg.OfficeTimezone, "error", err)
	}

	terminals, err := config.LoadTerminals(cfg.TerminalsFile)
	if err != nil {
		fatal(logger, "load terminals", err)
	}

	var appointments *postgres.Store
	var auditLog store.AuditStore
	if cfg.DatabaseURL != "" {
		pool, err := pgxpool.New(context.Background(), cfg.DatabaseURL)
		if err != nil {
			fatal(logger, "db connect", err)
		}
		defer pool.Close()
		appointments = postgres.NewStore(pool)
		auditLog = appointments
	}

	var served lookup.Lookup
	if appointments != nil {
		served = lookup.NewStoreLookup(appointments)
	}
	upstream := served
	if cfg.LookupURL != "" {
		upstream = lookup.NewHTTPClient(cfg.LookupURL, lookup.HTTPOptions{
			Token:   cfg.LookupToken,
			Timeout: cfg.LookupTimeout,
		})
	}
	if upstream == nil {
		fatal(logger, "configure lookup", errMissingLookup)
	}

	var history checkin.HistoryProvider = checkin.NewSessionScans(cfg.ScanHistorySize, cfg.ScanHistoryTTL)
	if cfg.RedisURL != "" {
		client, err := redis.NewClient(cfg.RedisURL)
		if err != nil {
			fatal(logger, "redis url", err)
		}
		defer client.Close()
		history = redis.NewScanHistory(client, cfg.ScanHistoryTTL)
	}

	verifier := checkin.NewVerifier(upstream, checkin.Options{
		Location:         loc,
		LookupTimeout:    cfg.LookupTimeout,
		Signer:           checkin.NewSigner([]byte(cfg.PassSigningKey)),
		RequireSignature: cfg.RequirePassSignature,
		Logger:           logger,
	})

	auditWorker := audit.NewWorker(audit.New(audit.Options{
		Kind:       cfg.AuditSink,
		WebhookURL: cfg.AuditWebhookURL,
		Token:      cfg.AuditWebhookToken,
		Store:      auditLog,
		Logger:     logger,
	}), audit.WorkerConfig{
		QueueSize:   cfg.AuditQueueSize,
		MaxAttempts: cfg.AuditMaxAttempts,
		Logger:      logger,
	})
	auditCtx, stopAudit := context.WithCancel(context.Background())
	auditWorker.Start(auditCtx)

	displays := hub.New(logger)
	handler := httpapi.NewHandler(verifier, httpapi.Options{
		Lookup:         served,
		History:        history,
		Audit:          auditWorker,
		AuditLog:       auditLog,
		Publisher:      displays,
		Decoder:        scan.NewDecoder(0),
		DisplaySeconds: cfg.ResultDisplaySeconds,
		MaxUploadBytes: cfg.MaxUploadBytes,
		Logger:         logger,
	})
	auth := httpapi.NewAuthenticator(terminals, cfg.JWTSecret)
	limiter := httpapi.NewRateLimiter(httpapi.RateLimitConfig{
		IPPerMinute:       cfg.RateLimitPerMinute,
		IPBurst:           cfg.RateLimitBurst,
		TerminalPerMinute: cfg.TerminalRateLimitPerMinute,
		TerminalBurst:     cfg.TerminalRateLimitBurst,
	})

	mux := http.NewServeMux()
	mux.Handle("/metrics", expvar.Handler())
	mux.Handle("/realtime/", sockjs.NewHandler("/realtime", sockjs.DefaultOptions, displaySession(displays, auth, terminals, logger)))
	mux.Handle("/", limiter.TerminalMiddleware(handler.Routes()))

	origins := cfg.CORSOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	corsHandler := cors.New(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Content-Type", "Authorization", "X-Request-ID", "X-Terminal-ID", "X-Terminal-Key", "X-Operator"},
	}).Handler(auth.Middleware(mux))

	otelHandler := otelhttp.NewHandler(httpapi.LoggingMiddleware(logger, limiter.Middleware(corsHandler)), "checkin-service")
	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      otelHandler,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("checkin-service listening", "addr", server.Addr, "terminals", terminals.Len(), "version", version)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			fatal(logger, "server error", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		logger.Error("shutdown error", "error", err)
	}
	stopAudit()
	if err := auditWorker.Wait(ctx); err != nil {
		logger.Warn("audit worker did not stop in time", "error", err)
	}
}

// displaySession attaches a reception display to the hub. A display starts
// subscribed to the terminal it authenticated as and may switch to another
// terminal of the same office.
func displaySession(h *hub.Hub, auth *httpapi.Authenticator, terminals *config.Registry, logger *slog.Logger) func(sockjs.Session) {
	return func(session sockjs.Session) {
		terminal, err := auth.Authenticate(session.Request())
		if err != nil {
			_ = session.Close(4001, "unauthorized")
			return
		}

		client := &hub.Client{
			ID:           uuid.NewString(),
			Send:         make(chan []byte, 16),
			Subscription: hub.Subscription{TerminalID: terminal.ID},
		}
		h.Register(client)
		defer h.Unregister(client)

		go func() {
			for msg := range client.Send {
				_ = session.Send(string(msg))
			}
		}()

		for {
			msg, err := session.Recv()
			if err != nil {
				return
			}
			parsed, ok := hub.ParseSubscribe([]byte(msg))
			if !ok {
				continue
			}
			if parsed.Action == "unsubscribe" {
				h.UpdateSubscription(client, hub.Subscription{TerminalID: terminal.ID})
				continue
			}
			target, ok := terminals.Get(parsed.TerminalID)
			if !ok || !sameOffice(terminal, target) {
				logger.Warn("display subscription denied", "terminal", terminal.ID, "target", parsed.TerminalID)
				_ = session.Close(4003, "access denied")
				return
			}
			h.UpdateSubscription(client, hub.Subscription{TerminalID: target.ID})
		}
	}
}

func sameOffice(a, b models.Terminal) bool {
	if a.ID == b.ID {
		return true
	}
	return a.Office != "" && strings.EqualFold(a.Office, b.Office)
}

func newLogger(level string) *slog.Logger {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: lvl}))
}

func fatal(logger *slog.Logger, msg string, err error) {
	logger.Error(msg, "error", err)
	os.Exit(1)
}
