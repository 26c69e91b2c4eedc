package audit

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"govlink/checkin-service/internal/models"
	"govlink/checkin-service/internal/store"

	"github.com/google/uuid"
)

var ErrSinkRejected = errors.New("audit sink rejected entry")

// Sink receives one entry per completed verification. Errors are reported
// to the caller for logging only; they never change a ValidationResult.
type Sink interface {
	Record(ctx context.Context, entry models.AuditEntry) error
}

type Options struct {
	Kind       string
	WebhookURL string
	Token      string
	Store      store.AuditStore
	Logger     *slog.Logger
	Client     *http.Client
}

// New picks a sink by kind: "log" (default), "noop", "postgres" or
// "webhook". A kind that looks like a URL is treated as a webhook target.
// Kinds whose dependency is missing fall back to the log sink.
func New(opts Options) Sink {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	switch kind := strings.ToLower(strings.TrimSpace(opts.Kind)); kind {
	case "", "log":
		return LogSink{Logger: logger}
	case "noop":
		return NoopSink{}
	case "postgres":
		if opts.Store == nil {
			logger.Warn("audit store unavailable, logging audit entries instead")
			return LogSink{Logger: logger}
		}
		return StoreSink{Store: opts.Store}
	case "webhook":
		if opts.WebhookURL == "" {
			return LogSink{Logger: logger}
		}
		return NewWebhookSink(opts.WebhookURL, opts.Token, opts.Client)
	default:
		if strings.HasPrefix(kind, "http://") || strings.HasPrefix(kind, "https://") {
			return NewWebhookSink(strings.TrimSpace(opts.Kind), opts.Token, opts.Client)
		}
		return LogSink{Logger: logger}
	}
}

// Stamp fills in the id and timestamp the way every sink expects them.
func Stamp(entry models.AuditEntry, now time.Time) models.AuditEntry {
	if entry.EntryID == "" {
		entry.EntryID = uuid.NewString()
	}
	if entry.RecordedAt.IsZero() {
		entry.RecordedAt = now.UTC()
	}
	return entry
}

type LogSink struct {
	Logger *slog.Logger
}

func (s LogSink) Record(ctx context.Context, entry models.AuditEntry) error {
	reference := ""
	if entry.Result.Appointment != nil {
		reference = entry.Result.Appointment.BookingReference
	}
	s.Logger.InfoContext(ctx, "checkin audit",
		"entry_id", entry.EntryID,
		"terminal", entry.TerminalID,
		"source", entry.Source,
		"reference", reference,
		"reason", entry.Result.ReasonCode,
		"admitted", entry.Result.Admitted,
	)
	return nil
}

type NoopSink struct{}

func (NoopSink) Record(context.Context, models.AuditEntry) error {
	return nil
}

type StoreSink struct {
	Store store.AuditStore
}

func (s StoreSink) Record(ctx context.Context, entry models.AuditEntry) error {
	return s.Store.InsertAudit(ctx, entry)
}

type WebhookSink struct {
	url    string
	token  string
	client *http.Client
}

func NewWebhookSink(url, token string, client *http.Client) WebhookSink {
	if client == nil {
		client = &http.Client{Timeout: 5 * time.Second}
	}
	return WebhookSink{url: url, token: token, client: client}
}

func (s WebhookSink) Record(ctx context.Context, entry models.AuditEntry) error {
	body, err := json.Marshal(entry)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if s.token != "" {
		req.Header.Set("Authorization", "Bearer "+s.token)
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return fmt.Errorf("%w: status %d", ErrSinkRejected, resp.StatusCode)
	}
	return nil
}
