package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"govlink/checkin-service/internal/audit"
	"govlink/checkin-service/internal/checkin"
	"govlink/checkin-service/internal/lookup"
	"govlink/checkin-service/internal/models"
	"govlink/checkin-service/internal/scan"
	"govlink/checkin-service/internal/store"

	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"
)

const (
	defaultDisplaySeconds = 10
	defaultMaxUploadBytes = 5 << 20
	defaultAuditPageSize  = 50
	maxAuditPageSize      = 500
)

// Verifier is satisfied by *checkin.Verifier.
type Verifier interface {
	Verify(ctx context.Context, raw string, terminal models.Terminal) models.ValidationResult
}

// Publisher pushes results to reception displays; *hub.Hub satisfies it.
type Publisher interface {
	Publish(terminal models.Terminal, result models.ValidationResult, displaySeconds int, now time.Time) error
}

type Handler struct {
	verifier       Verifier
	lookup         lookup.Lookup
	history        checkin.HistoryProvider
	audit          audit.Sink
	auditLog       store.AuditStore
	publisher      Publisher
	decoder        *scan.Decoder
	displaySeconds int
	maxUploadBytes int64
	now            func() time.Time
	logger         *slog.Logger
	inflight       singleflight.Group
}

type Options struct {
	// Lookup backs GET /api/appointments/lookup. The route answers 404
	// when nil.
	Lookup         lookup.Lookup
	History        checkin.HistoryProvider
	Audit          audit.Sink
	AuditLog       store.AuditStore
	Publisher      Publisher
	Decoder        *scan.Decoder
	DisplaySeconds int
	MaxUploadBytes int64
	Now            func() time.Time
	Logger         *slog.Logger
}

type verifyRequest struct {
	RequestID string `json:"request_id"`
	QRData    string `json:"qr_data"`
}

type checkinResponse struct {
	RequestID      string                  `json:"request_id"`
	TerminalID     string                  `json:"terminal_id"`
	Result         models.ValidationResult `json:"result"`
	DisplaySeconds int                     `json:"display_seconds"`
}

type errorResponse struct {
	RequestID string        `json:"request_id"`
	Error     responseError `json:"error"`
}

type responseError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func NewHandler(verifier Verifier, options Options) *Handler {
	displaySeconds := options.DisplaySeconds
	if displaySeconds <= 0 {
		displaySeconds = defaultDisplaySeconds
	}
	maxUpload := options.MaxUploadBytes
	if maxUpload <= 0 {
		maxUpload = defaultMaxUploadBytes
	}
	decoder := options.Decoder
	if decoder == nil {
		decoder = scan.NewDecoder(0)
	}
	sink := options.Audit
	if sink == nil {
		sink = audit.NoopSink{}
	}
	now := options.Now
	if now == nil {
		now = time.Now
	}
	logger := options.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		verifier:       verifier,
		lookup:         options.Lookup,
		history:        options.History,
		audit:          sink,
		auditLog:       options.AuditLog,
		publisher:      options.Publisher,
		decoder:        decoder,
		displaySeconds: displaySeconds,
		maxUploadBytes: maxUpload,
		now:            now,
		logger:         logger,
	}
}

func (h *Handler) Routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", h.handleHealth)
	mux.HandleFunc("/api/checkin/verify", h.handleVerify)
	mux.HandleFunc("/api/checkin/scan", h.handleScan)
	mux.HandleFunc("/api/checkin/audit", h.handleAudit)
	mux.HandleFunc("/api/appointments/lookup", h.handleLookup)
	return mux
}

func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	w.WriteHeader(http.StatusOK)
}

func (h *Handler) handleVerify(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	terminal, ok := h.requireTerminal(w, r)
	if !ok {
		return
	}

	var req verifyRequest
	decoder := json.NewDecoder(io.LimitReader(r.Body, h.maxUploadBytes))
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&req); err != nil {
		writeError(w, req.RequestID, http.StatusBadRequest, "invalid_json", "invalid JSON payload")
		return
	}
	req.RequestID = strings.TrimSpace(req.RequestID)
	if req.RequestID == "" {
		req.RequestID = requestIDFromRequest(r)
	}
	if req.RequestID == "" {
		req.RequestID = uuid.NewString()
	}

	h.process(w, r, req.RequestID, terminal, req.QRData, "manual")
}

func (h *Handler) handleScan(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	terminal, ok := h.requireTerminal(w, r)
	if !ok {
		return
	}
	requestID := requestIDFromRequest(r)

	r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadBytes)
	if err := r.ParseMultipartForm(h.maxUploadBytes); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) || strings.Contains(err.Error(), "request body too large") {
			writeError(w, requestID, http.StatusRequestEntityTooLarge, "payload_too_large", "image exceeds upload limit")
			return
		}
		writeError(w, requestID, http.StatusBadRequest, "invalid_request", "multipart form with an image field is required")
		return
	}
	if requestID == "" {
		requestID = strings.TrimSpace(r.FormValue("request_id"))
	}
	if requestID == "" {
		requestID = uuid.NewString()
	}

	file, _, err := r.FormFile("image")
	if err != nil {
		writeError(w, requestID, http.StatusBadRequest, "invalid_request", "image is required")
		return
	}
	defer file.Close()
	data, err := io.ReadAll(file)
	if err != nil {
		writeError(w, requestID, http.StatusBadRequest, "invalid_request", "image could not be read")
		return
	}

	raw, err := h.decoder.Decode(r.Context(), scan.ImageSource{Data: data})
	if err != nil {
		status, code, msg := mapError(err)
		writeError(w, requestID, status, code, msg)
		return
	}
	h.process(w, r, requestID, terminal, raw, "upload")
}

// process runs one scanned string through duplicate suppression, the
// verifier, the audit sink and the display fan-out.
func (h *Handler) process(w http.ResponseWriter, r *http.Request, requestID string, terminal models.Terminal, raw, source string) {
	ctx := r.Context()
	key := ""
	if strings.TrimSpace(raw) != "" {
		key = checkin.ScanKey(terminal.ID, raw)
	}

	var history checkin.ScanHistory
	if h.history != nil && key != "" {
		history = h.history.For(terminal.ID)
		seen, err := history.Seen(ctx, key)
		if err != nil {
			h.logger.Warn("scan history unavailable", "terminal", terminal.ID, "error", err)
		} else if seen {
			writeError(w, requestID, http.StatusConflict, "duplicate_scan", "this code was just scanned")
			return
		}
	}

	result := h.verify(ctx, key, raw, terminal)
	scanResults.Add(string(result.ReasonCode), 1)

	// A failed lookup says nothing about the pass, so let it be rescanned.
	if history != nil && result.ReasonCode == models.ReasonLookupFailed {
		if err := history.Forget(ctx, key); err != nil {
			h.logger.Warn("scan history forget failed", "terminal", terminal.ID, "error", err)
		}
	}

	now := h.now()
	entry := audit.Stamp(models.AuditEntry{
		RequestID:  requestID,
		TerminalID: terminal.ID,
		Operator:   strings.TrimSpace(r.Header.Get("X-Operator")),
		Source:     source,
		Result:     result,
	}, now)
	if err := h.audit.Record(ctx, entry); err != nil {
		h.logger.Warn("audit record failed", "terminal", terminal.ID, "request_id", requestID, "error", err)
	}
	if h.publisher != nil {
		if err := h.publisher.Publish(terminal, result, h.displaySeconds, now); err != nil {
			h.logger.Warn("display publish failed", "terminal", terminal.ID, "error", err)
		}
	}

	writeJSON(w, http.StatusOK, checkinResponse{
		RequestID:      requestID,
		TerminalID:     terminal.ID,
		Result:         result,
		DisplaySeconds: h.displaySeconds,
	})
}

// verify collapses identical scans that arrive while one is still in
// flight onto a single lookup. The shared call outlives any one caller's
// request; the verifier's lookup timeout bounds it.
func (h *Handler) verify(ctx context.Context, key, raw string, terminal models.Terminal) models.ValidationResult {
	if key == "" {
		return h.verifier.Verify(ctx, raw, terminal)
	}
	shared := context.WithoutCancel(ctx)
	value, _, _ := h.inflight.Do(key, func() (interface{}, error) {
		return h.verifier.Verify(shared, raw, terminal), nil
	})
	return value.(models.ValidationResult)
}

func (h *Handler) handleLookup(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	requestID := requestIDFromRequest(r)
	if h.lookup == nil {
		writeError(w, requestID, http.StatusNotFound, "not_found", "lookup is not served by this instance")
		return
	}
	if _, ok := h.requireTerminal(w, r); !ok {
		return
	}
	reference := strings.TrimSpace(r.URL.Query().Get("reference"))
	if reference == "" {
		writeError(w, requestID, http.StatusBadRequest, "invalid_request", "reference is required")
		return
	}
	resp, err := h.lookup.Find(r.Context(), reference)
	if err != nil {
		h.logger.Error("appointment lookup", "reference", reference, "error", err)
		status, code, msg := mapError(err)
		writeError(w, requestID, status, code, msg)
		return
	}
	if !resp.Success {
		writeJSON(w, http.StatusNotFound, resp)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) handleAudit(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	requestID := requestIDFromRequest(r)
	if h.auditLog == nil {
		writeError(w, requestID, http.StatusNotFound, "not_found", "audit log is not stored by this instance")
		return
	}
	terminal, ok := h.requireTerminal(w, r)
	if !ok {
		return
	}

	since := h.now().Add(-24 * time.Hour)
	if raw := strings.TrimSpace(r.URL.Query().Get("since")); raw != "" {
		parsed, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			writeError(w, requestID, http.StatusBadRequest, "invalid_request", "since must be RFC3339")
			return
		}
		since = parsed
	}
	limit := defaultAuditPageSize
	if raw := strings.TrimSpace(r.URL.Query().Get("limit")); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			writeError(w, requestID, http.StatusBadRequest, "invalid_request", "limit must be a positive integer")
			return
		}
		limit = parsed
	}
	if limit > maxAuditPageSize {
		limit = maxAuditPageSize
	}

	entries, err := h.auditLog.ListAudit(r.Context(), terminal.ID, since, limit)
	if err != nil {
		status, code, msg := mapError(err)
		writeError(w, requestID, status, code, msg)
		return
	}
	if entries == nil {
		entries = []models.AuditEntry{}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"entries": entries})
}

func (h *Handler) requireTerminal(w http.ResponseWriter, r *http.Request) (models.Terminal, bool) {
	terminal, ok := terminalFromContext(r.Context())
	if !ok {
		writeError(w, requestIDFromRequest(r), http.StatusUnauthorized, "unauthorized", "missing terminal credentials")
		return models.Terminal{}, false
	}
	return terminal, true
}

func mapError(err error) (int, string, string) {
	switch {
	case errors.Is(err, store.ErrAppointmentNotFound):
		return http.StatusNotFound, "appointment_not_found", "appointment not found"
	case errors.Is(err, store.ErrInvalidStatus):
		return http.StatusUnprocessableEntity, "invalid_status", "appointment has an unknown status"
	case errors.Is(err, scan.ErrNoQRCode):
		return http.StatusUnprocessableEntity, "no_qr_found", "no QR code found in image"
	case errors.Is(err, scan.ErrUnreadableImage):
		return http.StatusBadRequest, "unreadable_image", "image could not be decoded"
	case errors.Is(err, scan.ErrCameraUnavailable):
		return http.StatusServiceUnavailable, "camera_unavailable", "camera unavailable"
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout, "timeout", "request timed out"
	default:
		return http.StatusInternalServerError, "internal_error", "internal server error"
	}
}

func writeError(w http.ResponseWriter, requestID string, status int, code, message string) {
	writeJSON(w, status, errorResponse{
		RequestID: requestID,
		Error: responseError{
			Code:    code,
			Message: message,
		},
	})
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload == nil {
		return
	}
	_ = json.NewEncoder(w).Encode(payload)
}
