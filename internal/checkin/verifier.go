package checkin

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"govlink/checkin-service/internal/lookup"
	"govlink/checkin-service/internal/models"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

const (
	msgInvalidPayload = "Invalid QR code. Please scan a valid appointment pass."
	msgLookupFailed   = "Unable to verify this appointment right now. Please contact reception."
	msgLate           = "You are late for this appointment. Please contact reception."
	msgExpired        = "This appointment has expired. Please book a new appointment."
	msgAdmitted       = "Valid appointment! You may proceed to reception."

	defaultLookupTimeout = 5 * time.Second
)

type Options struct {
	// Location is the office time zone that pass dates and times are
	// written in. Defaults to UTC.
	Location         *time.Location
	LookupTimeout    time.Duration
	Now              func() time.Time
	Signer           *Signer
	RequireSignature bool
	Logger           *slog.Logger
}

// Verifier turns one scanned string into one ValidationResult. It performs a
// single lookup read and never mutates appointment state.
type Verifier struct {
	lookup   lookup.Lookup
	codec    Codec
	location *time.Location
	timeout  time.Duration
	now      func() time.Time
	logger   *slog.Logger
	tracer   trace.Tracer
}

func NewVerifier(l lookup.Lookup, options Options) *Verifier {
	loc := options.Location
	if loc == nil {
		loc = time.UTC
	}
	timeout := options.LookupTimeout
	if timeout <= 0 {
		timeout = defaultLookupTimeout
	}
	now := options.Now
	if now == nil {
		now = time.Now
	}
	logger := options.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Verifier{
		lookup: l,
		codec: Codec{
			Signer:           options.Signer,
			RequireSignature: options.RequireSignature,
		},
		location: loc,
		timeout:  timeout,
		now:      now,
		logger:   logger,
		tracer:   otel.Tracer("govlink/checkin-service/checkin"),
	}
}

func (v *Verifier) Verify(ctx context.Context, raw string, terminal models.Terminal) models.ValidationResult {
	ctx, span := v.tracer.Start(ctx, "checkin.verify")
	defer span.End()

	result := v.verify(ctx, raw, terminal)

	span.SetAttributes(
		attribute.String("checkin.terminal_id", terminal.ID),
		attribute.String("checkin.reason", string(result.ReasonCode)),
		attribute.Bool("checkin.admitted", result.Admitted),
	)
	v.logger.Info("checkin verified",
		"terminal", terminal.ID,
		"reason", result.ReasonCode,
		"admitted", result.Admitted,
	)
	return result
}

func (v *Verifier) verify(ctx context.Context, raw string, terminal models.Terminal) models.ValidationResult {
	payload, err := v.codec.Decode(raw)
	if err != nil {
		v.logger.Debug("checkin payload rejected", "terminal", terminal.ID, "error", err)
		return models.ValidationResult{
			ReasonCode: models.ReasonInvalidPayload,
			Message:    msgInvalidPayload,
		}
	}

	record, message, ok := v.fetch(ctx, payload.Reference)
	if !ok {
		return models.ValidationResult{
			ReasonCode: models.ReasonLookupFailed,
			Message:    message,
		}
	}

	if reason, message, blocked := GateStatus(record); blocked {
		return models.ValidationResult{
			ReasonCode:  reason,
			Message:     message,
			Appointment: &record,
		}
	}

	// Department and time come from the pass, status from the record.
	departmentMatch := MatchDepartment(payload.Department, terminal.Department)
	scheduled, err := ScheduledAt(payload.Date, payload.Time, v.location)
	if err != nil {
		return models.ValidationResult{
			ReasonCode: models.ReasonInvalidPayload,
			Message:    msgInvalidPayload,
		}
	}
	timeStatus := ClassifyTime(scheduled, v.now())

	result := models.ValidationResult{
		Appointment:     &record,
		TimeStatus:      &timeStatus,
		DepartmentMatch: departmentMatch,
	}
	switch {
	case !departmentMatch:
		result.ReasonCode = models.ReasonDepartmentMismatch
		result.Message = fmt.Sprintf("This appointment is for %s, but this desk serves %s.", payload.Department, terminal.Department)
	case timeStatus == models.TimeEarly:
		result.ReasonCode = models.ReasonTooEarly
		result.Message = fmt.Sprintf("Too early. Your appointment is at %s on %s; check-in opens one hour before.", payload.Time, payload.Date)
	case timeStatus == models.TimeLate:
		result.ReasonCode = models.ReasonLate
		result.Message = msgLate
	case timeStatus == models.TimeExpired:
		result.ReasonCode = models.ReasonExpired
		result.Message = msgExpired
	default:
		result.Admitted = true
		result.ReasonCode = models.ReasonOK
		result.Message = msgAdmitted
	}
	return result
}

type findResult struct {
	resp lookup.Response
	err  error
}

func (v *Verifier) fetch(ctx context.Context, reference string) (models.AppointmentRecord, string, bool) {
	ctx, cancel := context.WithTimeout(ctx, v.timeout)
	defer cancel()

	// The lookup runs on its own goroutine so a collaborator that ignores
	// ctx still cannot hold the scan past the timeout.
	done := make(chan findResult, 1)
	go func() {
		resp, err := v.lookup.Find(ctx, reference)
		done <- findResult{resp: resp, err: err}
	}()

	var resp lookup.Response
	var err error
	select {
	case <-ctx.Done():
		err = ctx.Err()
	case res := <-done:
		resp, err = res.resp, res.err
	}
	if err != nil {
		v.logger.Warn("appointment lookup failed", "reference", reference, "error", err)
		return models.AppointmentRecord{}, msgLookupFailed, false
	}
	if !resp.Success || resp.Data == nil {
		message := msgLookupFailed
		if resp.Message != "" {
			message = strings.TrimRight(resp.Message, ". ") + ". Please contact reception."
		}
		return models.AppointmentRecord{}, message, false
	}
	return *resp.Data, "", true
}
