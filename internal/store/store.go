package store

import (
	"context"
	"time"

	"govlink/checkin-service/internal/models"
)

// AppointmentStore is read-only: appointment state belongs to the booking
// system.
type AppointmentStore interface {
	GetAppointment(ctx context.Context, reference string) (models.AppointmentRecord, error)
}

type AuditStore interface {
	InsertAudit(ctx context.Context, entry models.AuditEntry) error
	ListAudit(ctx context.Context, terminalID string, since time.Time, limit int) ([]models.AuditEntry, error)
}
