package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"govlink/checkin-service/internal/models"
	"govlink/checkin-service/internal/store"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const defaultAuditLimit = 50

type Store struct {
	pool *pgxpool.Pool
}

func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

func (s *Store) GetAppointment(ctx context.Context, reference string) (models.AppointmentRecord, error) {
	var record models.AppointmentRecord
	row := s.pool.QueryRow(ctx, `
		SELECT booking_reference, citizen_name, service_type,
			to_char(scheduled_date, 'YYYY-MM-DD'), to_char(scheduled_time, 'HH24:MI'), status, department
		FROM appointments
		WHERE booking_reference = $1
	`, reference)
	err := row.Scan(
		&record.BookingReference,
		&record.CitizenName,
		&record.ServiceType,
		&record.Date,
		&record.Time,
		&record.Status,
		&record.Department,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.AppointmentRecord{}, store.ErrAppointmentNotFound
		}
		return models.AppointmentRecord{}, err
	}
	if !models.ValidAppointmentStatus(record.Status) {
		return models.AppointmentRecord{}, fmt.Errorf("%w: %q", store.ErrInvalidStatus, record.Status)
	}
	return record, nil
}

func (s *Store) InsertAudit(ctx context.Context, entry models.AuditEntry) error {
	if entry.EntryID == "" {
		entry.EntryID = uuid.NewString()
	}
	if entry.RecordedAt.IsZero() {
		entry.RecordedAt = time.Now().UTC()
	}
	result, err := json.Marshal(entry.Result)
	if err != nil {
		return err
	}
	var reference *string
	if entry.Result.Appointment != nil {
		reference = &entry.Result.Appointment.BookingReference
	}
	_, err = s.pool.Exec(ctx, `
		INSERT INTO checkin_audit (
			entry_id, request_id, terminal_id, operator, source, booking_reference, reason_code, admitted, result, recorded_at
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
		ON CONFLICT (entry_id) DO NOTHING
	`, entry.EntryID, entry.RequestID, entry.TerminalID, entry.Operator, entry.Source, reference,
		string(entry.Result.ReasonCode), entry.Result.Admitted, result, entry.RecordedAt)
	return err
}

func (s *Store) ListAudit(ctx context.Context, terminalID string, since time.Time, limit int) ([]models.AuditEntry, error) {
	if limit <= 0 {
		limit = defaultAuditLimit
	}
	rows, err := s.pool.Query(ctx, `
		SELECT entry_id::text, request_id, terminal_id, operator, source, result, recorded_at
		FROM checkin_audit
		WHERE terminal_id = $1 AND recorded_at >= $2
		ORDER BY recorded_at DESC
		LIMIT $3
	`, terminalID, since, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []models.AuditEntry
	for rows.Next() {
		var entry models.AuditEntry
		var result []byte
		if err := rows.Scan(&entry.EntryID, &entry.RequestID, &entry.TerminalID, &entry.Operator, &entry.Source, &result, &entry.RecordedAt); err != nil {
			return nil, err
		}
		if err := json.Unmarshal(result, &entry.Result); err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return entries, nil
}
