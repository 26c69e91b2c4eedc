package postgres

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"testing"
	"time"

	"govlink/checkin-service/internal/models"
	"govlink/checkin-service/internal/store"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

func TestGetAppointment(t *testing.T) {
	ctx := context.Background()
	st, pool, cleanup := setupTestStore(t, ctx)
	t.Cleanup(cleanup)

	seedAppointment(t, ctx, pool, "GV-001", "confirmed")
	seedAppointment(t, ctx, pool, "GV-BAD", "archived")

	record, err := st.GetAppointment(ctx, "GV-001")
	if err != nil {
		t.Fatalf("get appointment: %v", err)
	}
	if record.Date != "2025-08-15" || record.Time != "09:00" {
		t.Fatalf("unexpected schedule %s %s", record.Date, record.Time)
	}
	if record.Department != "Immigration" || record.Status != models.AppointmentConfirmed {
		t.Fatalf("unexpected record %+v", record)
	}

	if _, err := st.GetAppointment(ctx, "GV-404"); !errors.Is(err, store.ErrAppointmentNotFound) {
		t.Fatalf("expected ErrAppointmentNotFound, got %v", err)
	}
	if _, err := st.GetAppointment(ctx, "GV-BAD"); !errors.Is(err, store.ErrInvalidStatus) {
		t.Fatalf("expected ErrInvalidStatus, got %v", err)
	}
}

func TestAuditRoundTrip(t *testing.T) {
	ctx := context.Background()
	st, _, cleanup := setupTestStore(t, ctx)
	t.Cleanup(cleanup)

	valid := models.TimeValid
	base := time.Now().UTC().Add(-time.Minute).Truncate(time.Microsecond)
	entries := []models.AuditEntry{
		{
			EntryID:    uuid.NewString(),
			RequestID:  "req-1",
			TerminalID: "desk-1",
			Source:     "upload",
			RecordedAt: base,
			Result: models.ValidationResult{
				Admitted:        true,
				ReasonCode:      models.ReasonOK,
				Message:         "ok",
				Appointment:     &models.AppointmentRecord{BookingReference: "GV-001"},
				TimeStatus:      &valid,
				DepartmentMatch: true,
			},
		},
		{
			EntryID:    uuid.NewString(),
			TerminalID: "desk-1",
			Source:     "manual",
			RecordedAt: base.Add(time.Second),
			Result:     models.ValidationResult{ReasonCode: models.ReasonInvalidPayload, Message: "bad"},
		},
		{
			EntryID:    uuid.NewString(),
			TerminalID: "desk-2",
			Source:     "manual",
			RecordedAt: base,
			Result:     models.ValidationResult{ReasonCode: models.ReasonExpired},
		},
	}
	for _, entry := range entries {
		if err := st.InsertAudit(ctx, entry); err != nil {
			t.Fatalf("insert audit: %v", err)
		}
	}
	if err := st.InsertAudit(ctx, entries[0]); err != nil {
		t.Fatalf("duplicate insert should be ignored: %v", err)
	}

	got, err := st.ListAudit(ctx, "desk-1", base.Add(-time.Hour), 10)
	if err != nil {
		t.Fatalf("list audit: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(got))
	}
	if got[0].Result.ReasonCode != models.ReasonInvalidPayload {
		t.Fatalf("expected newest first, got %s", got[0].Result.ReasonCode)
	}
	if got[1].Result.Appointment == nil || got[1].Result.TimeStatus == nil || *got[1].Result.TimeStatus != models.TimeValid {
		t.Fatalf("result did not round trip: %+v", got[1].Result)
	}
}

func setupTestStore(t *testing.T, ctx context.Context) (*Store, *pgxpool.Pool, func()) {
	t.Helper()
	dsn := os.Getenv("TEST_DB_DSN")
	if dsn == "" {
		dsn = os.Getenv("DB_DSN")
	}
	if dsn == "" {
		t.Skip("TEST_DB_DSN or DB_DSN is required for integration tests")
	}

	schema := "test_" + strings.ReplaceAll(uuid.NewString(), "-", "")
	if err := execOnce(ctx, dsn, "CREATE SCHEMA "+schema); err != nil {
		t.Fatalf("create schema: %v", err)
	}

	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		t.Fatalf("parse dsn: %v", err)
	}
	cfg.ConnConfig.RuntimeParams["search_path"] = schema
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		t.Fatalf("open pool: %v", err)
	}

	if err := applyMigrations(ctx, pool); err != nil {
		pool.Close()
		t.Fatalf("apply migrations: %v", err)
	}

	cleanup := func() {
		pool.Close()
		_ = execOnce(context.Background(), dsn, "DROP SCHEMA "+schema+" CASCADE")
	}
	return NewStore(pool), pool, cleanup
}

func execOnce(ctx context.Context, dsn, statement string) error {
	conn, err := pgx.Connect(ctx, dsn)
	if err != nil {
		return err
	}
	defer conn.Close(ctx)
	_, err = conn.Exec(ctx, statement)
	return err
}

func applyMigrations(ctx context.Context, pool *pgxpool.Pool) error {
	dir := filepath.Join("..", "..", "..", "migrations")
	entries, err := os.ReadDir(dir)
	if err != nil {
		return err
	}
	var files []string
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".sql") {
			continue
		}
		files = append(files, entry.Name())
	}
	sort.Strings(files)
	for _, name := range files {
		content, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			return err
		}
		if _, err := pool.Exec(ctx, string(content)); err != nil {
			return err
		}
	}
	return nil
}

func seedAppointment(t *testing.T, ctx context.Context, pool *pgxpool.Pool, reference, status string) {
	t.Helper()
	if _, err := pool.Exec(ctx, `
		INSERT INTO appointments (booking_reference, citizen_name, service_type, department, scheduled_date, scheduled_time, status)
		VALUES ($1, 'Nimal Perera', 'Passport renewal', 'Immigration', '2025-08-15', '09:00', $2)
	`, reference, status); err != nil {
		t.Fatalf("insert appointment: %v", err)
	}
}
