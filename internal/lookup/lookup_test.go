package lookup

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"govlink/checkin-service/internal/models"
	"govlink/checkin-service/internal/store"
)

type fakeStore struct {
	getFn func(ctx context.Context, reference string) (models.AppointmentRecord, error)
}

func (f fakeStore) GetAppointment(ctx context.Context, reference string) (models.AppointmentRecord, error) {
	if f.getFn == nil {
		return models.AppointmentRecord{}, store.ErrAppointmentNotFound
	}
	return f.getFn(ctx, reference)
}

func TestStoreLookup(t *testing.T) {
	dbDown := errors.New("connection refused")
	st := fakeStore{getFn: func(ctx context.Context, reference string) (models.AppointmentRecord, error) {
		switch reference {
		case "GV-001":
			return models.AppointmentRecord{BookingReference: "GV-001", Status: models.AppointmentConfirmed}, nil
		case "GV-ERR":
			return models.AppointmentRecord{}, dbDown
		default:
			return models.AppointmentRecord{}, fmt.Errorf("lookup %s: %w", reference, store.ErrAppointmentNotFound)
		}
	}}
	l := NewStoreLookup(st)

	resp, err := l.Find(context.Background(), "GV-001")
	if err != nil || !resp.Success || resp.Data == nil || resp.Data.BookingReference != "GV-001" {
		t.Fatalf("unexpected found response %+v err=%v", resp, err)
	}
	resp, err = l.Find(context.Background(), "GV-404")
	if err != nil || resp.Success || resp.Message != "Appointment not found" {
		t.Fatalf("unexpected missing response %+v err=%v", resp, err)
	}
	if _, err := l.Find(context.Background(), "GV-ERR"); !errors.Is(err, dbDown) {
		t.Fatalf("expected store error, got %v", err)
	}
}

func TestHTTPClientFind(t *testing.T) {
	var gotAuth, gotPath string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotPath = r.URL.Path + "?" + r.URL.RawQuery
		w.Header().Set("Content-Type", "application/json")
		switch r.URL.Query().Get("reference") {
		case "GV 001":
			fmt.Fprint(w, `{"success":true,"data":{"bookingReference":"GV 001","status":"confirmed","department":"Immigration","date":"2025-08-15","time":"09:00"}}`)
		case "GV-404":
			w.WriteHeader(http.StatusNotFound)
			fmt.Fprint(w, `{"success":false}`)
		case "GV-NODATA":
			fmt.Fprint(w, `{"success":true}`)
		case "GV-ODD":
			fmt.Fprint(w, `{"success":true,"data":{"bookingReference":"GV-ODD","status":"archived"}}`)
		case "GV-HTML":
			w.WriteHeader(http.StatusBadGateway)
			fmt.Fprint(w, `<html>bad gateway</html>`)
		default:
			w.WriteHeader(http.StatusInternalServerError)
			fmt.Fprint(w, `{"success":false,"message":"boom"}`)
		}
	}))
	defer server.Close()

	client := NewHTTPClient(server.URL+"/", HTTPOptions{Token: "tok"})
	resp, err := client.Find(context.Background(), "GV 001")
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	if !resp.Success || resp.Data.Department != "Immigration" {
		t.Fatalf("unexpected response %+v", resp)
	}
	if gotAuth != "Bearer tok" || gotPath != "/api/appointments/lookup?reference=GV+001" {
		t.Fatalf("unexpected request auth=%q path=%q", gotAuth, gotPath)
	}

	missing, err := client.Find(context.Background(), "GV-404")
	if err != nil || missing.Success || missing.Message != "Appointment not found" {
		t.Fatalf("unexpected missing response %+v err=%v", missing, err)
	}

	for _, reference := range []string{"GV-NODATA", "GV-ODD", "GV-HTML", "GV-500"} {
		if _, err := client.Find(context.Background(), reference); !errors.Is(err, ErrUnexpectedResponse) {
			t.Fatalf("%s: expected ErrUnexpectedResponse, got %v", reference, err)
		}
	}
}

func TestHTTPClientRespectsContext(t *testing.T) {
	release := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer server.Close()
	defer close(release)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	if _, err := NewHTTPClient(server.URL, HTTPOptions{}).Find(ctx, "GV-001"); err == nil {
		t.Fatalf("expected context error")
	}
}
