package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"govlink/checkin-service/internal/lookup"
	"govlink/checkin-service/internal/models"

	"golang.org/x/crypto/bcrypt"
)

func lookupServer(t *testing.T, status string) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("reference") != "GV-001" {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusNotFound)
			_ = json.NewEncoder(w).Encode(lookup.Response{Success: false, Message: "Appointment not found"})
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(lookup.Response{Success: true, Data: &models.AppointmentRecord{
			BookingReference: "GV-001",
			CitizenName:      "Nimal Perera",
			Department:       "Immigration",
			Date:             "2025-08-15",
			Time:             "09:00",
			Status:           status,
		}})
	}))
	t.Cleanup(server.Close)
	return server
}

func issuePass(t *testing.T, extra ...string) string {
	t.Helper()
	var stdout, stderr bytes.Buffer
	args := append([]string{"pass", "--reference", "GV-001", "--department", "Immigration", "--date", "2025-08-15", "--time", "09:00", "--signing-key", ""}, extra...)
	if err := run(args, &stdout, &stderr); err != nil {
		t.Fatalf("pass: %v (%s)", err, stderr.String())
	}
	return strings.TrimSpace(stdout.String())
}

func TestRunWithoutCommand(t *testing.T) {
	var stdout, stderr bytes.Buffer
	if err := run(nil, &stdout, &stderr); !errors.Is(err, errUsage) {
		t.Fatalf("expected usage error, got %v", err)
	}
	if err := run([]string{"launch"}, &stdout, &stderr); !errors.Is(err, errUsage) {
		t.Fatalf("expected usage error for unknown command, got %v", err)
	}
	if !strings.Contains(stderr.String(), "Usage: checkinctl") {
		t.Fatalf("expected usage text, got %q", stderr.String())
	}
}

func TestPassWritesFiles(t *testing.T) {
	dir := t.TempDir()
	pngPath := filepath.Join(dir, "pass.png")
	pdfPath := filepath.Join(dir, "pass.pdf")
	raw := issuePass(t, "--png", pngPath, "--pdf", pdfPath)
	if !strings.Contains(raw, `"reference":"GV-001"`) {
		t.Fatalf("unexpected payload %s", raw)
	}
	for _, path := range []string{pngPath, pdfPath} {
		info, err := os.Stat(path)
		if err != nil || info.Size() == 0 {
			t.Fatalf("expected %s to be written: %v", path, err)
		}
	}
}

func TestPassRejectsMissingFields(t *testing.T) {
	var stdout, stderr bytes.Buffer
	if err := run([]string{"pass", "--reference", "GV-001"}, &stdout, &stderr); err == nil {
		t.Fatalf("expected error for incomplete pass")
	}
}

func TestVerifyQR(t *testing.T) {
	server := lookupServer(t, models.AppointmentConfirmed)
	raw := issuePass(t)

	var stdout, stderr bytes.Buffer
	err := run([]string{"verify", "--qr", raw, "-d", "immigration", "--lookup-url", server.URL,
		"--timezone", "UTC", "--now", "2025-08-15T08:30:00Z", "--json"}, &stdout, &stderr)
	if err != nil {
		t.Fatalf("verify: %v (%s)", err, stderr.String())
	}
	var result models.ValidationResult
	if err := json.Unmarshal(stdout.Bytes(), &result); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !result.Admitted || result.ReasonCode != models.ReasonOK {
		t.Fatalf("unexpected result %+v", result)
	}
}

func TestVerifyImageReportsLate(t *testing.T) {
	server := lookupServer(t, models.AppointmentPending)
	dir := t.TempDir()
	pngPath := filepath.Join(dir, "pass.png")
	issuePass(t, "--png", pngPath, "--size", "512")

	var stdout, stderr bytes.Buffer
	err := run([]string{"verify", "--image", pngPath, "-d", "Immigration", "--lookup-url", server.URL,
		"--timezone", "UTC", "--now", "2025-08-15T09:30:00Z"}, &stdout, &stderr)
	if err != nil {
		t.Fatalf("verify: %v (%s)", err, stderr.String())
	}
	if !strings.HasPrefix(stdout.String(), "REJECTED (late)") {
		t.Fatalf("unexpected output %q", stdout.String())
	}
}

func TestVerifyFramesDirDeduplicates(t *testing.T) {
	server := lookupServer(t, models.AppointmentConfirmed)
	dir := t.TempDir()
	first := filepath.Join(dir, "001.png")
	issuePass(t, "--png", first, "--size", "512")
	data, err := os.ReadFile(first)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	for _, name := range []string{"002.png", "003.png"} {
		if err := os.WriteFile(filepath.Join(dir, name), data, 0o644); err != nil {
			t.Fatalf("write: %v", err)
		}
	}
	if err := os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("not a frame"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	var stdout, stderr bytes.Buffer
	err = run([]string{"verify", "--frames-dir", dir, "-d", "Immigration", "--lookup-url", server.URL,
		"--timezone", "UTC", "--now", "2025-08-15T09:00:00Z"}, &stdout, &stderr)
	if err != nil {
		t.Fatalf("verify: %v (%s)", err, stderr.String())
	}
	if got := strings.Count(stdout.String(), "ADMITTED"); got != 1 {
		t.Fatalf("expected one result for repeated frames, got %d: %q", got, stdout.String())
	}
}

func TestVerifyFlagValidation(t *testing.T) {
	tests := []struct {
		name string
		args []string
	}{
		{name: "no source", args: []string{"verify", "-d", "Immigration", "--lookup-url", "http://x"}},
		{name: "two sources", args: []string{"verify", "--qr", "a", "--image", "b", "-d", "Immigration", "--lookup-url", "http://x"}},
		{name: "no department", args: []string{"verify", "--qr", "a", "--lookup-url", "http://x"}},
		{name: "no lookup", args: []string{"verify", "--qr", "a", "-d", "Immigration", "--lookup-url", ""}},
		{name: "bad timezone", args: []string{"verify", "--qr", "a", "-d", "Immigration", "--lookup-url", "http://x", "--timezone", "Nowhere/City"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var stdout, stderr bytes.Buffer
			if err := run(tt.args, &stdout, &stderr); err == nil {
				t.Fatalf("expected error")
			}
		})
	}
}

func TestHashKey(t *testing.T) {
	var stdout, stderr bytes.Buffer
	if err := run([]string{"hash-key", "--cost", "4", "desk-secret"}, &stdout, &stderr); err != nil {
		t.Fatalf("hash-key: %v", err)
	}
	hash := strings.TrimSpace(stdout.String())
	if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte("desk-secret")); err != nil {
		t.Fatalf("hash does not verify: %v", err)
	}
	if err := run([]string{"hash-key"}, &stdout, &stderr); err == nil {
		t.Fatalf("expected error without key")
	}
}
