package checkin

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

var (
	ErrInvalidPayload    = errors.New("invalid qr payload")
	ErrSignatureMismatch = fmt.Errorf("%w: verification marker mismatch", ErrInvalidPayload)
)

const scheduleLayout = "2006-01-02 15:04"

// QRPayload is the content of an appointment pass. Everything in it is
// untrusted; the reference is only a lookup key.
type QRPayload struct {
	Reference          string `json:"reference"`
	CitizenName        string `json:"citizenName"`
	ServiceType        string `json:"serviceType"`
	Department         string `json:"department"`
	Date               string `json:"date"`
	Time               string `json:"time"`
	AgentName          string `json:"agentName"`
	OfficeName         string `json:"officeName"`
	VerificationMarker string `json:"verificationMarker"`
	GeneratedAt        string `json:"generatedAt"`
}

// DecodePayload parses a scanned string without checking the verification
// marker.
func DecodePayload(raw string) (QRPayload, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return QRPayload{}, fmt.Errorf("%w: empty", ErrInvalidPayload)
	}

	var payload QRPayload
	if err := json.Unmarshal([]byte(raw), &payload); err != nil {
		return QRPayload{}, fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}

	payload.Reference = strings.TrimSpace(payload.Reference)
	payload.Department = strings.TrimSpace(payload.Department)
	payload.Date = strings.TrimSpace(payload.Date)
	payload.Time = strings.TrimSpace(payload.Time)

	if payload.Reference == "" || payload.Date == "" || payload.Time == "" || payload.Department == "" {
		return QRPayload{}, fmt.Errorf("%w: reference, date, time and department are required", ErrInvalidPayload)
	}
	if _, err := ScheduledAt(payload.Date, payload.Time, time.UTC); err != nil {
		return QRPayload{}, fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}
	return payload, nil
}

func EncodePayload(payload QRPayload) (string, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// ScheduledAt combines a YYYY-MM-DD date and an HH:MM clock time in loc.
func ScheduledAt(date, clock string, loc *time.Location) (time.Time, error) {
	if loc == nil {
		loc = time.UTC
	}
	return time.ParseInLocation(scheduleLayout, date+" "+clock, loc)
}

// Codec decodes payloads and, when configured, enforces the verification
// marker before the payload is trusted as a lookup key.
type Codec struct {
	Signer           *Signer
	RequireSignature bool
}

func (c Codec) Decode(raw string) (QRPayload, error) {
	payload, err := DecodePayload(raw)
	if err != nil {
		return QRPayload{}, err
	}
	if !c.RequireSignature {
		return payload, nil
	}
	if c.Signer == nil || !c.Signer.Verify(payload) {
		return QRPayload{}, ErrSignatureMismatch
	}
	return payload, nil
}
