package pass

import (
	"bytes"
	"errors"
	"fmt"
	"strings"
	"time"

	"govlink/checkin-service/internal/checkin"

	"github.com/phpdave11/gofpdf"
	"github.com/skip2/go-qrcode"
)

var ErrIncompletePass = errors.New("pass is missing required fields")

const defaultQRSize = 256

// Issue fills in generatedAt and, when signer is set, the verification
// marker, then returns the string to embed in the QR code. The result always
// passes checkin.DecodePayload.
func Issue(payload checkin.QRPayload, signer *checkin.Signer, now time.Time) (checkin.QRPayload, string, error) {
	// The decoder trims these fields before the marker is checked, so the
	// marker has to be computed over the trimmed values.
	payload.Reference = strings.TrimSpace(payload.Reference)
	payload.Department = strings.TrimSpace(payload.Department)
	payload.Date = strings.TrimSpace(payload.Date)
	payload.Time = strings.TrimSpace(payload.Time)
	if payload.GeneratedAt == "" {
		payload.GeneratedAt = now.UTC().Format(time.RFC3339)
	}
	if signer != nil {
		payload.VerificationMarker = signer.Sign(payload)
	}
	raw, err := checkin.EncodePayload(payload)
	if err != nil {
		return checkin.QRPayload{}, "", err
	}
	if _, err := checkin.DecodePayload(raw); err != nil {
		return checkin.QRPayload{}, "", fmt.Errorf("%w: %v", ErrIncompletePass, err)
	}
	return payload, raw, nil
}

func RenderPNG(raw string, size int) ([]byte, error) {
	if size <= 0 {
		size = defaultQRSize
	}
	return qrcode.Encode(raw, qrcode.Medium, size)
}

// RenderPDF lays out an A6 pass with the appointment details and the QR
// code.
func RenderPDF(payload checkin.QRPayload, raw string) ([]byte, error) {
	qrPNG, err := RenderPNG(raw, 512)
	if err != nil {
		return nil, err
	}

	pdf := gofpdf.New("P", "mm", "A6", "")
	pdf.AddPage()
	pdf.SetFont("Arial", "B", 14)
	pdf.Cell(0, 8, "GovLink Appointment Pass")
	pdf.Ln(10)

	pdf.SetFont("Arial", "", 9)
	lines := []string{
		"Reference: " + payload.Reference,
		"Name: " + payload.CitizenName,
		"Service: " + payload.ServiceType,
		"Department: " + payload.Department,
		"Date: " + payload.Date + "  Time: " + payload.Time,
		"Office: " + payload.OfficeName,
		"Agent: " + payload.AgentName,
	}
	for _, line := range lines {
		pdf.Cell(0, 5, line)
		pdf.Ln(5)
	}

	imageOpts := gofpdf.ImageOptions{ImageType: "PNG"}
	pdf.RegisterImageOptionsReader("qr", imageOpts, bytes.NewReader(qrPNG))
	pdf.ImageOptions("qr", 27, 62, 50, 50, false, imageOpts, 0, "")

	pdf.SetY(116)
	pdf.SetFont("Arial", "I", 7)
	pdf.MultiCell(0, 4, "Check-in opens one hour before and closes 15 minutes after your appointment time.", "", "C", false)

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
