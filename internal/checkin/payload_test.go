package checkin

import (
	"errors"
	"testing"
)

func samplePayload() QRPayload {
	return QRPayload{
		Reference:   "GV-001",
		CitizenName: "Nimal Perera",
		ServiceType: "Passport renewal",
		Department:  "Immigration",
		Date:        "2025-08-15",
		Time:        "09:00",
		AgentName:   "Agent Silva",
		OfficeName:  "Colombo Head Office",
		GeneratedAt: "2025-08-01T10:00:00Z",
	}
}

func TestDecodePayloadRoundTrip(t *testing.T) {
	raw, err := EncodePayload(samplePayload())
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	got, err := DecodePayload(raw)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got != samplePayload() {
		t.Fatalf("unexpected payload: %+v", got)
	}
}

func TestDecodePayloadRejects(t *testing.T) {
	cases := []struct {
		name string
		raw  string
	}{
		{"empty", ""},
		{"not json", "GV-001|2025-08-15|09:00"},
		{"json array", `["GV-001"]`},
		{"null", `null`},
		{"missing date", `{"reference":"GV-001","time":"09:00","department":"Immigration"}`},
		{"missing reference", `{"date":"2025-08-15","time":"09:00","department":"Immigration"}`},
		{"missing time", `{"reference":"GV-001","date":"2025-08-15","department":"Immigration"}`},
		{"blank department", `{"reference":"GV-001","date":"2025-08-15","time":"09:00","department":"  "}`},
		{"bad date", `{"reference":"GV-001","date":"2025-13-01","time":"09:00","department":"Immigration"}`},
		{"bad time", `{"reference":"GV-001","date":"2025-08-15","time":"9am","department":"Immigration"}`},
		{"wrong type", `{"reference":1,"date":"2025-08-15","time":"09:00","department":"Immigration"}`},
	}

	for _, tt := range cases {
		t.Run(tt.name, func(t *testing.T) {
			got, err := DecodePayload(tt.raw)
			if !errors.Is(err, ErrInvalidPayload) {
				t.Fatalf("expected ErrInvalidPayload, got %v", err)
			}
			if got != (QRPayload{}) {
				t.Fatalf("expected zero payload, got %+v", got)
			}
		})
	}
}

func TestDecodePayloadToleratesMissingDisplayFields(t *testing.T) {
	got, err := DecodePayload(`{"reference":" GV-002 ","date":"2025-08-15","time":"14:30","department":"Land Registry"}`)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Reference != "GV-002" || got.CitizenName != "" {
		t.Fatalf("unexpected payload: %+v", got)
	}
}

func TestCodecSignature(t *testing.T) {
	signer := NewSigner([]byte("pass-secret"))
	payload := samplePayload()
	payload.VerificationMarker = signer.Sign(payload)
	signed, _ := EncodePayload(payload)

	codec := Codec{Signer: signer, RequireSignature: true}
	if _, err := codec.Decode(signed); err != nil {
		t.Fatalf("expected signed payload to decode, got %v", err)
	}

	forged := payload
	forged.Reference = "GV-999"
	forgedRaw, _ := EncodePayload(forged)
	if _, err := codec.Decode(forgedRaw); !errors.Is(err, ErrSignatureMismatch) {
		t.Fatalf("expected signature mismatch, got %v", err)
	}
	if _, err := codec.Decode(forgedRaw); !errors.Is(err, ErrInvalidPayload) {
		t.Fatalf("expected mismatch to be an invalid payload, got %v", err)
	}

	unsigned := samplePayload()
	unsignedRaw, _ := EncodePayload(unsigned)
	if _, err := codec.Decode(unsignedRaw); !errors.Is(err, ErrSignatureMismatch) {
		t.Fatalf("expected unsigned payload to be rejected, got %v", err)
	}
	if _, err := (Codec{}).Decode(unsignedRaw); err != nil {
		t.Fatalf("expected lenient codec to accept unsigned payload, got %v", err)
	}
}

func TestNewSignerEmptyKey(t *testing.T) {
	if NewSigner(nil) != nil {
		t.Fatalf("expected nil signer for empty key")
	}
}
