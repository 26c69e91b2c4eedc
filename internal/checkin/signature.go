package checkin

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"strings"
)

// Signer computes the verification marker as base64(HMAC-SHA256) over the
// pass fields joined with "|".
type Signer struct {
	key []byte
}

func NewSigner(key []byte) *Signer {
	if len(key) == 0 {
		return nil
	}
	return &Signer{key: append([]byte(nil), key...)}
}

func (s *Signer) Sign(payload QRPayload) string {
	h := hmac.New(sha256.New, s.key)
	h.Write([]byte(canonicalFields(payload)))
	return base64.StdEncoding.EncodeToString(h.Sum(nil))
}

func (s *Signer) Verify(payload QRPayload) bool {
	if payload.VerificationMarker == "" {
		return false
	}
	expected := s.Sign(payload)
	return hmac.Equal([]byte(payload.VerificationMarker), []byte(expected))
}

func canonicalFields(p QRPayload) string {
	return strings.Join([]string{
		p.Reference,
		p.CitizenName,
		p.ServiceType,
		p.Department,
		p.Date,
		p.Time,
		p.AgentName,
		p.OfficeName,
		p.GeneratedAt,
	}, "|")
}
