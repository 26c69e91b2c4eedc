package models

import "time"

type AuditEntry struct {
	EntryID    string           `json:"entry_id"`
	RequestID  string           `json:"request_id,omitempty"`
	TerminalID string           `json:"terminal_id"`
	Operator   string           `json:"operator,omitempty"`
	Source     string           `json:"source"`
	Result     ValidationResult `json:"result"`
	RecordedAt time.Time        `json:"recorded_at"`
}
