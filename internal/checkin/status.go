package checkin

import "govlink/checkin-service/internal/models"

const (
	msgCancelled = "This appointment has been cancelled."
	msgCompleted = "This appointment has already been completed."
)

// GateStatus rejects records whose authoritative status alone rules out a
// check-in. It takes precedence over timing and department.
func GateStatus(record models.AppointmentRecord) (models.ReasonCode, string, bool) {
	switch record.Status {
	case models.AppointmentCancelled:
		return models.ReasonCancelled, msgCancelled, true
	case models.AppointmentCompleted:
		return models.ReasonCompleted, msgCompleted, true
	default:
		return "", "", false
	}
}
