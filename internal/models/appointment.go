package models

type AppointmentRecord struct {
	BookingReference string `json:"bookingReference"`
	CitizenName      string `json:"citizenName"`
	ServiceType      string `json:"serviceType"`
	Date             string `json:"date"`
	Time             string `json:"time"`
	Status           string `json:"status"`
	Department       string `json:"department"`
}

const (
	AppointmentPending   = "pending"
	AppointmentConfirmed = "confirmed"
	AppointmentCancelled = "cancelled"
	AppointmentCompleted = "completed"
)

func ValidAppointmentStatus(status string) bool {
	switch status {
	case AppointmentPending, AppointmentConfirmed, AppointmentCancelled, AppointmentCompleted:
		return true
	default:
		return false
	}
}
