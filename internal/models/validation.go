package models

type ReasonCode string

const (
	ReasonOK                 ReasonCode = "ok"
	ReasonInvalidPayload     ReasonCode = "invalid_payload"
	ReasonDepartmentMismatch ReasonCode = "department_mismatch"
	ReasonTooEarly           ReasonCode = "too_early"
	ReasonLate               ReasonCode = "late"
	ReasonExpired            ReasonCode = "expired"
	ReasonCancelled          ReasonCode = "cancelled"
	ReasonCompleted          ReasonCode = "completed"
	ReasonLookupFailed       ReasonCode = "lookup_failed"
)

type TimeStatus string

const (
	TimeEarly   TimeStatus = "early"
	TimeValid   TimeStatus = "valid"
	TimeLate    TimeStatus = "late"
	TimeExpired TimeStatus = "expired"
)

// ValidationResult is produced once per scan attempt and never persisted
// by the verifier itself.
type ValidationResult struct {
	Admitted        bool               `json:"admitted"`
	ReasonCode      ReasonCode         `json:"reasonCode"`
	Message         string             `json:"message"`
	Appointment     *AppointmentRecord `json:"appointment"`
	TimeStatus      *TimeStatus        `json:"timeStatus"`
	DepartmentMatch bool               `json:"departmentMatch"`
}
