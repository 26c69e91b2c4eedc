package lookup

import (
	"context"
	"errors"

	"govlink/checkin-service/internal/models"
	"govlink/checkin-service/internal/store"
)

// Response mirrors the booking backend's lookup contract. A missing
// reference is reported as Success=false, not as an error.
type Response struct {
	Success bool                      `json:"success"`
	Message string                    `json:"message,omitempty"`
	Data    *models.AppointmentRecord `json:"data,omitempty"`
}

type Lookup interface {
	Find(ctx context.Context, reference string) (Response, error)
}

const msgNotFound = "Appointment not found"

// StoreLookup serves the lookup contract straight from the appointment store.
type StoreLookup struct {
	store store.AppointmentStore
}

func NewStoreLookup(store store.AppointmentStore) *StoreLookup {
	return &StoreLookup{store: store}
}

func (l *StoreLookup) Find(ctx context.Context, reference string) (Response, error) {
	record, err := l.store.GetAppointment(ctx, reference)
	if err != nil {
		if errors.Is(err, store.ErrAppointmentNotFound) {
			return Response{Success: false, Message: msgNotFound}, nil
		}
		return Response{}, err
	}
	return Response{Success: true, Data: &record}, nil
}
