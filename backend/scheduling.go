package backend

import (
	"context"
	"net/http"
	"time"

	errs "github.com/jrsteele09/openleaf-portal/internal/errors"
)

const slotTimeLayout = "2006-01-02T15:04"

type Scheduling struct {
	api       Doer
	baseURL   string
	validator *payloadValidator
}

// CreateSlot offers a new appointment slot for the calling therapist.
func (s *Scheduling) CreateSlot(ctx context.Context, req CreateSlotRequest) (*Appointment, error) {
	if err := s.validator.Validate(req); err != nil {
		return nil, err
	}
	start, _ := time.Parse(slotTimeLayout, req.StartTime)
	end, _ := time.Parse(slotTimeLayout, req.EndTime)
	if !end.After(start) {
		return nil, errs.Wrapf(ErrInvalidPayload, "endTime must be after startTime")
	}

	var created Appointment
	if err := s.api.Do(ctx, http.MethodPost, s.baseURL, req, &created); err != nil {
		return nil, errs.Wrapf(err, "[backend Scheduling.CreateSlot]")
	}
	return &created, nil
}

func (s *Scheduling) AvailableSlots(ctx context.Context, therapistID string) ([]Appointment, error) {
	if err := requireSegment("therapistId", therapistID); err != nil {
		return nil, err
	}
	var slots []Appointment
	if err := s.api.Do(ctx, http.MethodGet, join(s.baseURL, "therapist", therapistID, "available"), nil, &slots); err != nil {
		return nil, errs.Wrapf(err, "[backend Scheduling.AvailableSlots] %s", therapistID)
	}
	return slots, nil
}

// Book reserves appointmentID for the calling patient. notes may be nil.
func (s *Scheduling) Book(ctx context.Context, appointmentID int64, notes *string) (*Appointment, error) {
	req := BookRequest{Notes: notes}
	if err := s.validator.Validate(req); err != nil {
		return nil, err
	}
	var booked Appointment
	if err := s.api.Do(ctx, http.MethodPost, join(s.baseURL, idSegment(appointmentID), "book"), req, &booked); err != nil {
		return nil, errs.Wrapf(err, "[backend Scheduling.Book] %d", appointmentID)
	}
	return &booked, nil
}

func (s *Scheduling) Cancel(ctx context.Context, appointmentID int64) error {
	return errs.Wrapf(s.api.Do(ctx, http.MethodDelete, join(s.baseURL, idSegment(appointmentID)), nil, nil), "[backend Scheduling.Cancel] %d", appointmentID)
}

// UserAppointments lists the caller's appointments, as patient or therapist.
func (s *Scheduling) UserAppointments(ctx context.Context) ([]Appointment, error) {
	var appointments []Appointment
	if err := s.api.Do(ctx, http.MethodGet, join(s.baseURL, "user"), nil, &appointments); err != nil {
		return nil, errs.Wrapf(err, "[backend Scheduling.UserAppointments]")
	}
	return appointments, nil
}
