package backend

import (
	"context"
	"net/http"
	"net/url"

	errs "github.com/jrsteele09/openleaf-portal/internal/errors"
)

type Assignments struct {
	api       Doer
	baseURL   string
	validator *payloadValidator
}

// Assign links a patient to a therapist. A duplicate assignment surfaces as a 409 StatusError.
func (a *Assignments) Assign(ctx context.Context, req AssignRequest) (*Assignment, error) {
	if err := a.validator.Validate(req); err != nil {
		return nil, err
	}
	var created Assignment
	if err := a.api.Do(ctx, http.MethodPost, join(a.baseURL, "assign"), req, &created); err != nil {
		return nil, errs.Wrapf(err, "[backend Assignments.Assign]")
	}
	return &created, nil
}

func (a *Assignments) TherapistPatients(ctx context.Context, therapistID string) ([]AssignedPatient, error) {
	if err := requireSegment("therapistId", therapistID); err != nil {
		return nil, err
	}
	var patients []AssignedPatient
	if err := a.api.Do(ctx, http.MethodGet, join(a.baseURL, "therapist", therapistID, "patients"), nil, &patients); err != nil {
		return nil, errs.Wrapf(err, "[backend Assignments.TherapistPatients] %s", therapistID)
	}
	return patients, nil
}

// Check reports whether therapistID may access patientID's data.
func (a *Assignments) Check(ctx context.Context, therapistID, patientID string) (bool, error) {
	if therapistID == "" || patientID == "" {
		return false, errs.Wrapf(ErrInvalidPayload, "therapistId and patientId are required")
	}
	query := url.Values{}
	query.Set("therapistId", therapistID)
	query.Set("patientId", patientID)

	var check AuthorizationCheck
	if err := a.api.Do(ctx, http.MethodGet, join(a.baseURL, "check")+"?"+query.Encode(), nil, &check); err != nil {
		return false, errs.Wrapf(err, "[backend Assignments.Check]")
	}
	return check.Authorized, nil
}

func (a *Assignments) Unassign(ctx context.Context, assignmentID int64) error {
	return errs.Wrapf(a.api.Do(ctx, http.MethodDelete, join(a.baseURL, idSegment(assignmentID)), nil, nil), "[backend Assignments.Unassign] %d", assignmentID)
}

// PatientTherapist returns the patient's current assignment, or an error matching
// apiclient.ErrNotFound when they have none.
func (a *Assignments) PatientTherapist(ctx context.Context, patientID string) (*Assignment, error) {
	if err := requireSegment("patientId", patientID); err != nil {
		return nil, err
	}
	var assignment Assignment
	if err := a.api.Do(ctx, http.MethodGet, join(a.baseURL, "patient", patientID, "therapist"), nil, &assignment); err != nil {
		return nil, errs.Wrapf(err, "[backend Assignments.PatientTherapist] %s", patientID)
	}
	return &assignment, nil
}
