package backend

// User is a backend user record, keyed by the identity provider subject.
type User struct {
	ID         int64  `json:"id,omitempty"`
	KeycloakID string `json:"keycloakId"`
	Username   string `json:"username"`
	Email      string `json:"email"`
	FirstName  string `json:"firstName"`
	LastName   string `json:"lastName"`
	CreatedAt  string `json:"createdAt,omitempty"`
}

// DisplayName prefers the full name and falls back to the username.
func (u User) DisplayName() string {
	switch {
	case u.FirstName != "" && u.LastName != "":
		return u.FirstName + " " + u.LastName
	case u.FirstName != "":
		return u.FirstName
	}
	return u.Username
}

type RegisterUserRequest struct {
	KeycloakID string `json:"keycloakId" validate:"required"`
	Username   string `json:"username" validate:"required"`
	Email      string `json:"email" validate:"omitempty,email"`
	FirstName  string `json:"firstName"`
	LastName   string `json:"lastName"`
}

type DeleteUserRequest struct {
	Reason string `json:"reason" validate:"max=500"`
}

type Journal struct {
	ID        int64  `json:"id"`
	Content   string `json:"content"`
	CreatedAt string `json:"createdAt"`
	UpdatedAt string `json:"updatedAt,omitempty"`
}

type CreateJournalRequest struct {
	Content string `json:"content" validate:"required,max=10000"`
}

// Appointment is a therapist's slot, booked or not. Timestamps are the backend's local
// date-times, passed through untouched.
type Appointment struct {
	ID                  int64  `json:"id"`
	TherapistKeycloakID string `json:"therapistKeycloakId"`
	PatientKeycloakID   string `json:"patientKeycloakId,omitempty"`
	StartTime           string `json:"startTime"`
	EndTime             string `json:"endTime"`
	Status              string `json:"status"`
	Notes               string `json:"notes,omitempty"`
	CreatedAt           string `json:"createdAt,omitempty"`
}

// Booked reports whether a patient holds the slot.
func (a Appointment) Booked() bool {
	return a.PatientKeycloakID != ""
}

type CreateSlotRequest struct {
	StartTime string `json:"startTime" validate:"required,datetime=2006-01-02T15:04"`
	EndTime   string `json:"endTime" validate:"required,datetime=2006-01-02T15:04"`
	Notes     string `json:"notes,omitempty" validate:"max=1000"`
}

type BookRequest struct {
	Notes *string `json:"notes,omitempty" validate:"omitempty,max=1000"`
}

type Assignment struct {
	ID                  int64  `json:"id"`
	PatientKeycloakID   string `json:"patientKeycloakId"`
	TherapistKeycloakID string `json:"therapistKeycloakId"`
	Notes               string `json:"notes,omitempty"`
	AssignedAt          string `json:"assignedAt,omitempty"`
}

// AssignedPatient is one entry of a therapist's patient list.
type AssignedPatient struct {
	AssignmentID      int64  `json:"assignmentId"`
	PatientKeycloakID string `json:"patientKeycloakId"`
	Notes             string `json:"notes,omitempty"`
	AssignedAt        string `json:"assignedAt,omitempty"`
}

type AssignRequest struct {
	PatientKeycloakID   string `json:"patientKeycloakId" validate:"required"`
	TherapistKeycloakID string `json:"therapistKeycloakId" validate:"required,nefield=PatientKeycloakID"`
	Notes               string `json:"notes,omitempty" validate:"max=1000"`
}

type AuthorizationCheck struct {
	Authorized bool `json:"authorized"`
}
