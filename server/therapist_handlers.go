package server

import (
	"net/http"
	"net/url"
	"strings"

	"github.com/jrsteele09/openleaf-portal/backend"
	"github.com/rs/zerolog/log"
)

func patientPath(patientID string) string {
	return strings.Replace(RouteTherapistPatient, "{patientId}", url.PathEscape(patientID), 1)
}

func (s *Server) TherapistDashboardHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sess, userID := userFrom(r)

		patients, err := sess.Services.Assignments.TherapistPatients(r.Context(), userID)
		if err != nil {
			s.handleBackendError(w, r, sess, err, RouteTherapistDashboard, "")
			return
		}

		patientSection := Section{Heading: "Your Patients", Empty: "No patients are assigned to you yet."}
		for _, patient := range patients {
			detail := "Assigned " + displayTime(patient.AssignedAt)
			if patient.Notes != "" {
				detail += ": " + patient.Notes
			}
			patientSection.Items = append(patientSection.Items, Item{
				Title:  patient.PatientKeycloakID,
				Detail: detail,
				Href:   patientPath(patient.PatientKeycloakID),
			})
		}

		page := s.newPage(r, "Therapist Dashboard")
		page.Sections = []Section{
			patientSection,
			{
				Heading: "Quick Actions",
				Links: []Link{
					{Label: "Create appointment slot", Href: RouteCreateSlot},
					{Label: "View my appointments", Href: RouteMyAppointments},
				},
			},
		}
		s.renderPage(w, page)
	}
}

// TherapistPatientHandler shows one patient, provided the backend confirms the assignment.
func (s *Server) TherapistPatientHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sess, userID := userFrom(r)
		patientID, ok := s.pathKey(w, r, "patientId", RouteTherapistDashboard)
		if !ok {
			return
		}
		back := patientPath(patientID)

		authorized, err := sess.Services.Assignments.Check(r.Context(), userID, patientID)
		if err != nil {
			s.handleBackendError(w, r, sess, err, back, "")
			return
		}
		if !authorized {
			log.Info().Str("sub", userID).Str("patient", patientID).Msg("Therapist is not assigned to patient")
			http.Redirect(w, r, RouteUnauthorized, http.StatusSeeOther)
			return
		}

		appointments, err := sess.Services.Scheduling.UserAppointments(r.Context())
		if err != nil {
			s.handleBackendError(w, r, sess, err, back, "")
			return
		}
		sortAppointments(appointments)

		section := Section{Heading: "Appointments with this patient", Empty: "No appointments booked yet."}
		for _, appointment := range appointments {
			if appointment.PatientKeycloakID != patientID {
				continue
			}
			section.Items = append(section.Items, Item{Title: displayTime(appointment.StartTime), Detail: slotDetail(appointment)})
		}

		page := s.newPage(r, "Patient "+patientID)
		page.Sections = []Section{section}
		page.Back = &Link{Label: "Back to dashboard", Href: RouteTherapistDashboard}
		s.renderPage(w, page)
	}
}

func (s *Server) SlotFormHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		page := s.newPage(r, "Create Appointment Slot")
		page.Forms = []Form{{
			Action: RouteCreateSlot,
			Submit: "Create slot",
			Fields: []Field{
				{Name: "startTime", Label: "Start", Type: "datetime-local", Required: true},
				{Name: "endTime", Label: "End", Type: "datetime-local", Required: true},
				{Name: "notes", Label: "Notes (optional)", Type: "textarea"},
			},
		}}
		page.Back = &Link{Label: "Cancel", Href: RouteMyAppointments}
		s.renderPage(w, page)
	}
}

func (s *Server) CreateSlotHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sess, _ := userFrom(r)

		_, err := sess.Services.Scheduling.CreateSlot(r.Context(), backend.CreateSlotRequest{
			StartTime: r.PostFormValue("startTime"),
			EndTime:   r.PostFormValue("endTime"),
			Notes:     strings.TrimSpace(r.PostFormValue("notes")),
		})
		if err != nil {
			s.handleBackendError(w, r, sess, err, RouteCreateSlot, "That slot overlaps one you already offer.")
			return
		}
		redirectWithNotice(w, r, RouteMyAppointments, "Appointment slot created.")
	}
}
