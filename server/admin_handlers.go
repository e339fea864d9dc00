package server

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/jrsteele09/openleaf-portal/backend"
)

func unassignPath(assignmentID int64) string {
	return strings.Replace(RouteAdminUnassign, "{id}", strconv.FormatInt(assignmentID, 10), 1)
}

// AdminHandler lists every therapist with their patients and offers the assignment form.
func (s *Server) AdminHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sess, _ := userFrom(r)

		therapists, err := sess.Services.Users.Therapists(r.Context())
		if err != nil {
			s.handleBackendError(w, r, sess, err, RouteAdmin, "")
			return
		}

		page := s.newPage(r, "Administration")
		options := make([]SelectOption, 0, len(therapists))
		for _, therapist := range therapists {
			options = append(options, SelectOption{Value: therapist.KeycloakID, Label: therapist.DisplayName()})

			patients, err := sess.Services.Assignments.TherapistPatients(r.Context(), therapist.KeycloakID)
			if err != nil {
				s.handleBackendError(w, r, sess, err, RouteAdmin, "")
				return
			}
			section := Section{Heading: therapist.DisplayName(), Empty: "No patients assigned."}
			for _, patient := range patients {
				section.Items = append(section.Items, Item{
					Title:  patient.PatientKeycloakID,
					Detail: "Assigned " + displayTime(patient.AssignedAt),
					Action: &Form{Action: unassignPath(patient.AssignmentID), Submit: "Remove", Danger: true},
				})
			}
			page.Sections = append(page.Sections, section)
		}
		if len(therapists) == 0 {
			page.Sections = []Section{{Empty: "No therapists are registered yet."}}
		}

		page.Forms = []Form{{
			Action: RouteAdminAssignments,
			Submit: "Assign patient",
			Fields: []Field{
				{Name: "patientKeycloakId", Label: "Patient id", Type: "text", Required: true},
				{Name: "therapistKeycloakId", Label: "Therapist", Type: "select", Required: true, Options: options},
				{Name: "notes", Label: "Notes (optional)", Type: "text"},
			},
		}}
		s.renderPage(w, page)
	}
}

func (s *Server) AdminAssignHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sess, _ := userFrom(r)

		_, err := sess.Services.Assignments.Assign(r.Context(), backend.AssignRequest{
			PatientKeycloakID:   strings.TrimSpace(r.PostFormValue("patientKeycloakId")),
			TherapistKeycloakID: r.PostFormValue("therapistKeycloakId"),
			Notes:               strings.TrimSpace(r.PostFormValue("notes")),
		})
		if err != nil {
			s.handleBackendError(w, r, sess, err, RouteAdmin, "That patient is already assigned to this therapist.")
			return
		}
		redirectWithNotice(w, r, RouteAdmin, "Assignment created.")
	}
}

func (s *Server) AdminUnassignHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sess, _ := userFrom(r)
		id, ok := s.pathID(w, r, "id", RouteAdmin)
		if !ok {
			return
		}

		if err := sess.Services.Assignments.Unassign(r.Context(), id); err != nil {
			s.handleBackendError(w, r, sess, err, RouteAdmin, "")
			return
		}
		redirectWithNotice(w, r, RouteAdmin, "Assignment removed.")
	}
}
