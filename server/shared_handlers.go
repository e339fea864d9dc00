package server

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/jrsteele09/openleaf-portal/backend"
	"github.com/rs/zerolog/log"
)

const (
	deleteConfirmation = "DELETE MY ACCOUNT"
	deleteReason       = "User requested account deletion"
)

func cancelPath(appointmentID int64) string {
	return strings.Replace(RouteCancelAppointment, "{id}", strconv.FormatInt(appointmentID, 10), 1)
}

func (s *Server) MyAppointmentsHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sess, userID := userFrom(r)

		appointments, err := sess.Services.Scheduling.UserAppointments(r.Context())
		if err != nil {
			s.handleBackendError(w, r, sess, err, RouteMyAppointments, "")
			return
		}
		sortAppointments(appointments)

		booked := Section{Heading: "Booked", Empty: "No booked appointments."}
		open := Section{Heading: "Open slots", Empty: "No open slots."}
		for _, appointment := range appointments {
			item := Item{
				Title:  displayTime(appointment.StartTime),
				Detail: appointmentDetail(appointment, userID),
				Action: &Form{Action: cancelPath(appointment.ID), Submit: "Cancel", Danger: true},
			}
			if appointment.Booked() {
				booked.Items = append(booked.Items, item)
			} else {
				open.Items = append(open.Items, item)
			}
		}

		page := s.newPage(r, "My Appointments")
		page.Sections = []Section{booked}
		if s.resolver.IsTherapist(sess.Controller.Claims()) {
			open.Links = []Link{{Label: "Create new slot", Href: RouteCreateSlot}}
			page.Sections = append(page.Sections, open)
		}
		s.renderPage(w, page)
	}
}

// appointmentDetail names the other party from the viewer's side.
func appointmentDetail(appointment backend.Appointment, viewerID string) string {
	detail := slotDetail(appointment)
	switch viewerID {
	case appointment.TherapistKeycloakID:
		if appointment.Booked() {
			detail += ". Patient " + appointment.PatientKeycloakID
		}
	case appointment.PatientKeycloakID:
		detail += ". Therapist " + appointment.TherapistKeycloakID
	}
	return detail
}

func (s *Server) CancelAppointmentHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sess, _ := userFrom(r)
		id, ok := s.pathID(w, r, "id", RouteMyAppointments)
		if !ok {
			return
		}

		if err := sess.Services.Scheduling.Cancel(r.Context(), id); err != nil {
			s.handleBackendError(w, r, sess, err, RouteMyAppointments, "")
			return
		}
		redirectWithNotice(w, r, RouteMyAppointments, "Appointment cancelled.")
	}
}

func (s *Server) DeleteAccountFormHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sess, _ := userFrom(r)
		me, err := sess.Services.Users.Me(r.Context())
		if err != nil {
			s.handleBackendError(w, r, sess, err, RouteDeleteAccount, "")
			return
		}

		page := s.newPage(r, "Delete Account")
		page.Intro = "This permanently deletes your account together with your journals, appointments and therapist connections. It cannot be undone."
		page.Sections = []Section{{Heading: "Account", Items: []Item{{Title: me.DisplayName(), Detail: me.Email}}}}
		page.Forms = []Form{{
			Action: RouteDeleteAccount,
			Submit: "Permanently delete my account",
			Danger: true,
			Fields: []Field{{
				Name:     "confirm",
				Label:    `Type "` + deleteConfirmation + `" to confirm`,
				Type:     "text",
				Required: true,
			}},
		}}
		page.Back = &Link{Label: "Cancel", Href: RouteRoot}
		s.renderPage(w, page)
	}
}

// DeleteAccountHandler deletes the user's backend account, logs this session out at the identity
// provider and ends the user's other portal sessions.
func (s *Server) DeleteAccountHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sess, userID := userFrom(r)

		if strings.TrimSpace(r.PostFormValue("confirm")) != deleteConfirmation {
			redirectWithError(w, r, RouteDeleteAccount, `Please type "`+deleteConfirmation+`" to confirm.`)
			return
		}

		if err := sess.Services.Users.Delete(r.Context(), userID, deleteReason); err != nil {
			s.handleBackendError(w, r, sess, err, RouteDeleteAccount, "")
			return
		}
		others := s.expireSubject(userID, sess.ID)
		log.Info().Str("sub", userID).Int("other_sessions", others).Msg("Account deleted")

		location := s.config.GetLogoutLocation()
		if _, err := s.loginSessions.Delete(sess.ID); err == nil {
			location = sess.Controller.Logout(r.Context())
		}
		s.ClearLoginSessionCookie(w, r)
		redirectSuccess(w, r, location)
	}
}
