package server

import (
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/jrsteele09/openleaf-portal/apiclient"
	"github.com/jrsteele09/openleaf-portal/backend"
	errs "github.com/jrsteele09/openleaf-portal/internal/errors"
	"github.com/jrsteele09/openleaf-portal/internal/utils"
)

const (
	recentJournalCount   = 3
	journalExcerptLength = 120

	selfAssignedNote = "Patient self-assigned"
)

func (s *Server) DashboardHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sess, userID := userFrom(r)
		page := s.newPage(r, "Welcome to OpenLeaf")
		if page.User != nil {
			page.Intro = "Hello, " + page.User.Username + "!"
		}

		journals, err := sess.Services.Journals.List(r.Context())
		if err != nil {
			s.handleBackendError(w, r, sess, err, RouteDashboard, "")
			return
		}
		sortJournalsNewestFirst(journals)
		recent := Section{
			Heading: "Recent journal entries",
			Empty:   "You have not written anything yet.",
			Links:   []Link{{Label: "View all journals", Href: RouteJournals}, {Label: "Write a new entry", Href: RouteJournalCreate}},
		}
		for _, journal := range journals[:min(len(journals), recentJournalCount)] {
			recent.Items = append(recent.Items, journalItem(journal))
		}

		care := Section{Heading: "Your therapist"}
		assignment, err := sess.Services.Assignments.PatientTherapist(r.Context(), userID)
		switch {
		case err == nil:
			care.Items = []Item{{
				Title:  "Connected with your therapist",
				Detail: "Since " + displayTime(assignment.AssignedAt),
				Href:   bookingPath(assignment.TherapistKeycloakID),
			}}
			care.Links = []Link{{Label: "Book an appointment", Href: bookingPath(assignment.TherapistKeycloakID)}}
		case errs.Is(err, apiclient.ErrNotFound):
			care.Empty = "You are not connected with a therapist yet."
			care.Links = []Link{{Label: "Find a therapist", Href: RouteFindTherapist}}
		default:
			s.handleBackendError(w, r, sess, err, RouteDashboard, "")
			return
		}

		page.Sections = []Section{recent, care}
		s.renderPage(w, page)
	}
}

func journalItem(journal backend.Journal) Item {
	return Item{
		Title:  displayTime(journal.CreatedAt),
		Detail: excerpt(journal.Content, journalExcerptLength),
		Href:   journalPath(journal.ID),
	}
}

func journalPath(id int64) string {
	return RouteJournals + "/" + strconv.FormatInt(id, 10)
}

func bookingPath(therapistID string) string {
	return strings.Replace(RouteBookAppointment, "{therapistId}", url.PathEscape(therapistID), 1)
}

func (s *Server) JournalListHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sess, _ := userFrom(r)

		journals, err := sess.Services.Journals.List(r.Context())
		if err != nil {
			s.handleBackendError(w, r, sess, err, RouteJournals, "")
			return
		}
		sortJournalsNewestFirst(journals)

		section := Section{
			Empty: "No journal entries yet.",
			Links: []Link{{Label: "New entry", Href: RouteJournalCreate}},
		}
		for _, journal := range journals {
			section.Items = append(section.Items, journalItem(journal))
		}

		page := s.newPage(r, "My Journals")
		page.Sections = []Section{section}
		s.renderPage(w, page)
	}
}

func (s *Server) JournalFormHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		page := s.newPage(r, "New Journal Entry")
		page.Intro = "How are you feeling today?"
		page.Forms = []Form{{
			Action: RouteJournalCreate,
			Submit: "Save entry",
			Fields: []Field{{Name: "content", Label: "Entry", Type: "textarea", Placeholder: "Write your thoughts...", Required: true}},
		}}
		page.Back = &Link{Label: "Cancel", Href: RouteJournals}
		s.renderPage(w, page)
	}
}

func (s *Server) JournalCreateHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sess, _ := userFrom(r)

		content := strings.TrimSpace(r.PostFormValue("content"))
		if _, err := sess.Services.Journals.Create(r.Context(), content); err != nil {
			s.handleBackendError(w, r, sess, err, RouteJournalCreate, "")
			return
		}
		redirectWithNotice(w, r, RouteJournals, "Journal entry saved.")
	}
}

func (s *Server) JournalViewHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sess, _ := userFrom(r)
		id, ok := s.pathID(w, r, "id", RouteJournals)
		if !ok {
			return
		}

		journal, err := sess.Services.Journals.Get(r.Context(), id)
		if err != nil {
			s.handleBackendError(w, r, sess, err, RouteJournals, "")
			return
		}

		page := s.newPage(r, "Journal Entry")
		page.Intro = displayTime(journal.CreatedAt)
		page.Sections = []Section{{Items: []Item{{Title: "Entry", Detail: journal.Content}}}}
		page.Back = &Link{Label: "Back to journals", Href: RouteJournals}
		s.renderPage(w, page)
	}
}

func (s *Server) FindTherapistHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sess, _ := userFrom(r)

		therapists, err := sess.Services.Users.Therapists(r.Context())
		if err != nil {
			s.handleBackendError(w, r, sess, err, RouteFindTherapist, "")
			return
		}

		section := Section{Empty: "No therapists are available right now."}
		for _, therapist := range therapists {
			section.Items = append(section.Items, Item{
				Title:  therapist.DisplayName(),
				Detail: therapist.Email,
				Action: &Form{
					Action: RouteFindTherapist,
					Submit: "Connect",
					Fields: []Field{hidden("therapistId", therapist.KeycloakID)},
				},
			})
		}

		page := s.newPage(r, "Find Your Therapist")
		page.Sections = []Section{section}
		page.Back = &Link{Label: "Back to dashboard", Href: RouteDashboard}
		s.renderPage(w, page)
	}
}

// ConnectTherapistHandler assigns the signed-in patient to the chosen therapist.
func (s *Server) ConnectTherapistHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sess, userID := userFrom(r)

		_, err := sess.Services.Assignments.Assign(r.Context(), backend.AssignRequest{
			PatientKeycloakID:   userID,
			TherapistKeycloakID: r.PostFormValue("therapistId"),
			Notes:               selfAssignedNote,
		})
		if err != nil {
			s.handleBackendError(w, r, sess, err, RouteFindTherapist, "You are already connected with this therapist.")
			return
		}
		redirectWithNotice(w, r, RouteDashboard, "Successfully connected with your therapist!")
	}
}

func (s *Server) AvailableSlotsHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sess, _ := userFrom(r)
		therapistID, ok := s.pathKey(w, r, "therapistId", RouteFindTherapist)
		if !ok {
			return
		}
		back := bookingPath(therapistID)

		slots, err := sess.Services.Scheduling.AvailableSlots(r.Context(), therapistID)
		if err != nil {
			s.handleBackendError(w, r, sess, err, back, "")
			return
		}
		sortAppointments(slots)

		section := Section{Empty: "This therapist has no open slots right now."}
		for _, slot := range slots {
			section.Items = append(section.Items, Item{
				Title:  displayTime(slot.StartTime),
				Detail: slotDetail(slot),
				Action: &Form{
					Action: back,
					Submit: "Book",
					Fields: []Field{
						hidden("appointmentId", strconv.FormatInt(slot.ID, 10)),
						{Name: "notes", Label: "Notes for your therapist (optional)", Type: "text"},
					},
				},
			})
		}

		page := s.newPage(r, "Book an Appointment")
		page.Sections = []Section{section}
		page.Back = &Link{Label: "Back to dashboard", Href: RouteDashboard}
		s.renderPage(w, page)
	}
}

func (s *Server) BookAppointmentHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sess, _ := userFrom(r)
		therapistID, ok := s.pathKey(w, r, "therapistId", RouteFindTherapist)
		if !ok {
			return
		}
		back := bookingPath(therapistID)

		appointmentID, err := strconv.ParseInt(r.PostFormValue("appointmentId"), 10, 64)
		if err != nil || appointmentID <= 0 {
			redirectWithError(w, r, back, "Please choose a slot to book.")
			return
		}
		notes := utils.OptionalString(r.PostFormValue("notes"))
		if _, err := sess.Services.Scheduling.Book(r.Context(), appointmentID, notes); err != nil {
			s.handleBackendError(w, r, sess, err, back, "That slot has just been booked by someone else.")
			return
		}
		redirectWithNotice(w, r, RouteMyAppointments, "Appointment booked successfully!")
	}
}
