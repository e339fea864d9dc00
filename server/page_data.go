package server

import (
	"net/http"

	"github.com/jrsteele09/openleaf-portal/guard"
	"github.com/jrsteele09/openleaf-portal/roles"
	"github.com/jrsteele09/openleaf-portal/server/loginsession"
)

// PageData is the model every template renders.
type PageData struct {
	AppName  string
	Title    string
	Intro    string
	User     *UserInfo
	Nav      []Link
	Notice   string
	Error    string
	Sections []Section
	Forms    []Form
	Back     *Link
}

type UserInfo struct {
	UserID   string
	Username string
	Role     roles.Role
	Landing  string
}

type Link struct {
	Label string
	Href  string
}

type Section struct {
	Heading string
	Empty   string
	Items   []Item
	Links   []Link
}

type Item struct {
	Title  string
	Detail string
	Href   string
	Action *Form
}

type Form struct {
	Action string
	Submit string
	Danger bool
	Fields []Field
}

type Field struct {
	Name        string
	Label       string
	Type        string
	Value       string
	Placeholder string
	Required    bool
	Options     []SelectOption
}

type SelectOption struct {
	Value    string
	Label    string
	Selected bool
}

func hidden(name, value string) Field {
	return Field{Name: name, Type: "hidden", Value: value}
}

// newPage starts a page model for the request, filling in the signed-in user and navigation.
// The ?notice and ?error query parameters carry messages across a redirect.
func (s *Server) newPage(r *http.Request, title string) PageData {
	page := PageData{
		AppName: s.config.GetAppName(),
		Title:   title,
		Notice:  r.URL.Query().Get("notice"),
		Error:   r.URL.Query().Get("error"),
	}

	sess := sessionFromContext(r.Context())
	if sess == nil {
		return page
	}
	claims := sess.Controller.Claims()
	if claims == nil {
		return page
	}

	resolver := s.resolver
	page.User = &UserInfo{
		UserID:   claims.Subject,
		Username: claims.PreferredUsername,
		Role:     resolver.Primary(claims),
		Landing:  s.guard.DefaultLanding(claims),
	}
	page.Nav = navigation(resolver.Roles(claims))
	return page
}

func navigation(held []roles.Role) []Link {
	var nav []Link
	careParticipant := false
	for _, role := range held {
		switch role {
		case roles.Admin:
			nav = append(nav, Link{Label: "Admin", Href: RouteAdmin})
		case roles.Therapist:
			careParticipant = true
			nav = append(nav,
				Link{Label: "Therapist dashboard", Href: RouteTherapistDashboard},
				Link{Label: "New slot", Href: RouteCreateSlot},
			)
		case roles.Patient:
			careParticipant = true
			nav = append(nav,
				Link{Label: "Dashboard", Href: RouteDashboard},
				Link{Label: "Journals", Href: RouteJournals},
				Link{Label: "Find a therapist", Href: RouteFindTherapist},
			)
		}
	}
	if careParticipant {
		nav = append(nav,
			Link{Label: "My appointments", Href: RouteMyAppointments},
			Link{Label: "Delete account", Href: RouteDeleteAccount},
		)
	}
	return nav
}

func (s *Server) renderPage(w http.ResponseWriter, page PageData) {
	renderTemplate(w, s.pages.page, http.StatusOK, page)
}

// renderError shows a failure page whose link retries retry.
func (s *Server) renderError(w http.ResponseWriter, r *http.Request, status int, message, retry string) {
	page := s.newPage(r, http.StatusText(status))
	page.Intro = message
	if retry != "" {
		page.Back = &Link{Label: "Try again", Href: retry}
	}
	renderTemplate(w, s.pages.error, status, page)
}

func (s *Server) renderUnauthorized(w http.ResponseWriter, r *http.Request, decision guard.Decision) {
	page := s.newPage(r, "Access denied")
	landing := decision.Landing
	if landing == "" {
		landing = RouteRoot
	}
	page.Back = &Link{Label: "Back to your home page", Href: landing}
	renderTemplate(w, s.pages.unauthorized, http.StatusOK, page)
}

// userFrom returns the signed-in session and its subject. Guarded handlers always have both.
func userFrom(r *http.Request) (*loginsession.Session, string) {
	sess := sessionFromContext(r.Context())
	if sess == nil {
		return nil, ""
	}
	return sess, sess.Subject()
}
