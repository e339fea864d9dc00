package server

import "github.com/jrsteele09/openleaf-portal/guard"

// Route path constants
// All application routes are defined here to ensure consistency and prevent typos
const (
	// Auth Routes
	RouteRoot         = guard.PathRoot
	RouteLogin        = guard.PathLogin
	RouteCallback     = "/callback"
	RouteLogout       = "/logout"
	RouteUnauthorized = guard.PathUnauthorized

	// Identity provider back-channel
	RouteBackchannelLogout = "/backchannel-logout"

	// API Routes
	RouteAPISession = "/api/session"

	// Patient Routes
	RouteDashboard       = guard.LandingPatient
	RouteJournals        = "/journals"
	RouteJournalCreate   = "/journals/create"
	RouteJournal         = "/journals/{id}"
	RouteFindTherapist   = "/find-therapist"
	RouteBookAppointment = "/book-appointment/{therapistId}"

	// Therapist Routes
	RouteTherapistDashboard = guard.LandingTherapist
	RouteTherapistPatient   = "/therapist/patient/{patientId}"
	RouteCreateSlot         = "/create-appointment-slot"

	// Shared Routes
	RouteMyAppointments    = "/my-appointments"
	RouteCancelAppointment = "/appointments/{id}/cancel"
	RouteDeleteAccount     = "/delete-account"

	// Admin Routes
	RouteAdmin            = guard.LandingAdmin
	RouteAdminAssignments = "/admin/assignments"
	RouteAdminUnassign    = "/admin/assignments/{id}/delete"
)
