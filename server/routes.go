package server

func (s *Server) initRoutes() {
	s.RegisterRouteHandler("GET "+RouteRoot+"{$}", ChainMiddleware(s.IndexHandler(), s.PageMiddleware()...))

	// LOGIN
	s.RegisterRouteHandler("GET "+RouteLogin, ChainMiddleware(s.LoginHandler(), s.HTMLMiddleWare(s.RateLimitMiddleware(s.loginLimiter))...))
	s.RegisterRouteHandler("GET "+RouteCallback, ChainMiddleware(s.OAuthCallbackHandler(), s.HTMLMiddleWare()...))
	s.RegisterRouteHandler("POST "+RouteCallback, ChainMiddleware(s.OAuthCallbackHandler(), s.HTMLMiddleWare()...)) // For form_post response mode
	s.RegisterRouteHandler("GET "+RouteLogout, ChainMiddleware(s.LogoutHandler(), s.HTMLMiddleWare()...))
	s.RegisterRouteHandler("GET "+RouteUnauthorized, ChainMiddleware(s.UnauthorizedHandler(), s.PageMiddleware()...))
	s.RegisterRouteHandler("POST "+RouteBackchannelLogout, ChainMiddleware(s.BackchannelLogoutHandler(), s.HTMLMiddleWare()...))

	// API routes
	s.RegisterRouteHandler("GET "+RouteAPISession, ChainMiddleware(s.SessionInfoHandler(), s.APIMiddleware()...))
	s.RegisterRouteHandler("OPTIONS "+RouteAPISession, ChainMiddleware(s.SessionInfoHandler(), s.APIMiddleware()...))

	// Patient routes
	s.RegisterRouteHandler("GET "+RouteDashboard, ChainMiddleware(s.DashboardHandler(), s.ProtectedMiddleware()...))
	s.RegisterRouteHandler("GET "+RouteJournals, ChainMiddleware(s.JournalListHandler(), s.ProtectedMiddleware()...))
	s.RegisterRouteHandler("GET "+RouteJournalCreate, ChainMiddleware(s.JournalFormHandler(), s.ProtectedMiddleware()...))
	s.RegisterRouteHandler("POST "+RouteJournalCreate, ChainMiddleware(s.JournalCreateHandler(), s.ProtectedMiddleware()...))
	s.RegisterRouteHandler("GET "+RouteJournal, ChainMiddleware(s.JournalViewHandler(), s.ProtectedMiddleware()...))
	s.RegisterRouteHandler("GET "+RouteFindTherapist, ChainMiddleware(s.FindTherapistHandler(), s.ProtectedMiddleware()...))
	s.RegisterRouteHandler("POST "+RouteFindTherapist, ChainMiddleware(s.ConnectTherapistHandler(), s.ProtectedMiddleware()...))
	s.RegisterRouteHandler("GET "+RouteBookAppointment, ChainMiddleware(s.AvailableSlotsHandler(), s.ProtectedMiddleware()...))
	s.RegisterRouteHandler("POST "+RouteBookAppointment, ChainMiddleware(s.BookAppointmentHandler(), s.ProtectedMiddleware()...))

	// Therapist routes
	s.RegisterRouteHandler("GET "+RouteTherapistDashboard, ChainMiddleware(s.TherapistDashboardHandler(), s.ProtectedMiddleware()...))
	s.RegisterRouteHandler("GET "+RouteTherapistPatient, ChainMiddleware(s.TherapistPatientHandler(), s.ProtectedMiddleware()...))
	s.RegisterRouteHandler("GET "+RouteCreateSlot, ChainMiddleware(s.SlotFormHandler(), s.ProtectedMiddleware()...))
	s.RegisterRouteHandler("POST "+RouteCreateSlot, ChainMiddleware(s.CreateSlotHandler(), s.ProtectedMiddleware()...))

	// Shared routes
	s.RegisterRouteHandler("GET "+RouteMyAppointments, ChainMiddleware(s.MyAppointmentsHandler(), s.ProtectedMiddleware()...))
	s.RegisterRouteHandler("POST "+RouteCancelAppointment, ChainMiddleware(s.CancelAppointmentHandler(), s.ProtectedMiddleware()...))
	s.RegisterRouteHandler("GET "+RouteDeleteAccount, ChainMiddleware(s.DeleteAccountFormHandler(), s.ProtectedMiddleware()...))
	s.RegisterRouteHandler("POST "+RouteDeleteAccount, ChainMiddleware(s.DeleteAccountHandler(), s.ProtectedMiddleware()...))

	// Admin routes
	s.RegisterRouteHandler("GET "+RouteAdmin, ChainMiddleware(s.AdminHandler(), s.ProtectedMiddleware()...))
	s.RegisterRouteHandler("POST "+RouteAdminAssignments, ChainMiddleware(s.AdminAssignHandler(), s.ProtectedMiddleware()...))
	s.RegisterRouteHandler("POST "+RouteAdminUnassign, ChainMiddleware(s.AdminUnassignHandler(), s.ProtectedMiddleware()...))
}
