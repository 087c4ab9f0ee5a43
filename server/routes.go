package server

import (
	"net/http"

	"github.com/jrsteele09/research-portal/internal/metrics"
)

func (s *Server) initRoutes() {
	// LOGIN
	s.RegisterRouteHandler("POST "+RouteAuthLogin, s.route(RouteAuthLogin, s.LoginHandler(), s.LoginRateLimitMiddleware))
	s.RegisterRouteHandler("POST "+RouteAuthLogout, s.route(RouteAuthLogout, s.LogoutHandler()))
	s.RegisterRouteHandler("POST "+RouteAuthRegister, s.route(RouteAuthRegister, s.RegisterHandler(), s.LoginRateLimitMiddleware))
	s.RegisterRouteHandler("POST "+RouteAuthPassword, s.route(RouteAuthPassword, s.ChangePasswordHandler(), s.RequireSession))

	// GOOGLE
	s.RegisterRouteHandler("GET "+RouteGoogleStart, s.route(RouteGoogleStart, s.GoogleStartHandler()))
	s.RegisterRouteHandler("GET "+RouteGoogleCallback, s.route(RouteGoogleCallback, s.GoogleCallbackHandler(), s.LoginRateLimitMiddleware))
	s.RegisterRouteHandler("POST "+RouteGoogleToken, s.route(RouteGoogleToken, s.GoogleTokenHandler(), s.LoginRateLimitMiddleware))

	s.RegisterRouteHandler("GET "+RouteMe, s.route(RouteMe, s.MeHandler(), s.RequireSession))
	s.RegisterRouteHandler("POST "+RouteAccessRequests, s.route(RouteAccessRequests, s.SubmitAccessRequestHandler(), s.LoginRateLimitMiddleware))

	// ADMIN
	s.RegisterRouteHandler("GET "+RouteAdminAccounts, s.adminRoute(RouteAdminAccounts, s.AdminListAccountsHandler()))
	s.RegisterRouteHandler("POST "+RouteAdminAccountActive, s.adminRoute(RouteAdminAccountActive, s.AdminSetActiveHandler()))
	s.RegisterRouteHandler("POST "+RouteAdminAccountApproved, s.adminRoute(RouteAdminAccountApproved, s.AdminSetApprovedHandler()))
	s.RegisterRouteHandler("POST "+RouteAdminAccountRole, s.adminRoute(RouteAdminAccountRole, s.AdminSetRoleHandler()))
	s.RegisterRouteHandler("GET "+RouteAdminAccessRequests, s.adminRoute(RouteAdminAccessRequests, s.AdminListAccessRequestsHandler()))
	s.RegisterRouteHandler("GET "+RouteAdminAccessRequest, s.adminRoute(RouteAdminAccessRequest, s.AdminGetAccessRequestHandler()))
	s.RegisterRouteHandler("POST "+RouteAdminAccessRequestApprove, s.adminRoute(RouteAdminAccessRequestApprove, s.AdminApproveAccessRequestHandler()))
	s.RegisterRouteHandler("POST "+RouteAdminAccessRequestDeny, s.adminRoute(RouteAdminAccessRequestDeny, s.AdminDenyAccessRequestHandler()))
	s.RegisterRouteHandler("POST "+RouteAdminAccessRequestReprovision, s.adminRoute(RouteAdminAccessRequestReprovision, s.AdminReprovisionHandler()))
	s.RegisterRouteHandler("GET "+RouteAdminAudit, s.adminRoute(RouteAdminAudit, s.AdminAuditHandler()))

	// OPERATIONS
	s.RegisterRouteHandler("GET "+RouteMetrics, metrics.Handler())
	s.RegisterRouteFunc("GET "+RouteHealthz, s.HealthHandler())

	s.RegisterRouteFunc("/", s.route("/", notFound))
}

// route wraps a handler in the standard API chain plus any route specific middleware
func (s *Server) route(name string, handler http.HandlerFunc, mw ...func(http.HandlerFunc) http.HandlerFunc) http.HandlerFunc {
	return metrics.Instrument(name, ChainMiddleware(handler, s.APIMiddleware(mw...)...))
}

func (s *Server) adminRoute(name string, handler http.HandlerFunc) http.HandlerFunc {
	return s.route(name, handler, s.RequireSession, s.RequireAdmin)
}

func notFound(w http.ResponseWriter, r *http.Request) {
	writeError(w, http.StatusNotFound, "not_found", "not found")
}
