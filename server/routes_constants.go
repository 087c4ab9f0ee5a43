package server

// Route path constants
const (
	// Local accounts
	RouteAuthLogin    = "/auth/login"
	RouteAuthLogout   = "/auth/logout"
	RouteAuthRegister = "/auth/register"
	RouteAuthPassword = "/auth/password"

	// Google sign-in
	RouteGoogleStart    = "/auth/google/start"
	RouteGoogleCallback = "/auth/google/callback"
	RouteGoogleToken    = "/auth/google/token"

	RouteMe             = "/api/me"
	RouteAccessRequests = "/access-requests"

	// Admin Routes
	RouteAdminAccounts                 = "/admin/accounts"
	RouteAdminAccountActive            = "/admin/accounts/{id}/active"
	RouteAdminAccountApproved          = "/admin/accounts/{id}/approved"
	RouteAdminAccountRole              = "/admin/accounts/{id}/role"
	RouteAdminAccessRequests           = "/admin/access-requests"
	RouteAdminAccessRequest            = "/admin/access-requests/{id}"
	RouteAdminAccessRequestApprove     = "/admin/access-requests/{id}/approve"
	RouteAdminAccessRequestDeny        = "/admin/access-requests/{id}/deny"
	RouteAdminAccessRequestReprovision = "/admin/access-requests/{id}/reprovision"
	RouteAdminAudit                    = "/admin/audit"

	RouteMetrics = "/metrics"
	RouteHealthz = "/healthz"

	// Where the browser lands after a failed Google sign-in
	RouteLoginPage = "/login"
)
