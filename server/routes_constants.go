package server

// Route path constants
// All application routes are defined here to ensure consistency and prevent typos
const (
	// Session lifecycle
	RouteSignUp     = "/auth/signup"
	RouteSignIn     = "/auth/signin"
	RouteRefresh    = "/auth/refresh"
	RouteSignOut    = "/auth/signout"
	RouteSignOutAll = "/auth/signout-all"

	// Bearer token protected
	RouteMe       = "/auth/me"
	RouteValidate = "/auth/validate"

	// Operations
	RouteHealth  = "/healthz"
	RouteMetrics = "/metrics"
)
