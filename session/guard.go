package session

import (
	"net/http"

	"github.com/jrsteele09/go-clinic-auth/notify"
)

type Role string

const (
	RoleMainUser Role = "main_user"
	RoleAny      Role = "any"
)

// Viewer exposes the session view a guard decides on. *Manager satisfies it.
type Viewer interface {
	Snapshot() Snapshot
}

type GuardConfig struct {
	LoginRoute    string
	FallbackRoute string
}

// Decision is the outcome of a guard check. Exactly one of Allow, Pending or a
// non-empty Redirect is set.
type Decision struct {
	Allow    bool
	Pending  bool
	Redirect string
}

type Guard struct {
	session  Viewer
	notifier notify.Notifier
	config   GuardConfig
}

func NewGuard(session Viewer, notifier notify.Notifier, config GuardConfig) *Guard {
	if config.LoginRoute == "" {
		config.LoginRoute = "/login"
	}
	if config.FallbackRoute == "" {
		config.FallbackRoute = "/"
	}
	if notifier == nil {
		notifier = notify.Nop{}
	}
	return &Guard{session: session, notifier: notifier, config: config}
}

// Check decides whether the current session may enter a route requiring role.
// Unknown roles are treated as RoleMainUser.
func (g *Guard) Check(role Role) Decision {
	s := g.session.Snapshot()
	switch {
	case s.Loading:
		return Decision{Pending: true}
	case !s.IsAuthenticated || s.User == nil:
		return Decision{Redirect: g.config.LoginRoute}
	case role == RoleAny:
		return Decision{Allow: true}
	case s.User.IsMainUser():
		return Decision{Allow: true}
	}
	g.notifier.Error(msgMainAccountRequired)
	return Decision{Redirect: g.config.FallbackRoute}
}

// Middleware applies Check to an http handler. While the session is still
// loading the request is answered with 503 and a short Retry-After.
func (g *Guard) Middleware(role Role) func(http.HandlerFunc) http.HandlerFunc {
	return func(next http.HandlerFunc) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			d := g.Check(role)
			switch {
			case d.Allow:
				next(w, r)
			case d.Pending:
				w.Header().Set("Retry-After", "1")
				http.Error(w, "session loading", http.StatusServiceUnavailable)
			default:
				http.Redirect(w, r, d.Redirect, http.StatusSeeOther)
			}
		}
	}
}
