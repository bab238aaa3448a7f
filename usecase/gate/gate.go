package gate

import (
	"github.com/fastygo/portal/domain"
)

// LoginPath is where unauthenticated visits are sent.
const LoginPath = "/login"

// Kind is what the caller should do with a navigation.
type Kind int

const (
	Loading Kind = iota
	RedirectLogin
	RedirectDashboard
	Render
)

func (k Kind) String() string {
	switch k {
	case Loading:
		return "loading"
	case RedirectLogin:
		return "redirect_login"
	case RedirectDashboard:
		return "redirect_dashboard"
	case Render:
		return "render"
	default:
		return "unknown"
	}
}

// View is the read side of a session store consulted by the gate.
type View interface {
	Initialized() bool
	IsAuthenticated() bool
	Role() domain.Role
}

// Decision is the outcome of Decide.
type Decision struct {
	Kind     Kind
	Location string
	// Remember is the pending redirect target to persist before redirecting to login.
	Remember string
	// ClearSession asks the caller to log the session out before redirecting.
	ClearSession bool
	Reason       error
}

// State maps the decision onto the navigation state machine.
func (d Decision) State() domain.NavState {
	switch d.Kind {
	case Loading:
		return domain.NavLoading
	case RedirectDashboard:
		return domain.NavWrongRole
	case Render:
		return domain.NavCorrectRole
	default:
		return domain.NavUnauthenticated
	}
}

// Decide determines whether the screen at requestURI may render for the session.
// required is the role owning the subtree being entered, or domain.RoleNone when any
// authenticated role may enter.
func Decide(view View, requestURI string, required domain.Role) Decision {
	if !view.Initialized() {
		return Decision{Kind: Loading}
	}
	if !view.IsAuthenticated() {
		return Decision{
			Kind:     RedirectLogin,
			Location: LoginPath,
			Remember: requestURI,
			Reason:   domain.ErrNoSession,
		}
	}

	role := view.Role()
	if !role.IsValid() {
		// Without a role there is no dashboard to bounce to.
		return Decision{
			Kind:         RedirectLogin,
			Location:     LoginPath,
			ClearSession: true,
			Reason:       domain.ErrRoleUnset,
		}
	}
	if required != domain.RoleNone && required != role {
		return Decision{
			Kind:     RedirectDashboard,
			Location: role.Dashboard(),
			Reason:   domain.ErrRoleMismatch,
		}
	}
	return Decision{Kind: Render}
}
