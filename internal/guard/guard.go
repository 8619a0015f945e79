// Package guard mirrors the access policy gate for presentation-layer
// navigation. A protected view starts in Loading while identity
// resolution is in flight, then settles into exactly one terminal state;
// protected content is only rendered from Authorized.
package guard

import (
	"net/url"

	"saasboard/api/internal/authz"
	"saasboard/api/internal/models"
)

type State int

const (
	StateLoading State = iota
	StateAuthorized
	StateRedirectUnauthenticated
	StateRedirectUnauthorized
	StateRedirectPlanUpgrade
)

func (s State) String() string {
	switch s {
	case StateLoading:
		return "loading"
	case StateAuthorized:
		return "authorized"
	case StateRedirectUnauthenticated:
		return "redirect_unauthenticated"
	case StateRedirectUnauthorized:
		return "redirect_unauthorized"
	case StateRedirectPlanUpgrade:
		return "redirect_plan_upgrade"
	}
	return "unknown"
}

const (
	loginPath        = "/auth"
	unauthorizedPath = "/unauthorized"
	upgradePath      = "/upgrade"
)

// Requirements declares what a route needs, matching the server gate.
type Requirements struct {
	Roles []models.Role
	Plans []models.Plan
}

// RouteGuard tracks one navigation attempt to a protected route.
type RouteGuard struct {
	requirements Requirements
	path         string
	state        State
	redirect     string
}

func New(path string, requirements Requirements) *RouteGuard {
	return &RouteGuard{
		requirements: requirements,
		path:         path,
		state:        StateLoading,
	}
}

func (g *RouteGuard) State() State {
	return g.state
}

// Redirect reports the navigation target for a redirect state, empty
// otherwise. Unauthenticated redirects preserve the requested path so the
// login view can return the user after sign-in.
func (g *RouteGuard) Redirect() string {
	return g.redirect
}

// Resolve transitions out of Loading once identity resolution completes.
// user is nil when resolution finished anonymous. Resolve is idempotent:
// once settled, later calls do not move the state.
func (g *RouteGuard) Resolve(user *models.User) State {
	if g.state != StateLoading {
		return g.state
	}

	decision := authz.Decide(user, g.requirements.Roles, g.requirements.Plans)
	switch decision.Verdict {
	case authz.VerdictUnauthenticated:
		g.state = StateRedirectUnauthenticated
		g.redirect = loginPath + "?return_to=" + url.QueryEscape(g.path)
	case authz.VerdictInsufficientRole:
		g.state = StateRedirectUnauthorized
		g.redirect = unauthorizedPath
	case authz.VerdictPlanUpgradeRequired:
		g.state = StateRedirectPlanUpgrade
		g.redirect = upgradePath
	default:
		g.state = StateAuthorized
	}
	return g.state
}

// ShouldRender reports whether the protected view may be shown. Loading
// renders a neutral placeholder, never protected content.
func (g *RouteGuard) ShouldRender() bool {
	return g.state == StateAuthorized
}
