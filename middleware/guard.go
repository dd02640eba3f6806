package middleware

import "github.com/hocvui-edu/hocvui_api/model"

// RouteRequirement is the declarative access policy a protected surface
// attaches to itself. Stateless and immutable per route.
type RouteRequirement struct {
	AuthRequired bool
	AllowedRoles []string
	GuestAllowed bool
}

type Decision int

const (
	DecisionPending Decision = iota
	DecisionAllow
	DecisionRedirectToLogin
	DecisionRedirectToGuestUpgrade
	DecisionRedirectToUnauthorized
)

func (d Decision) String() string {
	switch d {
	case DecisionAllow:
		return "allow"
	case DecisionRedirectToLogin:
		return "redirect_to_login"
	case DecisionRedirectToGuestUpgrade:
		return "redirect_to_guest_upgrade"
	case DecisionRedirectToUnauthorized:
		return "redirect_to_unauthorized"
	default:
		return "pending"
	}
}

// Decide gates a navigation attempt. A nil session means resolution is still
// in flight and the caller must hold and re-invoke, never silently allow.
//
// The checks run in a fixed order: the guest-upgrade redirect is evaluated
// before role membership, so a guest hitting a role-restricted route that
// disallows guests always gets the upgrade redirect, never unauthorized.
func Decide(session *model.Session, identityRole string, requirement RouteRequirement) Decision {
	if session == nil {
		return DecisionPending
	}

	if !requirement.AuthRequired {
		return DecisionAllow
	}

	if session.State == model.SessionAnonymous {
		return DecisionRedirectToLogin
	}

	if session.State == model.SessionGuest && !requirement.GuestAllowed {
		return DecisionRedirectToGuestUpgrade
	}

	effectiveRole := identityRole
	if session.State == model.SessionGuest {
		effectiveRole = model.RoleGuest
	}

	if !roleAllowed(effectiveRole, requirement.AllowedRoles) {
		return DecisionRedirectToUnauthorized
	}

	return DecisionAllow
}

func roleAllowed(role string, allowed []string) bool {
	for _, r := range allowed {
		if r == role {
			return true
		}
	}
	return false
}
