package guard

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/require"

	"saasboard/api/internal/authz"
	"saasboard/api/internal/models"
)

func activeUser(roles []models.Role, plan models.Plan) *models.User {
	return &models.User{ID: 7, Email: "u@example.com", Roles: roles, Plan: plan, Status: models.UserStatusActive}
}

func TestGuardStartsLoading(t *testing.T) {
	g := New("/dashboard", Requirements{})
	require.Equal(t, StateLoading, g.State())
	require.False(t, g.ShouldRender())
	require.Empty(t, g.Redirect())
}

func TestGuardAuthorized(t *testing.T) {
	g := New("/dashboard", Requirements{})
	state := g.Resolve(activeUser([]models.Role{models.RoleFree}, models.PlanFree))
	require.Equal(t, StateAuthorized, state)
	require.True(t, g.ShouldRender())
	require.Empty(t, g.Redirect())
}

func TestGuardAnonymousRedirectsToLogin(t *testing.T) {
	g := New("/projects/42?tab=settings", Requirements{})
	state := g.Resolve(nil)
	require.Equal(t, StateRedirectUnauthenticated, state)
	require.False(t, g.ShouldRender())
	require.Equal(t, "/auth?return_to=%2Fprojects%2F42%3Ftab%3Dsettings", g.Redirect())
}

func TestGuardInsufficientRole(t *testing.T) {
	g := New("/admin", Requirements{Roles: []models.Role{models.RoleAdmin}})
	state := g.Resolve(activeUser([]models.Role{models.RoleBasic}, models.PlanBasic))
	require.Equal(t, StateRedirectUnauthorized, state)
	require.Equal(t, "/unauthorized", g.Redirect())
}

func TestGuardPlanUpgrade(t *testing.T) {
	g := New("/projects/new", Requirements{Plans: []models.Plan{
		models.PlanBasic, models.PlanPremium, models.PlanEnterprise,
	}})
	state := g.Resolve(activeUser([]models.Role{models.RoleFree}, models.PlanFree))
	require.Equal(t, StateRedirectPlanUpgrade, state)
	require.Equal(t, "/upgrade", g.Redirect())
}

func TestGuardSuperadminPassesAdminRoute(t *testing.T) {
	g := New("/admin", Requirements{Roles: []models.Role{models.RoleAdmin}})
	state := g.Resolve(activeUser([]models.Role{models.RoleSuperAdmin}, models.PlanEnterprise))
	require.Equal(t, StateAuthorized, state)
}

// Once settled, later resolutions do not move the guard.
func TestGuardResolveIdempotent(t *testing.T) {
	g := New("/admin", Requirements{Roles: []models.Role{models.RoleAdmin}})
	require.Equal(t, StateRedirectUnauthorized,
		g.Resolve(activeUser([]models.Role{models.RoleFree}, models.PlanFree)))

	// A later resolution with an admin user must not flip the state.
	require.Equal(t, StateRedirectUnauthorized,
		g.Resolve(activeUser([]models.Role{models.RoleAdmin}, models.PlanEnterprise)))
	require.Equal(t, StateRedirectUnauthorized, g.State())
}

// Property: the guard's terminal state always agrees with the server gate
// for the same user and requirements.
func TestGuardAgreesWithGate(t *testing.T) {
	rng := rand.New(rand.NewSource(3))

	for i := 0; i < 1000; i++ {
		var roles []models.Role
		for _, r := range models.AllRoles {
			if rng.Intn(2) == 0 {
				roles = append(roles, r)
			}
		}
		var plans []models.Plan
		for _, p := range models.AllPlans {
			if rng.Intn(2) == 0 {
				plans = append(plans, p)
			}
		}

		var u *models.User
		if rng.Intn(4) > 0 {
			u = activeUser(
				[]models.Role{models.AllRoles[rng.Intn(len(models.AllRoles))]},
				models.AllPlans[rng.Intn(len(models.AllPlans))],
			)
		}

		g := New("/route", Requirements{Roles: roles, Plans: plans})
		state := g.Resolve(u)

		decision := authz.Decide(u, roles, plans)
		var expected State
		switch decision.Verdict {
		case authz.VerdictAllow:
			expected = StateAuthorized
		case authz.VerdictUnauthenticated:
			expected = StateRedirectUnauthenticated
		case authz.VerdictInsufficientRole:
			expected = StateRedirectUnauthorized
		case authz.VerdictPlanUpgradeRequired:
			expected = StateRedirectPlanUpgrade
		}
		require.Equal(t, expected, state, "roles=%v plans=%v user=%v", roles, plans, u)
	}
}
