package authz

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/require"

	"saasboard/api/internal/models"
)

func user(roles []models.Role, plan models.Plan) *models.User {
	return &models.User{
		ID:     1,
		Email:  "user@example.com",
		Roles:  roles,
		Plan:   plan,
		Status: models.UserStatusActive,
	}
}

func TestDecideAnonymous(t *testing.T) {
	decision := Decide(nil, nil, nil)
	require.Equal(t, VerdictUnauthenticated, decision.Verdict)

	decision = Decide(nil, []models.Role{models.RoleAdmin}, []models.Plan{models.PlanBasic})
	require.Equal(t, VerdictUnauthenticated, decision.Verdict)
}

func TestDecideEmptyRequirements(t *testing.T) {
	decision := Decide(user([]models.Role{models.RoleFree}, models.PlanFree), nil, nil)
	require.True(t, decision.Allowed())
}

func TestDecideRoleIntersection(t *testing.T) {
	u := user([]models.Role{models.RoleBasic, models.RolePremium}, models.PlanBasic)

	require.True(t, Decide(u, []models.Role{models.RolePremium}, nil).Allowed())
	require.Equal(t, VerdictInsufficientRole,
		Decide(u, []models.Role{models.RoleAdmin}, nil).Verdict)
}

func TestDecideSuperadminImpliesAdmin(t *testing.T) {
	super := user([]models.Role{models.RoleSuperAdmin}, models.PlanEnterprise)

	require.True(t, Decide(super, []models.Role{models.RoleAdmin}, nil).Allowed())

	// The hierarchy is one-directional and only covers admin.
	admin := user([]models.Role{models.RoleAdmin}, models.PlanEnterprise)
	require.Equal(t, VerdictInsufficientRole,
		Decide(admin, []models.Role{models.RoleSuperAdmin}, nil).Verdict)
	require.Equal(t, VerdictInsufficientRole,
		Decide(super, []models.Role{models.RolePremium}, nil).Verdict)
}

func TestDecidePlanMembership(t *testing.T) {
	u := user([]models.Role{models.RoleFree}, models.PlanFree)
	paid := []models.Plan{models.PlanBasic, models.PlanPremium, models.PlanEnterprise}

	decision := Decide(u, nil, paid)
	require.Equal(t, VerdictPlanUpgradeRequired, decision.Verdict)
	require.Equal(t, models.PlanFree, decision.CurrentPlan)
	require.Equal(t, paid, decision.AllowedPlans)

	u.Plan = models.PlanPremium
	require.True(t, Decide(u, nil, paid).Allowed())
}

func TestDecideRoleCheckPrecedesPlanCheck(t *testing.T) {
	u := user([]models.Role{models.RoleFree}, models.PlanFree)
	decision := Decide(u, []models.Role{models.RoleAdmin}, []models.Plan{models.PlanBasic})
	require.Equal(t, VerdictInsufficientRole, decision.Verdict)
}

// Property: for random role sets R and requirements S, access is granted
// iff R and S intersect, or superadmin is held and S includes admin.
func TestDecideRoleProperty(t *testing.T) {
	rng := rand.New(rand.NewSource(1))

	randomRoles := func() []models.Role {
		var roles []models.Role
		for _, role := range models.AllRoles {
			if rng.Intn(2) == 0 {
				roles = append(roles, role)
			}
		}
		return roles
	}

	for i := 0; i < 1000; i++ {
		held := randomRoles()
		if len(held) == 0 {
			held = []models.Role{models.RoleFree}
		}
		required := randomRoles()

		u := user(held, models.PlanFree)
		got := Decide(u, required, nil).Allowed()

		expected := len(required) == 0
		for _, role := range required {
			if u.HasRole(role) || (role == models.RoleAdmin && u.HasRole(models.RoleSuperAdmin)) {
				expected = true
			}
		}

		require.Equal(t, expected, got, "held=%v required=%v", held, required)
	}
}

// Property: plan gating is pure membership, independent of roles.
func TestDecidePlanProperty(t *testing.T) {
	rng := rand.New(rand.NewSource(2))

	for i := 0; i < 1000; i++ {
		plan := models.AllPlans[rng.Intn(len(models.AllPlans))]
		var allowed []models.Plan
		for _, p := range models.AllPlans {
			if rng.Intn(2) == 0 {
				allowed = append(allowed, p)
			}
		}

		roles := []models.Role{models.AllRoles[rng.Intn(len(models.AllRoles))]}
		decision := Decide(user(roles, plan), nil, allowed)

		expected := len(allowed) == 0
		for _, p := range allowed {
			if p == plan {
				expected = true
			}
		}
		require.Equal(t, expected, decision.Allowed(), "plan=%v allowed=%v", plan, allowed)
	}
}

// Same inputs always produce the same decision.
func TestDecideDeterministic(t *testing.T) {
	u := user([]models.Role{models.RoleBasic}, models.PlanBasic)
	required := []models.Role{models.RoleAdmin}

	first := Decide(u, required, nil)
	for i := 0; i < 10; i++ {
		require.Equal(t, first, Decide(u, required, nil))
	}
}
