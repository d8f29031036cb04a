package domain

import "fmt"

// Role names a grantable platform role.
type Role string

// Platform roles. The catalog below is the single place that decides which
// tier a role belongs to; admission control flow never branches on role names.
const (
	RoleStaff              Role = "staff"
	RoleFacilityManager    Role = "facility_manager"
	RoleProgramCoordinator Role = "program_coordinator"
	RolePlatformAdmin      Role = "platform_admin"
)

// RoleTier is the privilege tier used by admission control. Only the baseline
// tier is ever eligible for domain-based auto-approval; domain trust says
// "plausibly works here", not "is senior here".
type RoleTier string

const (
	TierBaseline RoleTier = "baseline"
	TierElevated RoleTier = "elevated"
)

// roleTiers maps each role to its privilege tier. New roles are added here,
// not in admission control flow.
var roleTiers = map[Role]RoleTier{
	RoleStaff:              TierBaseline,
	RoleFacilityManager:    TierElevated,
	RoleProgramCoordinator: TierElevated,
	RolePlatformAdmin:      TierElevated,
}

// ParseRole validates a role name against the catalog.
func ParseRole(s string) (Role, error) {
	r := Role(s)
	if _, ok := roleTiers[r]; !ok {
		return "", fmt.Errorf("unknown role: %s", s)
	}
	return r, nil
}

func (r Role) String() string { return string(r) }

// Tier returns the privilege tier for this role. Unknown roles are treated as
// elevated so an unmapped role can never slip through auto-approval.
func (r Role) Tier() RoleTier {
	if tier, ok := roleTiers[r]; ok {
		return tier
	}
	return TierElevated
}

// AutoApprovable reports whether a domain allow-list match may approve a
// request for this role without human review.
func (r Role) AutoApprovable() bool {
	return r.Tier() == TierBaseline
}
