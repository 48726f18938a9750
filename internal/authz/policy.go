package authz

import (
	"github.com/bytesecuritas/sensi-back/internal/models"
)

type Ownership int

const (
	// OwnershipNone only checks the role allow-list.
	OwnershipNone Ownership = iota
	// OwnershipSelfOrElevated requires a plain user to own the resource.
	OwnershipSelfOrElevated
	// OwnershipSelf requires every caller to own the resource.
	OwnershipSelf
	// OwnershipOrganisation requires non-superadmin callers to belong to the
	// organisation named by the route.
	OwnershipOrganisation
)

func (o Ownership) String() string {
	switch o {
	case OwnershipSelfOrElevated:
		return "self_or_elevated"
	case OwnershipSelf:
		return "self"
	case OwnershipOrganisation:
		return "organisation"
	default:
		return "none"
	}
}

// RoutePolicy is the authorization requirement of one route. Param names the
// route parameter holding the resource id for ownership checks.
type RoutePolicy struct {
	AllowedRoles []models.UserRole
	Ownership    Ownership
	Param        string
}

// NeedsOrganisation reports whether evaluating p requires the caller's
// organisation to be resolved.
func (p RoutePolicy) NeedsOrganisation(caller *Caller) bool {
	return p.Ownership == OwnershipOrganisation && caller != nil && caller.Role != models.UserRoleSuperAdmin
}

// Evaluate applies the allow-list and then the ownership rule against
// resourceID.
func (p RoutePolicy) Evaluate(caller *Caller, resourceID string) error {
	if len(p.AllowedRoles) > 0 {
		if err := RequireRole(caller, p.AllowedRoles...); err != nil {
			return err
		}
	} else if caller == nil {
		return RequireRole(nil)
	}

	switch p.Ownership {
	case OwnershipSelfOrElevated:
		return CheckOwnership(caller, resourceID)
	case OwnershipSelf:
		return CheckSelf(caller, resourceID)
	case OwnershipOrganisation:
		return CheckOrganisationMember(caller, resourceID)
	}
	return nil
}

// PolicyTable maps "METHOD /route/:template" to its policy.
type PolicyTable map[string]RoutePolicy

func PolicyKey(method, route string) string {
	return method + " " + route
}

func (t PolicyTable) Lookup(method, route string) (RoutePolicy, bool) {
	p, ok := t[PolicyKey(method, route)]
	return p, ok
}

var (
	allRoles       = []models.UserRole{models.UserRoleSuperAdmin, models.UserRoleAdmin, models.UserRoleUser}
	elevatedRoles  = []models.UserRole{models.UserRoleSuperAdmin, models.UserRoleAdmin}
	superAdminOnly = []models.UserRole{models.UserRoleSuperAdmin}
)

// DefaultPolicies is the route table of the HTTP API. Routes are expressed
// relative to the API root, in gin's template syntax.
func DefaultPolicies() PolicyTable {
	return PolicyTable{
		PolicyKey("POST", "/auth/register"): {AllowedRoles: elevatedRoles},
		PolicyKey("GET", "/auth/profile"):   {AllowedRoles: allRoles},

		PolicyKey("GET", "/users"):              {AllowedRoles: elevatedRoles},
		PolicyKey("GET", "/users/:id"):          {AllowedRoles: allRoles, Ownership: OwnershipSelfOrElevated, Param: "id"},
		PolicyKey("PUT", "/users/:id"):          {AllowedRoles: allRoles, Ownership: OwnershipSelfOrElevated, Param: "id"},
		PolicyKey("DELETE", "/users/:id"):       {AllowedRoles: elevatedRoles},
		PolicyKey("PUT", "/users/:id/password"): {AllowedRoles: allRoles, Ownership: OwnershipSelf, Param: "id"},

		PolicyKey("POST", "/organisations"):                   {AllowedRoles: superAdminOnly},
		PolicyKey("GET", "/organisations"):                    {AllowedRoles: superAdminOnly},
		PolicyKey("GET", "/organisations/:id"):                {AllowedRoles: superAdminOnly},
		PolicyKey("GET", "/organisations/:id/stats"):          {AllowedRoles: superAdminOnly},
		PolicyKey("GET", "/organisations/:id/users"):          {AllowedRoles: elevatedRoles, Ownership: OwnershipOrganisation, Param: "id"},
		PolicyKey("PATCH", "/organisations/:id"):              {AllowedRoles: superAdminOnly},
		PolicyKey("DELETE", "/organisations/:id"):             {AllowedRoles: superAdminOnly},
		PolicyKey("DELETE", "/organisations/:id/users/:userId"): {AllowedRoles: elevatedRoles, Ownership: OwnershipOrganisation, Param: "id"},

		PolicyKey("POST", "/learning/organisations/:orgId/parcours/:parcoursId"):   {AllowedRoles: superAdminOnly},
		PolicyKey("DELETE", "/learning/organisations/:orgId/parcours/:parcoursId"): {AllowedRoles: superAdminOnly},
		PolicyKey("GET", "/learning/organisations/:orgId/parcours"):                {AllowedRoles: elevatedRoles, Ownership: OwnershipOrganisation, Param: "orgId"},
		PolicyKey("GET", "/learning/parcours/user/available"):                      {AllowedRoles: allRoles},
		PolicyKey("GET", "/learning/access/check/:parcoursId"):                     {AllowedRoles: allRoles},
	}
}
