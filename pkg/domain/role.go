package domain

import dErrors "custodia/pkg/domain-errors"

// RoleID identifies a role in the access-control registry. Role identifiers
// are opaque, process-wide constants; the registry stores membership and the
// role-admin hierarchy keyed by these values.
//
// Usage: construct via ParseRoleID at trust boundaries to enforce the
// allowlist; direct casting bypasses validation.
type RoleID string

// Process-wide role identifiers.
//
// RoleDefaultAdmin is special: HasRole treats every check as
// "role OR RoleDefaultAdmin", so an account holding it implicitly satisfies
// every role gate. This is a deliberate super-admin shortcut, preserved as a
// documented invariant.
const (
	RoleDefaultAdmin     RoleID = "default_admin"
	RoleMinter           RoleID = "minter"
	RoleBurner           RoleID = "burner"
	RolePauser           RoleID = "pauser"
	RoleEnforcer         RoleID = "enforcer"
	RoleERC20Enforcer    RoleID = "erc20_enforcer"
	RoleSnapshooter      RoleID = "snapshooter"
	RoleDocument         RoleID = "document"
	RoleExtraInformation RoleID = "extra_information"
	RoleAllowlistManager RoleID = "allowlist_manager"
	RoleDebt             RoleID = "debt"
	RoleCrossChain       RoleID = "cross_chain"
)

// validRoles is the single source of truth for valid role identifiers.
var validRoles = map[RoleID]bool{
	RoleDefaultAdmin:     true,
	RoleMinter:           true,
	RoleBurner:           true,
	RolePauser:           true,
	RoleEnforcer:         true,
	RoleERC20Enforcer:    true,
	RoleSnapshooter:      true,
	RoleDocument:         true,
	RoleExtraInformation: true,
	RoleAllowlistManager: true,
	RoleDebt:             true,
	RoleCrossChain:       true,
}

// ParseRoleID constructs a RoleID from external input.
//
// Errors: returns CodeInvalidInput when the value is empty or not a known
// role; no other errors are expected.
func ParseRoleID(s string) (RoleID, error) {
	if s == "" {
		return "", dErrors.New(dErrors.CodeInvalidInput, "role cannot be empty")
	}
	r := RoleID(s)
	if !r.IsValid() {
		return "", dErrors.New(dErrors.CodeInvalidInput, "unknown role")
	}
	return r, nil
}

// IsValid checks if the role is one of the supported identifiers.
func (r RoleID) IsValid() bool {
	return validRoles[r]
}

// String returns the string representation of the role.
func (r RoleID) String() string {
	return string(r)
}
