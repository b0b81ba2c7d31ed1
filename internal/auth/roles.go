package auth

import (
	"errors"
	"fmt"
)

var (
	ErrUnauthorized = errors.New("auth: unauthorized")
	ErrInvalidToken = errors.New("auth: invalid token")
	ErrInvalidRole  = errors.New("auth: invalid role")
)

// Role is the access level of a back-office user.
//
// Viewers read collections and ledgers. Operators also record slips, bills,
// memos and cashbook entries and export ledgers. Admins may delete records,
// post ledger entries and recompute cashbook balances.
type Role string

const (
	RoleViewer   Role = "viewer"
	RoleOperator Role = "operator"
	RoleAdmin    Role = "admin"
)

var roleRank = map[Role]int{
	RoleViewer:   1,
	RoleOperator: 2,
	RoleAdmin:    3,
}

// ParseRole returns the role named by value.
func ParseRole(value string) (Role, error) {
	role := Role(value)
	if _, ok := roleRank[role]; !ok {
		return "", fmt.Errorf("%w %q", ErrInvalidRole, value)
	}
	return role, nil
}

// Satisfies reports whether r grants at least the access of required.
// Unknown roles satisfy nothing.
func (r Role) Satisfies(required Role) bool {
	rank, ok := roleRank[r]
	return ok && rank >= roleRank[required]
}
