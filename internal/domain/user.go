package domain

import (
	"time"

	"github.com/google/uuid"
)

// Role is the privilege tier of an account in the agent hierarchy.
type Role string

const (
	RoleAdmin      Role = "admin"
	RoleSuperAgent Role = "superagent"
	RoleAgent      Role = "agent"
	RolePlayer     Role = "player"
)

// Rank returns the privilege rank of a role. Higher means more privileged.
// Unknown roles rank below player.
func (r Role) Rank() int {
	switch r {
	case RoleAdmin:
		return 3
	case RoleSuperAgent:
		return 2
	case RoleAgent:
		return 1
	case RolePlayer:
		return 0
	default:
		return -1
	}
}

// Valid reports whether r is one of the four hierarchy roles.
func (r Role) Valid() bool {
	return r == RoleAdmin || r == RoleSuperAgent || r == RoleAgent || r == RolePlayer
}

// ChildRole returns the role exactly one tier below r. Players have no
// children, so ChildRole returns "" for RolePlayer and unknown roles.
func (r Role) ChildRole() Role {
	switch r {
	case RoleAdmin:
		return RoleSuperAgent
	case RoleSuperAgent:
		return RoleAgent
	case RoleAgent:
		return RolePlayer
	default:
		return ""
	}
}

// Balances is the 3-column balance model (integer cents, numeric(15,0)).
// Coins is the promotional/site-credit pot, Balance the spendable wallet,
// Exposure the stake committed to open rounds.
type Balances struct {
	Coins    int64 `json:"coins"`
	Balance  int64 `json:"balance"`
	Exposure int64 `json:"exposure"`
}

// User is a node in the agent hierarchy. ParentID is nil only for root
// admins; for everyone else it references a strictly more privileged user.
// Role is fixed at creation. Users are never hard-deleted.
type User struct {
	ID       uuid.UUID  `json:"id"`
	ParentID *uuid.UUID `json:"parent_id,omitempty"`
	Role     Role       `json:"role"`
	Balances
	CommissionRate int64      `json:"commission_rate"` // percent, applied to stakes and winnings
	BlockingLevel  BlockLevel `json:"blocking_level"`
	Currency       string     `json:"currency"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
}

// AuthUser holds login credentials from auth_users. The row shares its ID
// with the users row it authenticates.
type AuthUser struct {
	ID           uuid.UUID `json:"id"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}
