package domain

import (
	"time"

	"github.com/google/uuid"
)

// BlockLevel is the per-game (or per-user) restriction tier. Severity
// ordering is none < level_3 < level_2 < level_1: an agent block is the
// weakest, an admin block the strongest.
type BlockLevel string

const (
	BlockNone   BlockLevel = "none"
	BlockLevel1 BlockLevel = "level_1" // imposed by admin
	BlockLevel2 BlockLevel = "level_2" // imposed by super-agent
	BlockLevel3 BlockLevel = "level_3" // imposed by agent
)

// Severity returns the ordering rank of a block level.
func (l BlockLevel) Severity() int {
	switch l {
	case BlockLevel1:
		return 3
	case BlockLevel2:
		return 2
	case BlockLevel3:
		return 1
	default:
		return 0
	}
}

// BlockLevelForRole maps a blocking role to the level it imposes.
// Players may not block; callers must reject them before calling this.
func BlockLevelForRole(role Role) BlockLevel {
	switch role {
	case RoleAdmin:
		return BlockLevel1
	case RoleSuperAgent:
		return BlockLevel2
	case RoleAgent:
		return BlockLevel3
	default:
		return BlockNone
	}
}

// RoleForBlockLevel is the inverse of BlockLevelForRole. Used to recover
// the privilege tier of whoever imposed the current block.
func RoleForBlockLevel(level BlockLevel) Role {
	switch level {
	case BlockLevel1:
		return RoleAdmin
	case BlockLevel2:
		return RoleSuperAgent
	case BlockLevel3:
		return RoleAgent
	default:
		return ""
	}
}

// GameBlock is the per-game block state. BlockedBy holds every user who
// imposed a block since the last reset, in insertion order; the set is a
// uuid[] column, not a serialized blob.
type GameBlock struct {
	GameID    string      `json:"game_id"`
	Level     BlockLevel  `json:"level"`
	BlockedBy []uuid.UUID `json:"blocked_by"`
	UpdatedAt time.Time   `json:"updated_at"`
}

// Contains reports whether userID already appears in the blocker set.
func (g *GameBlock) Contains(userID uuid.UUID) bool {
	for _, id := range g.BlockedBy {
		if id == userID {
			return true
		}
	}
	return false
}
