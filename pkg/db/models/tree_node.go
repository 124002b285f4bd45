package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/binarycomp-backend/pkg/enums"
)

// TreeNode is the denormalized binary structure keyed by member id.
// Side is nil only for the root.
type TreeNode struct {
	ID        uuid.UUID          `gorm:"column:id;type:uuid;primaryKey"`
	ParentID  *uuid.UUID         `gorm:"column:parent_id;type:uuid"`
	Side      *enums.Side        `gorm:"column:side;type:tree_side"`
	LeftID    *uuid.UUID         `gorm:"column:left_id;type:uuid"`
	RightID   *uuid.UUID         `gorm:"column:right_id;type:uuid"`
	Status    enums.MemberStatus `gorm:"column:status;type:member_status;not null"`
	CreatedAt time.Time          `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time          `gorm:"column:updated_at;autoUpdateTime"`
}

// Child returns the pointer stored in the given slot.
func (n TreeNode) Child(side enums.Side) *uuid.UUID {
	if side == enums.SideLeft {
		return n.LeftID
	}
	return n.RightID
}
