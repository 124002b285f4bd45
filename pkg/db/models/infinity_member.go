package models

import (
	"time"

	"github.com/google/uuid"
)

// InfinityMember places MemberID on one level of OwnerID's infinity team.
type InfinityMember struct {
	ID        uuid.UUID `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	OwnerID   uuid.UUID `gorm:"column:owner_id;type:uuid;not null"`
	MemberID  uuid.UUID `gorm:"column:member_id;type:uuid;not null"`
	Level     int       `gorm:"column:level;not null"`
	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
}
