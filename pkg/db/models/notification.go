package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/binarycomp-backend/pkg/enums"
)

// Notification stores a recorded notice. A nil MemberID addresses operators.
type Notification struct {
	ID        uuid.UUID              `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	MemberID  *uuid.UUID             `gorm:"type:uuid" json:"member_id,omitempty"`
	Type      enums.NotificationType `gorm:"type:notification_type;not null" json:"type"`
	Title     string                 `gorm:"type:text;not null" json:"title"`
	Message   string                 `gorm:"type:text;not null" json:"message"`
	ReadAt    *time.Time             `gorm:"type:timestamptz" json:"read_at,omitempty"`
	CreatedAt time.Time              `gorm:"column:created_at;autoCreateTime" json:"created_at"`
}
