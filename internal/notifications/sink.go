package notifications

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/angelmondragon/binarycomp-backend/pkg/db/models"
	"github.com/angelmondragon/binarycomp-backend/pkg/enums"
	"github.com/angelmondragon/binarycomp-backend/pkg/logger"
)

// Notice is one message for a member, or for operators when MemberID is nil.
type Notice struct {
	MemberID *uuid.UUID
	Type     enums.NotificationType
	Title    string
	Message  string
}

// Sink records notices. Delivery happens elsewhere; a failed write is logged
// and never reaches the caller.
type Sink struct {
	repo Repository
	logg *logger.Logger
}

func NewSink(repo Repository, logg *logger.Logger) (*Sink, error) {
	if repo == nil {
		return nil, fmt.Errorf("notifications repository required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &Sink{repo: repo, logg: logg}, nil
}

func (s *Sink) Notify(ctx context.Context, notice Notice) {
	if !notice.Type.IsValid() {
		notice.Type = enums.NotificationTypeSystem
	}
	row := &models.Notification{
		ID:       uuid.New(),
		MemberID: notice.MemberID,
		Type:     notice.Type,
		Title:    notice.Title,
		Message:  notice.Message,
	}
	if err := s.repo.Create(ctx, row); err != nil {
		fields := map[string]any{"notification_type": string(notice.Type)}
		if notice.MemberID != nil {
			fields["member_id"] = notice.MemberID.String()
		}
		s.logg.Error(s.logg.WithFields(ctx, fields), "record notification failed", err)
	}
}
