package enums

import "fmt"

// NotificationType tags a recorded notice.
type NotificationType string

const (
	NotificationTypeRankAchieved  NotificationType = "rank_achieved"
	NotificationTypeClubUpgraded  NotificationType = "club_upgraded"
	NotificationTypePayoutCreated NotificationType = "payout_created"
	NotificationTypePayoutBatch   NotificationType = "payout_batch"
	NotificationTypeSystem        NotificationType = "system"
)

var validNotificationTypes = []NotificationType{
	NotificationTypeRankAchieved,
	NotificationTypeClubUpgraded,
	NotificationTypePayoutCreated,
	NotificationTypePayoutBatch,
	NotificationTypeSystem,
}

// IsValid checks whether the given type matches the canonical enum.
func (n NotificationType) IsValid() bool {
	for _, candidate := range validNotificationTypes {
		if candidate == n {
			return true
		}
	}
	return false
}

// ParseNotificationType converts raw strings into NotificationType.
func ParseNotificationType(value string) (NotificationType, error) {
	for _, candidate := range validNotificationTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid notification type %q", value)
}
