package enums

import "fmt"

// NotificationType maps to the notification_type_enum in Postgres.
type NotificationType string

const (
	NotificationTypeTender     NotificationType = "tender"
	NotificationTypeSettlement NotificationType = "settlement"
	NotificationTypeWallet     NotificationType = "wallet"
)

var validNotificationTypes = []NotificationType{
	NotificationTypeTender,
	NotificationTypeSettlement,
	NotificationTypeWallet,
}

// IsValid reports whether the value is a known NotificationType.
func (t NotificationType) IsValid() bool {
	for _, v := range validNotificationTypes {
		if t == v {
			return true
		}
	}
	return false
}

// ParseNotificationType validates and converts a raw string.
func ParseNotificationType(raw string) (NotificationType, error) {
	t := NotificationType(raw)
	if !t.IsValid() {
		return "", fmt.Errorf("invalid notification type %q", raw)
	}
	return t, nil
}
