package job

// EmailPayload is the payload of every email job. The notification row
// holds the recipient and the template context.
type EmailPayload struct {
	NotificationID uint   `json:"notification_id"`
	Kind           string `json:"kind"`
}
