package notification

import "errors"

var (
	ErrNotificationNotFound = errors.New("notification not found")
	ErrAlreadyDelivered     = errors.New("notification already sent")
	ErrInvalidKind          = errors.New("invalid notification kind")
	ErrInvalidChannel       = errors.New("invalid notification channel")
)
