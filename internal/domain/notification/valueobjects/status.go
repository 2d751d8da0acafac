package valueobjects

type Status string

const (
	StatusPending   Status = "pending"
	StatusSent      Status = "sent"
	StatusDelivered Status = "delivered"
	StatusFailed    Status = "failed"
)

func (s Status) String() string {
	return string(s)
}

func (s Status) IsValid() bool {
	switch s {
	case StatusPending, StatusSent, StatusDelivered, StatusFailed:
		return true
	default:
		return false
	}
}

// CanAttempt reports whether another delivery attempt may be recorded.
func (s Status) CanAttempt() bool {
	return s == StatusPending || s == StatusFailed
}
