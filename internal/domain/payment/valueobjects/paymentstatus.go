package valueobjects

type PaymentStatus string

const (
	PaymentStatusPending   PaymentStatus = "pending"
	PaymentStatusSucceeded PaymentStatus = "succeeded"
	PaymentStatusFailed    PaymentStatus = "failed"
	PaymentStatusRefunded  PaymentStatus = "refunded"
	PaymentStatusDisputed  PaymentStatus = "disputed"
)

func (s PaymentStatus) IsValid() bool {
	switch s {
	case PaymentStatusPending, PaymentStatusSucceeded, PaymentStatusFailed, PaymentStatusRefunded, PaymentStatusDisputed:
		return true
	default:
		return false
	}
}

// IsSettled reports whether money moved for this payment at some point.
func (s PaymentStatus) IsSettled() bool {
	return s == PaymentStatusSucceeded || s == PaymentStatusRefunded || s == PaymentStatusDisputed
}

func (s PaymentStatus) String() string {
	return string(s)
}
