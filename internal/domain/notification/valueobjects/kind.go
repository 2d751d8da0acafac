package valueobjects

import "fmt"

// Kind names an email template; it doubles as the email job type.
type Kind string

const (
	KindWelcome                  Kind = "welcome"
	KindPasswordReset            Kind = "password_reset"
	KindSubscriptionConfirmation Kind = "subscription_confirmation"
	KindPaymentFailed            Kind = "payment_failed"
	KindRenewalReminder          Kind = "renewal_reminder"
	KindTrialEnding              Kind = "trial_ending"
	KindSubscriptionCanceled     Kind = "subscription_canceled"
)

var validKinds = map[Kind]bool{
	KindWelcome:                  true,
	KindPasswordReset:            true,
	KindSubscriptionConfirmation: true,
	KindPaymentFailed:            true,
	KindRenewalReminder:          true,
	KindTrialEnding:              true,
	KindSubscriptionCanceled:     true,
}

func (k Kind) String() string {
	return string(k)
}

func (k Kind) IsValid() bool {
	return validKinds[k]
}

// AllKinds returns every template kind in a stable order.
func AllKinds() []Kind {
	return []Kind{
		KindWelcome,
		KindPasswordReset,
		KindSubscriptionConfirmation,
		KindPaymentFailed,
		KindRenewalReminder,
		KindTrialEnding,
		KindSubscriptionCanceled,
	}
}

func ParseKind(s string) (Kind, error) {
	k := Kind(s)
	if !k.IsValid() {
		return "", fmt.Errorf("invalid notification kind: %s", s)
	}
	return k, nil
}

type Channel string

const (
	ChannelEmail Channel = "email"
	ChannelInApp Channel = "in_app"
)

func (c Channel) IsValid() bool {
	return c == ChannelEmail || c == ChannelInApp
}

func (c Channel) String() string {
	return string(c)
}
