package subscription

import (
	"fmt"
	"time"

	vo "github.com/orris-inc/subflow/internal/domain/subscription/valueobjects"
	"github.com/orris-inc/subflow/internal/shared/id"
)

// PaymentMethod is the card snapshot shown to the user; it is informational only.
type PaymentMethod struct {
	Brand    string
	Last4    string
	ExpMonth int
	ExpYear  int
}

// Subscription represents the subscription aggregate root
type Subscription struct {
	id                     uint
	sid                    string
	userID                 uint
	planID                 uint
	providerSubscriptionID string
	providerCustomerID     string
	status                 vo.SubscriptionStatus
	currentPeriodStart     time.Time
	currentPeriodEnd       time.Time
	trialStart             *time.Time
	trialEnd               *time.Time
	cancelAtPeriodEnd      bool
	canceledAt             *time.Time
	cancelReason           *string
	paymentMethod          *PaymentMethod
	prorationCredit        *int64
	renewalRemindedFor     *time.Time
	trialRemindedFor       *time.Time
	archivedAt             *time.Time
	version                int
	createdAt              time.Time
	updatedAt              time.Time
}

// NewSubscriptionParams carries what the checkout flow knows when it creates the row.
type NewSubscriptionParams struct {
	UserID                 uint
	PlanID                 uint
	ProviderSubscriptionID string
	ProviderCustomerID     string
	Status                 vo.SubscriptionStatus
	CurrentPeriodStart     time.Time
	CurrentPeriodEnd       time.Time
	TrialStart             *time.Time
	TrialEnd               *time.Time
	CancelAtPeriodEnd      bool
}

// NewSubscription creates a new subscription in trialing or active status
func NewSubscription(p NewSubscriptionParams) (*Subscription, error) {
	if p.UserID == 0 {
		return nil, fmt.Errorf("user ID is required")
	}
	if p.PlanID == 0 {
		return nil, fmt.Errorf("plan ID is required")
	}
	if p.ProviderSubscriptionID == "" {
		return nil, fmt.Errorf("provider subscription ID is required")
	}
	if p.Status != vo.StatusTrialing && p.Status != vo.StatusActive {
		return nil, ErrInvalidTransition("none", p.Status.String())
	}
	if p.CurrentPeriodEnd.Before(p.CurrentPeriodStart) {
		return nil, fmt.Errorf("%w: end %s before start %s", ErrInvalidPeriod, p.CurrentPeriodEnd, p.CurrentPeriodStart)
	}

	sid, err := id.NewSubscriptionSID()
	if err != nil {
		return nil, fmt.Errorf("failed to generate subscription SID: %w", err)
	}

	now := time.Now().UTC()
	return &Subscription{
		sid:                    sid,
		userID:                 p.UserID,
		planID:                 p.PlanID,
		providerSubscriptionID: p.ProviderSubscriptionID,
		providerCustomerID:     p.ProviderCustomerID,
		status:                 p.Status,
		currentPeriodStart:     p.CurrentPeriodStart,
		currentPeriodEnd:       p.CurrentPeriodEnd,
		trialStart:             p.TrialStart,
		trialEnd:               p.TrialEnd,
		cancelAtPeriodEnd:      p.CancelAtPeriodEnd,
		version:                1,
		createdAt:              now,
		updatedAt:              now,
	}, nil
}

// ReconstructParams mirrors every persisted column of a subscription.
type ReconstructParams struct {
	ID                     uint
	SID                    string
	UserID                 uint
	PlanID                 uint
	ProviderSubscriptionID string
	ProviderCustomerID     string
	Status                 vo.SubscriptionStatus
	CurrentPeriodStart     time.Time
	CurrentPeriodEnd       time.Time
	TrialStart             *time.Time
	TrialEnd               *time.Time
	CancelAtPeriodEnd      bool
	CanceledAt             *time.Time
	CancelReason           *string
	PaymentMethod          *PaymentMethod
	ProrationCredit        *int64
	RenewalRemindedFor     *time.Time
	TrialRemindedFor       *time.Time
	ArchivedAt             *time.Time
	Version                int
	CreatedAt              time.Time
	UpdatedAt              time.Time
}

// ReconstructSubscription reconstructs a subscription from persistence
func ReconstructSubscription(p ReconstructParams) (*Subscription, error) {
	if p.ID == 0 {
		return nil, fmt.Errorf("subscription ID cannot be zero")
	}
	if p.UserID == 0 {
		return nil, fmt.Errorf("user ID is required")
	}
	if !vo.ValidStatuses[p.Status] {
		return nil, fmt.Errorf("invalid subscription status: %s", p.Status)
	}

	return &Subscription{
		id:                     p.ID,
		sid:                    p.SID,
		userID:                 p.UserID,
		planID:                 p.PlanID,
		providerSubscriptionID: p.ProviderSubscriptionID,
		providerCustomerID:     p.ProviderCustomerID,
		status:                 p.Status,
		currentPeriodStart:     p.CurrentPeriodStart,
		currentPeriodEnd:       p.CurrentPeriodEnd,
		trialStart:             p.TrialStart,
		trialEnd:               p.TrialEnd,
		cancelAtPeriodEnd:      p.CancelAtPeriodEnd,
		canceledAt:             p.CanceledAt,
		cancelReason:           p.CancelReason,
		paymentMethod:          p.PaymentMethod,
		prorationCredit:        p.ProrationCredit,
		renewalRemindedFor:     p.RenewalRemindedFor,
		trialRemindedFor:       p.TrialRemindedFor,
		archivedAt:             p.ArchivedAt,
		version:                p.Version,
		createdAt:              p.CreatedAt,
		updatedAt:              p.UpdatedAt,
	}, nil
}

func (s *Subscription) ID() uint {
	return s.id
}

func (s *Subscription) SID() string {
	return s.sid
}

func (s *Subscription) UserID() uint {
	return s.userID
}

func (s *Subscription) PlanID() uint {
	return s.planID
}

func (s *Subscription) ProviderSubscriptionID() string {
	return s.providerSubscriptionID
}

func (s *Subscription) ProviderCustomerID() string {
	return s.providerCustomerID
}

func (s *Subscription) Status() vo.SubscriptionStatus {
	return s.status
}

func (s *Subscription) CurrentPeriodStart() time.Time {
	return s.currentPeriodStart
}

func (s *Subscription) CurrentPeriodEnd() time.Time {
	return s.currentPeriodEnd
}

func (s *Subscription) TrialStart() *time.Time {
	return s.trialStart
}

func (s *Subscription) TrialEnd() *time.Time {
	return s.trialEnd
}

func (s *Subscription) CancelAtPeriodEnd() bool {
	return s.cancelAtPeriodEnd
}

func (s *Subscription) CanceledAt() *time.Time {
	return s.canceledAt
}

func (s *Subscription) CancelReason() *string {
	return s.cancelReason
}

func (s *Subscription) PaymentMethod() *PaymentMethod {
	return s.paymentMethod
}

func (s *Subscription) ProrationCredit() *int64 {
	return s.prorationCredit
}

func (s *Subscription) RenewalRemindedFor() *time.Time {
	return s.renewalRemindedFor
}

func (s *Subscription) TrialRemindedFor() *time.Time {
	return s.trialRemindedFor
}

func (s *Subscription) ArchivedAt() *time.Time {
	return s.archivedAt
}

func (s *Subscription) Version() int {
	return s.version
}

func (s *Subscription) CreatedAt() time.Time {
	return s.createdAt
}

func (s *Subscription) UpdatedAt() time.Time {
	return s.updatedAt
}

func (s *Subscription) IsArchived() bool {
	return s.archivedAt != nil
}

func (s *Subscription) Snapshot() State {
	return s.state()
}

func (s *Subscription) state() State {
	return State{
		Exists:            true,
		Status:            s.status,
		CancelAtPeriodEnd: s.cancelAtPeriodEnd,
		CurrentPeriodEnd:  s.currentPeriodEnd,
	}
}

// SetID sets the subscription ID after persistence
func (s *Subscription) SetID(id uint) error {
	if s.id != 0 {
		return fmt.Errorf("subscription ID is already set")
	}
	if id == 0 {
		return fmt.Errorf("subscription ID cannot be zero")
	}
	s.id = id
	return nil
}

// IncrementVersion is called by the repository after an optimistic update succeeds.
func (s *Subscription) IncrementVersion() {
	s.version++
}

// Apply runs the lifecycle state machine for fact and mutates the status when
// the decision changes it.
func (s *Subscription) Apply(fact Fact, now time.Time) (Decision, error) {
	decision, err := Decide(s.state(), fact)
	if err != nil {
		return Decision{}, err
	}
	if !decision.Changed {
		return decision, nil
	}

	s.status = decision.Next
	if decision.Next == vo.StatusCanceled && s.canceledAt == nil {
		canceledAt := now
		s.canceledAt = &canceledAt
	}
	s.updatedAt = now
	return decision, nil
}

// SyncPeriod copies the billing period reported by the provider. The local
// period end is never derived; a zero end means the provider did not send one.
func (s *Subscription) SyncPeriod(start, end time.Time) error {
	if end.IsZero() {
		return nil
	}
	if !start.IsZero() && end.Before(start) {
		return fmt.Errorf("%w: end %s before start %s", ErrInvalidPeriod, end, start)
	}
	if !start.IsZero() {
		s.currentPeriodStart = start
	}
	s.currentPeriodEnd = end
	s.updatedAt = time.Now().UTC()
	return nil
}

// SyncTrial copies the provider's trial window.
func (s *Subscription) SyncTrial(start, end *time.Time) {
	s.trialStart = start
	s.trialEnd = end
	s.updatedAt = time.Now().UTC()
}

// SetCancelAtPeriodEnd records the provider's cancellation flag. Clearing the
// flag also clears the recorded reason.
func (s *Subscription) SetCancelAtPeriodEnd(cancel bool, reason *string) {
	s.cancelAtPeriodEnd = cancel
	if cancel {
		if reason != nil {
			s.cancelReason = reason
		}
	} else {
		s.cancelReason = nil
	}
	s.updatedAt = time.Now().UTC()
}

// SetCanceledAt keeps the provider's cancellation timestamp when it reports one.
func (s *Subscription) SetCanceledAt(t *time.Time) {
	if t == nil {
		return
	}
	s.canceledAt = t
	s.updatedAt = time.Now().UTC()
}

func (s *Subscription) UpdatePaymentMethod(pm *PaymentMethod) {
	if pm == nil {
		return
	}
	s.paymentMethod = pm
	s.updatedAt = time.Now().UTC()
}

func (s *Subscription) SetProrationCredit(amount *int64) {
	s.prorationCredit = amount
	s.updatedAt = time.Now().UTC()
}

// ChangePlan moves the subscription to a different catalog plan after a provider-side price change.
func (s *Subscription) ChangePlan(planID uint) error {
	if planID == 0 {
		return fmt.Errorf("plan ID is required")
	}
	s.planID = planID
	s.updatedAt = time.Now().UTC()
	return nil
}

// NeedsRenewalReminder reports whether no reminder was sent for the current period end yet.
func (s *Subscription) NeedsRenewalReminder() bool {
	return s.renewalRemindedFor == nil || !s.renewalRemindedFor.Equal(s.currentPeriodEnd)
}

func (s *Subscription) MarkRenewalReminded() {
	end := s.currentPeriodEnd
	s.renewalRemindedFor = &end
	s.updatedAt = time.Now().UTC()
}

// NeedsTrialReminder reports whether the trial end was not announced yet.
func (s *Subscription) NeedsTrialReminder() bool {
	if s.trialEnd == nil {
		return false
	}
	return s.trialRemindedFor == nil || !s.trialRemindedFor.Equal(*s.trialEnd)
}

func (s *Subscription) MarkTrialReminded() {
	if s.trialEnd == nil {
		return
	}
	end := *s.trialEnd
	s.trialRemindedFor = &end
	s.updatedAt = time.Now().UTC()
}

// Archive flags a terminal subscription as handled by cleanup. Rows are never deleted.
func (s *Subscription) Archive(now time.Time) error {
	if !s.status.IsTerminal() {
		return fmt.Errorf("cannot archive subscription in %s status", s.status)
	}
	if s.archivedAt != nil {
		return nil
	}
	s.archivedAt = &now
	s.updatedAt = now
	return nil
}
