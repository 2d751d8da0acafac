package notification

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	vo "github.com/orris-inc/subflow/internal/domain/notification/valueobjects"
)

func newEmail(t *testing.T) *Notification {
	t.Helper()
	n, err := NewNotification(1, vo.KindPaymentFailed, vo.ChannelEmail,
		&RelatedEntity{Type: RelatedSubscription, ID: 9}, map[string]any{"amount": "19.99"})
	require.NoError(t, err)
	return n
}

func TestNewNotification(t *testing.T) {
	n := newEmail(t)
	assert.Equal(t, vo.StatusPending, n.Status())
	assert.Zero(t, n.RetryCount())
	assert.True(t, strings.HasPrefix(n.SID(), "ntf_"))
	assert.Equal(t, RelatedSubscription, n.Related().Type)

	_, err := NewNotification(1, vo.Kind("newsletter"), vo.ChannelEmail, nil, nil)
	assert.ErrorIs(t, err, ErrInvalidKind)

	_, err = NewNotification(1, vo.KindWelcome, vo.Channel("sms"), nil, nil)
	assert.ErrorIs(t, err, ErrInvalidChannel)
}

func TestNotification_Attempts(t *testing.T) {
	n := newEmail(t)

	require.NoError(t, n.MarkFailed("smtp: connection refused"))
	assert.Equal(t, vo.StatusFailed, n.Status())
	assert.Equal(t, 1, n.RetryCount())
	require.NotNil(t, n.LastError())

	require.NoError(t, n.MarkFailed(strings.Repeat("x", 5000)))
	assert.Equal(t, 2, n.RetryCount())
	assert.Len(t, *n.LastError(), maxErrorLength)

	require.NoError(t, n.MarkSent("msg-123"))
	assert.Equal(t, vo.StatusSent, n.Status())
	assert.Nil(t, n.LastError())
	require.NotNil(t, n.ProviderMessageID())
	assert.Equal(t, "msg-123", *n.ProviderMessageID())
	assert.NotNil(t, n.SentAt())

	assert.ErrorIs(t, n.MarkSent("msg-124"), ErrAlreadyDelivered)
	assert.ErrorIs(t, n.MarkFailed("late"), ErrAlreadyDelivered)
}

func TestNotification_InAppDelivered(t *testing.T) {
	n, err := NewNotification(1, vo.KindTrialEnding, vo.ChannelInApp, nil, nil)
	require.NoError(t, err)
	require.NoError(t, n.MarkDelivered())
	assert.Equal(t, vo.StatusDelivered, n.Status())
	assert.NotNil(t, n.SentAt())
	assert.NotNil(t, n.Context())
}
