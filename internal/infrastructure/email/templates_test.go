package email

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	vo "github.com/orris-inc/subflow/internal/domain/notification/valueobjects"
)

func TestRenderer_AllKinds(t *testing.T) {
	r, err := NewRenderer()
	require.NoError(t, err)

	for _, kind := range vo.AllKinds() {
		t.Run(kind.String(), func(t *testing.T) {
			msg, err := r.Render(kind, TemplateData{
				Name:    "Ada",
				Email:   "ada@example.com",
				BaseURL: "https://app.example.com",
			})
			require.NoError(t, err)
			assert.Equal(t, "ada@example.com", msg.To)
			assert.Equal(t, kind.String(), msg.Tag)
			assert.NotEmpty(t, msg.Subject)
			assert.NotContains(t, msg.Subject, "\n")
			assert.Contains(t, msg.TextBody, "Ada")
			assert.Contains(t, msg.HTMLBody, "<html>")
			assert.NotContains(t, msg.TextBody, "<no value>")
			assert.NoError(t, msg.Validate())
		})
	}
}

func TestRenderer_UsesContext(t *testing.T) {
	r, err := NewRenderer()
	require.NoError(t, err)

	msg, err := r.Render(vo.KindPaymentFailed, TemplateData{
		Email:   "bob@example.com",
		BaseURL: "https://app.example.com",
		Ctx: map[string]any{
			"amount":          "19.99 USD",
			"failure_message": "Your card was declined.",
			"invoice_url":     "https://pay.example.com/inv_1",
		},
	})
	require.NoError(t, err)
	assert.Contains(t, msg.TextBody, "Hi there")
	assert.Contains(t, msg.TextBody, "19.99 USD")
	assert.Contains(t, msg.TextBody, "Your card was declined.")
	assert.Contains(t, msg.TextBody, "https://pay.example.com/inv_1")
	assert.NotContains(t, msg.TextBody, "We will retry")
	assert.Contains(t, msg.HTMLBody, `href="https://pay.example.com/inv_1"`)

	msg, err = r.Render(vo.KindSubscriptionConfirmation, TemplateData{
		Email: "bob@example.com",
		Ctx:   map[string]any{"plan_name": "Pro <beta>"},
	})
	require.NoError(t, err)
	assert.Equal(t, "Your Pro <beta> subscription is confirmed", msg.Subject)
	assert.Contains(t, msg.HTMLBody, "Pro &lt;beta&gt;")
}

func TestRenderer_UnknownKind(t *testing.T) {
	r, err := NewRenderer()
	require.NoError(t, err)

	_, err = r.Render(vo.Kind("newsletter"), TemplateData{Email: "x@example.com"})
	assert.Error(t, err)
}
