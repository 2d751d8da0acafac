package email

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/orris-inc/subflow/internal/shared/config"
	"github.com/orris-inc/subflow/internal/shared/logger"
)

func testMessage() Message {
	return Message{
		To:       "ada@example.com",
		ToName:   "Ada",
		Subject:  "Hello",
		TextBody: "plain",
		HTMLBody: "<p>html</p>",
		Tag:      "welcome",
	}
}

func TestMessage_Validate(t *testing.T) {
	assert.NoError(t, testMessage().Validate())

	m := testMessage()
	m.To = ""
	assert.ErrorIs(t, m.Validate(), ErrInvalidMessage)

	m = testMessage()
	m.Subject = ""
	assert.ErrorIs(t, m.Validate(), ErrInvalidMessage)

	m = testMessage()
	m.TextBody, m.HTMLBody = "", ""
	assert.ErrorIs(t, m.Validate(), ErrInvalidMessage)
}

func TestNewSender(t *testing.T) {
	log := logger.NewNopLogger()

	s, err := NewSender(config.EmailConfig{Provider: "log", FromAddress: "noreply@example.com"}, log)
	require.NoError(t, err)
	assert.Equal(t, "log", s.Name())

	s, err = NewSender(config.EmailConfig{
		Provider:    "smtp",
		FromAddress: "noreply@example.com",
		SMTP:        config.SMTPConfig{Host: "localhost", Port: 1025},
	}, log)
	require.NoError(t, err)
	assert.Equal(t, "smtp", s.Name())

	_, err = NewSender(config.EmailConfig{Provider: "smtp", FromAddress: "noreply@example.com"}, log)
	assert.ErrorIs(t, err, ErrInvalidConfig)

	_, err = NewSender(config.EmailConfig{Provider: "postmark", FromAddress: "noreply@example.com"}, log)
	assert.ErrorIs(t, err, ErrInvalidConfig)

	s, err = NewSender(config.EmailConfig{
		Provider:    "postmark",
		FromAddress: "noreply@example.com",
		Postmark:    config.PostmarkConfig{ServerToken: "server", AccountToken: "account"},
	}, log)
	require.NoError(t, err)
	assert.Equal(t, "postmark", s.Name())

	_, err = NewSender(config.EmailConfig{Provider: "carrier-pigeon"}, log)
	assert.ErrorIs(t, err, ErrInvalidConfig)
}

func TestLogSender_Send(t *testing.T) {
	s := NewLogSender(logger.NewNopLogger())

	id, err := s.Send(context.Background(), testMessage())
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(id, "log-"))

	_, err = s.Send(context.Background(), Message{})
	assert.ErrorIs(t, err, ErrInvalidMessage)
}

func TestSMTPSender_BuildMessage(t *testing.T) {
	s := NewSMTPSender(SMTPConfig{
		Host:        "localhost",
		Port:        1025,
		FromAddress: "noreply@example.com",
		FromName:    "Subflow",
	})

	m, id := s.buildMessage(testMessage())
	assert.True(t, strings.HasSuffix(id, "@example.com>"))
	assert.Equal(t, []string{id}, m.GetHeader("Message-ID"))
	assert.Equal(t, []string{"Hello"}, m.GetHeader("Subject"))
	assert.Equal(t, []string{"welcome"}, m.GetHeader("X-Subflow-Tag"))

	var buf bytes.Buffer
	_, err := m.WriteTo(&buf)
	require.NoError(t, err)
	assert.Contains(t, buf.String(), "text/plain")
	assert.Contains(t, buf.String(), "text/html")
}

func TestSMTPSender_CanceledContext(t *testing.T) {
	s := NewSMTPSender(SMTPConfig{Host: "localhost", Port: 1025, FromAddress: "noreply@example.com"})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := s.Send(ctx, testMessage())
	assert.ErrorIs(t, err, context.Canceled)
}

func TestPostmarkSender_Send(t *testing.T) {
	var received map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "server-token", r.Header.Get("X-Postmark-Server-Token"))
		body, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(body, &received)

		w.Header().Set("Content-Type", "application/json")
		if received["Tag"] == "reject" {
			_, _ = w.Write([]byte(`{"ErrorCode":406,"Message":"Inactive recipient"}`))
			return
		}
		_, _ = w.Write([]byte(`{"To":"ada@example.com","MessageID":"pm-123","ErrorCode":0,"Message":"OK"}`))
	}))
	defer server.Close()

	s, err := NewPostmarkSender("server-token", "account-token", "noreply@example.com", "Subflow")
	require.NoError(t, err)
	s.client.BaseURL = server.URL

	id, err := s.Send(context.Background(), testMessage())
	require.NoError(t, err)
	assert.Equal(t, "pm-123", id)
	assert.Equal(t, "Hello", received["Subject"])
	assert.Equal(t, "plain", received["TextBody"])

	msg := testMessage()
	msg.Tag = "reject"
	_, err = s.Send(context.Background(), msg)
	assert.ErrorIs(t, err, ErrSendFailed)
}
