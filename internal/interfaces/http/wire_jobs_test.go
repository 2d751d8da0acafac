package http

import (
	"bytes"
	"context"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	notificationvo "github.com/orris-inc/subflow/internal/domain/notification/valueobjects"
	"github.com/orris-inc/subflow/internal/infrastructure/config"
	"github.com/orris-inc/subflow/internal/infrastructure/database/dbtest"
	"github.com/orris-inc/subflow/internal/infrastructure/repository"
	sharedConfig "github.com/orris-inc/subflow/internal/shared/config"
	"github.com/orris-inc/subflow/internal/shared/logger"
)

// lockedBuffer collects log output written from several goroutines.
type lockedBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *lockedBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *lockedBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

// unreachableRedis points at a port nothing listens on.
const unreachableRedis = 1

func testConfig() *config.Config {
	queue := sharedConfig.QueueSettings{MaxAttempts: 3, BackoffBase: time.Second, BackoffCap: time.Minute, Concurrency: 1}
	return &config.Config{
		Server: sharedConfig.ServerConfig{Host: "127.0.0.1", Port: 8080, Mode: gin.TestMode},
		Redis:  sharedConfig.RedisConfig{Host: "127.0.0.1", Port: unreachableRedis},
		Billing: sharedConfig.BillingConfig{
			WebhookSecret: "whsec_test",
		},
		Queue: sharedConfig.QueueConfig{
			Maintenance:  queue,
			Email:        queue,
			PollInterval: time.Second,
			LockDuration: time.Minute,
		},
		Jobs: sharedConfig.JobsConfig{
			Enabled:   true,
			BatchSize: 10,
			Cron: sharedConfig.CronConfig{
				CheckExpiry:      "0 * * * *",
				RenewalReminders: "0 9 * * *",
				TrialEnding:      "0 10 * * *",
				CleanupExpired:   "0 3 * * 0",
			},
		},
		Email: sharedConfig.EmailConfig{Provider: "log", FromAddress: "noreply@subflow.local"},
	}
}

func newTestContainer(t *testing.T, cfg *config.Config) (*Container, *lockedBuffer) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	out := &lockedBuffer{}
	log := logger.NewLoggerWithSlog(slog.New(slog.NewTextHandler(out, nil)))

	c, err := NewContainer(dbtest.Open(t), cfg, log)
	require.NoError(t, err)
	t.Cleanup(func() { c.Shutdown(context.Background()) })
	c.SetupRoutes()
	return c, out
}

func postWebhook(c *Container) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/webhooks/stripe", strings.NewReader(`{"id":"evt_1","type":"invoice.paid"}`))
	req.Header.Set("Stripe-Signature", "t=1,v1=forged")
	w := httptest.NewRecorder()
	c.GetEngine().ServeHTTP(w, req)
	return w
}

func TestStartJobs_RedisUnreachableKeepsServing(t *testing.T) {
	c, out := newTestContainer(t, testConfig())
	require.Nil(t, c.redis)

	assert.NotPanics(t, func() { c.StartJobs(context.Background()) })
	assert.False(t, c.JobsEnabled())
	assert.Contains(t, out.String(), "background jobs disabled")
	assert.Contains(t, out.String(), "redis unreachable")

	assert.Equal(t, http.StatusBadRequest, postWebhook(c).Code)
}

func TestStartJobs_StartupFailuresAreContained(t *testing.T) {
	tests := []struct {
		name  string
		setup func(c *Container)
	}{
		{
			name: "invalid cron expression",
			setup: func(c *Container) {
				c.cfg.Jobs.Cron.CleanupExpired = "every sunday"
			},
		},
		{
			name: "panic while registering handlers",
			setup: func(c *Container) {
				c.ucs = nil
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, out := newTestContainer(t, testConfig())

			// a client is enough to get past the reachability check
			c.redis = redis.NewClient(&redis.Options{Addr: c.cfg.Redis.GetAddr()})
			tt.setup(c)

			assert.NotPanics(t, func() { c.StartJobs(context.Background()) })
			assert.False(t, c.JobsEnabled())
			assert.Contains(t, out.String(), "background jobs disabled")
			assert.Nil(t, c.schedulerManager)

			assert.Equal(t, http.StatusBadRequest, postWebhook(c).Code)
		})
	}
}

func TestStartJobs_DisabledByConfig(t *testing.T) {
	cfg := testConfig()
	cfg.Jobs.Enabled = false
	c, out := newTestContainer(t, cfg)

	c.StartJobs(context.Background())
	assert.False(t, c.JobsEnabled())
	assert.Contains(t, out.String(), "jobs.enabled is false")
}

func TestContainer_SendNotification(t *testing.T) {
	c, _ := newTestContainer(t, testConfig())
	ctx := context.Background()

	users := repository.NewUserRepository(c.db, logger.NewNopLogger())
	userID, err := users.Create(ctx, "ada@example.com", "Ada")
	require.NoError(t, err)

	result := c.SendNotification(ctx, notificationvo.KindWelcome, userID, nil)
	require.NoError(t, result.Error)
	assert.True(t, result.Success)

	sent, err := c.repos.notifications.CountByStatus(ctx, notificationvo.KindWelcome, notificationvo.StatusSent)
	require.NoError(t, err)
	assert.Equal(t, int64(1), sent)

	missing := c.SendNotification(ctx, notificationvo.KindWelcome, userID+100, nil)
	assert.False(t, missing.Success)
	assert.Error(t, missing.Error)
}
