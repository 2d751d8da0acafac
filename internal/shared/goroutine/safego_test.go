package goroutine

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/orris-inc/subflow/internal/shared/logger"
)

func TestSafeGo_SurvivesPanic(t *testing.T) {
	var wg sync.WaitGroup
	wg.Add(1)

	SafeGo(logger.NewNopLogger(), "panicker", func() {
		defer wg.Done()
		panic("boom")
	})
	wg.Wait()

	ran := make(chan struct{})
	SafeGo(logger.NewNopLogger(), "next", func() { close(ran) })
	<-ran
}

func TestRecover_NoPanic(t *testing.T) {
	assert.NotPanics(t, func() {
		defer Recover(logger.NewNopLogger(), "quiet")
	})
}
