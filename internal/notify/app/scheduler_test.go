package app

import (
	"context"
	"fmt"
	"testing"
	"time"
	_ "time/tzdata"

	"topli_chat/internal/chat/domain"
	notifydomain "topli_chat/internal/notify/domain"
	"topli_chat/pkg/config"
	"topli_chat/pkg/logger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func TestNextRun(t *testing.T) {
	kiev, err := time.LoadLocation(DefaultTimeZone)
	require.NoError(t, err)

	before := time.Date(2026, 3, 2, 8, 59, 0, 0, kiev)
	assert.Equal(t, time.Date(2026, 3, 2, 9, 0, 0, 0, kiev), NextRun(before, 9, 0, kiev))

	exact := time.Date(2026, 3, 2, 9, 0, 0, 0, kiev)
	assert.Equal(t, time.Date(2026, 3, 3, 9, 0, 0, 0, kiev), NextRun(exact, 9, 0, kiev))

	// given in UTC, scheduled in Kiev local time
	utc := time.Date(2026, 3, 2, 6, 30, 0, 0, time.UTC)
	assert.True(t, NextRun(utc, 9, 0, kiev).Equal(time.Date(2026, 3, 2, 9, 0, 0, 0, kiev)))
}

func TestNewScheduler_Invalid(t *testing.T) {
	_, err := NewScheduler(new(MockDigestRunner), config.DigestConfig{TimeZone: "Nowhere/City"})
	assert.Error(t, err)

	_, err = NewScheduler(new(MockDigestRunner), config.DigestConfig{Hour: 24})
	assert.ErrorIs(t, err, domain.ErrInvalidArgument)
}

func TestScheduler_RunsOnEachTick(t *testing.T) {
	logger.SetNewNop()

	runner := new(MockDigestRunner)
	runner.On("Run", mock.Anything).Return(&notifydomain.DigestReport{Sent: 1}, nil).Once()
	runner.On("Run", mock.Anything).Return(nil, fmt.Errorf("lock: %w", domain.ErrAlreadyExecuted)).Once()

	s, err := NewScheduler(runner, config.DigestConfig{Hour: 9})
	require.NoError(t, err)

	ticks := make(chan time.Time)
	var waits []time.Duration
	s.after = func(d time.Duration) <-chan time.Time {
		waits = append(waits, d)
		return ticks
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		s.Start(ctx)
		close(done)
	}()

	ticks <- time.Now()
	ticks <- time.Now()
	cancel()
	<-done

	runner.AssertNumberOfCalls(t, "Run", 2)
	for _, w := range waits {
		assert.LessOrEqual(t, w, 24*time.Hour)
	}
}
