package scheduler

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

func TestTaskRunsImmediatelyAndOnInterval(t *testing.T) {
	s := New(nil)
	var runs int32
	s.AddTask("count", 10*time.Millisecond, func(context.Context) error {
		atomic.AddInt32(&runs, 1)
		return nil
	})

	s.Start(context.Background())
	assert.Eventually(t, func() bool { return atomic.LoadInt32(&runs) >= 3 }, time.Second, 5*time.Millisecond)
	s.Stop()

	after := atomic.LoadInt32(&runs)
	time.Sleep(30 * time.Millisecond)
	assert.Equal(t, after, atomic.LoadInt32(&runs), "no runs after Stop")
}

func TestFailingTaskKeepsRunning(t *testing.T) {
	s := New(nil)
	var runs int32
	s.AddTask("flaky", 5*time.Millisecond, func(context.Context) error {
		atomic.AddInt32(&runs, 1)
		return errors.New("database unavailable")
	})
	s.Start(context.Background())
	defer s.Stop()

	assert.Eventually(t, func() bool { return atomic.LoadInt32(&runs) >= 2 }, time.Second, 5*time.Millisecond)
}

func TestStartAndStopAreIdempotent(t *testing.T) {
	s := New(nil)
	var runs int32
	s.AddTask("once", time.Hour, func(context.Context) error {
		atomic.AddInt32(&runs, 1)
		return nil
	})
	s.AddTask("disabled", 0, func(context.Context) error {
		t.Error("task with zero interval must not run")
		return nil
	})

	s.Start(context.Background())
	s.Start(context.Background())
	assert.Eventually(t, func() bool { return atomic.LoadInt32(&runs) == 1 }, time.Second, 5*time.Millisecond)
	s.Stop()
	s.Stop()
	assert.Equal(t, int32(1), atomic.LoadInt32(&runs))
}

type expirerMock struct {
	mock.Mock
}

func (m *expirerMock) ExpireReservations(ctx context.Context, olderThan time.Duration) (int, error) {
	args := m.Called(ctx, olderThan)
	return args.Int(0), args.Error(1)
}

func TestExpireReservationsTask(t *testing.T) {
	e := new(expirerMock)
	e.On("ExpireReservations", mock.Anything, 30*time.Minute).Return(2, nil).Once()
	e.On("ExpireReservations", mock.Anything, 30*time.Minute).Return(0, errors.New("timeout")).Once()

	task := ExpireReservations(e, 30*time.Minute, nil)
	assert.NoError(t, task(context.Background()))
	assert.EqualError(t, task(context.Background()), "timeout")
	e.AssertExpectations(t)
}
