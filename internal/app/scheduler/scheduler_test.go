package scheduler

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/robfig/cron/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/magabrotheeeer/union-portal/internal/config"
)

type JobsMock struct {
	mock.Mock
}

func (m *JobsMock) SweepLapsed(ctx context.Context) (int, error) {
	args := m.Called(ctx)
	return args.Int(0), args.Error(1)
}

func (m *JobsMock) RemindUpcoming(ctx context.Context) (int, error) {
	args := m.Called(ctx)
	return args.Int(0), args.Error(1)
}

func (m *JobsMock) ExpireStaleOrders(ctx context.Context) (int, error) {
	args := m.Called(ctx)
	return args.Int(0), args.Error(1)
}

func newNoopLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestSchedule(t *testing.T) {
	jobs := new(JobsMock)
	jobs.On("SweepLapsed", mock.Anything).Return(2, nil).Once()
	jobs.On("RemindUpcoming", mock.Anything).Return(5, nil).Once()
	jobs.On("ExpireStaleOrders", mock.Anything).Return(0, assert.AnError).Once()

	c := cron.New()
	err := Schedule(context.Background(), c, jobs, config.Scheduler{
		SweepSpec:  "@daily",
		RemindSpec: "0 9 * * *",
		ExpireSpec: "@hourly",
	}, newNoopLogger())
	require.NoError(t, err)

	entries := c.Entries()
	require.Len(t, entries, 3)
	for _, e := range entries {
		e.Job.Run()
	}
	jobs.AssertExpectations(t)
}

func TestSchedule_InvalidSpec(t *testing.T) {
	err := Schedule(context.Background(), cron.New(), new(JobsMock), config.Scheduler{
		SweepSpec:  "@daily",
		RemindSpec: "every morning",
		ExpireSpec: "@hourly",
	}, newNoopLogger())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "remind_upcoming")
}
