package scheduler

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakePurger struct{ n int }

func (f *fakePurger) Purge(context.Context) (int, error) { return f.n, nil }

type fakePruner struct {
	cutoff time.Time
	calls  int
}

func (f *fakePruner) PruneReadNotifications(_ context.Context, cutoff time.Time) (int, error) {
	f.calls++
	f.cutoff = cutoff
	return 4, nil
}

func TestPurgeOTPs(t *testing.T) {
	n, err := PurgeOTPs(&fakePurger{n: 3})(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, n)
}

func TestPruneNotifications(t *testing.T) {
	now := time.Date(2024, 6, 30, 0, 0, 0, 0, time.UTC)
	clock := func() time.Time { return now }

	p := &fakePruner{}
	n, err := PruneNotifications(p, 90*24*time.Hour, clock)(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 4, n)
	assert.Equal(t, now.AddDate(0, 0, -90), p.cutoff)

	disabled := &fakePruner{}
	n, err = PruneNotifications(disabled, 0, clock)(context.Background())
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.Zero(t, disabled.calls)
}

func TestScheduler_RunsJobs(t *testing.T) {
	s := New(zerolog.Nop())

	ran := make(chan struct{}, 10)
	require.NoError(t, s.Add("tick", "@every 1s", func(context.Context) (int, error) {
		ran <- struct{}{}
		return 1, nil
	}))
	require.NoError(t, s.Add("broken", "@every 1s", func(context.Context) (int, error) {
		return 0, errors.New("boom")
	}))
	require.NoError(t, s.Add("panics", "@every 1s", func(context.Context) (int, error) {
		panic("job panic")
	}))

	s.Start()
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		s.Stop(ctx)
	}()

	select {
	case <-ran:
	case <-time.After(3 * time.Second):
		t.Fatal("job did not run")
	}
}

func TestScheduler_BadSpec(t *testing.T) {
	s := New(zerolog.Nop())
	assert.Error(t, s.Add("bad", "every now and then", func(context.Context) (int, error) { return 0, nil }))
}
