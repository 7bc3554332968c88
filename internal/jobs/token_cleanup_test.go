package jobs

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

type fakeDeleter struct {
	cutoffs []time.Time
	purged  int64
	err     error
}

func (f *fakeDeleter) DeleteExpired(_ context.Context, before time.Time) (int64, error) {
	f.cutoffs = append(f.cutoffs, before)
	return f.purged, f.err
}

func TestReaperUsesTTLCutoff(t *testing.T) {
	deleter := &fakeDeleter{purged: 3}
	reaper := NewTokenReaper(deleter, 24*time.Hour, time.Hour)

	reaper.runOnce(context.Background())

	assert.Len(t, deleter.cutoffs, 1)
	want := time.Now().Add(-24 * time.Hour)
	assert.WithinDuration(t, want, deleter.cutoffs[0], time.Minute)
}

func TestReaperSurvivesErrors(t *testing.T) {
	deleter := &fakeDeleter{err: errors.New("db down")}
	reaper := NewTokenReaper(deleter, time.Hour, time.Hour)

	// Must not panic; the next tick simply tries again
	reaper.runOnce(context.Background())
	reaper.runOnce(context.Background())

	assert.Len(t, deleter.cutoffs, 2)
}
