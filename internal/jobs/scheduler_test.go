package jobs

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSweepDirRemovesOnlyStaleFiles(t *testing.T) {
	dir := t.TempDir()
	now := time.Now()

	stale := filepath.Join(dir, "upload-stale")
	fresh := filepath.Join(dir, "upload-fresh")
	require.NoError(t, os.WriteFile(stale, []byte("x"), 0o600))
	require.NoError(t, os.WriteFile(fresh, []byte("x"), 0o600))
	require.NoError(t, os.Chtimes(stale, now.Add(-2*time.Hour), now.Add(-2*time.Hour)))
	require.NoError(t, os.Mkdir(filepath.Join(dir, "nested"), 0o755))

	removed, err := SweepDir(dir, time.Hour, now)
	require.NoError(t, err)
	assert.Equal(t, 1, removed)

	_, err = os.Stat(stale)
	assert.True(t, os.IsNotExist(err))
	_, err = os.Stat(fresh)
	assert.NoError(t, err)
	_, err = os.Stat(filepath.Join(dir, "nested"))
	assert.NoError(t, err)
}

func TestSweepDirMissingDir(t *testing.T) {
	removed, err := SweepDir(filepath.Join(t.TempDir(), "absent"), time.Hour, time.Now())
	require.NoError(t, err)
	assert.Zero(t, removed)
}

func TestSchedulerRejectsBadSchedule(t *testing.T) {
	s := NewScheduler(t.TempDir(), time.Hour, "not a cron spec", zerolog.Nop())
	assert.Error(t, s.Start())
}

func TestSchedulerStartStop(t *testing.T) {
	s := NewScheduler(t.TempDir(), time.Hour, "0 */30 * * * *", zerolog.Nop())
	require.NoError(t, s.Start())

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	s.Stop(ctx)
}
