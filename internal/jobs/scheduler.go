package jobs

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
)

// Scheduler sweeps abandoned raw uploads out of the temp directory.
type Scheduler struct {
	cron     *cron.Cron
	log      zerolog.Logger
	tmpDir   string
	maxAge   time.Duration
	schedule string
}

func NewScheduler(tmpDir string, maxAge time.Duration, schedule string, log zerolog.Logger) *Scheduler {
	c := cron.New(cron.WithSeconds())
	return &Scheduler{
		cron:     c,
		log:      log,
		tmpDir:   tmpDir,
		maxAge:   maxAge,
		schedule: schedule,
	}
}

func (s *Scheduler) Start() error {
	if s.tmpDir == "" || s.maxAge <= 0 {
		return nil
	}
	if _, err := s.cron.AddFunc(s.schedule, s.sweep); err != nil {
		return err
	}
	s.cron.Start()
	return nil
}

// Stop waits for a running sweep until ctx expires.
func (s *Scheduler) Stop(ctx context.Context) {
	select {
	case <-s.cron.Stop().Done():
	case <-ctx.Done():
	}
}

func (s *Scheduler) sweep() {
	removed, err := SweepDir(s.tmpDir, s.maxAge, time.Now())
	if err != nil {
		s.log.Error().Err(err).Str("dir", s.tmpDir).Msg("temp upload sweep failed")
		return
	}
	if removed > 0 {
		s.log.Info().Int("removed", removed).Msg("stale temp uploads removed")
	}
}

// SweepDir removes regular files in dir last modified more than maxAge
// before now. Subdirectories are left alone.
func SweepDir(dir string, maxAge time.Duration, now time.Time) (int, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return 0, nil
		}
		return 0, err
	}

	removed := 0
	for _, entry := range entries {
		if !entry.Type().IsRegular() {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		if now.Sub(info.ModTime()) <= maxAge {
			continue
		}
		if err := os.Remove(filepath.Join(dir, entry.Name())); err == nil {
			removed++
		}
	}
	return removed, nil
}
