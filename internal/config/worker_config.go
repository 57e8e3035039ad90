package config

import (
	"time"

	"github.com/spf13/viper"
)

// CleanupConfig drives the photo cleanup queue shared by the api (producer)
// and the worker (consumer), plus the temp upload sweeper.
type CleanupConfig struct {
	Stream        string
	Group         string
	Consumer      string
	ClaimInterval time.Duration
	TmpMaxAge     time.Duration
	SweepSchedule string
}

func setCleanupDefaults(v *viper.Viper) {
	v.SetDefault("cleanup.stream", "photos:cleanup")
	v.SetDefault("cleanup.group", "photo-cleaners")
	v.SetDefault("cleanup.consumer", "worker-1")
	v.SetDefault("cleanup.claiminterval", "30s")
	v.SetDefault("cleanup.tmpmaxage", "1h")
	v.SetDefault("cleanup.sweepschedule", "0 */30 * * * *")
}
