package jobs

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"fluxgallery/internal/repository"
)

// Scheduler runs the api process's periodic maintenance: purging expired
// gallery rows and trimming the generation stream so acknowledged jobs don't
// accumulate forever.
type Scheduler struct {
	cron   *cron.Cron
	images *repository.ImageRepository
	queue  *redis.Client
	stream string
	log    zerolog.Logger
}

func NewScheduler(images *repository.ImageRepository, queue *redis.Client, stream string, log zerolog.Logger) *Scheduler {
	c := cron.New(cron.WithSeconds())
	return &Scheduler{
		cron:   c,
		images: images,
		queue:  queue,
		stream: stream,
		log:    log,
	}
}

func (s *Scheduler) Start() error {
	if _, err := s.cron.AddFunc("0 0 0 * * *", s.purgeExpired); err != nil {
		return err
	}
	if _, err := s.cron.AddFunc("0 0 */1 * * *", s.trimStream); err != nil { // hourly
		return err
	}

	s.cron.Start()
	return nil
}

// Stop halts scheduling and waits for running jobs, up to a grace period.
func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	select {
	case <-ctx.Done():
	case <-time.After(5 * time.Second):
		s.log.Warn().Msg("scheduler jobs still running at shutdown")
	}
}

func (s *Scheduler) purgeExpired() {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	purged, err := s.images.PurgeExpired(ctx)
	if err != nil {
		s.log.Error().Err(err).Msg("purge expired images failed")
		return
	}
	if purged > 0 {
		s.log.Info().Int64("count", purged).Msg("expired gallery images purged")
	}
}

func (s *Scheduler) trimStream() {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := s.queue.XTrimMaxLenApprox(ctx, s.stream, 10000, 0).Err(); err != nil {
		s.log.Error().Err(err).Msg("trim generation stream failed")
	}
}
