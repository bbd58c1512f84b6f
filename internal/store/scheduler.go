package store

import (
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
)

// Scheduler runs fn repeatedly until stopped.
type Scheduler interface {
	Start(interval time.Duration, fn func()) error
	Stop()
}

// CronScheduler runs the periodic refresh on a robfig/cron runner. A tick
// that fires while the previous one is still running is skipped.
type CronScheduler struct {
	mu   sync.Mutex
	cron *cron.Cron
	log  zerolog.Logger
}

// NewCronScheduler creates an idle scheduler.
func NewCronScheduler(log zerolog.Logger) *CronScheduler {
	return &CronScheduler{log: log}
}

// Start schedules fn every interval. Intervals below one second are rounded
// up to one second by cron.
func (s *CronScheduler) Start(interval time.Duration, fn func()) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cron != nil {
		return nil
	}

	logger := cronLogger{log: s.log}
	c := cron.New(
		cron.WithLogger(logger),
		cron.WithChain(cron.Recover(logger), cron.SkipIfStillRunning(logger)),
	)
	c.Schedule(cron.Every(interval), cron.FuncJob(fn))
	c.Start()
	s.cron = c

	s.log.Debug().Dur("interval", interval).Msg("Periodic refresh scheduled")
	return nil
}

// Stop stops future ticks. It does not wait for a running tick.
func (s *CronScheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cron == nil {
		return
	}
	s.cron.Stop()
	s.cron = nil
}

// cronLogger adapts zerolog to cron.Logger.
type cronLogger struct {
	log zerolog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.log.Debug().Fields(keysAndValues).Msg("cron: " + msg)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.log.Error().Err(err).Fields(keysAndValues).Msg("cron: " + msg)
}
