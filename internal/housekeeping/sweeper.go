package housekeeping

import (
	"time"

	"github.com/robfig/cron/v3"

	"leadscraper/internal/core/scrape"
	"leadscraper/internal/logger"
)

// Sweeper evicts finished jobs from the store once they have aged past
// the retention window, so a long-lived process does not accumulate
// every job ever run.
type Sweeper struct {
	store     *scrape.Store
	retention time.Duration
	cron      *cron.Cron
	log       *logger.Logger
}

func NewSweeper(store *scrape.Store, retention time.Duration) *Sweeper {
	return &Sweeper{
		store:     store,
		retention: retention,
		cron:      cron.New(),
		log:       logger.New("Housekeeping"),
	}
}

func (s *Sweeper) Start() error {
	if _, err := s.cron.AddFunc("@every 5m", s.sweep); err != nil {
		return err
	}
	s.cron.Start()
	s.log.LogInfof("job sweeper running, retention %s", s.retention)
	return nil
}

func (s *Sweeper) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
}

func (s *Sweeper) sweep() {
	if n := s.store.Sweep(s.retention, time.Now()); n > 0 {
		s.log.LogInfof("evicted %d expired jobs", n)
	}
}
