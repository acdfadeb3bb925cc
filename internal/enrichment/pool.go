package enrichment

import (
	"context"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Lookups is satisfied by *Client.
type Lookups interface {
	GeoLookup(ctx context.Context, ip string) GeoInfo
	HolidayLookup(ctx context.Context, countryCode string, date time.Time) HolidayList
}

// MetaDataStore is satisfied by *repo.MetaDataRepo.
type MetaDataStore interface {
	SetGeoData(ctx context.Context, userID int64, geo []byte) error
	SetPublicHolidays(ctx context.Context, userID int64, holidays []byte) error
}

type job struct {
	userID   int64
	ip       string
	signupAt time.Time
}

// Pool runs enrichment jobs on a fixed set of workers fed by a bounded queue.
type Pool struct {
	lookups Lookups
	store   MetaDataStore
	workers int
	queue   chan job
	now     func() time.Time
	logger  *zap.SugaredLogger
}

func NewPool(cfg Config, lookups Lookups, store MetaDataStore, logger *zap.SugaredLogger) *Pool {
	workers, size := cfg.Workers, cfg.QueueSize
	if workers < 1 {
		workers = 1
	}
	if size < 1 {
		size = 1
	}
	return &Pool{
		lookups: lookups,
		store:   store,
		workers: workers,
		queue:   make(chan job, size),
		now:     time.Now,
		logger:  logger,
	}
}

// Schedule queues enrichment of a freshly created user. It never blocks; a
// full queue drops the job and reports false.
func (p *Pool) Schedule(userID int64, ip string) bool {
	select {
	case p.queue <- job{userID: userID, ip: ip, signupAt: p.now()}:
		return true
	default:
		p.logger.Warnw("enrichment queue full, job dropped", "user_id", userID)
		return false
	}
}

// Run starts the workers and blocks until ctx is cancelled. Jobs still
// queued at that point are abandoned.
func (p *Pool) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)
	for i := 0; i < p.workers; i++ {
		worker := i
		g.Go(func() error {
			for {
				select {
				case <-ctx.Done():
					return nil
				case j := <-p.queue:
					p.process(ctx, j)
					p.logger.Debugw("enrichment job done", "worker", worker, "user_id", j.userID)
				}
			}
		})
	}
	return g.Wait()
}

func (p *Pool) process(ctx context.Context, j job) {
	geo := p.lookups.GeoLookup(ctx, j.ip)
	if geo.Empty() {
		return
	}
	if err := p.store.SetGeoData(ctx, j.userID, geo.Raw); err != nil {
		p.logger.Errorw("store geo data", "user_id", j.userID, "err", err)
		return
	}
	holidays := p.lookups.HolidayLookup(ctx, geo.CountryCode, j.signupAt)
	if len(holidays) == 0 {
		return
	}
	if err := p.store.SetPublicHolidays(ctx, j.userID, holidays); err != nil {
		p.logger.Errorw("store public holidays", "user_id", j.userID, "err", err)
	}
}
