package poller

import (
	"context"
	"errors"
	"time"

	"github.com/bsm/redislock"
	"github.com/sirupsen/logrus"

	"github.com/safar/gold-ledger/internal/logging"
	"github.com/safar/gold-ledger/internal/models"
)

const lockKey = "gold:fetch"

// ErrNotObtained means another replica holds the fetch lock.
var ErrNotObtained = errors.New("fetch lock held elsewhere")

type Fetcher interface {
	FetchAndPersist(ctx context.Context) (*models.GoldQuote, error)
}

// Locker obtains a lock for ttl and returns its release function.
type Locker interface {
	Obtain(ctx context.Context, key string, ttl time.Duration) (func(context.Context) error, error)
}

// RedisLocker adapts redislock to Locker.
type RedisLocker struct {
	client *redislock.Client
}

func NewRedisLocker(rdb redislock.RedisClient) *RedisLocker {
	return &RedisLocker{client: redislock.New(rdb)}
}

func (l *RedisLocker) Obtain(ctx context.Context, key string, ttl time.Duration) (func(context.Context) error, error) {
	lock, err := l.client.Obtain(ctx, key, ttl, nil)
	if errors.Is(err, redislock.ErrNotObtained) {
		return nil, ErrNotObtained
	}
	if err != nil {
		return nil, err
	}
	return lock.Release, nil
}

type Poller struct {
	Fetcher  Fetcher
	Locker   Locker
	Interval time.Duration

	logger *logrus.Logger
}

func New(fetcher Fetcher, locker Locker, interval time.Duration, logger *logrus.Logger) *Poller {
	return &Poller{Fetcher: fetcher, Locker: locker, Interval: interval, logger: logging.OrDiscard(logger)}
}

// Run fetches once immediately, then every Interval until ctx is done.
func (p *Poller) Run(ctx context.Context) error {
	p.logger = logging.OrDiscard(p.logger)
	ticker := time.NewTicker(p.Interval)
	defer ticker.Stop()

	p.logger.WithFields(logrus.Fields{
		"module":   "poller",
		"interval": p.Interval.String(),
		"locked":   p.Locker != nil,
	}).Info("gold price poller started")

	for {
		p.Tick(ctx)
		select {
		case <-ctx.Done():
			p.logger.WithField("module", "poller").Info("gold price poller stopped")
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// Tick performs a single locked fetch. It reports whether a fetch ran.
func (p *Poller) Tick(ctx context.Context) bool {
	if ctx.Err() != nil {
		return false
	}
	p.logger = logging.OrDiscard(p.logger)

	if p.Locker != nil {
		release, err := p.Locker.Obtain(ctx, lockKey, p.Interval)
		if errors.Is(err, ErrNotObtained) {
			p.logger.WithField("module", "poller").Debug("fetch lock held elsewhere; skipping tick")
			return false
		}
		if err != nil {
			logging.LogError(p.logger, "poller", "Tick", "obtain fetch lock", lockKey, err)
			return false
		}
		defer func() {
			if err := release(context.WithoutCancel(ctx)); err != nil && !errors.Is(err, redislock.ErrLockNotHeld) {
				p.logger.WithField("module", "poller").WithError(err).Warn("failed to release fetch lock")
			}
		}()
	}

	quote, err := p.Fetcher.FetchAndPersist(ctx)
	switch {
	case err != nil:
		logging.LogError(p.logger, "poller", "Tick", "fetch and persist", nil, err)
	case quote == nil:
		p.logger.WithField("module", "poller").Warn("provider unavailable; latest quote unchanged")
	default:
		p.logger.WithFields(logrus.Fields{
			"module":   "poller",
			"quote_id": quote.ID,
			"bid":      quote.Bid.String(),
			"ask":      quote.Ask.String(),
		}).Info("tick complete")
	}
	return true
}
