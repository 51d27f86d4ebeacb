// Package monitor periodically counts orders that have not moved for longer
// than the stuck threshold. It reads only.
package monitor

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/smallbiznis/dreamline/internal/clock"
	"github.com/smallbiznis/dreamline/internal/config"
	obsmetrics "github.com/smallbiznis/dreamline/internal/observability/metrics"
	orderdomain "github.com/smallbiznis/dreamline/internal/order/domain"
	"github.com/smallbiznis/dreamline/internal/ratelimit"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const (
	scanLease   = "monitor:stuck-orders"
	scanTimeout = 30 * time.Second
)

var ErrInvalidConfig = errors.New("invalid_monitor_config")

// watched are the statuses waiting on a party to act.
var watched = []orderdomain.Status{
	orderdomain.StatusAssigned,
	orderdomain.StatusInProgress,
	orderdomain.StatusClarificationRequested,
}

type Params struct {
	fx.In

	DB         *gorm.DB
	Log        *zap.Logger
	Clock      clock.Clock
	Cfg        config.Config
	Repo       orderdomain.Repository
	Locker     *ratelimit.Locker   `optional:"true"`
	ObsMetrics *obsmetrics.Metrics `optional:"true"`
}

type Monitor struct {
	db         *gorm.DB
	log        *zap.Logger
	clock      clock.Clock
	cfg        config.MonitorConfig
	repo       orderdomain.Repository
	locker     *ratelimit.Locker
	obsMetrics *obsmetrics.Metrics
}

func New(p Params) (*Monitor, error) {
	if p.DB == nil || p.Log == nil || p.Clock == nil || p.Repo == nil {
		return nil, ErrInvalidConfig
	}
	cfg := p.Cfg.Monitor
	if cfg.Interval <= 0 || cfg.StuckAfter <= 0 {
		return nil, ErrInvalidConfig
	}
	return &Monitor{
		db:         p.DB,
		log:        p.Log.Named("monitor").With(zap.String("component", "monitor")),
		clock:      p.Clock,
		cfg:        cfg,
		repo:       p.Repo,
		locker:     p.Locker,
		obsMetrics: p.ObsMetrics,
	}, nil
}

// RunOnce scans once. With a locker configured only the lease holder scans.
// After a good scan the lease is kept for most of the interval; a failed scan
// releases it.
func (m *Monitor) RunOnce(parent context.Context) (counts map[orderdomain.Status]int64, err error) {
	ctx, cancel := context.WithTimeout(parent, scanTimeout)
	defer cancel()

	if m.locker != nil {
		lease, lockErr := m.locker.Acquire(ctx, scanLease, scanTimeout)
		switch {
		case lockErr != nil:
			m.log.Warn("monitor lease unavailable, scanning anyway", zap.Error(lockErr))
		case lease == nil:
			m.log.Debug("monitor scan held by another replica")
			return nil, nil
		default:
			defer func() { m.settleLease(lease, err) }()
		}
	}

	before := m.clock.Now().Add(-m.cfg.StuckAfter)
	counts, err = m.repo.CountStuck(ctx, m.db, watched, before)
	if err != nil {
		return nil, fmt.Errorf("count stuck orders: %w", err)
	}

	for _, status := range watched {
		count := counts[status]
		m.obsMetrics.SetStuckOrders(string(status), count)
		if count > 0 {
			m.log.Warn("orders stuck",
				zap.String("status", string(status)),
				zap.Int64("count", count),
				zap.Duration("stuck_after", m.cfg.StuckAfter),
			)
		}
	}
	return counts, nil
}

func (m *Monitor) settleLease(lease *ratelimit.Lease, scanErr error) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	if scanErr == nil {
		err := lease.Renew(ctx, m.cfg.Interval*9/10)
		if err == nil {
			return
		}
		m.log.Warn("monitor lease renew failed", zap.String("lease", lease.Key()), zap.Error(err))
		if errors.Is(err, ratelimit.ErrLeaseLost) {
			return
		}
	}
	if err := lease.Release(ctx); err != nil {
		m.log.Warn("monitor lease release failed", zap.String("lease", lease.Key()), zap.Error(err))
	}
}

func (m *Monitor) RunForever(ctx context.Context) {
	ticker := time.NewTicker(m.cfg.Interval)
	defer ticker.Stop()

	for {
		if _, err := m.RunOnce(ctx); err != nil {
			m.log.Warn("monitor run failed", zap.Error(err))
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}
