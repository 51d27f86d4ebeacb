package settlement

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"
	ledgerdomain "github.com/smallbiznis/dreamline/internal/ledger/domain"
	obsmetrics "github.com/smallbiznis/dreamline/internal/observability/metrics"
	orderdomain "github.com/smallbiznis/dreamline/internal/order/domain"
	settingsdomain "github.com/smallbiznis/dreamline/internal/settings/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	Log        *zap.Logger
	Ledger     ledgerdomain.Service
	ObsMetrics *obsmetrics.Metrics `optional:"true"`
}

type Service struct {
	log        *zap.Logger
	ledger     ledgerdomain.Service
	obsMetrics *obsmetrics.Metrics
}

func NewService(p Params) *Service {
	return &Service{
		log:        p.Log.Named("settlement.service"),
		ledger:     p.Ledger,
		obsMetrics: p.ObsMetrics,
	}
}

// Settle computes the split from the order's locked price against snapshot and
// appends the ledger row inside tx. The caller persists the split on the order
// in the same transaction. An already settled order returns its stored split.
func (s *Service) Settle(ctx context.Context, tx *gorm.DB, order *orderdomain.Order, snapshot settingsdomain.Snapshot) (Result, error) {
	if order.Settled() {
		return storedResult(order), nil
	}
	if order.LockedPrice == nil {
		return Result{}, ErrMissingLockedPrice
	}
	if order.AssignedInterpreterID == nil || order.AssignedInterpreterSubjectID == nil {
		return Result{}, ErrNotAssigned
	}

	split, err := Compute(*order.LockedPrice, snapshot.Rate)
	if err != nil {
		return Result{}, err
	}

	inserted, err := s.ledger.Record(ctx, tx, ledgerdomain.Transaction{
		OrderID:              order.ID,
		InterpreterID:        *order.AssignedInterpreterID,
		InterpreterSubjectID: *order.AssignedInterpreterSubjectID,
		GrossAmount:          *order.LockedPrice,
		PlatformCommission:   split.PlatformCommission,
		Amount:               split.InterpreterEarning,
		CommissionRate:       snapshot.Rate.String(),
		SettingsVersion:      snapshot.Version,
		Currency:             snapshot.Currency,
	})
	if err != nil {
		s.obsMetrics.RecordSettlement("error", snapshot.Currency, 0, 0)
		return Result{}, fmt.Errorf("record ledger: %w", err)
	}
	if !inserted {
		s.log.Info("ledger row already present", zap.String("order_id", order.ID.String()))
	}

	return Result{
		Split:           split,
		Rate:            snapshot.Rate,
		SettingsVersion: snapshot.Version,
		Currency:        snapshot.Currency,
		Applied:         inserted,
	}, nil
}

// Observe records a committed settlement.
func (s *Service) Observe(result Result) {
	outcome := "replayed"
	if result.Applied {
		outcome = "applied"
	}
	s.obsMetrics.RecordSettlement(outcome, result.Currency, result.PlatformCommission, result.InterpreterEarning)
}

func storedResult(order *orderdomain.Order) Result {
	result := Result{
		Split: Split{
			PlatformCommission: *order.PlatformCommission,
			InterpreterEarning: *order.InterpreterEarning,
		},
		Currency: order.Currency,
	}
	if order.CommissionRate != nil {
		if rate, err := decimal.NewFromString(*order.CommissionRate); err == nil {
			result.Rate = rate
		}
	}
	if order.SettingsVersion != nil {
		result.SettingsVersion = *order.SettingsVersion
	}
	return result
}
