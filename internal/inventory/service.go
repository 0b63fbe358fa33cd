package inventory

import (
	"context"
	"log/slog"
	"strconv"
	"time"

	"github.com/shopspring/decimal"

	"github.com/harvest-erp/harvest/internal/shared"
)

// RepositoryPort abstracts repository usage for service.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, LotStore) error) error
	ListItems(ctx context.Context, filter Filter) ([]Item, error)
}

// AuditPort abstracts audit logging functionality.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// StockObserver is notified of consumes refused for insufficient stock.
type StockObserver interface {
	StockRejected()
}

// ServiceConfig groups optional settings.
type ServiceConfig struct {
	Thresholds Thresholds
	Logger     *slog.Logger
	Observer   StockObserver
}

// Service runs standalone ledger operations and serves the inventory view.
type Service struct {
	repo       RepositoryPort
	audit      AuditPort
	thresholds Thresholds
	logger     *slog.Logger
	observer   StockObserver
	now        func() time.Time
}

// NewService builds Service.
func NewService(repo RepositoryPort, audit AuditPort, cfg ServiceConfig) *Service {
	th := cfg.Thresholds
	if th.UrgentDays <= 0 && th.WarningDays <= 0 {
		th = DefaultThresholds
	}
	return &Service{repo: repo, audit: audit, thresholds: th, logger: cfg.Logger, observer: cfg.Observer, now: time.Now}
}

// Thresholds exposes the configured health thresholds.
func (s *Service) Thresholds() Thresholds {
	return s.thresholds
}

// Consume decrements a lot in its own transaction.
func (s *Service) Consume(ctx context.Context, purchaseID int64, qty decimal.Decimal) (Lot, error) {
	var lot Lot
	err := s.repo.WithTx(ctx, func(ctx context.Context, store LotStore) error {
		var err error
		lot, err = Consume(ctx, store, purchaseID, qty)
		return err
	})
	if err != nil {
		if IsInsufficientStock(err) && s.observer != nil {
			s.observer.StockRejected()
		}
		return Lot{}, err
	}
	s.record(ctx, purchaseID, "consume", qty)
	return lot, nil
}

// Restore increments a lot in its own transaction.
func (s *Service) Restore(ctx context.Context, purchaseID int64, qty decimal.Decimal) (Lot, error) {
	var lot Lot
	err := s.repo.WithTx(ctx, func(ctx context.Context, store LotStore) error {
		var err error
		lot, err = Restore(ctx, store, purchaseID, qty)
		return err
	})
	if err != nil {
		return Lot{}, err
	}
	s.record(ctx, purchaseID, "restore", qty)
	return lot, nil
}

// List returns the inventory view with valuation and health filled in. The
// returned total counts every match before paging.
func (s *Service) List(ctx context.Context, filter Filter) ([]Item, int, error) {
	items, err := s.load(ctx, filter)
	if err != nil {
		return nil, 0, err
	}
	total := len(items)
	start := filter.Offset
	if start > total {
		start = total
	}
	end := total
	if filter.Limit > 0 && start+filter.Limit < end {
		end = start + filter.Limit
	}
	return items[start:end], total, nil
}

// Summary aggregates the open lots matching filter.
func (s *Service) Summary(ctx context.Context, filter Filter) (Summary, error) {
	items, err := s.load(ctx, filter)
	if err != nil {
		return Summary{}, err
	}
	return summarize(items), nil
}

// ExpiringLots returns open lots labelled expired or urgent, most severe first.
func (s *Service) ExpiringLots(ctx context.Context) ([]Item, Summary, error) {
	items, err := s.load(ctx, Filter{})
	if err != nil {
		return nil, Summary{}, err
	}
	var expiring []Item
	for _, it := range items {
		if it.Health == HealthExpired || it.Health == HealthUrgent {
			expiring = append(expiring, it)
		}
	}
	return expiring, summarize(items), nil
}

func (s *Service) load(ctx context.Context, filter Filter) ([]Item, error) {
	rows, err := s.repo.ListItems(ctx, filter)
	if err != nil {
		return nil, err
	}
	today := s.now().UTC()
	items := make([]Item, 0, len(rows))
	for _, it := range rows {
		it.Valuation = it.RemainingQuantity.Mul(it.UnitPrice)
		it.Health = DeriveHealth(it.ExpiryDate, today, s.thresholds)
		if it.ExpiryDate != nil {
			days := DaysUntil(*it.ExpiryDate, today)
			it.DaysUntilExpiry = &days
		}
		if filter.Health != "" && it.Health != filter.Health {
			continue
		}
		items = append(items, it)
	}
	return items, nil
}

func summarize(items []Item) Summary {
	sum := Summary{
		TotalValuation: decimal.Zero,
		ByHealth:       make(map[Health]int, len(Healths)),
		ByStatus:       make(map[Status]int, 3),
	}
	for _, h := range Healths {
		sum.ByHealth[h] = 0
	}
	for _, it := range items {
		sum.LotCount++
		sum.TotalValuation = sum.TotalValuation.Add(it.Valuation)
		sum.ByHealth[it.Health]++
		sum.ByStatus[it.Status]++
	}
	return sum
}

func (s *Service) record(ctx context.Context, purchaseID int64, op string, qty decimal.Decimal) {
	if s.audit == nil {
		return
	}
	_ = s.audit.Record(ctx, shared.AuditLog{
		Action:   shared.AuditUpdate,
		Entity:   "purchase_lot",
		EntityID: strconv.FormatInt(purchaseID, 10),
		Meta:     map[string]any{"op": op, "qty": qty.String()},
	})
}
