package reports

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"github.com/harvest-erp/harvest/internal/shared"
)

// DefaultMonths is the window used when the caller gives no range.
const DefaultMonths = 12

// maxMonths caps a range so one request cannot scan the whole history.
const maxMonths = 60

var hundred = decimal.NewFromInt(100)

// Service coordinates report rollups with the cache layer.
type Service struct {
	repo  Repository
	cache *Cache
	now   func() time.Time
}

// NewService wires a Repository with a Cache helper. A nil cache disables
// caching.
func NewService(repo Repository, cache *Cache) *Service {
	return &Service{repo: repo, cache: cache, now: time.Now}
}

// ParseRange reads YYYY-MM bounds. Missing bounds default to the last
// DefaultMonths months ending with the current one.
func (s *Service) ParseRange(from, to string) (Range, error) {
	end := shared.EndOfMonth(s.now())
	if to != "" {
		t, err := time.Parse("2006-01", to)
		if err != nil {
			return Range{}, shared.NewValidationError("to", "must be a YYYY-MM month")
		}
		end = shared.EndOfMonth(t)
	}
	start := time.Date(end.Year(), end.Month()-DefaultMonths+1, 1, 0, 0, 0, 0, time.UTC)
	if from != "" {
		t, err := time.Parse("2006-01", from)
		if err != nil {
			return Range{}, shared.NewValidationError("from", "must be a YYYY-MM month")
		}
		start = t
	}
	if start.After(end) {
		return Range{}, shared.NewValidationError("from", "must not be after to")
	}
	rng := Range{From: start, To: end}
	if len(rng.Months()) > maxMonths {
		return Range{}, shared.NewValidationError("from", "range is limited to 60 months")
	}
	return rng, nil
}

// Monthly returns one row per month of the range, empty months included.
func (s *Service) Monthly(ctx context.Context, rng Range) ([]MonthlyRow, error) {
	var rows []MonthlyRow
	err := s.cached(ctx, &rows, func(ctx context.Context) (interface{}, error) {
		return s.loadMonthly(ctx, rng)
	}, "monthly", rng.key())
	return rows, err
}

func (s *Service) loadMonthly(ctx context.Context, rng Range) ([]MonthlyRow, error) {
	purchases, err := s.repo.PurchaseTotals(ctx, rng.From, rng.To)
	if err != nil {
		return nil, err
	}
	deliveries, err := s.repo.DeliveryTotals(ctx, rng.From, rng.To)
	if err != nil {
		return nil, err
	}
	months := rng.Months()
	rows := make([]MonthlyRow, 0, len(months))
	for _, period := range months {
		purchase := purchases[period]
		delivered := deliveries[period]
		profit := delivered.Sub(purchase)
		rows = append(rows, MonthlyRow{
			Period:         period,
			PurchaseAmount: purchase,
			DeliveryAmount: delivered,
			Profit:         profit,
			ProfitRate:     profitRate(profit, delivered),
		})
	}
	return rows, nil
}

// Categories returns delivered amounts per category with their share of the
// total.
func (s *Service) Categories(ctx context.Context, rng Range) ([]CategoryRow, error) {
	var rows []CategoryRow
	err := s.cached(ctx, &rows, func(ctx context.Context) (interface{}, error) {
		amounts, err := s.repo.CategoryAmounts(ctx, rng.From, rng.To)
		if err != nil {
			return nil, err
		}
		return composition(amounts), nil
	}, "categories", rng.key())
	return rows, err
}

// Suppliers returns purchase volume per supplier.
func (s *Service) Suppliers(ctx context.Context, rng Range) ([]SupplierRow, error) {
	var rows []SupplierRow
	err := s.cached(ctx, &rows, func(ctx context.Context) (interface{}, error) {
		rows, err := s.repo.SupplierTotals(ctx, rng.From, rng.To)
		if err != nil {
			return nil, err
		}
		if rows == nil {
			rows = []SupplierRow{}
		}
		return rows, nil
	}, "suppliers", rng.key())
	return rows, err
}

// ProfitTrend returns the profit-rate series of the monthly rows.
func (s *Service) ProfitTrend(ctx context.Context, rng Range) ([]TrendPoint, error) {
	monthly, err := s.Monthly(ctx, rng)
	if err != nil {
		return nil, err
	}
	points := make([]TrendPoint, 0, len(monthly))
	for _, row := range monthly {
		points = append(points, TrendPoint{Period: row.Period, ProfitRate: row.ProfitRate})
	}
	return points, nil
}

// Dashboard computes every rollup of the range concurrently.
func (s *Service) Dashboard(ctx context.Context, rng Range) (Dashboard, error) {
	data := Dashboard{Range: rng}
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		rows, err := s.Monthly(ctx, rng)
		if err != nil {
			return err
		}
		data.Monthly = rows
		return nil
	})
	g.Go(func() error {
		rows, err := s.Categories(ctx, rng)
		if err != nil {
			return err
		}
		data.Categories = rows
		return nil
	})
	g.Go(func() error {
		rows, err := s.Suppliers(ctx, rng)
		if err != nil {
			return err
		}
		data.Suppliers = rows
		return nil
	})
	if err := g.Wait(); err != nil {
		return Dashboard{}, err
	}
	data.Totals = totals(data.Monthly)
	return data, nil
}

func (s *Service) cached(ctx context.Context, dest interface{}, loader func(context.Context) (interface{}, error), parts ...string) error {
	key, err := s.cache.BuildKey(ctx, parts...)
	if err != nil {
		return err
	}
	return s.cache.FetchJSON(ctx, key, dest, loader)
}

// profitRate is profit as a percentage of sales, rounded to one decimal; no
// sales means a rate of zero.
func profitRate(profit, sales decimal.Decimal) decimal.Decimal {
	if sales.IsZero() {
		return decimal.Zero
	}
	return profit.Mul(hundred).Div(sales).Round(1)
}

func composition(amounts []CategoryAmount) []CategoryRow {
	total := decimal.Zero
	for _, a := range amounts {
		total = total.Add(a.Amount)
	}
	rows := make([]CategoryRow, 0, len(amounts))
	for _, a := range amounts {
		pct := decimal.Zero
		if !total.IsZero() {
			pct = a.Amount.Mul(hundred).Div(total).Round(1)
		}
		name := a.CategoryName
		if a.CategoryID == nil {
			name = "Uncategorised"
		}
		rows = append(rows, CategoryRow{CategoryID: a.CategoryID, CategoryName: name, Amount: a.Amount, Percentage: pct})
	}
	return rows
}

func totals(rows []MonthlyRow) Totals {
	t := Totals{PurchaseAmount: decimal.Zero, DeliveryAmount: decimal.Zero}
	for _, row := range rows {
		t.PurchaseAmount = t.PurchaseAmount.Add(row.PurchaseAmount)
		t.DeliveryAmount = t.DeliveryAmount.Add(row.DeliveryAmount)
	}
	t.Profit = t.DeliveryAmount.Sub(t.PurchaseAmount)
	t.ProfitRate = profitRate(t.Profit, t.DeliveryAmount)
	return t
}
