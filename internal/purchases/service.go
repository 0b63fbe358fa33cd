package purchases

import (
	"context"
	"log/slog"
	"strconv"

	"github.com/harvest-erp/harvest/internal/inventory"
	"github.com/harvest-erp/harvest/internal/shared"
)

// AuditPort abstracts audit logging functionality.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// ChangeNotifier is told when purchase data changes so derived caches can
// be invalidated.
type ChangeNotifier interface {
	Bump(ctx context.Context) error
}

// Service manages purchase lots.
type Service struct {
	repo     RepositoryPort
	audit    AuditPort
	notifier ChangeNotifier
	logger   *slog.Logger
}

// NewService builds Service.
func NewService(repo RepositoryPort, audit AuditPort, notifier ChangeNotifier, logger *slog.Logger) *Service {
	return &Service{repo: repo, audit: audit, notifier: notifier, logger: logger}
}

func (s *Service) Get(ctx context.Context, id int64) (Purchase, error) {
	return s.repo.Get(ctx, id)
}

func (s *Service) List(ctx context.Context, filter ListFilter) ([]Purchase, int, error) {
	return s.repo.List(ctx, filter)
}

// Create records a new lot with its full quantity remaining.
func (s *Service) Create(ctx context.Context, in Input) (Purchase, error) {
	f, err := validateInput(in)
	if err != nil {
		return Purchase{}, err
	}
	p := Purchase{
		ProductName:       f.ProductName,
		CategoryID:        f.CategoryID,
		SupplierID:        f.SupplierID,
		Quantity:          f.Quantity,
		Unit:              f.Unit,
		UnitPrice:         f.UnitPrice,
		Price:             f.Price,
		PurchaseDate:      f.PurchaseDate,
		ExpiryDate:        f.ExpiryDate,
		RemainingQuantity: f.Quantity,
		Status:            inventory.StatusUnused,
		Notes:             f.Notes,
	}
	var created Purchase
	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		var err error
		created, err = tx.Insert(ctx, p)
		return err
	})
	if err != nil {
		return Purchase{}, err
	}
	s.changed(ctx, shared.AuditCreate, created.ID, nil)
	return created, nil
}

// Update rewrites a lot. When the quantity changes the remaining quantity is
// reconciled so delivered amounts stay consumed; a clamped result sets
// NeedsReview.
func (s *Service) Update(ctx context.Context, id int64, in Input) (Purchase, error) {
	f, err := validateInput(in)
	if err != nil {
		return Purchase{}, err
	}
	var updated Purchase
	var clamped bool
	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		current, err := tx.GetForUpdate(ctx, id)
		if err != nil {
			return err
		}
		remaining, review := inventory.Reconcile(current.Quantity, current.RemainingQuantity, f.Quantity)
		clamped = review
		current.ProductName = f.ProductName
		current.CategoryID = f.CategoryID
		current.SupplierID = f.SupplierID
		current.Quantity = f.Quantity
		current.Unit = f.Unit
		current.UnitPrice = f.UnitPrice
		current.Price = f.Price
		current.PurchaseDate = f.PurchaseDate
		current.ExpiryDate = f.ExpiryDate
		current.Notes = f.Notes
		current.RemainingQuantity = remaining
		current.Status = inventory.DeriveStatus(remaining, f.Quantity)
		current.NeedsReview = current.NeedsReview || review
		updated, err = tx.Update(ctx, current)
		return err
	})
	if err != nil {
		return Purchase{}, err
	}
	if clamped && s.logger != nil {
		s.logger.Warn("purchase remaining quantity clamped", slog.Int64("purchase_id", id), slog.String("quantity", f.Quantity.String()))
	}
	s.changed(ctx, shared.AuditUpdate, id, map[string]any{"needs_review": updated.NeedsReview})
	return updated, nil
}

// ClearReview resets the NeedsReview flag after an operator checked the lot.
func (s *Service) ClearReview(ctx context.Context, id int64) (Purchase, error) {
	var updated Purchase
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		current, err := tx.GetForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if !current.NeedsReview {
			updated = current
			return nil
		}
		current.NeedsReview = false
		updated, err = tx.Update(ctx, current)
		return err
	})
	if err != nil {
		return Purchase{}, err
	}
	s.changed(ctx, shared.AuditUpdate, id, map[string]any{"needs_review": false})
	return updated, nil
}

// Delete removes a lot no delivery item is linked to.
func (s *Service) Delete(ctx context.Context, id int64) error {
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		return tx.Delete(ctx, id)
	})
	if err != nil {
		return err
	}
	s.changed(ctx, shared.AuditDelete, id, nil)
	return nil
}

func (s *Service) changed(ctx context.Context, action string, id int64, meta map[string]any) {
	if s.audit != nil {
		_ = s.audit.Record(ctx, shared.AuditLog{Action: action, Entity: "purchase", EntityID: strconv.FormatInt(id, 10), Meta: meta})
	}
	if s.notifier != nil {
		if err := s.notifier.Bump(ctx); err != nil && s.logger != nil {
			s.logger.Warn("report cache bump", slog.Any("error", err))
		}
	}
}
