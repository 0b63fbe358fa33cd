package delivery

import (
	"context"
	"log/slog"
	"sort"
	"strconv"

	"github.com/shopspring/decimal"

	"github.com/harvest-erp/harvest/internal/inventory"
	"github.com/harvest-erp/harvest/internal/shared"
)

// AuditPort abstracts audit logging functionality.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// ChangeNotifier is told when delivery data changes so derived caches can be
// invalidated.
type ChangeNotifier interface {
	Bump(ctx context.Context) error
}

// ServiceConfig groups optional collaborators.
type ServiceConfig struct {
	Audit    AuditPort
	Notifier ChangeNotifier
	Observer inventory.StockObserver
	Logger   *slog.Logger
}

// Service creates and edits deliveries while keeping the purchase ledger in
// step with their linked lines.
type Service struct {
	repo     RepositoryPort
	audit    AuditPort
	notifier ChangeNotifier
	observer inventory.StockObserver
	logger   *slog.Logger
}

// NewService builds Service.
func NewService(repo RepositoryPort, cfg ServiceConfig) *Service {
	return &Service{repo: repo, audit: cfg.Audit, notifier: cfg.Notifier, observer: cfg.Observer, logger: cfg.Logger}
}

func (s *Service) Get(ctx context.Context, id int64) (Delivery, error) {
	return s.repo.Get(ctx, id)
}

func (s *Service) List(ctx context.Context, filter ListFilter) ([]Delivery, int, error) {
	return s.repo.List(ctx, filter)
}

// Create stores a delivery and its lines. In NORMAL mode every line consumes
// its lot inside the same transaction, so one short lot rejects the whole
// delivery.
func (s *Service) Create(ctx context.Context, req CreateRequest) (Delivery, error) {
	mode := req.Mode
	if mode == "" {
		mode = ModeNormal
	}
	if !mode.IsValid() {
		return Delivery{}, shared.NewValidationError("mode", "must be NORMAL, DIRECT or RETURN")
	}
	if req.CustomerID <= 0 {
		return Delivery{}, shared.NewValidationError("customer_id", "is required")
	}
	date, err := shared.ParseDate(req.DeliveryDate)
	if err != nil {
		return Delivery{}, shared.NewValidationError("delivery_date", "must be a YYYY-MM-DD date")
	}
	status := StatusDelivered
	switch req.Status {
	case "", StatusDelivered:
	case StatusPending:
		status = StatusPending
	default:
		return Delivery{}, shared.NewValidationError("status", "must be PENDING or DELIVERED")
	}
	lines, err := buildLines(mode, req.Items, false)
	if err != nil {
		return Delivery{}, err
	}

	var id int64
	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		exists, err := tx.CustomerExists(ctx, req.CustomerID)
		if err != nil {
			return err
		}
		if !exists {
			return ErrUnknownCustomer
		}
		lots, err := consumeAll(ctx, tx, linkedQuantities(lines))
		if err != nil {
			return err
		}
		id, err = tx.Insert(ctx, Delivery{
			CustomerID:   req.CustomerID,
			DeliveryDate: date,
			TotalAmount:  Total(lines),
			Status:       status,
			Type:         typeFor(mode),
			Mode:         mode,
			Notes:        req.Notes,
			CreatedBy:    shared.ActorID(ctx),
		})
		if err != nil {
			return err
		}
		return tx.InsertItems(ctx, id, toItems(lines, lots))
	})
	if err != nil {
		s.observe(err)
		return Delivery{}, err
	}
	s.changed(ctx, shared.AuditCreate, id, map[string]any{"mode": string(mode)})
	return s.repo.Get(ctx, id)
}

// Update patches a delivery. Replacing the items restores the old linked
// quantities and consumes the new ones in one transaction.
func (s *Service) Update(ctx context.Context, id int64, req UpdateRequest) (Delivery, error) {
	updates := make(map[string]interface{})
	if req.DeliveryDate != nil {
		date, err := shared.ParseDate(*req.DeliveryDate)
		if err != nil {
			return Delivery{}, shared.NewValidationError("delivery_date", "must be a YYYY-MM-DD date")
		}
		updates["delivery_date"] = date
	}
	if req.Notes != nil {
		updates["notes"] = *req.Notes
	}

	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		current, err := tx.GetForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if current.IsInvoiced() {
			return ErrInvoiced
		}
		if current.Status == StatusCancelled {
			return ErrCancelled
		}
		if req.CustomerID != nil && *req.CustomerID != current.CustomerID {
			exists, err := tx.CustomerExists(ctx, *req.CustomerID)
			if err != nil {
				return err
			}
			if !exists {
				return ErrUnknownCustomer
			}
			updates["customer_id"] = *req.CustomerID
		}
		if req.Items != nil {
			lines, err := buildLines(current.Mode, *req.Items, current.Mode == ModeDirect)
			if err != nil {
				return err
			}
			if _, err := restoreAll(ctx, tx, linkedQuantities(current.Lines())); err != nil {
				return err
			}
			lots, err := consumeAll(ctx, tx, linkedQuantities(lines))
			if err != nil {
				return err
			}
			if err := tx.DeleteItems(ctx, id); err != nil {
				return err
			}
			if err := tx.InsertItems(ctx, id, toItems(lines, lots)); err != nil {
				return err
			}
			updates["total_amount"] = Total(lines)
		}
		return tx.UpdateDelivery(ctx, id, updates)
	})
	if err != nil {
		s.observe(err)
		return Delivery{}, err
	}
	s.changed(ctx, shared.AuditUpdate, id, map[string]any{"items_replaced": req.Items != nil})
	return s.repo.Get(ctx, id)
}

// Delete removes a delivery that no invoice claims and gives its linked
// quantities back to their lots. Cancelled deliveries already gave them back.
func (s *Service) Delete(ctx context.Context, id int64) error {
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		current, err := tx.GetForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if current.IsInvoiced() {
			return ErrInvoiced
		}
		if current.Status != StatusCancelled {
			if _, err := restoreAll(ctx, tx, linkedQuantities(current.Lines())); err != nil {
				return err
			}
		}
		return tx.Delete(ctx, id)
	})
	if err != nil {
		return err
	}
	s.changed(ctx, shared.AuditDelete, id, nil)
	return nil
}

// Cancel marks a delivery CANCELLED and restores its linked stock.
func (s *Service) Cancel(ctx context.Context, id int64) (Delivery, error) {
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		current, err := tx.GetForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if current.IsInvoiced() {
			return ErrInvoiced
		}
		if current.Status == StatusCancelled {
			return ErrCancelled
		}
		if _, err := restoreAll(ctx, tx, linkedQuantities(current.Lines())); err != nil {
			return err
		}
		return tx.UpdateDelivery(ctx, id, map[string]interface{}{"status": StatusCancelled})
	})
	if err != nil {
		return Delivery{}, err
	}
	s.changed(ctx, shared.AuditUpdate, id, map[string]any{"status": string(StatusCancelled)})
	return s.repo.Get(ctx, id)
}

// SetStatus moves a delivery between PENDING and DELIVERED, and clears the
// ERROR state left by a failed export.
func (s *Service) SetStatus(ctx context.Context, id int64, target Status) (Delivery, error) {
	if target != StatusPending && target != StatusDelivered {
		return Delivery{}, shared.NewValidationError("status", "must be PENDING or DELIVERED")
	}
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		current, err := tx.GetForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if current.IsInvoiced() {
			return ErrInvoiced
		}
		if !canTransition(current.Status, target) {
			return ErrInvalidTransition
		}
		if current.Status == target {
			return nil
		}
		return tx.UpdateDelivery(ctx, id, map[string]interface{}{"status": target})
	})
	if err != nil {
		return Delivery{}, err
	}
	s.changed(ctx, shared.AuditUpdate, id, map[string]any{"status": string(target)})
	return s.repo.Get(ctx, id)
}

// LinkLine attaches a free-form line of a DIRECT delivery to a purchase lot,
// consuming the line's quantity from it.
func (s *Service) LinkLine(ctx context.Context, deliveryID, itemID, purchaseID int64) (Delivery, error) {
	if purchaseID <= 0 {
		return Delivery{}, shared.NewValidationError("purchase_id", "is required")
	}
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		current, err := tx.GetForUpdate(ctx, deliveryID)
		if err != nil {
			return err
		}
		if current.IsInvoiced() {
			return ErrInvoiced
		}
		if current.Status == StatusCancelled {
			return ErrCancelled
		}
		if current.Mode != ModeDirect {
			return ErrNotLinkable
		}
		var item *Item
		for i := range current.Items {
			if current.Items[i].ID == itemID {
				item = &current.Items[i]
				break
			}
		}
		if item == nil {
			return ErrItemNotFound
		}
		if item.PurchaseID != nil {
			return ErrNotLinkable
		}
		lot, err := inventory.Consume(ctx, tx, purchaseID, item.Quantity)
		if err != nil {
			return err
		}
		return tx.LinkItem(ctx, itemID, purchaseID, &lot.CategoryID)
	})
	if err != nil {
		s.observe(err)
		return Delivery{}, err
	}
	s.changed(ctx, shared.AuditUpdate, deliveryID, map[string]any{"linked_item": itemID, "purchase_id": purchaseID})
	return s.repo.Get(ctx, deliveryID)
}

// MarkExported stores the exported document reference. A delivery left in
// ERROR by an earlier attempt returns to DELIVERED.
func (s *Service) MarkExported(ctx context.Context, id int64, documentID, url string) error {
	return s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		current, err := tx.GetForUpdate(ctx, id)
		if err != nil {
			return err
		}
		updates := map[string]interface{}{"google_sheet_id": documentID, "google_sheet_url": url}
		if current.Status == StatusError {
			updates["status"] = StatusDelivered
		}
		return tx.UpdateDelivery(ctx, id, updates)
	})
}

// MarkExportFailed moves the delivery to ERROR for an operator retry.
// Invoiced and cancelled deliveries keep their status.
func (s *Service) MarkExportFailed(ctx context.Context, id int64) error {
	return s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		current, err := tx.GetForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if current.IsInvoiced() || current.Status == StatusCancelled {
			return nil
		}
		return tx.UpdateDelivery(ctx, id, map[string]interface{}{"status": StatusError})
	})
}

func canTransition(from, to Status) bool {
	switch from {
	case StatusPending, StatusDelivered:
		return to == StatusPending || to == StatusDelivered
	case StatusError:
		return to == StatusDelivered
	default:
		return false
	}
}

// consumeAll consumes per-lot quantities in ascending purchase order so
// concurrent transactions lock lots in the same order.
func consumeAll(ctx context.Context, store inventory.LotStore, quantities map[int64]decimal.Decimal) (map[int64]inventory.Lot, error) {
	lots := make(map[int64]inventory.Lot, len(quantities))
	for _, id := range sortedIDs(quantities) {
		lot, err := inventory.Consume(ctx, store, id, quantities[id])
		if err != nil {
			return nil, err
		}
		lots[id] = lot
	}
	return lots, nil
}

func restoreAll(ctx context.Context, store inventory.LotStore, quantities map[int64]decimal.Decimal) (map[int64]inventory.Lot, error) {
	lots := make(map[int64]inventory.Lot, len(quantities))
	for _, id := range sortedIDs(quantities) {
		lot, err := inventory.Restore(ctx, store, id, quantities[id])
		if err != nil {
			return nil, err
		}
		lots[id] = lot
	}
	return lots, nil
}

func sortedIDs(m map[int64]decimal.Decimal) []int64 {
	ids := make([]int64, 0, len(m))
	for id := range m {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// toItems builds stored rows, copying product details of linked lines from
// their lots.
func toItems(lines []Line, lots map[int64]inventory.Lot) []Item {
	items := make([]Item, 0, len(lines))
	for _, l := range lines {
		switch line := l.(type) {
		case LinkedLine:
			lot := lots[line.PurchaseID]
			purchaseID := line.PurchaseID
			item := Item{
				PurchaseID:  &purchaseID,
				ProductName: lot.ProductName,
				Unit:        lot.Unit,
				Quantity:    line.Quantity,
				UnitPrice:   line.UnitPrice,
				Amount:      line.Amount(),
				TaxRate:     line.TaxRate,
			}
			if lot.CategoryID > 0 {
				categoryID := lot.CategoryID
				item.CategoryID = &categoryID
			}
			items = append(items, item)
		case FreeformLine:
			items = append(items, Item{
				ReferencePurchaseID: line.ReferencePurchaseID,
				ProductName:         line.ProductName,
				CategoryID:          line.CategoryID,
				Unit:                line.Unit,
				Quantity:            line.Quantity,
				UnitPrice:           line.UnitPrice,
				Amount:              line.Amount(),
				TaxRate:             line.TaxRate,
			})
		}
	}
	return items
}

func (s *Service) observe(err error) {
	if s.observer != nil && inventory.IsInsufficientStock(err) {
		s.observer.StockRejected()
	}
}

func (s *Service) changed(ctx context.Context, action string, id int64, meta map[string]any) {
	if s.audit != nil {
		_ = s.audit.Record(ctx, shared.AuditLog{Action: action, Entity: "delivery", EntityID: strconv.FormatInt(id, 10), Meta: meta})
	}
	if s.notifier != nil {
		if err := s.notifier.Bump(ctx); err != nil && s.logger != nil {
			s.logger.Warn("report cache bump", slog.Any("error", err))
		}
	}
}
