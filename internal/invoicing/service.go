package invoicing

import (
	"context"
	"log/slog"
	"strconv"
	"time"

	"github.com/harvest-erp/harvest/internal/shared"
)

// AuditPort abstracts audit logging functionality.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// ChangeNotifier is told when invoices change so report caches refresh.
type ChangeNotifier interface {
	Bump(ctx context.Context) error
}

// Observer counts generated invoices.
type Observer interface {
	InvoiceGenerated()
}

// ServiceConfig groups optional collaborators.
type ServiceConfig struct {
	Policy   EndOfMonthPolicy
	Audit    AuditPort
	Notifier ChangeNotifier
	Observer Observer
	Logger   *slog.Logger
	Now      func() time.Time
}

// Service aggregates deliveries into monthly invoices.
type Service struct {
	repo     RepositoryPort
	policy   EndOfMonthPolicy
	audit    AuditPort
	notifier ChangeNotifier
	observer Observer
	logger   *slog.Logger
	now      func() time.Time
}

// NewService builds Service.
func NewService(repo RepositoryPort, cfg ServiceConfig) *Service {
	policy := cfg.Policy
	if policy == "" {
		policy = NextMonthEnd
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, policy: policy, audit: cfg.Audit, notifier: cfg.Notifier, observer: cfg.Observer, logger: logger, now: now}
}

// Summarize previews the invoices of a month: DELIVERED deliveries not yet
// claimed, grouped by customer, return notes counted negative. customerID 0
// covers every customer; an explicit customer with an invoice and nothing
// pending still appears with a zero count.
func (s *Service) Summarize(ctx context.Context, year, month int, customerID int64) (Summary, error) {
	from, to, err := shared.MonthRange(year, month)
	if err != nil {
		return Summary{}, err
	}
	pending, err := s.repo.Pending(ctx, from, to, customerID)
	if err != nil {
		return Summary{}, err
	}
	invoiced, err := s.repo.ActiveInvoices(ctx, year, month, customerID)
	if err != nil {
		return Summary{}, err
	}

	rows := aggregate(pending)
	for i := range rows {
		if id, ok := invoiced[rows[i].ID]; ok {
			rows[i].HasInvoice = true
			rows[i].InvoiceID = &id
		}
	}
	if customerID > 0 && len(rows) == 0 {
		if id, ok := invoiced[customerID]; ok {
			info, err := s.repo.Customer(ctx, customerID)
			if err != nil {
				return Summary{}, err
			}
			rows = append(rows, CustomerSummary{CustomerInfo: info, HasInvoice: true, InvoiceID: &id, DeliveryIDs: []int64{}})
		}
	}
	return Summary{Year: year, Month: month, Customers: rows}, nil
}

// GenerateRequest asks for the invoice of one customer month.
type GenerateRequest struct {
	CustomerID int64 `json:"customer_id" validate:"required,gt=0"`
	Year       int   `json:"year" validate:"required"`
	Month      int   `json:"month" validate:"required,min=1,max=12"`
}

// GenerateInvoice issues the invoice of a customer month and claims its
// deliveries in the same transaction. A second call for the same month fails
// with ErrAlreadyInvoiced and changes nothing.
func (s *Service) GenerateInvoice(ctx context.Context, req GenerateRequest) (Invoice, error) {
	if req.CustomerID <= 0 {
		return Invoice{}, shared.NewValidationError("customer_id", "is required")
	}
	from, to, err := shared.MonthRange(req.Year, req.Month)
	if err != nil {
		return Invoice{}, err
	}

	var id int64
	var claimed int
	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		customer, err := tx.Customer(ctx, req.CustomerID)
		if err != nil {
			return err
		}
		exists, err := tx.HasActiveInvoice(ctx, req.CustomerID, req.Year, req.Month)
		if err != nil {
			return err
		}
		if exists {
			return ErrAlreadyInvoiced
		}
		pending, err := tx.LockPending(ctx, req.CustomerID, from, to)
		if err != nil {
			return err
		}
		if len(pending) == 0 {
			return ErrNoPendingDeliveries
		}
		summary := aggregate(pending)[0]
		seq, err := tx.NextSequence(ctx, req.CustomerID, req.Year, req.Month)
		if err != nil {
			return err
		}
		issue := shared.Date(s.now())
		id, err = tx.Insert(ctx, Invoice{
			Number:      invoiceNumber(req.Year, req.Month, req.CustomerID, seq),
			CustomerID:  req.CustomerID,
			Year:        req.Year,
			Month:       req.Month,
			TotalAmount: summary.TotalAmount,
			TaxLines:    summary.TaxLines,
			TaxTotal:    summary.TaxTotal,
			GrandTotal:  summary.GrandTotal,
			DeliveryIDs: summary.DeliveryIDs,
			Status:      StatusIssued,
			IssueDate:   issue,
			DueDate:     DueDate(customer.PaymentTerms, issue, s.policy),
			CreatedBy:   shared.ActorID(ctx),
		})
		if err != nil {
			return err
		}
		n, err := tx.ClaimDeliveries(ctx, id, summary.DeliveryIDs)
		if err != nil {
			return err
		}
		if n != int64(len(summary.DeliveryIDs)) {
			return ErrClaimRace
		}
		claimed = len(summary.DeliveryIDs)
		return nil
	})
	if err != nil {
		return Invoice{}, err
	}

	if s.observer != nil {
		s.observer.InvoiceGenerated()
	}
	s.logger.Info("invoice generated", slog.Int64("invoice_id", id), slog.Int64("customer_id", req.CustomerID),
		slog.Int("year", req.Year), slog.Int("month", req.Month), slog.Int("deliveries", claimed))
	s.changed(ctx, shared.AuditGenerate, id, map[string]any{"customer_id": req.CustomerID, "year": req.Year, "month": req.Month})
	return s.repo.Get(ctx, id)
}

// Void cancels an invoice and returns its deliveries to DELIVERED so the month
// can be invoiced again.
func (s *Service) Void(ctx context.Context, id int64) (Invoice, error) {
	var released int64
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		inv, err := tx.GetForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if inv.Status == StatusVoid {
			return ErrAlreadyVoid
		}
		if err := tx.MarkVoid(ctx, id, s.now().UTC()); err != nil {
			return err
		}
		released, err = tx.ReleaseDeliveries(ctx, id)
		return err
	})
	if err != nil {
		return Invoice{}, err
	}
	s.changed(ctx, shared.AuditVoid, id, map[string]any{"released": released})
	return s.repo.Get(ctx, id)
}

func (s *Service) Get(ctx context.Context, id int64) (Invoice, error) {
	return s.repo.Get(ctx, id)
}

func (s *Service) List(ctx context.Context, filter ListFilter) ([]Invoice, int, error) {
	return s.repo.List(ctx, filter)
}

// MarkExported stores the exported document reference.
func (s *Service) MarkExported(ctx context.Context, id int64, documentID, url string) error {
	return s.repo.SetDocument(ctx, id, documentID, url)
}

func (s *Service) changed(ctx context.Context, action string, id int64, meta map[string]any) {
	if s.audit != nil {
		_ = s.audit.Record(ctx, shared.AuditLog{Action: action, Entity: "invoice", EntityID: strconv.FormatInt(id, 10), Meta: meta})
	}
	if s.notifier != nil {
		if err := s.notifier.Bump(ctx); err != nil {
			s.logger.Warn("report cache bump", slog.Any("error", err))
		}
	}
}
