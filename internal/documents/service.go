package documents

import (
	"context"
	"log/slog"
	"strconv"

	"github.com/harvest-erp/harvest/internal/customers"
	"github.com/harvest-erp/harvest/internal/delivery"
	"github.com/harvest-erp/harvest/internal/invoicing"
	"github.com/harvest-erp/harvest/internal/shared"
)

// Kinds of exported documents.
const (
	KindDelivery = "delivery"
	KindInvoice  = "invoice"
)

// DeliveryPort is the slice of the delivery service export needs.
type DeliveryPort interface {
	Get(ctx context.Context, id int64) (delivery.Delivery, error)
	MarkExported(ctx context.Context, id int64, documentID, url string) error
	MarkExportFailed(ctx context.Context, id int64) error
}

// InvoicePort is the slice of the invoicing service export needs.
type InvoicePort interface {
	Get(ctx context.Context, id int64) (invoicing.Invoice, error)
	MarkExported(ctx context.Context, id int64, documentID, url string) error
}

// CustomerPort resolves the billed party of an invoice.
type CustomerPort interface {
	Get(ctx context.Context, id int64) (*customers.Customer, error)
}

// Observer counts export attempts.
type Observer interface {
	ExportFinished(kind string, err error)
}

// AuditPort abstracts audit logging functionality.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// Templates holds the template spreadsheet of each document kind.
type Templates struct {
	Delivery string
	Invoice  string
}

// ServiceConfig groups the collaborators of Service.
type ServiceConfig struct {
	Exporter   Exporter
	Templates  Templates
	Deliveries DeliveryPort
	Invoices   InvoicePort
	Customers  CustomerPort
	Observer   Observer
	Audit      AuditPort
	Logger     *slog.Logger
}

// Service exports deliveries and invoices and records the result on them.
type Service struct {
	exporter   Exporter
	templates  Templates
	deliveries DeliveryPort
	invoices   InvoicePort
	customers  CustomerPort
	observer   Observer
	audit      AuditPort
	logger     *slog.Logger
}

// NewService builds Service. A nil Exporter makes every export fail with
// ErrNotConfigured.
func NewService(cfg ServiceConfig) *Service {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		exporter:   cfg.Exporter,
		templates:  cfg.Templates,
		deliveries: cfg.Deliveries,
		invoices:   cfg.Invoices,
		customers:  cfg.Customers,
		observer:   cfg.Observer,
		audit:      cfg.Audit,
		logger:     logger,
	}
}

// ExportDelivery renders a delivery slip. On failure the delivery moves to
// ERROR so an operator can retry; on success the document is stored on it.
func (s *Service) ExportDelivery(ctx context.Context, id int64) (Document, error) {
	d, err := s.deliveries.Get(ctx, id)
	if err != nil {
		return Document{}, err
	}
	doc, err := s.create(ctx, s.templates.Delivery, RenderDelivery(d))
	s.finished(KindDelivery, id, err)
	if err != nil {
		if markErr := s.deliveries.MarkExportFailed(ctx, id); markErr != nil {
			s.logger.Error("documents mark delivery failed", slog.Int64("delivery_id", id), slog.Any("error", markErr))
		}
		return Document{}, err
	}
	if err := s.deliveries.MarkExported(ctx, id, doc.ID, doc.URL); err != nil {
		return Document{}, err
	}
	s.record(ctx, KindDelivery, id, doc)
	return doc, nil
}

// ExportInvoice renders an invoice with the deliveries it claims.
func (s *Service) ExportInvoice(ctx context.Context, id int64) (Document, error) {
	inv, err := s.invoices.Get(ctx, id)
	if err != nil {
		return Document{}, err
	}
	party := InvoiceParty{Name: inv.CustomerName}
	if s.customers != nil {
		c, err := s.customers.Get(ctx, inv.CustomerID)
		if err != nil {
			return Document{}, err
		}
		party = InvoiceParty{Name: c.CompanyName, RegistrationNumber: c.InvoiceRegistrationNumber}
	}
	deliveries := make([]delivery.Delivery, 0, len(inv.DeliveryIDs))
	for _, deliveryID := range inv.DeliveryIDs {
		d, err := s.deliveries.Get(ctx, deliveryID)
		if err != nil {
			return Document{}, err
		}
		deliveries = append(deliveries, d)
	}

	doc, err := s.create(ctx, s.templates.Invoice, RenderInvoice(inv, party, deliveries))
	s.finished(KindInvoice, id, err)
	if err != nil {
		return Document{}, err
	}
	if err := s.invoices.MarkExported(ctx, id, doc.ID, doc.URL); err != nil {
		return Document{}, err
	}
	s.record(ctx, KindInvoice, id, doc)
	return doc, nil
}

func (s *Service) create(ctx context.Context, templateID string, fields FieldMap) (Document, error) {
	if s.exporter == nil || templateID == "" {
		return Document{}, ErrNotConfigured
	}
	return s.exporter.CreateDocument(ctx, templateID, fields)
}

func (s *Service) finished(kind string, id int64, err error) {
	if s.observer != nil {
		s.observer.ExportFinished(kind, err)
	}
	if err != nil {
		s.logger.Warn("documents export failed", slog.String("kind", kind), slog.Int64("id", id), slog.Any("error", err))
	}
}

func (s *Service) record(ctx context.Context, kind string, id int64, doc Document) {
	if s.audit == nil {
		return
	}
	_ = s.audit.Record(ctx, shared.AuditLog{
		Action:   shared.AuditExport,
		Entity:   kind,
		EntityID: strconv.FormatInt(id, 10),
		Meta:     map[string]any{"document_id": doc.ID, "url": doc.URL},
	})
}
