package customers

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/harvest-erp/harvest/internal/shared"
)

// AuditPort abstracts audit logging functionality.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

type Service struct {
	repo  Repository
	audit AuditPort
}

func NewService(repo Repository, audit AuditPort) *Service {
	return &Service{repo: repo, audit: audit}
}

func (s *Service) Create(ctx context.Context, req CreateCustomerRequest) (*Customer, error) {
	customer := Customer{
		CompanyName:               strings.TrimSpace(req.CompanyName),
		ContactPerson:             strings.TrimSpace(req.ContactPerson),
		Phone:                     strings.TrimSpace(req.Phone),
		Email:                     strings.TrimSpace(req.Email),
		DeliveryAddress:           req.DeliveryAddress,
		BillingAddress:            req.BillingAddress,
		BillingCycle:              req.BillingCycle,
		BillingDay:                req.BillingDay,
		PaymentTerms:              req.PaymentTerms,
		InvoiceRegistrationNumber: strings.TrimSpace(req.InvoiceRegistrationNumber),
		BillingCustomerID:         req.BillingCustomerID,
		Notes:                     req.Notes,
	}
	applyDefaults(&customer)
	if err := validateCustomer(customer); err != nil {
		return nil, err
	}

	err := s.repo.WithTx(ctx, func(ctx context.Context, repo Repository) error {
		if customer.BillingCustomerID != nil {
			if err := checkBillingTarget(ctx, repo, 0, *customer.BillingCustomerID); err != nil {
				return err
			}
		}
		id, err := repo.Create(ctx, customer)
		if err != nil {
			return err
		}
		customer.ID = id
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("create customer: %w", err)
	}
	s.record(ctx, shared.AuditCreate, customer.ID)
	return &customer, nil
}

func (s *Service) Update(ctx context.Context, id int64, req UpdateCustomerRequest) (*Customer, error) {
	updates := make(map[string]interface{})
	if req.CompanyName != nil {
		name := strings.TrimSpace(*req.CompanyName)
		if name == "" {
			return nil, shared.NewValidationError("company_name", "is required")
		}
		updates["company_name"] = name
	}
	if req.ContactPerson != nil {
		updates["contact_person"] = strings.TrimSpace(*req.ContactPerson)
	}
	if req.Phone != nil {
		updates["phone"] = strings.TrimSpace(*req.Phone)
	}
	if req.Email != nil {
		updates["email"] = strings.TrimSpace(*req.Email)
	}
	if req.DeliveryAddress != nil {
		updates["delivery_address"] = *req.DeliveryAddress
	}
	if req.BillingAddress != nil {
		updates["billing_address"] = *req.BillingAddress
	}
	if req.BillingCycle != nil {
		if !req.BillingCycle.IsValid() {
			return nil, shared.NewValidationError("billing_cycle", "must be monthly, weekly or immediate")
		}
		updates["billing_cycle"] = *req.BillingCycle
	}
	if req.BillingDay != nil {
		if *req.BillingDay < 1 || *req.BillingDay > 31 {
			return nil, shared.NewValidationError("billing_day", "must be between 1 and 31")
		}
		updates["billing_day"] = *req.BillingDay
	}
	if req.PaymentTerms != nil {
		if !req.PaymentTerms.IsValid() {
			return nil, shared.NewValidationError("payment_terms", "is not a known payment term")
		}
		updates["payment_terms"] = *req.PaymentTerms
	}
	if req.InvoiceRegistrationNumber != nil {
		updates["invoice_registration_number"] = strings.TrimSpace(*req.InvoiceRegistrationNumber)
	}
	if req.Notes != nil {
		updates["notes"] = *req.Notes
	}

	err := s.repo.WithTx(ctx, func(ctx context.Context, repo Repository) error {
		if _, err := repo.Get(ctx, id); err != nil {
			return err
		}
		if req.BillingCustomerID != nil {
			if *req.BillingCustomerID == 0 {
				updates["billing_customer_id"] = nil
			} else {
				if err := checkBillingTarget(ctx, repo, id, *req.BillingCustomerID); err != nil {
					return err
				}
				updates["billing_customer_id"] = *req.BillingCustomerID
			}
		}
		return repo.Update(ctx, id, updates)
	})
	if err != nil {
		return nil, fmt.Errorf("update customer: %w", err)
	}
	s.record(ctx, shared.AuditUpdate, id)
	return s.repo.Get(ctx, id)
}

func (s *Service) Get(ctx context.Context, id int64) (*Customer, error) {
	return s.repo.Get(ctx, id)
}

func (s *Service) List(ctx context.Context, req ListCustomersRequest) ([]Customer, int, error) {
	if req.BillingCycle != "" && !req.BillingCycle.IsValid() {
		return nil, 0, shared.NewValidationError("billing_cycle", "must be monthly, weekly or immediate")
	}
	return s.repo.List(ctx, req)
}

// Delete removes a customer. Customers with deliveries, invoices or
// delegating customers are rejected with ErrInUse.
func (s *Service) Delete(ctx context.Context, id int64) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}
	s.record(ctx, shared.AuditDelete, id)
	return nil
}

// checkBillingTarget enforces one level of billing delegation: the target
// must exist, must not be the customer itself and must not delegate its own
// billing, and a customer others bill through cannot start delegating.
func checkBillingTarget(ctx context.Context, repo Repository, selfID, targetID int64) error {
	if targetID == selfID {
		return shared.NewValidationError("billing_customer_id", "a customer cannot bill to itself")
	}
	target, err := repo.Get(ctx, targetID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return shared.NewValidationError("billing_customer_id", "billing customer does not exist")
		}
		return err
	}
	if target.BillingCustomerID != nil {
		return shared.NewValidationError("billing_customer_id", "billing customer delegates its own billing")
	}
	if selfID > 0 {
		n, err := repo.CountDelegates(ctx, selfID)
		if err != nil {
			return err
		}
		if n > 0 {
			return shared.NewValidationError("billing_customer_id", "customer is the billing customer of others")
		}
	}
	return nil
}

func applyDefaults(c *Customer) {
	if c.BillingCycle == "" {
		c.BillingCycle = BillingMonthly
	}
	if c.BillingDay == 0 {
		c.BillingDay = 31
	}
	if c.PaymentTerms == "" {
		c.PaymentTerms = Terms30Days
	}
}

func validateCustomer(c Customer) error {
	switch {
	case c.CompanyName == "":
		return shared.NewValidationError("company_name", "is required")
	case !c.BillingCycle.IsValid():
		return shared.NewValidationError("billing_cycle", "must be monthly, weekly or immediate")
	case c.BillingDay < 1 || c.BillingDay > 31:
		return shared.NewValidationError("billing_day", "must be between 1 and 31")
	case !c.PaymentTerms.IsValid():
		return shared.NewValidationError("payment_terms", "is not a known payment term")
	}
	return nil
}

func (s *Service) record(ctx context.Context, action string, id int64) {
	if s.audit == nil {
		return
	}
	_ = s.audit.Record(ctx, shared.AuditLog{Action: action, Entity: "customer", EntityID: strconv.FormatInt(id, 10)})
}
