package suppliers

import (
	"context"
	"strconv"

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

func (s *Service) List(ctx context.Context, filters shared.ListFilters) ([]Supplier, int, error) {
	return s.repo.List(ctx, filters)
}

func (s *Service) Get(ctx context.Context, id int64) (Supplier, error) {
	if id <= 0 {
		return Supplier{}, ErrNotFound
	}
	return s.repo.Get(ctx, id)
}

func (s *Service) Create(ctx context.Context, in Input) (Supplier, error) {
	in, err := normalize(in)
	if err != nil {
		return Supplier{}, err
	}
	created, err := s.repo.Create(ctx, in)
	if err != nil {
		return Supplier{}, err
	}
	s.record(ctx, shared.AuditCreate, created.ID)
	return created, nil
}

func (s *Service) Update(ctx context.Context, id int64, in Input) (Supplier, error) {
	in, err := normalize(in)
	if err != nil {
		return Supplier{}, err
	}
	updated, err := s.repo.Update(ctx, id, in)
	if err != nil {
		return Supplier{}, err
	}
	s.record(ctx, shared.AuditUpdate, id)
	return updated, nil
}

// Delete removes a supplier that no purchase references.
func (s *Service) Delete(ctx context.Context, id int64) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}
	s.record(ctx, shared.AuditDelete, id)
	return nil
}

func (s *Service) record(ctx context.Context, action string, id int64) {
	if s.audit == nil {
		return
	}
	_ = s.audit.Record(ctx, shared.AuditLog{Action: action, Entity: "supplier", EntityID: strconv.FormatInt(id, 10)})
}
