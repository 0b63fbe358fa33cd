package categories

import (
	"context"
	"strconv"
	"strings"

	"github.com/harvest-erp/harvest/internal/shared"
)

// AuditPort abstracts audit logging functionality.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// Service applies category rules.
type Service struct {
	repo  Repository
	audit AuditPort
}

// NewService builds Service.
func NewService(repo Repository, audit AuditPort) *Service {
	return &Service{repo: repo, audit: audit}
}

func (s *Service) List(ctx context.Context, filters shared.ListFilters) ([]Category, int, error) {
	return s.repo.List(ctx, filters)
}

func (s *Service) Get(ctx context.Context, id int64) (Category, error) {
	if id <= 0 {
		return Category{}, ErrNotFound
	}
	return s.repo.Get(ctx, id)
}

func (s *Service) Create(ctx context.Context, name string) (Category, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return Category{}, shared.NewValidationError("name", "is required")
	}
	created, err := s.repo.Create(ctx, Category{Name: name})
	if err != nil {
		return Category{}, err
	}
	s.record(ctx, shared.AuditCreate, created.ID, map[string]any{"name": created.Name})
	return created, nil
}

func (s *Service) Rename(ctx context.Context, id int64, name string) (Category, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return Category{}, shared.NewValidationError("name", "is required")
	}
	updated, err := s.repo.Update(ctx, Category{ID: id, Name: name})
	if err != nil {
		return Category{}, err
	}
	s.record(ctx, shared.AuditUpdate, id, map[string]any{"name": name})
	return updated, nil
}

func (s *Service) Delete(ctx context.Context, id int64) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}
	s.record(ctx, shared.AuditDelete, id, nil)
	return nil
}

func (s *Service) record(ctx context.Context, action string, id int64, meta map[string]any) {
	if s.audit == nil {
		return
	}
	_ = s.audit.Record(ctx, shared.AuditLog{Action: action, Entity: "category", EntityID: strconv.FormatInt(id, 10), Meta: meta})
}
