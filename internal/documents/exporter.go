// Package documents renders deliveries and invoices into spreadsheets copied
// from a template.
package documents

import (
	"context"
	"errors"
	"fmt"

	"github.com/harvest-erp/harvest/internal/shared"
)

// FieldMap holds rendered values keyed by field name.
type FieldMap map[string]string

// TitleField names the created document.
const TitleField = "title"

// Document references a created spreadsheet.
type Document struct {
	ID  string `json:"id"`
	URL string `json:"url"`
}

// Exporter creates a document from a template and fills in fields.
type Exporter interface {
	CreateDocument(ctx context.Context, templateID string, fields FieldMap) (Document, error)
}

// Failure kinds reported by exporters.
var (
	ErrAuthenticationFailed = errors.New("authentication failed")
	ErrTemplateNotFound     = errors.New("template not found")
	ErrPermissionDenied     = errors.New("permission denied")
	ErrQuotaExceeded        = errors.New("quota exceeded")
	ErrNetwork              = errors.New("network error")
	ErrExportFailed         = errors.New("export failed")
	// ErrNotConfigured indicates no exporter or template was configured.
	ErrNotConfigured = fmt.Errorf("document export is not configured: %w", shared.ErrExternalService)
)

// ExportError wraps a failure kind with the step that failed.
type ExportError struct {
	Kind error
	Op   string
	Err  error
}

func (e *ExportError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("documents: %s: %v", e.Op, e.Kind)
	}
	return fmt.Sprintf("documents: %s: %v: %v", e.Op, e.Kind, e.Err)
}

// Is matches the failure kind and shared.ErrExternalService.
func (e *ExportError) Is(target error) bool {
	return target == e.Kind || target == shared.ErrExternalService
}

func (e *ExportError) Unwrap() error {
	return e.Err
}
