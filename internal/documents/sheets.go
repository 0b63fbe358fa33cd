package documents

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"time"

	gax "github.com/googleapis/gax-go/v2"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/drive/v3"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
	"google.golang.org/api/sheets/v4"
)

// SheetsConfig configures the Google Sheets exporter.
type SheetsConfig struct {
	CredentialsFile string
	CredentialsJSON string
	// FolderID receives the created copies; empty keeps them next to the template.
	FolderID string
	// Layouts maps template ids to cell layouts.
	Layouts      map[string]Layout
	MaxRetries   int
	RetryInitial time.Duration
	Logger       *slog.Logger
}

// SheetsExporter copies a template spreadsheet with Drive and writes the
// fields into the copy with Sheets.
type SheetsExporter struct {
	drive        *drive.Service
	sheets       *sheets.Service
	folderID     string
	layouts      map[string]Layout
	maxRetries   int
	retryInitial time.Duration
	logger       *slog.Logger
	sleep        func(context.Context, time.Duration) error
}

// NewSheetsExporter authenticates with a service account and builds the
// Drive and Sheets clients once.
func NewSheetsExporter(ctx context.Context, cfg SheetsConfig) (*SheetsExporter, error) {
	creds := []byte(cfg.CredentialsJSON)
	if cfg.CredentialsFile != "" {
		raw, err := os.ReadFile(cfg.CredentialsFile)
		if err != nil {
			return nil, &ExportError{Kind: ErrAuthenticationFailed, Op: "read credentials", Err: err}
		}
		creds = raw
	}
	if len(creds) == 0 {
		return nil, ErrNotConfigured
	}
	jwt, err := google.JWTConfigFromJSON(creds, drive.DriveScope, sheets.SpreadsheetsScope)
	if err != nil {
		return nil, &ExportError{Kind: ErrAuthenticationFailed, Op: "parse credentials", Err: err}
	}
	client := jwt.Client(ctx)
	driveSvc, err := drive.NewService(ctx, option.WithHTTPClient(client))
	if err != nil {
		return nil, fmt.Errorf("documents: drive client: %w", err)
	}
	sheetsSvc, err := sheets.NewService(ctx, option.WithHTTPClient(client))
	if err != nil {
		return nil, fmt.Errorf("documents: sheets client: %w", err)
	}
	return newSheetsExporter(driveSvc, sheetsSvc, cfg), nil
}

func newSheetsExporter(driveSvc *drive.Service, sheetsSvc *sheets.Service, cfg SheetsConfig) *SheetsExporter {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	initial := cfg.RetryInitial
	if initial <= 0 {
		initial = time.Second
	}
	return &SheetsExporter{
		drive:        driveSvc,
		sheets:       sheetsSvc,
		folderID:     cfg.FolderID,
		layouts:      cfg.Layouts,
		maxRetries:   cfg.MaxRetries,
		retryInitial: initial,
		logger:       logger,
		sleep:        gax.Sleep,
	}
}

// CreateDocument copies templateID, names the copy after the title field and
// writes the remaining fields at the template's layout positions. A copy
// whose cells could not be written is removed again.
func (e *SheetsExporter) CreateDocument(ctx context.Context, templateID string, fields FieldMap) (Document, error) {
	layout, ok := e.layouts[templateID]
	if !ok {
		return Document{}, &ExportError{Kind: ErrTemplateNotFound, Op: "layout", Err: fmt.Errorf("no layout for template %q", templateID)}
	}
	file := &drive.File{Name: fields[TitleField]}
	if e.folderID != "" {
		file.Parents = []string{e.folderID}
	}

	var copied *drive.File
	err := e.retry(ctx, "copy template", func() error {
		var err error
		copied, err = e.drive.Files.Copy(templateID, file).SupportsAllDrives(true).Fields("id", "webViewLink").Context(ctx).Do()
		return err
	})
	if err != nil {
		return Document{}, err
	}

	if ranges := layout.ValueRanges(fields); len(ranges) > 0 {
		err = e.retry(ctx, "write cells", func() error {
			_, err := e.sheets.Spreadsheets.Values.BatchUpdate(copied.Id, &sheets.BatchUpdateValuesRequest{
				ValueInputOption: "USER_ENTERED",
				Data:             ranges,
			}).Context(ctx).Do()
			return err
		})
		if err != nil {
			if delErr := e.drive.Files.Delete(copied.Id).SupportsAllDrives(true).Context(ctx).Do(); delErr != nil {
				e.logger.Warn("documents remove partial copy", slog.String("document_id", copied.Id), slog.Any("error", delErr))
			}
			return Document{}, err
		}
	}

	url := copied.WebViewLink
	if url == "" {
		url = fmt.Sprintf("https://docs.google.com/spreadsheets/d/%s/edit", copied.Id)
	}
	return Document{ID: copied.Id, URL: url}, nil
}

// retry runs call and retries quota failures with exponential backoff, at
// most maxRetries times. Every other failure surfaces immediately.
func (e *SheetsExporter) retry(ctx context.Context, op string, call func() error) error {
	bo := gax.Backoff{Initial: e.retryInitial, Max: 30 * time.Second, Multiplier: 2}
	for attempt := 0; ; attempt++ {
		err := call()
		if err == nil {
			return nil
		}
		exportErr := translate(op, err)
		if !errors.Is(exportErr, ErrQuotaExceeded) || attempt >= e.maxRetries {
			return exportErr
		}
		pause := bo.Pause()
		e.logger.Warn("documents quota exceeded, backing off", slog.String("op", op), slog.Int("attempt", attempt+1), slog.Duration("pause", pause))
		if err := e.sleep(ctx, pause); err != nil {
			return &ExportError{Kind: ErrNetwork, Op: op, Err: err}
		}
	}
}

var quotaReasons = map[string]bool{
	"rateLimitExceeded":     true,
	"userRateLimitExceeded": true,
	"quotaExceeded":         true,
	"dailyLimitExceeded":    true,
}

// translate maps Google API and transport errors to failure kinds.
func translate(op string, err error) error {
	var exportErr *ExportError
	if errors.As(err, &exportErr) {
		return exportErr
	}
	kind := ErrExportFailed
	var gerr *googleapi.Error
	var retrieveErr *oauth2.RetrieveError
	var netErr net.Error
	switch {
	case errors.As(err, &gerr):
		kind = kindForStatus(gerr)
	case errors.As(err, &retrieveErr):
		kind = ErrAuthenticationFailed
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled), errors.As(err, &netErr):
		kind = ErrNetwork
	}
	return &ExportError{Kind: kind, Op: op, Err: err}
}

func kindForStatus(gerr *googleapi.Error) error {
	switch gerr.Code {
	case http.StatusUnauthorized:
		return ErrAuthenticationFailed
	case http.StatusNotFound:
		return ErrTemplateNotFound
	case http.StatusTooManyRequests:
		return ErrQuotaExceeded
	case http.StatusForbidden:
		for _, item := range gerr.Errors {
			if quotaReasons[item.Reason] {
				return ErrQuotaExceeded
			}
		}
		return ErrPermissionDenied
	}
	if gerr.Code >= http.StatusInternalServerError {
		return ErrNetwork
	}
	return ErrExportFailed
}
