package documents

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"
	"google.golang.org/api/googleapi"

	"github.com/harvest-erp/harvest/internal/shared"
)

func TestTranslateClassifiesFailures(t *testing.T) {
	cases := []struct {
		name string
		err  error
		kind error
	}{
		{"unauthorized", &googleapi.Error{Code: http.StatusUnauthorized}, ErrAuthenticationFailed},
		{"missing template", &googleapi.Error{Code: http.StatusNotFound}, ErrTemplateNotFound},
		{"too many requests", &googleapi.Error{Code: http.StatusTooManyRequests}, ErrQuotaExceeded},
		{"rate limited 403", &googleapi.Error{Code: http.StatusForbidden, Errors: []googleapi.ErrorItem{{Reason: "userRateLimitExceeded"}}}, ErrQuotaExceeded},
		{"forbidden", &googleapi.Error{Code: http.StatusForbidden, Errors: []googleapi.ErrorItem{{Reason: "insufficientFilePermissions"}}}, ErrPermissionDenied},
		{"backend", &googleapi.Error{Code: http.StatusServiceUnavailable}, ErrNetwork},
		{"bad request", &googleapi.Error{Code: http.StatusBadRequest}, ErrExportFailed},
		{"token", &oauth2.RetrieveError{ErrorCode: "invalid_grant"}, ErrAuthenticationFailed},
		{"deadline", context.DeadlineExceeded, ErrNetwork},
		{"other", errors.New("boom"), ErrExportFailed},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := translate("copy template", tc.err)
			require.ErrorIs(t, err, tc.kind)
			require.ErrorIs(t, err, shared.ErrExternalService)
		})
	}
}

func TestRetryBacksOffOnQuotaOnly(t *testing.T) {
	exporter := newSheetsExporter(nil, nil, SheetsConfig{MaxRetries: 2, RetryInitial: time.Millisecond})
	var pauses int
	exporter.sleep = func(context.Context, time.Duration) error {
		pauses++
		return nil
	}

	calls := 0
	err := exporter.retry(context.Background(), "write cells", func() error {
		calls++
		if calls < 3 {
			return &googleapi.Error{Code: http.StatusTooManyRequests}
		}
		return nil
	})
	require.NoError(t, err)
	require.Equal(t, 3, calls)
	require.Equal(t, 2, pauses)

	calls, pauses = 0, 0
	err = exporter.retry(context.Background(), "write cells", func() error {
		calls++
		return &googleapi.Error{Code: http.StatusTooManyRequests}
	})
	require.ErrorIs(t, err, ErrQuotaExceeded)
	require.Equal(t, 3, calls)

	calls = 0
	err = exporter.retry(context.Background(), "copy template", func() error {
		calls++
		return &googleapi.Error{Code: http.StatusNotFound}
	})
	require.ErrorIs(t, err, ErrTemplateNotFound)
	require.Equal(t, 1, calls)
}

func TestCreateDocumentRequiresLayout(t *testing.T) {
	exporter := newSheetsExporter(nil, nil, SheetsConfig{})
	_, err := exporter.CreateDocument(context.Background(), "unknown", FieldMap{})
	require.ErrorIs(t, err, ErrTemplateNotFound)
}
