package export

import (
	"bytes"
	"net/http/httptest"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func TestWriteCSVQuotesOnlyWhenNeeded(t *testing.T) {
	table := Table{Columns: []string{"customer", "note", "amount"}}
	table.AddRow("Kita Market", "fresh, chilled", Decimal(decimal.RequireFromString("12000")))
	table.AddRow("Aoba", `say "hi"`, "-3000")

	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, table))
	require.Equal(t, "customer,note,amount\nKita Market,\"fresh, chilled\",12000\nAoba,\"say \"\"hi\"\"\",-3000\n", buf.String())
}

func TestWriteCSVRejectsRaggedRows(t *testing.T) {
	table := Table{Columns: []string{"a", "b"}}
	table.AddRow("only one")
	require.Error(t, WriteCSV(&bytes.Buffer{}, table))
}

func TestServeCSVSetsHeaders(t *testing.T) {
	rr := httptest.NewRecorder()
	require.NoError(t, ServeCSV(rr, "monthly.csv", Table{Columns: []string{"month"}}))
	require.Equal(t, "text/csv; charset=utf-8", rr.Header().Get("Content-Type"))
	require.Contains(t, rr.Header().Get("Content-Disposition"), "monthly.csv")
	require.Equal(t, "month\n", rr.Body.String())
}
