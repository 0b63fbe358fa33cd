package invoicing

import (
	"context"
	"errors"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/harvest-erp/harvest/internal/customers"
	"github.com/harvest-erp/harvest/internal/delivery"
	"github.com/harvest-erp/harvest/internal/shared"
)

type memDelivery struct {
	id        int64
	customer  int64
	date      time.Time
	typ       delivery.Type
	status    delivery.Status
	invoiceID *int64
	total     decimal.Decimal
	byRate    map[delivery.TaxRate]decimal.Decimal
}

type memState struct {
	deliveries  map[int64]memDelivery
	invoices    map[int64]Invoice
	nextInvoice int64
}

func (s memState) clone() memState {
	out := memState{deliveries: map[int64]memDelivery{}, invoices: map[int64]Invoice{}, nextInvoice: s.nextInvoice}
	for id, d := range s.deliveries {
		out.deliveries[id] = d
	}
	for id, inv := range s.invoices {
		out.invoices[id] = inv
	}
	return out
}

type memoryRepo struct {
	mu        sync.Mutex
	state     memState
	customers map[int64]CustomerInfo
	failClaim bool
}

type memoryTx struct {
	repo *memoryRepo
	st   *memState
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{
		state: memState{deliveries: map[int64]memDelivery{}, invoices: map[int64]Invoice{}},
		customers: map[int64]CustomerInfo{
			1: {ID: 1, Name: "Green Grocer", BillingCycle: customers.BillingMonthly, BillingDay: 31, PaymentTerms: customers.Terms30Days},
			2: {ID: 2, Name: "Hotel Sakura", BillingCycle: customers.BillingMonthly, BillingDay: 20, PaymentTerms: customers.TermsEndOfMonth},
		},
	}
}

func (m *memoryRepo) addDelivery(id, customer int64, date string, typ delivery.Type, status delivery.Status, amounts map[delivery.TaxRate]string) {
	d := memDelivery{id: id, customer: customer, typ: typ, status: status, total: decimal.Zero, byRate: map[delivery.TaxRate]decimal.Decimal{}}
	d.date, _ = time.Parse(shared.DateLayout, date)
	for rate, v := range amounts {
		amount := decimal.RequireFromString(v)
		d.byRate[rate] = amount
		d.total = d.total.Add(amount)
	}
	m.state.deliveries[id] = d
}

func (m *memoryRepo) delivery(id int64) memDelivery {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state.deliveries[id]
}

func pendingFrom(st *memState, customersByID map[int64]CustomerInfo, from, to time.Time, customerID int64) []PendingDelivery {
	var out []PendingDelivery
	for _, d := range st.deliveries {
		if d.status != delivery.StatusDelivered || d.invoiceID != nil {
			continue
		}
		if d.date.Before(from) || d.date.After(to) {
			continue
		}
		if customerID > 0 && d.customer != customerID {
			continue
		}
		out = append(out, PendingDelivery{ID: d.id, Customer: customersByID[d.customer], DeliveryDate: d.date, Type: d.typ, TotalAmount: d.total, ByRate: d.byRate})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (m *memoryRepo) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	working := m.state.clone()
	if err := fn(ctx, &memoryTx{repo: m, st: &working}); err != nil {
		return err
	}
	m.state = working
	return nil
}

func (m *memoryRepo) Pending(ctx context.Context, from, to time.Time, customerID int64) ([]PendingDelivery, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return pendingFrom(&m.state, m.customers, from, to, customerID), nil
}

func (m *memoryRepo) ActiveInvoices(ctx context.Context, year, month int, customerID int64) (map[int64]int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := map[int64]int64{}
	for _, inv := range m.state.invoices {
		if inv.Year == year && inv.Month == month && inv.Status != StatusVoid && (customerID == 0 || inv.CustomerID == customerID) {
			out[inv.CustomerID] = inv.ID
		}
	}
	return out, nil
}

func (m *memoryRepo) Customer(ctx context.Context, id int64) (CustomerInfo, error) {
	c, ok := m.customers[id]
	if !ok {
		return CustomerInfo{}, ErrUnknownCustomer
	}
	return c, nil
}

func (m *memoryRepo) Get(ctx context.Context, id int64) (Invoice, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	inv, ok := m.state.invoices[id]
	if !ok {
		return Invoice{}, ErrNotFound
	}
	return inv, nil
}

func (m *memoryRepo) List(ctx context.Context, filter ListFilter) ([]Invoice, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []Invoice
	for _, inv := range m.state.invoices {
		if filter.CustomerID == 0 || inv.CustomerID == filter.CustomerID {
			out = append(out, inv)
		}
	}
	return out, len(out), nil
}

func (m *memoryRepo) SetDocument(ctx context.Context, id int64, documentID, url string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	inv, ok := m.state.invoices[id]
	if !ok {
		return ErrNotFound
	}
	inv.GoogleSheetID, inv.GoogleSheetURL = &documentID, &url
	m.state.invoices[id] = inv
	return nil
}

func (t *memoryTx) Customer(ctx context.Context, id int64) (CustomerInfo, error) {
	c, ok := t.repo.customers[id]
	if !ok {
		return CustomerInfo{}, ErrUnknownCustomer
	}
	return c, nil
}

func (t *memoryTx) HasActiveInvoice(ctx context.Context, customerID int64, year, month int) (bool, error) {
	for _, inv := range t.st.invoices {
		if inv.CustomerID == customerID && inv.Year == year && inv.Month == month && inv.Status != StatusVoid {
			return true, nil
		}
	}
	return false, nil
}

func (t *memoryTx) LockPending(ctx context.Context, customerID int64, from, to time.Time) ([]PendingDelivery, error) {
	return pendingFrom(t.st, t.repo.customers, from, to, customerID), nil
}

func (t *memoryTx) NextSequence(ctx context.Context, customerID int64, year, month int) (int, error) {
	seq := 1
	for _, inv := range t.st.invoices {
		if inv.CustomerID == customerID && inv.Year == year && inv.Month == month {
			seq++
		}
	}
	return seq, nil
}

func (t *memoryTx) Insert(ctx context.Context, inv Invoice) (int64, error) {
	t.st.nextInvoice++
	inv.ID = t.st.nextInvoice
	t.st.invoices[inv.ID] = inv
	return inv.ID, nil
}

func (t *memoryTx) ClaimDeliveries(ctx context.Context, invoiceID int64, deliveryIDs []int64) (int64, error) {
	if t.repo.failClaim {
		return 0, errors.New("connection reset")
	}
	var n int64
	for _, id := range deliveryIDs {
		d := t.st.deliveries[id]
		if d.status != delivery.StatusDelivered || d.invoiceID != nil {
			continue
		}
		invID := invoiceID
		d.status, d.invoiceID = delivery.StatusInvoiced, &invID
		t.st.deliveries[id] = d
		n++
	}
	return n, nil
}

func (t *memoryTx) GetForUpdate(ctx context.Context, id int64) (Invoice, error) {
	inv, ok := t.st.invoices[id]
	if !ok {
		return Invoice{}, ErrNotFound
	}
	return inv, nil
}

func (t *memoryTx) MarkVoid(ctx context.Context, id int64, at time.Time) error {
	inv := t.st.invoices[id]
	inv.Status, inv.VoidedAt = StatusVoid, &at
	t.st.invoices[id] = inv
	return nil
}

func (t *memoryTx) ReleaseDeliveries(ctx context.Context, invoiceID int64) (int64, error) {
	var n int64
	for id, d := range t.st.deliveries {
		if d.invoiceID != nil && *d.invoiceID == invoiceID {
			d.status, d.invoiceID = delivery.StatusDelivered, nil
			t.st.deliveries[id] = d
			n++
		}
	}
	return n, nil
}

func fixedNow() time.Time {
	return time.Date(2025, 4, 2, 9, 30, 0, 0, time.UTC)
}

func newTestService(repo *memoryRepo) *Service {
	return NewService(repo, ServiceConfig{Now: fixedNow})
}

func requireDecimal(t *testing.T, want string, got decimal.Decimal) {
	t.Helper()
	require.True(t, decimal.RequireFromString(want).Equal(got), "want %s, got %s", want, got)
}

func TestMarchInvoiceScenario(t *testing.T) {
	repo := newMemoryRepo()
	repo.addDelivery(1, 1, "2025-03-03", delivery.TypeNormal, delivery.StatusDelivered, map[delivery.TaxRate]string{8: "5000"})
	repo.addDelivery(2, 1, "2025-03-20", delivery.TypeNormal, delivery.StatusDelivered, map[delivery.TaxRate]string{8: "7000"})
	repo.addDelivery(3, 1, "2025-02-28", delivery.TypeNormal, delivery.StatusDelivered, map[delivery.TaxRate]string{8: "900"})
	repo.addDelivery(4, 1, "2025-03-31", delivery.TypeNormal, delivery.StatusPending, map[delivery.TaxRate]string{8: "400"})
	repo.addDelivery(5, 2, "2025-03-31", delivery.TypeNormal, delivery.StatusDelivered, map[delivery.TaxRate]string{10: "1000"})
	svc := newTestService(repo)
	ctx := context.Background()

	summary, err := svc.Summarize(ctx, 2025, 3, 0)
	require.NoError(t, err)
	require.Len(t, summary.Customers, 2)
	first := summary.Customers[0]
	require.Equal(t, int64(1), first.ID)
	require.Equal(t, 2, first.DeliveryCount)
	requireDecimal(t, "12000", first.TotalAmount)
	requireDecimal(t, "960", first.TaxTotal)
	requireDecimal(t, "12960", first.GrandTotal)
	require.Equal(t, []int64{1, 2}, first.DeliveryIDs)
	require.False(t, first.HasInvoice)
	require.Equal(t, customers.Terms30Days, first.PaymentTerms)
	require.Equal(t, int64(2), summary.Customers[1].ID)

	inv, err := svc.GenerateInvoice(ctx, GenerateRequest{CustomerID: 1, Year: 2025, Month: 3})
	require.NoError(t, err)
	require.Equal(t, "INV-202503-1-1", inv.Number)
	requireDecimal(t, "12000", inv.TotalAmount)
	require.Equal(t, []int64{1, 2}, inv.DeliveryIDs)
	require.Equal(t, StatusIssued, inv.Status)
	require.Equal(t, time.Date(2025, 4, 2, 0, 0, 0, 0, time.UTC), inv.IssueDate)
	require.Equal(t, time.Date(2025, 5, 2, 0, 0, 0, 0, time.UTC), inv.DueDate)
	for _, id := range []int64{1, 2} {
		d := repo.delivery(id)
		require.Equal(t, delivery.StatusInvoiced, d.status)
		require.Equal(t, inv.ID, *d.invoiceID)
	}
	require.Nil(t, repo.delivery(3).invoiceID)
	require.Nil(t, repo.delivery(4).invoiceID)

	summary, err = svc.Summarize(ctx, 2025, 3, 1)
	require.NoError(t, err)
	require.Len(t, summary.Customers, 1)
	require.True(t, summary.Customers[0].HasInvoice)
	require.Equal(t, 0, summary.Customers[0].DeliveryCount)
	require.Equal(t, inv.ID, *summary.Customers[0].InvoiceID)
}

func TestGenerateInvoiceIsIdempotent(t *testing.T) {
	repo := newMemoryRepo()
	repo.addDelivery(1, 1, "2025-03-03", delivery.TypeNormal, delivery.StatusDelivered, map[delivery.TaxRate]string{8: "5000"})
	svc := newTestService(repo)
	ctx := context.Background()

	_, err := svc.GenerateInvoice(ctx, GenerateRequest{CustomerID: 1, Year: 2025, Month: 3})
	require.NoError(t, err)

	// A delivery added after invoicing does not reopen the month.
	repo.addDelivery(2, 1, "2025-03-25", delivery.TypeNormal, delivery.StatusDelivered, map[delivery.TaxRate]string{8: "100"})
	_, err = svc.GenerateInvoice(ctx, GenerateRequest{CustomerID: 1, Year: 2025, Month: 3})
	require.ErrorIs(t, err, shared.ErrAlreadyInvoiced)
	require.Len(t, repo.state.invoices, 1)
	require.Nil(t, repo.delivery(2).invoiceID)
}

func TestReturnNotesCountNegative(t *testing.T) {
	repo := newMemoryRepo()
	repo.addDelivery(1, 1, "2025-03-03", delivery.TypeNormal, delivery.StatusDelivered, map[delivery.TaxRate]string{10: "10000"})
	repo.addDelivery(2, 1, "2025-03-10", delivery.TypeReturn, delivery.StatusDelivered, map[delivery.TaxRate]string{10: "3000"})
	svc := newTestService(repo)

	summary, err := svc.Summarize(context.Background(), 2025, 3, 1)
	require.NoError(t, err)
	require.Len(t, summary.Customers, 1)
	row := summary.Customers[0]
	require.Equal(t, 2, row.DeliveryCount)
	requireDecimal(t, "7000", row.TotalAmount)
	require.Len(t, row.TaxLines, 1)
	requireDecimal(t, "7000", row.TaxLines[0].Subtotal)
	requireDecimal(t, "700", row.TaxTotal)
	requireDecimal(t, "7700", row.GrandTotal)
}

func TestSplitTaxRoundsOncePerRate(t *testing.T) {
	lines, total := SplitTax(map[delivery.TaxRate]decimal.Decimal{
		delivery.TaxStandard: decimal.RequireFromString("999"),
		delivery.TaxReduced:  decimal.RequireFromString("1234"),
	})
	require.Len(t, lines, 2)
	require.Equal(t, delivery.TaxReduced, lines[0].Rate)
	requireDecimal(t, "98", lines[0].Tax)
	requireDecimal(t, "99", lines[1].Tax)
	requireDecimal(t, "197", total)

	requireDecimal(t, "-98", taxFor(decimal.RequireFromString("-1234"), delivery.TaxReduced))
}

func TestGenerateInvoiceErrors(t *testing.T) {
	repo := newMemoryRepo()
	repo.addDelivery(1, 1, "2025-03-03", delivery.TypeNormal, delivery.StatusPending, map[delivery.TaxRate]string{8: "5000"})
	svc := newTestService(repo)
	ctx := context.Background()

	_, err := svc.GenerateInvoice(ctx, GenerateRequest{CustomerID: 1, Year: 2025, Month: 3})
	require.ErrorIs(t, err, shared.ErrNoPendingDeliveries)

	_, err = svc.GenerateInvoice(ctx, GenerateRequest{CustomerID: 9, Year: 2025, Month: 3})
	require.ErrorIs(t, err, shared.ErrValidation)

	_, err = svc.GenerateInvoice(ctx, GenerateRequest{CustomerID: 1, Year: 2025, Month: 13})
	require.ErrorIs(t, err, shared.ErrValidation)

	_, err = svc.Summarize(ctx, 2025, 0, 0)
	require.ErrorIs(t, err, shared.ErrValidation)
}

func TestGenerateInvoiceRollsBackOnClaimFailure(t *testing.T) {
	repo := newMemoryRepo()
	repo.addDelivery(1, 1, "2025-03-03", delivery.TypeNormal, delivery.StatusDelivered, map[delivery.TaxRate]string{8: "5000"})
	repo.failClaim = true
	svc := newTestService(repo)

	_, err := svc.GenerateInvoice(context.Background(), GenerateRequest{CustomerID: 1, Year: 2025, Month: 3})
	require.Error(t, err)
	require.Empty(t, repo.state.invoices)
	require.Equal(t, delivery.StatusDelivered, repo.delivery(1).status)
}

func TestVoidReleasesDeliveries(t *testing.T) {
	repo := newMemoryRepo()
	repo.addDelivery(1, 2, "2025-03-03", delivery.TypeNormal, delivery.StatusDelivered, map[delivery.TaxRate]string{8: "5000"})
	svc := newTestService(repo)
	ctx := context.Background()

	inv, err := svc.GenerateInvoice(ctx, GenerateRequest{CustomerID: 2, Year: 2025, Month: 3})
	require.NoError(t, err)
	require.Equal(t, time.Date(2025, 5, 31, 0, 0, 0, 0, time.UTC), inv.DueDate)

	voided, err := svc.Void(ctx, inv.ID)
	require.NoError(t, err)
	require.Equal(t, StatusVoid, voided.Status)
	require.NotNil(t, voided.VoidedAt)
	require.Equal(t, delivery.StatusDelivered, repo.delivery(1).status)
	require.Nil(t, repo.delivery(1).invoiceID)

	_, err = svc.Void(ctx, inv.ID)
	require.ErrorIs(t, err, shared.ErrConflict)

	again, err := svc.GenerateInvoice(ctx, GenerateRequest{CustomerID: 2, Year: 2025, Month: 3})
	require.NoError(t, err)
	require.Equal(t, "INV-202503-2-2", again.Number)
}

func TestDueDate(t *testing.T) {
	issue := time.Date(2025, 1, 31, 15, 0, 0, 0, time.UTC)
	cases := []struct {
		terms  customers.PaymentTerms
		policy EndOfMonthPolicy
		want   string
	}{
		{customers.TermsImmediate, NextMonthEnd, "2025-01-31"},
		{customers.Terms7Days, NextMonthEnd, "2025-02-07"},
		{customers.Terms15Days, NextMonthEnd, "2025-02-15"},
		{customers.Terms30Days, NextMonthEnd, "2025-03-02"},
		{customers.Terms60Days, NextMonthEnd, "2025-04-01"},
		{customers.TermsEndOfMonth, NextMonthEnd, "2025-02-28"},
		{customers.TermsEndOfMonth, SameMonthEnd, "2025-01-31"},
		{customers.PaymentTerms("someday"), NextMonthEnd, "2025-03-02"},
	}
	for _, tc := range cases {
		got := DueDate(tc.terms, issue, tc.policy)
		require.Equal(t, tc.want, got.Format(shared.DateLayout), "%s/%s", tc.terms, tc.policy)
	}

	_, err := ParseEndOfMonthPolicy("whenever")
	require.Error(t, err)
	policy, err := ParseEndOfMonthPolicy("")
	require.NoError(t, err)
	require.Equal(t, NextMonthEnd, policy)
}
