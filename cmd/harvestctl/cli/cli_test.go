package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/hibiken/asynq"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/harvest-erp/harvest/internal/invoicing"
	"github.com/harvest-erp/harvest/internal/shared"
	"github.com/harvest-erp/harvest/internal/users"
	"github.com/harvest-erp/harvest/jobs"
)

type stubAdmins struct {
	name, email, password string
}

func (s *stubAdmins) EnsureAdmin(_ context.Context, name, email, password string) (*users.User, error) {
	s.name, s.email, s.password = name, email, password
	return &users.User{ID: 7, Email: email, Role: shared.RoleAdmin}, nil
}

type stubInvoices struct {
	summary   invoicing.Summary
	failFor   int64
	generated []int64
}

func (s *stubInvoices) Summarize(_ context.Context, year, month int, _ int64) (invoicing.Summary, error) {
	s.summary.Year, s.summary.Month = year, month
	return s.summary, nil
}

func (s *stubInvoices) GenerateInvoice(_ context.Context, req invoicing.GenerateRequest) (invoicing.Invoice, error) {
	if req.CustomerID == s.failFor {
		return invoicing.Invoice{}, invoicing.ErrAlreadyInvoiced
	}
	s.generated = append(s.generated, req.CustomerID)
	return invoicing.Invoice{Number: "INV-202404-0001", CustomerID: req.CustomerID, GrandTotal: decimal.NewFromInt(10800)}, nil
}

type stubQueue struct {
	enqueued []*asynq.Task
	infos    map[string]*asynq.QueueInfo
}

func (s *stubQueue) Enqueue(_ context.Context, task *asynq.Task) (*asynq.TaskInfo, error) {
	s.enqueued = append(s.enqueued, task)
	return &asynq.TaskInfo{ID: "t1", Type: task.Type(), Queue: jobs.QueueDefault}, nil
}

func (s *stubQueue) GetQueueInfo(queue string) (*asynq.QueueInfo, error) {
	info, ok := s.infos[queue]
	if !ok {
		return nil, asynq.ErrQueueNotFound
	}
	return info, nil
}

func (s *stubQueue) ListScheduledTasks(string, ...asynq.ListOption) ([]*asynq.TaskInfo, error) {
	return nil, nil
}

func (s *stubQueue) Close() error { return nil }

func run(t *testing.T, deps *Deps, args ...string) (string, string, error) {
	t.Helper()
	root := NewRootCommand(func(context.Context) (*Deps, func(), error) {
		return deps, func() {}, nil
	})
	stdout, stderr := new(bytes.Buffer), new(bytes.Buffer)
	root.SetOut(stdout)
	root.SetErr(stderr)
	root.SetArgs(append(args, "--env-file", t.TempDir()+"/none.env"))
	err := root.ExecuteContext(context.Background())
	return stdout.String(), stderr.String(), err
}

func TestCreateAdminCommand(t *testing.T) {
	admins := &stubAdmins{}
	out, _, err := run(t, &Deps{Users: admins}, "users", "create-admin", "--email", "owner@farm.example", "--password", "password123")
	require.NoError(t, err)
	require.Equal(t, "Administrator", admins.name)
	require.Equal(t, "password123", admins.password)
	require.Contains(t, out, "admin #7 owner@farm.example ready")
}

func TestCreateAdminRequiresPassword(t *testing.T) {
	t.Setenv("HARVEST_ADMIN_PASSWORD", "")
	_, _, err := run(t, &Deps{Users: &stubAdmins{}}, "users", "create-admin", "--email", "owner@farm.example")
	require.Error(t, err)
}

func TestSummarizePrintsJSON(t *testing.T) {
	inv := &stubInvoices{summary: invoicing.Summary{Customers: []invoicing.CustomerSummary{
		{CustomerInfo: invoicing.CustomerInfo{ID: 1, Name: "Green Grocer"}, DeliveryCount: 2, DeliveryIDs: []int64{3, 4}},
	}}}
	out, _, err := run(t, &Deps{Invoices: inv}, "invoices", "summarize", "--year", "2024", "--month", "4")
	require.NoError(t, err)
	var got invoicing.Summary
	require.NoError(t, json.Unmarshal([]byte(out), &got))
	require.Equal(t, 2024, got.Year)
	require.Equal(t, 4, got.Month)
	require.Len(t, got.Customers, 1)
}

func TestGenerateAllSkipsInvoicedAndReportsFailures(t *testing.T) {
	one := int64(9)
	inv := &stubInvoices{
		failFor: 2,
		summary: invoicing.Summary{Customers: []invoicing.CustomerSummary{
			{CustomerInfo: invoicing.CustomerInfo{ID: 1}, DeliveryIDs: []int64{10}},
			{CustomerInfo: invoicing.CustomerInfo{ID: 2}, DeliveryIDs: []int64{11}},
			{CustomerInfo: invoicing.CustomerInfo{ID: 3}, HasInvoice: true, InvoiceID: &one, DeliveryIDs: []int64{}},
			{CustomerInfo: invoicing.CustomerInfo{ID: 4}, DeliveryIDs: []int64{12}},
		}},
	}
	out, stderr, err := run(t, &Deps{Invoices: inv}, "invoices", "generate", "--all", "--year", "2024", "--month", "4")
	require.Error(t, err)
	require.Contains(t, err.Error(), "1 of 3 invoices failed")
	require.Equal(t, []int64{1, 4}, inv.generated)
	require.Contains(t, out, "INV-202404-0001")
	require.Contains(t, out, "10800")
	require.Contains(t, stderr, "customer 2")
}

func TestGenerateNeedsExactlyOneTarget(t *testing.T) {
	_, _, err := run(t, &Deps{Invoices: &stubInvoices{}}, "invoices", "generate", "--all", "--customer", "3")
	require.Error(t, err)
	_, _, err = run(t, &Deps{Invoices: &stubInvoices{}}, "invoices", "generate")
	require.Error(t, err)
}

func TestJobsTriggerAndQueues(t *testing.T) {
	queue := &stubQueue{infos: map[string]*asynq.QueueInfo{
		jobs.QueueExports: {Queue: jobs.QueueExports, Pending: 2, Retry: 1},
	}}
	jobsCLI := NewJobsCLIWith(queue, queue)
	jobsCLI.now = func() time.Time { return time.Date(2024, 4, 1, 6, 0, 0, 0, time.UTC) }
	deps := &Deps{Jobs: jobsCLI}

	out, _, err := run(t, deps, "jobs", "trigger", jobs.TaskInventoryExpiryScan)
	require.NoError(t, err)
	require.Len(t, queue.enqueued, 1)
	require.Equal(t, jobs.TaskInventoryExpiryScan, queue.enqueued[0].Type())
	require.Contains(t, out, "enqueued inventory:expiry-scan")

	_, _, err = run(t, deps, "jobs", "trigger", "unknown:job")
	require.Error(t, err)

	stats, err := jobsCLI.InspectQueues()
	require.NoError(t, err)
	require.Equal(t, []QueueStats{
		{Queue: jobs.QueueExports, Pending: 2, Retry: 1},
		{Queue: jobs.QueueDefault},
	}, stats)

	out, _, err = run(t, deps, "jobs", "queues")
	require.NoError(t, err)
	require.Contains(t, out, "exports")
	require.Contains(t, out, "default")
}

func TestOpenErrorsSurface(t *testing.T) {
	root := NewRootCommand(func(context.Context) (*Deps, func(), error) {
		return nil, nil, errors.New("postgres down")
	})
	root.SetOut(new(bytes.Buffer))
	root.SetErr(new(bytes.Buffer))
	root.SetArgs([]string{"invoices", "summarize", "--env-file", t.TempDir() + "/none.env"})
	require.EqualError(t, root.Execute(), "postgres down")
}

func TestMigrateReportsAppliedVersions(t *testing.T) {
	deps := &Deps{Migrate: func(context.Context) ([]string, error) { return []string{"000001"}, nil }}
	out, _, err := run(t, deps, "db", "migrate")
	require.NoError(t, err)
	require.Equal(t, "applied 000001\n", out)

	deps.Migrate = func(context.Context) ([]string, error) { return nil, nil }
	out, _, err = run(t, deps, "db", "migrate")
	require.NoError(t, err)
	require.Equal(t, "schema up to date\n", out)
}
