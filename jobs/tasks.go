package jobs

import (
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/hibiken/asynq"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// QueueExports holds document exports, which wait on Google API quota.
	QueueExports = "exports"

	// TaskDocumentExport renders a delivery slip or an invoice into a spreadsheet.
	TaskDocumentExport = "document:export"
	// TaskInventoryExpiryScan labels open lots by expiry and reports the counts.
	TaskInventoryExpiryScan = "inventory:expiry-scan"
	// TaskReportsWarmup pre-populates the report cache for the default range.
	TaskReportsWarmup = "reports:warmup"
)

// DocumentExportPayload identifies the record to export.
type DocumentExportPayload struct {
	Kind string `json:"kind"`
	ID   int64  `json:"id"`
}

// NewDocumentExportTask constructs an export task. Exports of the same record
// are deduplicated while one is queued.
func NewDocumentExportTask(kind string, id int64) (*asynq.Task, error) {
	if id <= 0 {
		return nil, fmt.Errorf("jobs: invalid %s id %d", kind, id)
	}
	body, err := json.Marshal(DocumentExportPayload{Kind: kind, ID: id})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskDocumentExport, body,
		asynq.Queue(QueueExports),
		asynq.MaxRetry(5),
		asynq.Unique(10*time.Minute),
	), nil
}

// ScheduledPayload carries scheduling metadata for periodic jobs.
type ScheduledPayload struct {
	ScheduledFor time.Time `json:"scheduled_for"`
}

// NewInventoryExpiryScanTask constructs an expiry scan task.
func NewInventoryExpiryScanTask(at time.Time) (*asynq.Task, error) {
	return newScheduledTask(TaskInventoryExpiryScan, at)
}

// NewReportsWarmupTask constructs a report cache warmup task.
func NewReportsWarmupTask(at time.Time) (*asynq.Task, error) {
	return newScheduledTask(TaskReportsWarmup, at)
}

func newScheduledTask(taskType string, at time.Time) (*asynq.Task, error) {
	body, err := json.Marshal(ScheduledPayload{ScheduledFor: at})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(taskType, body, asynq.Queue(QueueDefault), asynq.MaxRetry(3)), nil
}

var triggerable = map[string]func(time.Time) (*asynq.Task, error){
	TaskInventoryExpiryScan: NewInventoryExpiryScanTask,
	TaskReportsWarmup:       NewReportsWarmupTask,
}

// NewTaskByName builds a periodic task for manual triggering.
func NewTaskByName(name string, at time.Time) (*asynq.Task, error) {
	build, ok := triggerable[name]
	if !ok {
		return nil, fmt.Errorf("jobs: unknown job %q (known: %v)", name, TriggerableTasks())
	}
	return build(at)
}

// TriggerableTasks lists the periodic task types in name order.
func TriggerableTasks() []string {
	names := make([]string, 0, len(triggerable))
	for name := range triggerable {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
