package cli

import (
	"context"
	"errors"
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/hibiken/asynq"
	"github.com/spf13/cobra"

	"github.com/harvest-erp/harvest/jobs"
)

// TaskEnqueuer submits tasks.
type TaskEnqueuer interface {
	Enqueue(ctx context.Context, task *asynq.Task) (*asynq.TaskInfo, error)
	Close() error
}

// QueueInspector reads queue state.
type QueueInspector interface {
	GetQueueInfo(queue string) (*asynq.QueueInfo, error)
	ListScheduledTasks(queue string, opts ...asynq.ListOption) ([]*asynq.TaskInfo, error)
	Close() error
}

// JobsCLI wraps manual management helpers for Asynq jobs.
type JobsCLI struct {
	client    TaskEnqueuer
	inspector QueueInspector
	now       func() time.Time
}

// NewJobsCLI initialises the CLI helpers against the given Redis.
func NewJobsCLI(redisOpts asynq.RedisClientOpt) *JobsCLI {
	return NewJobsCLIWith(jobs.NewClient(redisOpts), asynq.NewInspector(redisOpts))
}

// NewJobsCLIWith builds a JobsCLI from explicit collaborators.
func NewJobsCLIWith(client TaskEnqueuer, inspector QueueInspector) *JobsCLI {
	return &JobsCLI{client: client, inspector: inspector, now: time.Now}
}

// Close releases underlying resources.
func (c *JobsCLI) Close() error {
	var err error
	if c.inspector != nil {
		if closeErr := c.inspector.Close(); closeErr != nil {
			err = closeErr
		}
	}
	if c.client != nil {
		if closeErr := c.client.Close(); closeErr != nil {
			err = closeErr
		}
	}
	return err
}

// Trigger enqueues a periodic job by name outside its schedule.
func (c *JobsCLI) Trigger(ctx context.Context, name string) (*asynq.TaskInfo, error) {
	if c == nil || c.client == nil {
		return nil, errors.New("jobs cli: client not configured")
	}
	task, err := jobs.NewTaskByName(name, c.now())
	if err != nil {
		return nil, err
	}
	return c.client.Enqueue(ctx, task)
}

// QueueStats summarises the current queue state.
type QueueStats struct {
	Queue     string
	Pending   int
	Active    int
	Scheduled int
	Retry     int
	Archived  int
}

// InspectQueues reports the state of every queue the worker consumes. A queue
// that has never received a task reports zeros.
func (c *JobsCLI) InspectQueues() ([]QueueStats, error) {
	if c == nil || c.inspector == nil {
		return nil, errors.New("jobs cli: inspector not configured")
	}
	out := make([]QueueStats, 0, 2)
	for _, queue := range []string{jobs.QueueExports, jobs.QueueDefault} {
		stats := QueueStats{Queue: queue}
		info, err := c.inspector.GetQueueInfo(queue)
		if err != nil && !errors.Is(err, asynq.ErrQueueNotFound) {
			return nil, err
		}
		if info != nil {
			stats.Pending = info.Pending
			stats.Active = info.Active
			stats.Scheduled = info.Scheduled
			stats.Retry = info.Retry
			stats.Archived = info.Archived
		}
		out = append(out, stats)
	}
	return out, nil
}

// ListScheduled returns scheduled task infos of the default queue.
func (c *JobsCLI) ListScheduled(size int) ([]*asynq.TaskInfo, error) {
	if c == nil || c.inspector == nil {
		return nil, errors.New("jobs cli: inspector not configured")
	}
	if size <= 0 {
		size = 10
	}
	return c.inspector.ListScheduledTasks(jobs.QueueDefault, asynq.PageSize(size), asynq.Page(1))
}

func newJobsCommand(open Opener) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "jobs",
		Short: "Trigger and inspect background jobs",
	}

	cmd.AddCommand(&cobra.Command{
		Use:       "trigger <name>",
		Short:     "Enqueue a periodic job now",
		Example:   "  harvestctl jobs trigger inventory:expiry-scan",
		Args:      cobra.ExactArgs(1),
		ValidArgs: jobs.TriggerableTasks(),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withDeps(cmd, open, func(d *Deps) error {
				info, err := d.Jobs.Trigger(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "enqueued %s as %s on %s\n", info.Type, info.ID, info.Queue)
				return nil
			})
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "queues",
		Short: "Show queue depths",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withDeps(cmd, open, func(d *Deps) error {
				stats, err := d.Jobs.InspectQueues()
				if err != nil {
					return err
				}
				w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
				fmt.Fprintln(w, "QUEUE\tPENDING\tACTIVE\tSCHEDULED\tRETRY\tARCHIVED")
				for _, s := range stats {
					fmt.Fprintf(w, "%s\t%d\t%d\t%d\t%d\t%d\n", s.Queue, s.Pending, s.Active, s.Scheduled, s.Retry, s.Archived)
				}
				return w.Flush()
			})
		},
	})

	var size int
	scheduled := &cobra.Command{
		Use:   "scheduled",
		Short: "List tasks waiting for their run time",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withDeps(cmd, open, func(d *Deps) error {
				tasks, err := d.Jobs.ListScheduled(size)
				if err != nil {
					return err
				}
				for _, t := range tasks {
					fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\t%s\n", t.ID, t.Type, t.NextProcessAt.Format(time.RFC3339))
				}
				return nil
			})
		},
	}
	scheduled.Flags().IntVar(&size, "size", 10, "maximum tasks to list")
	cmd.AddCommand(scheduled)

	return cmd
}
