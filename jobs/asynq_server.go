package jobs

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/hibiken/asynq"

	"github.com/harvest-erp/harvest/internal/platform/httpx"
)

// Worker wraps the Asynq server and optional scheduler.
type Worker struct {
	server    *asynq.Server
	mux       *asynq.ServeMux
	scheduler *asynq.Scheduler
	logger    *slog.Logger
}

// TaskHandler allows injecting custom Asynq handlers during worker setup.
type TaskHandler struct {
	Type    string
	Handler asynq.HandlerFunc
}

// CronRegistration wires a cron expression to a prepared task.
type CronRegistration struct {
	Spec    string
	Task    *asynq.Task
	Options []asynq.Option
}

// WorkerConfig collects dependencies required to bootstrap the worker.
type WorkerConfig struct {
	RedisOpts   asynq.RedisClientOpt
	Logger      *slog.Logger
	Concurrency int
	Handlers    []TaskHandler
	Cron        []CronRegistration
}

// NewWorker constructs a Worker instance.
func NewWorker(cfg WorkerConfig) (*Worker, error) {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	concurrency := cfg.Concurrency
	if concurrency <= 0 {
		concurrency = 5
	}
	srv := asynq.NewServer(cfg.RedisOpts, asynq.Config{
		Concurrency: concurrency,
		Queues: map[string]int{
			QueueExports: 2,
			QueueDefault: 1,
		},
		ErrorHandler: asynq.ErrorHandlerFunc(func(ctx context.Context, task *asynq.Task, err error) {
			logger.Warn("job failed", slog.String("type", task.Type()), slog.Any("error", err))
		}),
	})
	mux := asynq.NewServeMux()
	for _, h := range cfg.Handlers {
		if h.Type == "" || h.Handler == nil {
			continue
		}
		mux.HandleFunc(h.Type, h.Handler)
	}

	var scheduler *asynq.Scheduler
	if len(cfg.Cron) > 0 {
		scheduler = asynq.NewScheduler(cfg.RedisOpts, &asynq.SchedulerOpts{Location: time.Local})
		for _, entry := range cfg.Cron {
			if entry.Spec == "" || entry.Task == nil {
				continue
			}
			if _, err := scheduler.Register(entry.Spec, entry.Task, entry.Options...); err != nil {
				return nil, err
			}
		}
	}

	return &Worker{server: srv, mux: mux, scheduler: scheduler, logger: logger}, nil
}

// Run starts processing jobs until context cancellation.
func (w *Worker) Run(ctx context.Context) error {
	if w == nil {
		return errors.New("worker: not configured")
	}
	if w.scheduler != nil {
		if err := w.scheduler.Start(); err != nil {
			return err
		}
	}
	errCh := make(chan error, 1)
	go func() {
		errCh <- w.server.Run(w.mux)
	}()
	w.logger.Info("worker started")
	select {
	case <-ctx.Done():
		if w.scheduler != nil {
			w.scheduler.Shutdown()
		}
		w.server.Shutdown()
		return ctx.Err()
	case err := <-errCh:
		if w.scheduler != nil {
			w.scheduler.Shutdown()
		}
		return err
	}
}

// Client submits jobs to the queue.
type Client struct {
	client *asynq.Client
}

// NewClient constructs an Asynq client.
func NewClient(redisOpts asynq.RedisClientOpt) *Client {
	return &Client{client: asynq.NewClient(redisOpts)}
}

// EnqueueExport queues a document export. A duplicate of an export that is
// still queued is not an error.
func (c *Client) EnqueueExport(ctx context.Context, kind string, id int64) error {
	task, err := NewDocumentExportTask(kind, id)
	if err != nil {
		return err
	}
	_, err = c.client.EnqueueContext(ctx, task)
	if errors.Is(err, asynq.ErrDuplicateTask) {
		return nil
	}
	return err
}

// Enqueue submits a prepared task.
func (c *Client) Enqueue(ctx context.Context, task *asynq.Task) (*asynq.TaskInfo, error) {
	return c.client.EnqueueContext(ctx, task)
}

// Close releases client resources.
func (c *Client) Close() error {
	return c.client.Close()
}

// QueueInspector reports queue depth.
type QueueInspector interface {
	GetQueueInfo(queue string) (*asynq.QueueInfo, error)
}

// Handler exposes HTTP endpoints for job observability.
type Handler struct {
	inspector QueueInspector
	logger    *slog.Logger
}

// NewHandler constructs an HTTP handler for jobs endpoints. inspector may be
// nil when Redis is not configured.
func NewHandler(inspector QueueInspector, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{inspector: inspector, logger: logger}
}

// MountRoutes attaches job routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/health", h.health)
}

type queueHealth struct {
	Queue   string `json:"queue"`
	Pending int    `json:"pending"`
	Failed  int    `json:"failed"`
}

type healthResponse struct {
	Queues []queueHealth `json:"queues"`
}

func (h *Handler) health(w http.ResponseWriter, r *http.Request) {
	resp := healthResponse{Queues: []queueHealth{}}
	if h.inspector == nil {
		httpx.JSON(w, http.StatusOK, resp)
		return
	}
	for _, queue := range []string{QueueDefault, QueueExports} {
		q := queueHealth{Queue: queue}
		info, err := h.inspector.GetQueueInfo(queue)
		if err != nil && !errors.Is(err, asynq.ErrQueueNotFound) {
			h.logger.Warn("jobs health", slog.String("queue", queue), slog.Any("error", err))
			httpx.Problem(w, http.StatusServiceUnavailable, "Queue unavailable", "queue "+queue+" could not be inspected")
			return
		}
		if info != nil {
			q.Pending = info.Pending
			q.Failed = info.Retry + info.Archived
		}
		resp.Queues = append(resp.Queues, q)
	}
	httpx.JSON(w, http.StatusOK, resp)
}
