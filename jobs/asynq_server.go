package jobs

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	jobmetrics "github.com/lifelink/lifelink/internal/jobs"
	"github.com/lifelink/lifelink/internal/request"
)

// Worker wraps the Asynq server processing the alerts queue.
type Worker struct {
	server *asynq.Server
	mux    *asynq.ServeMux
	logger *slog.Logger
}

// NewWorker constructs a Worker instance.
func NewWorker(redisOpts asynq.RedisClientOpt, logger *slog.Logger) *Worker {
	srv := asynq.NewServer(redisOpts, asynq.Config{
		Concurrency: 5,
		Queues: map[string]int{
			QueueAlerts: 1,
		},
	})
	metrics := jobmetrics.NewMetrics(nil)
	mux := asynq.NewServeMux()
	mux.HandleFunc(TaskTypeLowStockAlert, tracked(metrics, TaskTypeLowStockAlert, HandleLowStockAlertTask(logger)))
	mux.HandleFunc(TaskTypeUrgentRequestAlert, tracked(metrics, TaskTypeUrgentRequestAlert, HandleUrgentRequestAlertTask(logger)))
	return &Worker{server: srv, mux: mux, logger: logger}
}

func tracked(metrics *jobmetrics.Metrics, job string, handler asynq.HandlerFunc) asynq.HandlerFunc {
	return func(ctx context.Context, t *asynq.Task) error {
		return metrics.Track(job).End(handler(ctx, t))
	}
}

// Run starts processing jobs until context cancellation.
func (w *Worker) Run(ctx context.Context) error {
	if w == nil {
		return errors.New("worker: not configured")
	}
	errCh := make(chan error, 1)
	go func() {
		errCh <- w.server.Run(w.mux)
	}()
	select {
	case <-ctx.Done():
		w.server.Shutdown()
		return ctx.Err()
	case err := <-errCh:
		return err
	}
}

// Client submits alert jobs to the queue. It satisfies the alert ports the
// inventory and request services consume.
type Client struct {
	client *asynq.Client
}

// NewClient constructs an Asynq client.
func NewClient(redisOpts asynq.RedisClientOpt) *Client {
	return &Client{client: asynq.NewClient(redisOpts)}
}

// LowStock enqueues a low-stock alert.
func (c *Client) LowStock(ctx context.Context, bankID int64, bloodTypes []string, message string) error {
	task, err := NewLowStockTask(LowStockPayload{
		BankID:     bankID,
		BloodTypes: bloodTypes,
		Message:    message,
		RaisedAt:   time.Now().UTC(),
	})
	if err != nil {
		return err
	}
	_, err = c.client.EnqueueContext(ctx, task, asynq.Queue(QueueAlerts))
	return err
}

// UrgentRequest enqueues an urgent-request alert.
func (c *Client) UrgentRequest(ctx context.Context, req request.BloodRequest) error {
	task, err := NewUrgentRequestTask(UrgentRequestPayload{
		RequestID:   req.ID,
		BloodType:   req.BloodType,
		Hospital:    req.Hospital,
		Urgency:     req.Urgency,
		PatientName: req.PatientName,
	})
	if err != nil {
		return err
	}
	_, err = c.client.EnqueueContext(ctx, task, asynq.Queue(QueueAlerts))
	return err
}

// Close releases client resources.
func (c *Client) Close() error {
	return c.client.Close()
}
