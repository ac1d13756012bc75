package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/hibiken/asynq"

	"github.com/ecclesia-records/ecclesia/jobs"
)

// Enqueuer submits tasks. *jobs.Client satisfies it.
type Enqueuer interface {
	EnqueueCertificateRender(ctx context.Context, payload jobs.CertificateRenderPayload) (*asynq.TaskInfo, error)
	EnqueueReportsWarmup(ctx context.Context, year int) (*asynq.TaskInfo, error)
	Close() error
}

// Inspector reads queue state. *asynq.Inspector satisfies it.
type Inspector interface {
	GetQueueInfo(queue string) (*asynq.QueueInfo, error)
	ListScheduledTasks(queue string, opts ...asynq.ListOption) ([]*asynq.TaskInfo, error)
	Close() error
}

// JobsCLI wraps manual management helpers for Asynq jobs.
type JobsCLI struct {
	client    Enqueuer
	inspector Inspector
}

// NewJobsCLI initialises the CLI helpers against the given redis.
func NewJobsCLI(opts asynq.RedisClientOpt) *JobsCLI {
	return &JobsCLI{client: jobs.NewClient(opts), inspector: asynq.NewInspector(opts)}
}

// Close releases underlying resources.
func (c *JobsCLI) Close() error {
	var errs []error
	if c.inspector != nil {
		errs = append(errs, c.inspector.Close())
	}
	if c.client != nil {
		errs = append(errs, c.client.Close())
	}
	return errors.Join(errs...)
}

// RenderCertificate enqueues a certificate render for sacramentID.
func (c *JobsCLI) RenderCertificate(ctx context.Context, sacramentID, requestedBy string) (*asynq.TaskInfo, error) {
	if c == nil || c.client == nil {
		return nil, errors.New("jobs cli: client not configured")
	}
	if sacramentID == "" {
		return nil, errors.New("jobs cli: sacrament id required")
	}
	if requestedBy == "" {
		requestedBy = "ecclesia-cli"
	}
	return c.client.EnqueueCertificateRender(ctx, jobs.CertificateRenderPayload{SacramentID: sacramentID, RequestedBy: requestedBy})
}

// Trigger enqueues a supported job by name with its default payload.
func (c *JobsCLI) Trigger(ctx context.Context, name string) (*asynq.TaskInfo, error) {
	if c == nil || c.client == nil {
		return nil, errors.New("jobs cli: client not configured")
	}
	switch name {
	case jobs.TaskReportsWarmup:
		return c.client.EnqueueReportsWarmup(ctx, 0)
	default:
		return nil, fmt.Errorf("jobs cli: unsupported job %s", name)
	}
}

// InspectQueues reports every queue the worker serves.
func (c *JobsCLI) InspectQueues(_ context.Context) ([]jobs.QueueHealth, error) {
	if c == nil || c.inspector == nil {
		return nil, errors.New("jobs cli: inspector not configured")
	}
	return jobs.InspectQueues(c.inspector)
}

// ListScheduled returns up to size scheduled tasks per queue. Queues that have
// never held a task are skipped.
func (c *JobsCLI) ListScheduled(_ context.Context, size int) ([]*asynq.TaskInfo, error) {
	if c == nil || c.inspector == nil {
		return nil, errors.New("jobs cli: inspector not configured")
	}
	if size <= 0 {
		size = 10
	}
	var out []*asynq.TaskInfo
	for _, queue := range jobs.QueueNames() {
		tasks, err := c.inspector.ListScheduledTasks(queue, asynq.PageSize(size), asynq.Page(1))
		if errors.Is(err, asynq.ErrQueueNotFound) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("jobs cli: list scheduled %s: %w", queue, err)
		}
		out = append(out, tasks...)
	}
	return out, nil
}
