package jobs

import (
	"encoding/json"

	"github.com/hibiken/asynq"
)

const (
	// QueueCertificates carries certificate renders a user is waiting on.
	QueueCertificates = "certificates"
	// QueueMaintenance carries scheduled housekeeping such as report warmups.
	QueueMaintenance = "maintenance"

	// TaskCertificateRender renders a sacrament certificate to PDF.
	TaskCertificateRender = "certificate:render"
	// TaskReportsWarmup precomputes sacrament reports for every active diocese.
	TaskReportsWarmup = "reports:warmup"
)

// QueueNames lists the queues served by the worker, highest priority first.
func QueueNames() []string {
	return []string{QueueCertificates, QueueMaintenance}
}

// queueWeights are asynq priority weights: certificates are polled six times
// as often as maintenance.
func queueWeights() map[string]int {
	return map[string]int{QueueCertificates: 6, QueueMaintenance: 1}
}

// CertificateRenderPayload identifies the sacrament to render and who asked.
type CertificateRenderPayload struct {
	SacramentID      string `json:"sacramentId"`
	RequestedBy      string `json:"requestedBy"`
	RequestedByEmail string `json:"requestedByEmail,omitempty"`
}

// ReportsWarmupPayload selects the year to warm. Zero means the current year.
type ReportsWarmupPayload struct {
	Year int `json:"year,omitempty"`
}

// NewCertificateRenderTask constructs an Asynq task.
func NewCertificateRenderTask(payload CertificateRenderPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskCertificateRender, data), nil
}

// NewReportsWarmupTask constructs an Asynq task.
func NewReportsWarmupTask(year int) (*asynq.Task, error) {
	data, err := json.Marshal(ReportsWarmupPayload{Year: year})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskReportsWarmup, data), nil
}
