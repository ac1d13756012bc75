package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/ecclesia-records/ecclesia/internal/identity"
	"github.com/ecclesia-records/ecclesia/internal/rbac"
	"github.com/ecclesia-records/ecclesia/jobs"
	_ "github.com/ecclesia-records/ecclesia/testing"
)

const testSecret = "cli-secret-cli-secret-cli-secret-xx"

type fakeEnqueuer struct {
	certificates []jobs.CertificateRenderPayload
	warmups      int
}

func (f *fakeEnqueuer) EnqueueCertificateRender(_ context.Context, p jobs.CertificateRenderPayload) (*asynq.TaskInfo, error) {
	f.certificates = append(f.certificates, p)
	return &asynq.TaskInfo{ID: "task-1", Queue: jobs.QueueCertificates, Type: jobs.TaskCertificateRender}, nil
}

func (f *fakeEnqueuer) EnqueueReportsWarmup(context.Context, int) (*asynq.TaskInfo, error) {
	f.warmups++
	return &asynq.TaskInfo{ID: "task-2", Queue: jobs.QueueMaintenance, Type: jobs.TaskReportsWarmup}, nil
}

func (f *fakeEnqueuer) Close() error { return nil }

type fakeInspector struct {
	info      *asynq.QueueInfo
	scheduled []*asynq.TaskInfo
}

func (f *fakeInspector) GetQueueInfo(queue string) (*asynq.QueueInfo, error) {
	if f.info == nil || f.info.Queue != queue {
		return nil, asynq.ErrQueueNotFound
	}
	return f.info, nil
}

func (f *fakeInspector) ListScheduledTasks(queue string, _ ...asynq.ListOption) ([]*asynq.TaskInfo, error) {
	var out []*asynq.TaskInfo
	for _, t := range f.scheduled {
		if t.Queue == queue {
			out = append(out, t)
		}
	}
	if out == nil {
		return nil, asynq.ErrQueueNotFound
	}
	return out, nil
}

func (f *fakeInspector) Close() error { return nil }

type harness struct {
	stdout, stderr bytes.Buffer
	enqueuer       *fakeEnqueuer
	inspector      *fakeInspector
}

func newHarness() *harness {
	return &harness{enqueuer: &fakeEnqueuer{}, inspector: &fakeInspector{info: &asynq.QueueInfo{Queue: jobs.QueueCertificates, Pending: 2, Failed: 1}}}
}

func (h *harness) run(args ...string) int {
	cfg := Config{TokenSecret: testSecret, TokenIssuer: "ecclesia", TokenTTL: time.Hour}
	env := Env{
		Stdout: &h.stdout,
		Stderr: &h.stderr,
		Jobs: func(asynq.RedisClientOpt) *JobsCLI {
			return &JobsCLI{client: h.enqueuer, inspector: h.inspector}
		},
	}
	return Run(context.Background(), cfg, env, args)
}

func TestRunUsage(t *testing.T) {
	h := newHarness()
	assert.Equal(t, 2, h.run())
	assert.Contains(t, h.stderr.String(), "usage: ecclesia-cli")

	h = newHarness()
	assert.Equal(t, 2, h.run("bless"))
	assert.Contains(t, h.stderr.String(), `unknown command "bless"`)
}

func TestMintTokenVerifies(t *testing.T) {
	h := newHarness()
	code := h.run("mint-token", "-user", "u-priest", "-role", "PARISH_PRIEST", "-diocese", "lilongwe", "-parish", "st-peter")
	require.Equal(t, 0, code, h.stderr.String())

	policy := rbac.MustDefault()
	id, err := identity.NewVerifier(testSecret, "ecclesia", policy, nil).Verify(context.Background(), strings.TrimSpace(h.stdout.String()))
	require.NoError(t, err)
	assert.Equal(t, "u-priest", id.Principal.ID)
	assert.Equal(t, rbac.RoleParishPriest, id.Principal.Role)
	assert.Equal(t, rbac.ClearanceParish, id.Principal.Clearance)
	assert.Equal(t, "st-peter", id.Principal.ParishID)
}

func TestMintTokenRejectsUnknownRole(t *testing.T) {
	h := newHarness()
	assert.Equal(t, 1, h.run("mint-token", "-user", "u-1", "-role", "POPE"))
	assert.Contains(t, h.stderr.String(), "unknown role")
}

func TestPolicyFormats(t *testing.T) {
	h := newHarness()
	require.Equal(t, 0, h.run("policy"))
	table := h.stdout.String()
	assert.Contains(t, table, "PERMISSION")
	assert.Contains(t, table, "VIEW_AUDIT_LOGS")
	assert.Contains(t, table, "ECM_SUPER_ADMIN")

	h = newHarness()
	require.Equal(t, 0, h.run("policy", "-format", "yaml"))
	var snap struct {
		Roles []struct {
			Role      string `yaml:"role"`
			Clearance string `yaml:"clearance"`
		} `yaml:"roles"`
		Permissions map[string][]string `yaml:"permissions"`
	}
	require.NoError(t, yaml.Unmarshal(h.stdout.Bytes(), &snap))
	assert.Len(t, snap.Roles, len(rbac.AllRoles()))
	assert.Contains(t, snap.Permissions["APPROVE_SACRAMENT"], "BISHOP")

	h = newHarness()
	assert.Equal(t, 1, h.run("policy", "-format", "xml"))
}

func TestRenderCertificateEnqueues(t *testing.T) {
	h := newHarness()
	require.Equal(t, 0, h.run("render-certificate", "-id", "BAP-STPETER-2025-0001"))
	require.Len(t, h.enqueuer.certificates, 1)
	assert.Equal(t, "BAP-STPETER-2025-0001", h.enqueuer.certificates[0].SacramentID)
	assert.Equal(t, "ecclesia-cli", h.enqueuer.certificates[0].RequestedBy)
	assert.Contains(t, h.stdout.String(), "enqueued task-1")

	h = newHarness()
	assert.Equal(t, 1, h.run("render-certificate"))
	assert.Empty(t, h.enqueuer.certificates)
}

func TestWarmReports(t *testing.T) {
	h := newHarness()
	require.Equal(t, 0, h.run("warm-reports"))
	assert.Equal(t, 1, h.enqueuer.warmups)
}

func TestQueueStats(t *testing.T) {
	h := newHarness()
	h.inspector.scheduled = []*asynq.TaskInfo{{
		ID: "s-1", Queue: jobs.QueueMaintenance, Type: jobs.TaskReportsWarmup,
		NextProcessAt: time.Date(2025, 6, 2, 1, 15, 0, 0, time.UTC),
	}}
	require.Equal(t, 0, h.run("queue-stats", "-scheduled", "5"))

	dec := json.NewDecoder(&h.stdout)
	var stats []jobs.QueueHealth
	require.NoError(t, dec.Decode(&stats))
	require.Len(t, stats, 2)
	assert.Equal(t, jobs.QueueHealth{Queue: jobs.QueueCertificates, Pending: 2, Failed: 1}, stats[0])
	assert.Equal(t, jobs.QueueHealth{Queue: jobs.QueueMaintenance}, stats[1])

	rest, err := io.ReadAll(io.MultiReader(dec.Buffered(), &h.stdout))
	require.NoError(t, err)
	assert.Contains(t, string(rest), "maintenance\ts-1\treports:warmup\t2025-06-02T01:15:00Z")
}

func TestTriggerUnsupported(t *testing.T) {
	c := &JobsCLI{client: &fakeEnqueuer{}}
	_, err := c.Trigger(context.Background(), "certificate:bulk")
	assert.Error(t, err)
}
