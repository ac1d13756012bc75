// Package cli implements the ecclesia-cli operator commands.
package cli

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"time"

	"github.com/hibiken/asynq"
	"github.com/kelseyhightower/envconfig"

	"github.com/ecclesia-records/ecclesia/internal/rbac"
	"github.com/ecclesia-records/ecclesia/jobs"
)

// Config holds the environment the CLI reads.
type Config struct {
	TokenSecret   string        `envconfig:"TOKEN_SECRET"`
	TokenIssuer   string        `envconfig:"TOKEN_ISSUER" default:"ecclesia"`
	TokenTTL      time.Duration `envconfig:"TOKEN_TTL" default:"1h"`
	RedisAddr     string        `envconfig:"REDIS_ADDR" default:"127.0.0.1:6379"`
	RedisPassword string        `envconfig:"REDIS_PASSWORD"`
	RedisDB       int           `envconfig:"REDIS_DB" default:"0"`
}

// LoadConfig reads Config from the environment.
func LoadConfig() (Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// RedisOpt converts the redis settings for asynq.
func (c Config) RedisOpt() asynq.RedisClientOpt {
	return asynq.RedisClientOpt{Addr: c.RedisAddr, Password: c.RedisPassword, DB: c.RedisDB}
}

// Env carries the process streams and the queue factory.
type Env struct {
	Stdout io.Writer
	Stderr io.Writer
	// Jobs opens the queue helpers. Defaults to NewJobsCLI.
	Jobs func(asynq.RedisClientOpt) *JobsCLI
}

const usage = `usage: ecclesia-cli <command> [flags]

commands:
  mint-token          issue a development bearer token
  policy              print the role and permission matrix
  render-certificate  enqueue a certificate render for a sacrament
  warm-reports        enqueue a report cache warmup
  queue-stats         show the certificate and maintenance queues
`

// Run executes args and returns the process exit code.
func Run(ctx context.Context, cfg Config, env Env, args []string) int {
	if env.Jobs == nil {
		env.Jobs = NewJobsCLI
	}
	if len(args) == 0 {
		fmt.Fprint(env.Stderr, usage)
		return 2
	}
	var err error
	switch args[0] {
	case "mint-token":
		err = runMintToken(cfg, env, args[1:])
	case "policy":
		err = runPolicy(env, args[1:])
	case "render-certificate":
		err = runRenderCertificate(ctx, cfg, env, args[1:])
	case "warm-reports":
		err = runWarmReports(ctx, cfg, env)
	case "queue-stats":
		err = runQueueStats(ctx, cfg, env, args[1:])
	case "help", "-h", "--help":
		fmt.Fprint(env.Stdout, usage)
		return 0
	default:
		fmt.Fprintf(env.Stderr, "unknown command %q\n\n%s", args[0], usage)
		return 2
	}
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		fmt.Fprintf(env.Stderr, "%s: %v\n", args[0], err)
		return 1
	}
	return 0
}

func newFlagSet(name string, env Env) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(env.Stderr)
	return fs
}

func runMintToken(cfg Config, env Env, args []string) error {
	fs := newFlagSet("mint-token", env)
	var req TokenRequest
	fs.StringVar(&req.UserID, "user", "", "user id (token subject)")
	fs.StringVar(&req.Email, "email", "", "email claim")
	fs.StringVar(&req.Role, "role", "", "role, e.g. PARISH_PRIEST")
	fs.StringVar(&req.DioceseID, "diocese", "", "diocese id")
	fs.StringVar(&req.ParishID, "parish", "", "parish id")
	fs.StringVar(&req.DeaneryID, "deanery", "", "deanery id")
	fs.DurationVar(&req.TTL, "ttl", cfg.TokenTTL, "token lifetime")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if cfg.TokenSecret == "" {
		return errors.New("TOKEN_SECRET is not set")
	}
	token, err := MintToken(cfg.TokenSecret, cfg.TokenIssuer, rbac.MustDefault(), req)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(env.Stdout, token)
	return err
}

func runPolicy(env Env, args []string) error {
	fs := newFlagSet("policy", env)
	format := fs.String("format", "table", "output format: table, json or yaml")
	if err := fs.Parse(args); err != nil {
		return err
	}
	return WritePolicy(env.Stdout, rbac.MustDefault(), *format)
}

func runRenderCertificate(ctx context.Context, cfg Config, env Env, args []string) error {
	fs := newFlagSet("render-certificate", env)
	id := fs.String("id", "", "sacrament record id")
	by := fs.String("requested-by", "", "user id recorded in the audit log")
	if err := fs.Parse(args); err != nil {
		return err
	}
	c := env.Jobs(cfg.RedisOpt())
	defer c.Close()
	info, err := c.RenderCertificate(ctx, *id, *by)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(env.Stdout, "enqueued %s on %s\n", info.ID, info.Queue)
	return err
}

func runWarmReports(ctx context.Context, cfg Config, env Env) error {
	c := env.Jobs(cfg.RedisOpt())
	defer c.Close()
	info, err := c.Trigger(ctx, jobs.TaskReportsWarmup)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(env.Stdout, "enqueued %s on %s\n", info.ID, info.Queue)
	return err
}

func runQueueStats(ctx context.Context, cfg Config, env Env, args []string) error {
	fs := newFlagSet("queue-stats", env)
	scheduled := fs.Int("scheduled", 0, "also list up to n scheduled tasks")
	if err := fs.Parse(args); err != nil {
		return err
	}
	c := env.Jobs(cfg.RedisOpt())
	defer c.Close()
	stats, err := c.InspectQueues(ctx)
	if err != nil {
		return err
	}
	enc := json.NewEncoder(env.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(stats); err != nil {
		return err
	}
	if *scheduled <= 0 {
		return nil
	}
	tasks, err := c.ListScheduled(ctx, *scheduled)
	if err != nil {
		return err
	}
	for _, t := range tasks {
		fmt.Fprintf(env.Stdout, "%s\t%s\t%s\t%s\n", t.Queue, t.ID, t.Type, t.NextProcessAt.Format(time.RFC3339))
	}
	return nil
}
