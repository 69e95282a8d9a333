package agent

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/hashicorp/cronexpr"

	"github.com/kochimetro/inductiond/planner"
)

// Config is the agent configuration. Values merge in order: defaults, then
// environment, then command line flags, with later values winning.
type Config struct {
	// LogLevel is the verbosity of agent logging (TRACE..ERROR).
	LogLevel string

	// BindAddr is the host:port the HTTP API listens on.
	BindAddr string

	// DBPath is the plan log location. Empty means in-memory only; plan
	// history is then lost on restart.
	DBPath string

	// ExternalOptimizerURL points the adapter at a remote optimizer.
	// Empty means the local rule-based optimizer is always used.
	ExternalOptimizerURL string

	// OptimizerTimeout bounds one external optimizer call.
	OptimizerTimeout time.Duration

	// AuthSecret is the HMAC secret bearer tokens are verified with.
	// Empty disables authentication and treats every caller as ADMIN.
	AuthSecret string

	// PlanSchedule is an optional cron expression; at each tick the agent
	// generates a plan for the next service date.
	PlanSchedule string

	// FleetPath is an optional JSON fleet fixture loaded at boot.
	FleetPath string
}

// DefaultConfig returns the baseline agent configuration.
func DefaultConfig() *Config {
	return &Config{
		LogLevel:         "INFO",
		BindAddr:         "127.0.0.1:8080",
		OptimizerTimeout: planner.DefaultOptimizerTimeout,
	}
}

// ConfigFromEnv builds a partial config from the environment contract:
// HTTP_BIND, DB_URL, EXTERNAL_OPTIMIZER_URL, OPTIMIZER_TIMEOUT_MS,
// AUTH_SECRET, PLAN_SCHEDULE, FLEET_PATH, LOG_LEVEL.
func ConfigFromEnv() (*Config, error) {
	c := &Config{
		LogLevel:             os.Getenv("LOG_LEVEL"),
		BindAddr:             os.Getenv("HTTP_BIND"),
		DBPath:               os.Getenv("DB_URL"),
		ExternalOptimizerURL: os.Getenv("EXTERNAL_OPTIMIZER_URL"),
		AuthSecret:           os.Getenv("AUTH_SECRET"),
		PlanSchedule:         os.Getenv("PLAN_SCHEDULE"),
		FleetPath:            os.Getenv("FLEET_PATH"),
	}
	if raw := os.Getenv("OPTIMIZER_TIMEOUT_MS"); raw != "" {
		ms, err := strconv.Atoi(raw)
		if err != nil || ms <= 0 {
			return nil, fmt.Errorf("invalid OPTIMIZER_TIMEOUT_MS %q", raw)
		}
		c.OptimizerTimeout = time.Duration(ms) * time.Millisecond
	}
	return c, nil
}

// Merge combines two configs, with b taking precedence over c.
func (c *Config) Merge(b *Config) *Config {
	result := *c

	if b.LogLevel != "" {
		result.LogLevel = b.LogLevel
	}
	if b.BindAddr != "" {
		result.BindAddr = b.BindAddr
	}
	if b.DBPath != "" {
		result.DBPath = b.DBPath
	}
	if b.ExternalOptimizerURL != "" {
		result.ExternalOptimizerURL = b.ExternalOptimizerURL
	}
	if b.OptimizerTimeout != 0 {
		result.OptimizerTimeout = b.OptimizerTimeout
	}
	if b.AuthSecret != "" {
		result.AuthSecret = b.AuthSecret
	}
	if b.PlanSchedule != "" {
		result.PlanSchedule = b.PlanSchedule
	}
	if b.FleetPath != "" {
		result.FleetPath = b.FleetPath
	}

	return &result
}

// Validate rejects configurations the agent cannot start with.
func (c *Config) Validate() error {
	if c.BindAddr == "" {
		return fmt.Errorf("missing bind address")
	}
	if c.PlanSchedule != "" {
		if _, err := cronexpr.Parse(c.PlanSchedule); err != nil {
			return fmt.Errorf("invalid plan schedule %q: %v", c.PlanSchedule, err)
		}
	}
	return nil
}
