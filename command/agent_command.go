package command

import (
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	hclog "github.com/hashicorp/go-hclog"

	"github.com/kochimetro/inductiond/command/agent"
)

// AgentCommand runs the induction planning agent until interrupted.
type AgentCommand struct {
	Meta
}

func (c *AgentCommand) Help() string {
	helpText := `
Usage: inductiond agent [options]

  Starts the induction planning agent: state store, plan service, and the
  HTTP API. Configuration comes from the environment (HTTP_BIND, DB_URL,
  EXTERNAL_OPTIMIZER_URL, OPTIMIZER_TIMEOUT_MS, AUTH_SECRET, PLAN_SCHEDULE,
  FLEET_PATH, LOG_LEVEL) with command line flags taking precedence.

Options:

  -bind=<addr>
    Address to bind the HTTP API to.

  -db=<path>
    Location of the durable plan log.

  -fleet=<path>
    JSON fleet fixture loaded at boot.

  -log-level=<level>
    Log verbosity: TRACE, DEBUG, INFO, WARN, ERROR.
`
	return strings.TrimSpace(helpText)
}

func (c *AgentCommand) Synopsis() string {
	return "Run the induction planning agent"
}

func (c *AgentCommand) Name() string { return "agent" }

func (c *AgentCommand) Run(args []string) int {
	flags := flag.NewFlagSet(c.Name(), flag.ContinueOnError)
	flags.Usage = func() { c.Ui.Output(c.Help()) }

	var flagConfig agent.Config
	flags.StringVar(&flagConfig.BindAddr, "bind", "", "")
	flags.StringVar(&flagConfig.DBPath, "db", "", "")
	flags.StringVar(&flagConfig.FleetPath, "fleet", "", "")
	flags.StringVar(&flagConfig.LogLevel, "log-level", "", "")
	if err := flags.Parse(args); err != nil {
		return 1
	}

	envConfig, err := agent.ConfigFromEnv()
	if err != nil {
		c.Ui.Error(err.Error())
		return 1
	}
	config := agent.DefaultConfig().Merge(envConfig).Merge(&flagConfig)

	logger := hclog.New(&hclog.LoggerOptions{
		Name:  "inductiond",
		Level: hclog.LevelFromString(config.LogLevel),
	})

	a, err := agent.NewAgent(config, logger)
	if err != nil {
		c.Ui.Error(fmt.Sprintf("Error starting agent: %s", err))
		return 1
	}
	defer a.Shutdown()

	srv, err := agent.NewHTTPServer(a, config)
	if err != nil {
		c.Ui.Error(fmt.Sprintf("Error starting HTTP server: %s", err))
		return 1
	}
	defer srv.Shutdown()

	c.Ui.Output("Induction agent started! Log data will stream in below:")
	logger.Info("agent listening", "address", srv.Addr)

	return c.handleSignals(logger)
}

// handleSignals blocks until a shutdown signal arrives.
func (c *AgentCommand) handleSignals(logger hclog.Logger) int {
	signalCh := make(chan os.Signal, 4)
	signal.Notify(signalCh, os.Interrupt, syscall.SIGTERM)

	sig := <-signalCh
	logger.Info("caught signal", "signal", sig)
	return 0
}
