package agent

import (
	"testing"

	"github.com/shoenig/test/must"

	"github.com/kochimetro/inductiond/helper/testlog"
	"github.com/kochimetro/inductiond/mock"
)

// makeHTTPServer starts an agent with an HTTP server on an ephemeral port
// and the standard three-train fleet loaded. cb may adjust the config
// before boot.
func makeHTTPServer(t *testing.T, cb func(*Config)) (*Agent, *HTTPServer) {
	t.Helper()

	config := DefaultConfig()
	config.BindAddr = "127.0.0.1:0"
	if cb != nil {
		cb(config)
	}

	a, err := NewAgent(config, testlog.HCLogger(t))
	must.NoError(t, err)
	t.Cleanup(func() { a.Shutdown() })

	for _, tr := range mock.OptimalFleet() {
		must.NoError(t, a.State().UpsertTrain(tr))
	}

	srv, err := NewHTTPServer(a, config)
	must.NoError(t, err)
	t.Cleanup(srv.Shutdown)

	return a, srv
}
