package planner

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	cleanhttp "github.com/hashicorp/go-cleanhttp"
	hclog "github.com/hashicorp/go-hclog"
	metrics "github.com/hashicorp/go-metrics"

	"github.com/kochimetro/inductiond/engine"
	"github.com/kochimetro/inductiond/structs"
)

// DefaultOptimizerTimeout bounds one external optimizer call.
const DefaultOptimizerTimeout = 60 * time.Second

// maxOptimizerResponse caps how much of an upstream body is read; anything
// larger is malformed for a fleet of at most a few hundred trainsets.
const maxOptimizerResponse = 8 << 20

// ExternalOptimizer is the adapter in front of a pluggable remote optimizer.
// A connection failure, timeout, or malformed body falls back to the local
// rule-based optimizer, so a plan is always produced; only
// aiModelInfo.algorithm betrays the degradation. The zero URL means "always
// local". Safe for concurrent use.
type ExternalOptimizer struct {
	url     string
	timeout time.Duration
	client  *http.Client
	logger  hclog.Logger
}

// NewExternalOptimizer builds the adapter. url may be empty; timeout zero
// means DefaultOptimizerTimeout.
func NewExternalOptimizer(url string, timeout time.Duration, logger hclog.Logger) *ExternalOptimizer {
	if timeout <= 0 {
		timeout = DefaultOptimizerTimeout
	}
	return &ExternalOptimizer{
		url:     url,
		timeout: timeout,
		client:  cleanhttp.DefaultPooledClient(),
		logger:  logger.Named("remote_optimizer"),
	}
}

// optimizerRequest is the wire request to the remote optimizer.
type optimizerRequest struct {
	Trains      []*structs.Train    `json:"trains"`
	Constraints structs.Constraints `json:"constraints"`
}

// Optimize produces a ranking for the fleet, remotely when possible. The
// caller's context cancellation propagates into the in-flight call.
func (e *ExternalOptimizer) Optimize(ctx context.Context, trains []*structs.Train,
	constraints structs.Constraints, now time.Time) *engine.OptimizeResult {

	if e.url == "" {
		return engine.Optimize(trains, constraints, now)
	}

	result, err := e.optimizeRemote(ctx, trains, constraints)
	if err != nil {
		metrics.IncrCounter([]string{"planner", "optimizer", "fallback"}, 1)
		e.logger.Warn("external optimizer unavailable, using local optimizer", "error", err)
		return engine.Optimize(trains, constraints, now)
	}
	return result
}

func (e *ExternalOptimizer) optimizeRemote(ctx context.Context, trains []*structs.Train,
	constraints structs.Constraints) (*engine.OptimizeResult, error) {

	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	body, err := json.Marshal(&optimizerRequest{Trains: trains, Constraints: constraints})
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.url, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := e.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	var result engine.OptimizeResult
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxOptimizerResponse)).Decode(&result); err != nil {
		return nil, fmt.Errorf("malformed optimizer response: %v", err)
	}
	if err := validateOptimizerResult(&result); err != nil {
		return nil, fmt.Errorf("malformed optimizer response: %v", err)
	}
	return &result, nil
}

// validateOptimizerResult rejects responses that do not look like optimizer
// output: missing metrics or model info, or a ranking that is not dense and
// 1-based.
func validateOptimizerResult(r *engine.OptimizeResult) error {
	if r.Metrics == nil {
		return fmt.Errorf("missing optimization metrics")
	}
	if r.ModelInfo == nil || r.ModelInfo.Algorithm == "" {
		return fmt.Errorf("missing model info")
	}
	for i, rt := range r.RankedTrains {
		if rt == nil || rt.Rank != i+1 {
			return fmt.Errorf("ranking is not dense at position %d", i)
		}
		if rt.ConfidenceScore < 0 || rt.ConfidenceScore > 100 {
			return fmt.Errorf("confidence %f out of range", rt.ConfidenceScore)
		}
	}
	return nil
}
