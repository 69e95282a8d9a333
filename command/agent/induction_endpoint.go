package agent

import (
	"net/http"
	"strconv"

	"github.com/kochimetro/inductiond/planner"
	"github.com/kochimetro/inductiond/version"
)

// InductionLatestRequest serves GET /api/induction/latest.
func (s *HTTPServer) InductionLatestRequest(resp http.ResponseWriter, req *http.Request) (interface{}, error) {
	if req.Method != http.MethodGet {
		return nil, CodedError(405, ErrInvalidMethod)
	}
	identity, err := s.resolveIdentity(req)
	if err != nil {
		return nil, err
	}
	return s.agent.Planner().Latest(identity)
}

// InductionHistoryRequest serves GET /api/induction/history?limit=&page=.
func (s *HTTPServer) InductionHistoryRequest(resp http.ResponseWriter, req *http.Request) (interface{}, error) {
	if req.Method != http.MethodGet {
		return nil, CodedError(405, ErrInvalidMethod)
	}
	identity, err := s.resolveIdentity(req)
	if err != nil {
		return nil, err
	}

	limit, err := parsePositiveInt(req, "limit")
	if err != nil {
		return nil, err
	}
	page, err := parsePositiveInt(req, "page")
	if err != nil {
		return nil, err
	}

	return s.agent.Planner().History(identity, limit, page)
}

// InductionExplainRequest serves GET /api/induction/explain/:planId.
func (s *HTTPServer) InductionExplainRequest(resp http.ResponseWriter, req *http.Request) (interface{}, error) {
	if req.Method != http.MethodGet {
		return nil, CodedError(405, ErrInvalidMethod)
	}
	identity, err := s.resolveIdentity(req)
	if err != nil {
		return nil, err
	}

	planID := parsePathSuffix(req, apiPrefix+"/explain/")
	if planID == "" {
		return nil, CodedError(400, "missing plan id")
	}

	return s.agent.Planner().Explain(identity, planID)
}

// InductionGenerateRequest serves POST /api/induction/generate.
func (s *HTTPServer) InductionGenerateRequest(resp http.ResponseWriter, req *http.Request) (interface{}, error) {
	if req.Method != http.MethodPost {
		return nil, CodedError(405, ErrInvalidMethod)
	}
	identity, err := s.resolveIdentity(req)
	if err != nil {
		return nil, err
	}

	var args planner.GenerateRequest
	if req.Body != nil && req.ContentLength != 0 {
		if err := decodeBody(req, &args); err != nil {
			return nil, CodedError(400, err.Error())
		}
	}

	out, err := s.agent.Planner().Generate(req.Context(), identity, &args)
	if err != nil {
		return nil, err
	}

	resp.Header().Set("Content-Type", "application/json")
	resp.WriteHeader(http.StatusCreated)
	return out, nil
}

// InductionSimulateRequest serves POST /api/induction/simulate.
func (s *HTTPServer) InductionSimulateRequest(resp http.ResponseWriter, req *http.Request) (interface{}, error) {
	if req.Method != http.MethodPost {
		return nil, CodedError(405, ErrInvalidMethod)
	}
	identity, err := s.resolveIdentity(req)
	if err != nil {
		return nil, err
	}

	var args planner.SimulateRequest
	if err := decodeBody(req, &args); err != nil {
		return nil, CodedError(400, err.Error())
	}
	if args.TrainID == "" {
		return nil, CodedError(400, "missing trainId")
	}

	return s.agent.Planner().Simulate(identity, &args)
}

// FleetAnalyticsRequest serves GET /api/induction/analytics.
func (s *HTTPServer) FleetAnalyticsRequest(resp http.ResponseWriter, req *http.Request) (interface{}, error) {
	if req.Method != http.MethodGet {
		return nil, CodedError(405, ErrInvalidMethod)
	}
	identity, err := s.resolveIdentity(req)
	if err != nil {
		return nil, err
	}
	return s.agent.Planner().Analytics(identity)
}

// healthResponse is the agent liveness body.
type healthResponse struct {
	Status  string `json:"status"`
	Version string `json:"version"`
	Trains  int    `json:"trains"`
	Plans   int    `json:"plans"`
}

// HealthRequest serves GET /api/induction/health.
func (s *HTTPServer) HealthRequest(resp http.ResponseWriter, req *http.Request) (interface{}, error) {
	if req.Method != http.MethodGet {
		return nil, CodedError(405, ErrInvalidMethod)
	}
	if _, err := s.resolveIdentity(req); err != nil {
		return nil, err
	}

	trains, err := s.agent.State().Trains()
	if err != nil {
		return nil, err
	}
	_, total, err := s.agent.State().FinalizedPlans(1, 0)
	if err != nil {
		return nil, err
	}

	return &healthResponse{
		Status:  "ok",
		Version: version.GetVersion().VersionNumber(),
		Trains:  len(trains),
		Plans:   total,
	}, nil
}

// parsePositiveInt reads an optional positive integer query parameter,
// returning 0 when absent.
func parsePositiveInt(req *http.Request, name string) (int, error) {
	raw := req.URL.Query().Get(name)
	if raw == "" {
		return 0, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v < 1 {
		return 0, CodedError(400, "invalid "+name)
	}
	return v, nil
}
