package agent

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"testing"
	"time"

	"github.com/shoenig/test/must"

	"github.com/kochimetro/inductiond/acl"
	"github.com/kochimetro/inductiond/mock"
	"github.com/kochimetro/inductiond/planner"
	"github.com/kochimetro/inductiond/structs"
)

func httpJSON(t *testing.T, method, url, token string, body any, out any) int {
	t.Helper()

	var reader io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		must.NoError(t, err)
		reader = bytes.NewReader(buf)
	}
	req, err := http.NewRequest(method, url, reader)
	must.NoError(t, err)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := http.DefaultClient.Do(req)
	must.NoError(t, err)
	defer resp.Body.Close()

	if out != nil && resp.StatusCode < 300 {
		must.NoError(t, json.NewDecoder(resp.Body).Decode(out))
	}
	return resp.StatusCode
}

func TestHTTP_GenerateAndLatest(t *testing.T) {
	_, srv := makeHTTPServer(t, nil)
	base := "http://" + srv.Addr + "/api/induction"

	// No plan yet.
	code := httpJSON(t, http.MethodGet, base+"/latest", "", nil, nil)
	must.Eq(t, 404, code)

	var generated planner.GenerateResponse
	code = httpJSON(t, http.MethodPost, base+"/generate", "",
		map[string]any{"planDate": "2026-03-10"}, &generated)
	must.Eq(t, 201, code)
	must.Eq(t, "2026-03-10", generated.Plan.PlanDate)
	must.Len(t, 3, generated.Plan.RankedTrains)
	must.Eq(t, "TS-03", generated.Plan.RankedTrains[0].TrainCode)

	var latest planner.LatestResponse
	code = httpJSON(t, http.MethodGet, base+"/latest", "", nil, &latest)
	must.Eq(t, 200, code)
	must.Eq(t, generated.Plan.ID, latest.Plan.ID)
	must.Eq(t, 3, latest.Summary.TotalTrains)
}

func TestHTTP_GenerateConflict(t *testing.T) {
	_, srv := makeHTTPServer(t, nil)
	base := "http://" + srv.Addr + "/api/induction"

	var first planner.GenerateResponse
	code := httpJSON(t, http.MethodPost, base+"/generate", "",
		map[string]any{"planDate": "2026-03-10"}, &first)
	must.Eq(t, 201, code)

	req, err := http.NewRequest(http.MethodPost, base+"/generate",
		bytes.NewReader([]byte(`{"planDate":"2026-03-10"}`)))
	must.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	must.NoError(t, err)
	defer resp.Body.Close()
	must.Eq(t, 409, resp.StatusCode)

	var conflict struct {
		ExistingPlan string `json:"existingPlan"`
		Suggestion   string `json:"suggestion"`
	}
	must.NoError(t, json.NewDecoder(resp.Body).Decode(&conflict))
	must.Eq(t, first.Plan.ID, conflict.ExistingPlan)
	must.StrContains(t, conflict.Suggestion, "forceRegenerate")

	// Forced regeneration succeeds and history keeps both, newest first.
	var forced planner.GenerateResponse
	code = httpJSON(t, http.MethodPost, base+"/generate", "",
		map[string]any{"planDate": "2026-03-10", "forceRegenerate": true}, &forced)
	must.Eq(t, 201, code)

	var history planner.HistoryResponse
	code = httpJSON(t, http.MethodGet, base+"/history", "", nil, &history)
	must.Eq(t, 200, code)
	must.Len(t, 2, history.Plans)
	must.Eq(t, forced.Plan.ID, history.Plans[0].ID)
	must.Eq(t, first.Plan.ID, history.Plans[1].ID)
}

func TestHTTP_GenerateEmptyFleet(t *testing.T) {
	a, srv := makeHTTPServer(t, nil)

	trains, err := a.State().Trains()
	must.NoError(t, err)
	for _, tr := range trains {
		must.NoError(t, a.State().DeleteTrain(tr.ID))
	}

	code := httpJSON(t, http.MethodPost, "http://"+srv.Addr+"/api/induction/generate", "",
		map[string]any{"planDate": "2026-03-10"}, nil)
	must.Eq(t, 400, code)
}

func TestHTTP_HistoryPaginationAndValidation(t *testing.T) {
	_, srv := makeHTTPServer(t, nil)
	base := "http://" + srv.Addr + "/api/induction"

	for _, date := range []string{"2026-03-08", "2026-03-09", "2026-03-10"} {
		code := httpJSON(t, http.MethodPost, base+"/generate", "",
			map[string]any{"planDate": date}, nil)
		must.Eq(t, 201, code)
	}

	var history planner.HistoryResponse
	code := httpJSON(t, http.MethodGet, base+"/history?limit=2&page=2", "", nil, &history)
	must.Eq(t, 200, code)
	must.Len(t, 1, history.Plans)
	must.Eq(t, "2026-03-08", history.Plans[0].PlanDate)
	must.Eq(t, 3, history.Pagination.Total)

	must.Eq(t, 400, httpJSON(t, http.MethodGet, base+"/history?limit=abc", "", nil, nil))
	must.Eq(t, 400, httpJSON(t, http.MethodGet, base+"/history?page=0", "", nil, nil))
}

func TestHTTP_Explain(t *testing.T) {
	_, srv := makeHTTPServer(t, nil)
	base := "http://" + srv.Addr + "/api/induction"

	var generated planner.GenerateResponse
	must.Eq(t, 201, httpJSON(t, http.MethodPost, base+"/generate", "",
		map[string]any{"planDate": "2026-03-10"}, &generated))

	var ex planner.ExplainResponse
	code := httpJSON(t, http.MethodGet, base+"/explain/"+generated.Plan.ID, "", nil, &ex)
	must.Eq(t, 200, code)
	must.Len(t, 3, ex.Explanations)
	must.StrContains(t, ex.Explanations[0].Reasoning, "Overall optimization score")
	must.NotNil(t, ex.Explanations[0].DetailedAnalysis)

	must.Eq(t, 404, httpJSON(t, http.MethodGet, base+"/explain/no-such-plan", "", nil, nil))
}

func TestHTTP_SimulateDoesNotPersist(t *testing.T) {
	_, srv := makeHTTPServer(t, nil)
	base := "http://" + srv.Addr + "/api/induction"

	var generated planner.GenerateResponse
	must.Eq(t, 201, httpJSON(t, http.MethodPost, base+"/generate", "",
		map[string]any{"planDate": "2026-03-10"}, &generated))

	var sim planner.SimulateResponse
	code := httpJSON(t, http.MethodPost, base+"/simulate", "", map[string]any{
		"trainId": "TS-02",
		"modifications": map[string]any{
			"branding": map[string]any{"hasBranding": true, "priority": 5},
		},
	}, &sim)
	must.Eq(t, 200, code)
	must.Eq(t, "SIMULATION", sim.Simulation.Status)
	must.Eq(t, 1, *sim.Simulation.ImpactAnalysis.NewRank)

	// Latest is unchanged by the simulation.
	var latest planner.LatestResponse
	must.Eq(t, 200, httpJSON(t, http.MethodGet, base+"/latest", "", nil, &latest))
	must.Eq(t, generated.Plan.ID, latest.Plan.ID)

	// Missing arguments and unknown targets.
	must.Eq(t, 400, httpJSON(t, http.MethodPost, base+"/simulate", "", map[string]any{}, nil))
	must.Eq(t, 404, httpJSON(t, http.MethodPost, base+"/simulate", "",
		map[string]any{"trainId": "TS-99"}, nil))
}

func TestHTTP_FallbackTransparency(t *testing.T) {
	// Point the adapter at an unreachable optimizer; generation must still
	// succeed with the local algorithm recorded in the plan.
	_, srv := makeHTTPServer(t, func(c *Config) {
		c.ExternalOptimizerURL = "http://127.0.0.1:1/optimize"
		c.OptimizerTimeout = time.Second
	})
	base := "http://" + srv.Addr + "/api/induction"

	var generated planner.GenerateResponse
	code := httpJSON(t, http.MethodPost, base+"/generate", "",
		map[string]any{"planDate": "2026-03-10"}, &generated)
	must.Eq(t, 201, code)
	must.Eq(t, "Rule-Based Weighted Scoring", generated.Plan.ModelInfo.Algorithm)
	must.Eq(t, "TS-03", generated.Plan.RankedTrains[0].TrainCode)
}

func TestHTTP_AnalyticsAndHealth(t *testing.T) {
	_, srv := makeHTTPServer(t, nil)
	base := "http://" + srv.Addr + "/api/induction"

	var analytics planner.FleetAnalytics
	must.Eq(t, 200, httpJSON(t, http.MethodGet, base+"/analytics", "", nil, &analytics))
	must.Eq(t, 3, analytics.TotalTrains)

	var health struct {
		Status string `json:"status"`
		Trains int    `json:"trains"`
	}
	must.Eq(t, 200, httpJSON(t, http.MethodGet, base+"/health", "", nil, &health))
	must.Eq(t, "ok", health.Status)
	must.Eq(t, 3, health.Trains)
}

func TestHTTP_MethodNotAllowed(t *testing.T) {
	_, srv := makeHTTPServer(t, nil)
	base := "http://" + srv.Addr + "/api/induction"

	must.Eq(t, 405, httpJSON(t, http.MethodPost, base+"/latest", "", map[string]any{}, nil))
	must.Eq(t, 405, httpJSON(t, http.MethodGet, base+"/generate", "", nil, nil))
}

func TestHTTP_Auth(t *testing.T) {
	const secret = "test-secret"
	_, srv := makeHTTPServer(t, func(c *Config) {
		c.AuthSecret = secret
	})
	base := "http://" + srv.Addr + "/api/induction"

	genBody := map[string]any{"planDate": "2026-03-10"}

	// No credential.
	must.Eq(t, 401, httpJSON(t, http.MethodPost, base+"/generate", "", genBody, nil))

	// Garbage credential.
	must.Eq(t, 401, httpJSON(t, http.MethodPost, base+"/generate", "junk", genBody, nil))

	// Reader may not generate.
	readerToken, err := MintToken(secret, "user:ravi", acl.RoleReader, time.Hour)
	must.NoError(t, err)
	must.Eq(t, 403, httpJSON(t, http.MethodPost, base+"/generate", readerToken, genBody, nil))

	// Supervisor may.
	supToken, err := MintToken(secret, "user:asha", acl.RoleSupervisor, time.Hour)
	must.NoError(t, err)
	var generated planner.GenerateResponse
	must.Eq(t, 201, httpJSON(t, http.MethodPost, base+"/generate", supToken, genBody, &generated))
	must.Eq(t, "user:asha", generated.Plan.GeneratedBy)

	// Reader may read.
	must.Eq(t, 200, httpJSON(t, http.MethodGet, base+"/latest", readerToken, nil, nil))

	// Expired token.
	expired, err := MintToken(secret, "user:old", acl.RoleSupervisor, -time.Hour)
	must.NoError(t, err)
	must.Eq(t, 401, httpJSON(t, http.MethodPost, base+"/generate", expired, genBody, nil))

	// Token signed with the wrong secret.
	forged, err := MintToken("other-secret", "user:eve", acl.RoleAdmin, time.Hour)
	must.NoError(t, err)
	must.Eq(t, 401, httpJSON(t, http.MethodPost, base+"/generate", forged, genBody, nil))
}

func TestHTTP_GenerateCarriesExpiryAlerts(t *testing.T) {
	a, srv := makeHTTPServer(t, nil)
	base := "http://" + srv.Addr + "/api/induction"

	expiring := mock.Train("TS-04")
	expiring.Fitness.Expiry = time.Now().UTC().Add(49 * time.Hour)
	must.NoError(t, a.State().UpsertTrain(expiring))

	var generated planner.GenerateResponse
	must.Eq(t, 201, httpJSON(t, http.MethodPost, base+"/generate", "",
		map[string]any{"planDate": "2026-03-10"}, &generated))

	var found *structs.Alert
	for _, alert := range generated.Plan.Alerts {
		if alert.TrainCode == "TS-04" {
			found = alert
		}
	}
	must.NotNil(t, found)
	must.Eq(t, structs.AlertTypeCritical, found.Type)
	must.StrContains(t, found.Message, "expires in 2 days")
	must.Eq(t, 1, generated.Summary.CriticalAlerts)
}
