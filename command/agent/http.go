package agent

import (
	"bytes"
	"encoding/json"
	"net"
	"net/http"
	"strings"
	"time"

	hclog "github.com/hashicorp/go-hclog"
	"github.com/rs/cors"

	"github.com/kochimetro/inductiond/structs"
)

const (
	// ErrInvalidMethod is used if the HTTP method is not supported
	ErrInvalidMethod = "Invalid method"

	// apiPrefix roots every induction endpoint.
	apiPrefix = "/api/induction"
)

// allowCORS sets permissive CORS headers for read handlers
var allowCORS = cors.New(cors.Options{
	AllowedOrigins: []string{"*"},
	AllowedMethods: []string{"HEAD", "GET"},
	AllowedHeaders: []string{"*"},
})

// HTTPServer wraps an Agent and exposes it over an HTTP interface.
type HTTPServer struct {
	agent      *Agent
	mux        *http.ServeMux
	listener   net.Listener
	listenerCh chan struct{}
	logger     hclog.Logger
	Addr       string
}

// NewHTTPServer starts a new HTTP server over the agent.
func NewHTTPServer(agent *Agent, config *Config) (*HTTPServer, error) {
	ln, err := net.Listen("tcp", config.BindAddr)
	if err != nil {
		return nil, err
	}

	mux := http.NewServeMux()
	srv := &HTTPServer{
		agent:      agent,
		mux:        mux,
		listener:   ln,
		listenerCh: make(chan struct{}),
		logger:     agent.logger.Named("http"),
		Addr:       ln.Addr().String(),
	}
	srv.registerHandlers()

	go func() {
		defer close(srv.listenerCh)
		http.Serve(ln, mux)
	}()

	return srv, nil
}

// Shutdown is used to shutdown the HTTP server.
func (s *HTTPServer) Shutdown() {
	if s != nil {
		s.logger.Debug("shutting down http server")
		s.listener.Close()
		<-s.listenerCh // block until http.Serve has returned.
	}
}

// registerHandlers attaches the induction endpoints to the mux.
func (s *HTTPServer) registerHandlers() {
	s.mux.Handle(apiPrefix+"/latest", wrapCORS(s.wrap(s.InductionLatestRequest)))
	s.mux.Handle(apiPrefix+"/history", wrapCORS(s.wrap(s.InductionHistoryRequest)))
	s.mux.Handle(apiPrefix+"/explain/", wrapCORS(s.wrap(s.InductionExplainRequest)))
	s.mux.HandleFunc(apiPrefix+"/generate", s.wrap(s.InductionGenerateRequest))
	s.mux.HandleFunc(apiPrefix+"/simulate", s.wrap(s.InductionSimulateRequest))
	s.mux.Handle(apiPrefix+"/analytics", wrapCORS(s.wrap(s.FleetAnalyticsRequest)))
	s.mux.Handle(apiPrefix+"/health", wrapCORS(s.wrap(s.HealthRequest)))
}

// HTTPCodedError is used to provide the HTTP error code
type HTTPCodedError interface {
	error
	Code() int
}

func CodedError(c int, s string) HTTPCodedError {
	return &codedError{s, c}
}

type codedError struct {
	s    string
	code int
}

func (e *codedError) Error() string {
	return e.s
}

func (e *codedError) Code() int {
	return e.code
}

// conflictResponse is the 409 body referencing the plan that already holds
// the requested date.
type conflictResponse struct {
	ExistingPlan string `json:"existingPlan"`
	Suggestion   string `json:"suggestion"`
}

// wrap turns (obj, error) handlers into http.HandlerFunc, translating
// domain errors into status codes.
func (s *HTTPServer) wrap(handler func(resp http.ResponseWriter, req *http.Request) (interface{}, error)) func(resp http.ResponseWriter, req *http.Request) {
	f := func(resp http.ResponseWriter, req *http.Request) {
		reqURL := req.URL.String()
		start := time.Now()
		defer func() {
			s.logger.Debug("request complete", "method", req.Method, "path", reqURL, "duration", time.Since(start))
		}()
		obj, err := handler(resp, req)

		if err != nil {
			s.logger.Error("request failed", "method", req.Method, "path", reqURL, "error", err)

			if conflict, ok := structs.IsErrPlanConflict(err); ok {
				writeJSON(resp, http.StatusConflict, &conflictResponse{
					ExistingPlan: conflict.ExistingPlanID,
					Suggestion:   "set forceRegenerate=true to supersede the existing plan",
				})
				return
			}

			code := 500
			errMsg := err.Error()
			switch {
			case structs.IsErrUnauthenticated(err):
				code = 401
			case structs.IsErrPermissionDenied(err):
				code = 403
			case structs.IsErrPlanNotFound(err), structs.IsErrTrainNotFound(err):
				code = 404
			case structs.IsErrNoTrainsAvailable(err):
				code = 400
			default:
				if coded, ok := err.(HTTPCodedError); ok {
					code = coded.Code()
				}
			}

			resp.WriteHeader(code)
			resp.Write([]byte(errMsg))
			return
		}

		if obj != nil {
			var buf bytes.Buffer
			enc := json.NewEncoder(&buf)
			if err := enc.Encode(obj); err != nil {
				resp.WriteHeader(500)
				resp.Write([]byte(err.Error()))
				return
			}
			resp.Header().Set("Content-Type", "application/json")
			resp.Write(buf.Bytes())
		}
	}
	return f
}

// writeJSON emits a JSON body with an explicit status code, bypassing the
// default 200 the wrap encoder relies on.
func writeJSON(resp http.ResponseWriter, code int, obj interface{}) {
	buf, err := json.Marshal(obj)
	if err != nil {
		resp.WriteHeader(500)
		resp.Write([]byte(err.Error()))
		return
	}
	resp.Header().Set("Content-Type", "application/json")
	resp.WriteHeader(code)
	resp.Write(buf)
}

// decodeBody is used to decode a JSON request body
func decodeBody(req *http.Request, out interface{}) error {
	dec := json.NewDecoder(req.Body)
	return dec.Decode(&out)
}

// parsePathSuffix extracts the trailing path element after prefix.
func parsePathSuffix(req *http.Request, prefix string) string {
	return strings.TrimPrefix(req.URL.Path, prefix)
}

// wrapCORS wraps a handler to allow any origin on read endpoints.
func wrapCORS(f func(http.ResponseWriter, *http.Request)) http.Handler {
	return allowCORS.Handler(http.HandlerFunc(f))
}
