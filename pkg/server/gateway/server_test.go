package gateway

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"aistate/pkg/forwarder"
	"aistate/pkg/metrics"
	"aistate/pkg/models"
	"aistate/pkg/probe"
	"aistate/pkg/registry"
	"aistate/pkg/server/statestore"
	"aistate/pkg/store"
	"aistate/pkg/upstream"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/suite"
)

// recordingForwarder captures the states it is asked to set.
type recordingForwarder struct {
	calls atomic.Int32
}

func (f *recordingForwarder) QueryStateDocument(context.Context) (json.RawMessage, error) {
	return json.RawMessage(`{"state":"up"}`), nil
}

func (f *recordingForwarder) SetState(context.Context, models.AvailabilityState) models.ForwardResult {
	f.calls.Add(1)
	return models.ForwardResult{OK: true}
}

// GatewayTestSuite runs the gateway against a real state store and model endpoint
type GatewayTestSuite struct {
	suite.Suite
	repo        *store.Store
	storeServer *httptest.Server
	model       *httptest.Server
	modelStatus atomic.Int32
	collector   *metrics.Collector
	gateway     *Server
}

func (s *GatewayTestSuite) SetupTest() {
	var err error
	s.repo, err = store.NewStore(filepath.Join(s.T().TempDir(), "state.db"))
	s.Require().NoError(err)
	s.storeServer = httptest.NewServer(statestore.NewServer(s.repo, time.Second).Handler())

	s.modelStatus.Store(http.StatusOK)
	s.model = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(int(s.modelStatus.Load()))
	}))

	client, err := upstream.NewClient(s.storeServer.URL+"/state/ai", upstream.Options{
		RetryMax:       1,
		RetryWaitMin:   10 * time.Millisecond,
		RetryWaitMax:   20 * time.Millisecond,
		RequestTimeout: 2 * time.Second,
	})
	s.Require().NoError(err)

	reg := registry.NewStatic([]registry.ModelDescriptor{{Name: "llama", URL: s.model.URL + "/health"}})
	s.collector = metrics.NewCollector()
	fwd := forwarder.New(client, reg, probe.NewProber(2*time.Second), forwarder.WithMetrics(s.collector))

	s.gateway = NewServer(fwd, time.Second, WithMetrics(s.collector))
}

func (s *GatewayTestSuite) TearDownTest() {
	s.model.Close()
	s.storeServer.Close()
	s.repo.Close()
}

func (s *GatewayTestSuite) serve(handler http.Handler, method, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, "/api/ai-state", nil)
	} else {
		req = httptest.NewRequest(method, "/api/ai-state", strings.NewReader(body))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func (s *GatewayTestSuite) storedState() models.AvailabilityState {
	record, err := s.repo.Get(context.Background(), "ai")
	s.Require().NoError(err)
	return record.State
}

func (s *GatewayTestSuite) TestRoutes() {
	routes := make(map[string]bool)
	for _, route := range s.gateway.Handler().Routes() {
		routes[route.Method+" "+route.Path] = true
	}

	s.True(routes["GET /api/ai-state"])
	s.True(routes["POST /api/ai-state"])
	s.True(routes["GET /metrics"])
	s.True(routes["GET /healthz"])
	s.True(routes["GET /swagger.yml"])
}

func (s *GatewayTestSuite) TestMetricsRouteNeedsCollector() {
	bare := NewServer(&recordingForwarder{}, time.Second)
	for _, route := range bare.Handler().Routes() {
		s.NotEqual("/metrics", route.Path)
	}
}

func (s *GatewayTestSuite) TestGetReturnsUpstreamState() {
	rec := s.serve(s.gateway.Handler(), http.MethodGet, "")

	s.Equal(http.StatusOK, rec.Code)
	s.JSONEq(`{"state":"down"}`, rec.Body.String())
}

func (s *GatewayTestSuite) TestGetPassesUpstreamObjectThrough() {
	body := `{"state":"up","since":"2026-10-01T08:00:00Z","source":"settings"}`
	upstreamServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(body))
	}))
	defer upstreamServer.Close()

	client, err := upstream.NewClient(upstreamServer.URL, upstream.Options{RequestTimeout: time.Second})
	s.Require().NoError(err)
	reg := registry.NewStatic([]registry.ModelDescriptor{{Name: "llama", URL: s.model.URL}})
	gw := NewServer(forwarder.New(client, reg, probe.NewProber(time.Second)), time.Second)

	rec := s.serve(gw.Handler(), http.MethodGet, "")

	s.Equal(http.StatusOK, rec.Code)
	s.JSONEq(body, rec.Body.String())
	s.Contains(rec.Header().Get(echo.HeaderContentType), echo.MIMEApplicationJSON)
}

func (s *GatewayTestSuite) TestSetUpWithHealthyModel() {
	rec := s.serve(s.gateway.Handler(), http.MethodPost, `{"state":"up"}`)

	s.Require().Equal(http.StatusOK, rec.Code)
	s.JSONEq(`{"ok":true}`, rec.Body.String())
	s.Equal(models.StateUp, s.storedState())

	rec = s.serve(s.gateway.Handler(), http.MethodGet, "")
	s.JSONEq(`{"state":"up"}`, rec.Body.String())
}

func (s *GatewayTestSuite) TestSetWithFailingModelCompensates() {
	s.modelStatus.Store(http.StatusServiceUnavailable)

	rec := s.serve(s.gateway.Handler(), http.MethodPost, `{"state":"changing"}`)

	s.Require().Equal(http.StatusOK, rec.Code)
	s.JSONEq(`{"ok":false}`, rec.Body.String())
	s.Equal(models.StateDown, s.storedState())

	entries, err := s.repo.History(context.Background(), "ai", 10)
	s.Require().NoError(err)
	s.Require().Len(entries, 2)
	s.Equal(models.StateDown, entries[0].State)
	s.Equal(models.StateChanging, entries[1].State)
}

func (s *GatewayTestSuite) TestSetRejectsBadBodies() {
	fwd := &recordingForwarder{}
	gw := NewServer(fwd, time.Second)

	for _, body := range []string{`{"state":"sideways"}`, `{"state":true}`, `{}`, `garbage`} {
		rec := s.serve(gw.Handler(), http.MethodPost, body)
		s.Equal(http.StatusBadRequest, rec.Code, body)

		var resp map[string]any
		s.Require().NoError(json.Unmarshal(rec.Body.Bytes(), &resp), body)
		s.Equal(false, resp["ok"], body)
		s.NotEmpty(resp["error"], body)
	}

	s.Equal(int32(0), fwd.calls.Load())
}

func (s *GatewayTestSuite) TestGetUpstreamDown() {
	s.storeServer.Close()

	rec := s.serve(s.gateway.Handler(), http.MethodGet, "")

	s.Equal(http.StatusBadGateway, rec.Code)
	s.Contains(rec.Body.String(), "error")
}

func (s *GatewayTestSuite) TestMetricsEndpoint() {
	s.serve(s.gateway.Handler(), http.MethodPost, `{"state":"up"}`)

	rec := httptest.NewRecorder()
	s.gateway.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	s.Equal(http.StatusOK, rec.Code)
	s.Contains(rec.Body.String(), `aistate_set_results_total{ok="true"} 1`)
	s.Contains(rec.Body.String(), "aistate_probe_duration_seconds")
}

func (s *GatewayTestSuite) TestSwaggerSpec() {
	rec := httptest.NewRecorder()
	s.gateway.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/swagger.yml", nil))

	s.Equal(http.StatusOK, rec.Code)
	s.Contains(rec.Body.String(), "/api/ai-state")
}

func (s *GatewayTestSuite) TestCORSHeaders() {
	req := httptest.NewRequest(http.MethodGet, "/api/ai-state", nil)
	req.Header.Set(echo.HeaderOrigin, "http://settings.local")
	rec := httptest.NewRecorder()
	s.gateway.Handler().ServeHTTP(rec, req)

	s.Equal("*", rec.Header().Get(echo.HeaderAccessControlAllowOrigin))
}

func TestGatewaySuite(t *testing.T) {
	suite.Run(t, new(GatewayTestSuite))
}
