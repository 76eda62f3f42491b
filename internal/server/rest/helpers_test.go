package rest

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/dmitrijs2005/windbreaker/internal/artifacts"
	"github.com/dmitrijs2005/windbreaker/internal/logging"
	"github.com/dmitrijs2005/windbreaker/internal/metrics"
	"github.com/dmitrijs2005/windbreaker/internal/server/config"
	"github.com/dmitrijs2005/windbreaker/internal/server/models"
	"github.com/dmitrijs2005/windbreaker/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/windbreaker/internal/server/services"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
)

const (
	delayEncodersJSON = `{
		"Marketing_Airline_Network": ["AA", "DL", "UA"],
		"OriginCityName": ["Atlanta, GA", "Chicago, IL"],
		"DestCityName": ["Denver, CO", "New York, NY"]
	}`

	delayModelJSON = `{
		"objective": "binary:logistic",
		"base_score": 0.5,
		"num_feature": 8,
		"trees": [
			{"nodeid":0,"split":"f5","split_condition":1.5,"yes":1,"no":2,"missing":1,
			 "children":[{"nodeid":1,"leaf":-1},{"nodeid":2,"leaf":1}]}
		]
	}`

	priceEncodersJSON = `{
		"airline": ["Garuda Indonesia", "Lion Air"],
		"destination": ["DPS", "KNO", "SUB"]
	}`

	priceModelJSON = `{
		"objective": "reg:squarederror",
		"base_score": 500000,
		"num_feature": 4,
		"trees": [
			{"nodeid":0,"split":"f3","split_condition":100,"yes":1,"no":2,
			 "children":[{"nodeid":1,"leaf":60000},{"nodeid":2,"leaf":120000}]}
		]
	}`
)

type testEnv struct {
	server *HTTPServer
	audit  *services.AuditLog
	mx     *metrics.Metrics
}

// newTestEnv wires the real services against in-memory SQLite. Artifacts
// with empty content are left out so a family can be made unavailable.
func newTestEnv(t *testing.T, files map[string]string) *testEnv {
	t.Helper()
	return newTestEnvWith(t, files, Options{})
}

func newTestEnvWith(t *testing.T, files map[string]string, opts Options) *testEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)
	ctx := context.Background()

	db, m, err := repomanager.Open(ctx, ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	require.NoError(t, m.RunMigrations(ctx, db))

	dir := t.TempDir()
	for name, body := range files {
		if body == "" {
			continue
		}
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(body), 0o600))
	}
	store := artifacts.NewDirStore(dir)

	cfg := &config.Config{}
	cfg.LoadDefaults()
	cfg.SecretKey = "rest-test-secret"

	log := logging.Nop{}
	mx := metrics.New(nil)
	audit := services.NewAuditLog(db, m, log, mx)
	us := services.NewUserService(db, m, audit, log, cfg)
	ds := services.LoadDelayService(ctx, store, cfg.DelayModelFile, cfg.DelayEncoderFile, log, mx)
	ps := services.LoadPriceService(ctx, store, cfg.PriceModelFile, cfg.PriceEncoderFile, log, mx)

	srv, err := NewHTTPServer(cfg.EndpointAddr, Info{ProjectName: cfg.ProjectName, Version: cfg.Version}, opts, log, mx, us, ds, ps)
	require.NoError(t, err)
	return &testEnv{server: srv, audit: audit, mx: mx}
}

func allArtifacts() map[string]string {
	return map[string]string{
		"xgb_flight_delay.json": delayModelJSON,
		"delay_encoders.json":   delayEncodersJSON,
		"xgb_price.json":        priceModelJSON,
		"price_encoders.json":   priceEncodersJSON,
	}
}

func (e *testEnv) do(t *testing.T, req *http.Request) *httptest.ResponseRecorder {
	t.Helper()
	w := httptest.NewRecorder()
	e.server.Handler().ServeHTTP(w, req)
	return w
}

func (e *testEnv) postJSON(t *testing.T, path, body, token string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	return e.do(t, req)
}

func (e *testEnv) get(t *testing.T, path, token string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	return e.do(t, req)
}

func (e *testEnv) login(t *testing.T, email, password string) *httptest.ResponseRecorder {
	t.Helper()
	form := url.Values{"username": {email}, "password": {password}}
	req := httptest.NewRequest(http.MethodPost, "/api/login", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return e.do(t, req)
}

// failedLoginFrom submits a wrong password as if sent by remote with the
// given X-Forwarded-For header, and returns the recorded client address.
func (e *testEnv) failedLoginFrom(t *testing.T, remote, forwardedFor string) string {
	t.Helper()
	form := url.Values{"username": {"ana@x.com"}, "password": {"wrong"}}
	req := httptest.NewRequest(http.MethodPost, "/api/login", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("X-Forwarded-For", forwardedFor)
	req.RemoteAddr = remote
	require.Equal(t, http.StatusUnauthorized, e.do(t, req).Code)

	events, err := e.audit.ListByEmail(context.Background(), "ana@x.com", 0)
	require.NoError(t, err)
	for _, ev := range events {
		if ev.Event == models.AuditLoginFailed {
			return ev.ClientAddr
		}
	}
	t.Fatal("no login_failed event recorded")
	return ""
}

// token registers a user and returns a fresh access token.
func (e *testEnv) token(t *testing.T) string {
	t.Helper()
	w := e.postJSON(t, "/api/register", `{"name":"Ana","email":"ana@x.com","password":"pw123"}`, "")
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	w = e.login(t, "ana@x.com", "pw123")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var body struct {
		AccessToken string `json:"access_token"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	require.NotEmpty(t, body.AccessToken)
	return body.AccessToken
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out), w.Body.String())
	return out
}
