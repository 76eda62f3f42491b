package services

import (
	"context"
	"database/sql"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/dmitrijs2005/windbreaker/internal/artifacts"
	"github.com/dmitrijs2005/windbreaker/internal/cryptox"
	"github.com/dmitrijs2005/windbreaker/internal/logging"
	"github.com/dmitrijs2005/windbreaker/internal/metrics"
	"github.com/dmitrijs2005/windbreaker/internal/server/config"
	"github.com/dmitrijs2005/windbreaker/internal/server/repositories/repomanager"
	"github.com/stretchr/testify/require"
)

var fastArgon = cryptox.Params{Memory: 1024, Time: 1, Threads: 1, SaltLen: 16, KeyLen: 32}

func openStore(t *testing.T) (*sql.DB, repomanager.RepositoryManager) {
	t.Helper()
	ctx := context.Background()
	db, m, err := repomanager.Open(ctx, ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	require.NoError(t, m.RunMigrations(ctx, db))
	return db, m
}

// testClock is a settable clock.
type testClock struct{ t time.Time }

func (c *testClock) Now() time.Time { return c.t }

func newTestUserService(t *testing.T, revoke bool) (*UserService, *AuditLog, *testClock) {
	t.Helper()
	db, m := openStore(t)

	clock := &testClock{t: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
	audit := NewAuditLog(db, m, logging.Nop{}, metrics.New(nil))
	audit.now = clock.Now

	cfg := &config.Config{}
	cfg.LoadDefaults()
	cfg.SecretKey = "test-secret"
	cfg.RevokeOnPasswordReset = revoke

	s := NewUserService(db, m, audit, logging.Nop{}, cfg)
	s.now = clock.Now
	s.hashPassword = func(pw string) (string, error) { return cryptox.HashPasswordWith(pw, fastArgon) }
	return s, audit, clock
}

const (
	delayEncodersJSON = `{
		"Marketing_Airline_Network": ["AA", "DL", "UA"],
		"OriginCityName": ["Atlanta, GA", "Chicago, IL"],
		"DestCityName": ["Denver, CO", "New York, NY"]
	}`

	// margin = (airline >= 1.5 ? +1 : -1) + (hour >= 17 ? +0.5 : -0.5)
	delayModelJSON = `{
		"objective": "binary:logistic",
		"base_score": 0.5,
		"num_feature": 8,
		"trees": [
			{"nodeid":0,"split":"f5","split_condition":1.5,"yes":1,"no":2,"missing":1,
			 "children":[{"nodeid":1,"leaf":-1},{"nodeid":2,"leaf":1}]},
			{"nodeid":0,"split":"f0","split_condition":17,"yes":1,"no":2,"missing":1,
			 "children":[{"nodeid":1,"leaf":-0.5},{"nodeid":2,"leaf":0.5}]}
		]
	}`

	priceEncodersJSON = `{
		"airline": ["Garuda Indonesia", "Lion Air"],
		"destination": ["DPS", "KNO", "SUB"]
	}`

	// price = 500000 + 1000 * (duration >= 100 ? 120 : 60)
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

// writeArtifacts lays out a model directory; entries with empty content are
// skipped.
func writeArtifacts(t *testing.T, files map[string]string) artifacts.Store {
	t.Helper()
	dir := t.TempDir()
	for name, body := range files {
		if body == "" {
			continue
		}
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(body), 0o600))
	}
	return artifacts.NewDirStore(dir)
}

func allArtifacts(t *testing.T) artifacts.Store {
	return writeArtifacts(t, map[string]string{
		"xgb_flight_delay.json": delayModelJSON,
		"delay_encoders.json":   delayEncodersJSON,
		"xgb_price.json":        priceModelJSON,
		"price_encoders.json":   priceEncodersJSON,
	})
}
