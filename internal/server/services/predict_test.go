package services

import (
	"context"
	"errors"
	"math"
	"strings"
	"testing"

	"github.com/dmitrijs2005/windbreaker/internal/common"
	"github.com/dmitrijs2005/windbreaker/internal/features"
	"github.com/dmitrijs2005/windbreaker/internal/inference"
	"github.com/dmitrijs2005/windbreaker/internal/logging"
	"github.com/dmitrijs2005/windbreaker/internal/metrics"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func loadBoth(t *testing.T, mx *metrics.Metrics) (*DelayService, *PriceService) {
	t.Helper()
	store := allArtifacts(t)
	ctx := context.Background()
	d := LoadDelayService(ctx, store, "xgb_flight_delay.json", "delay_encoders.json", logging.Nop{}, mx)
	p := LoadPriceService(ctx, store, "xgb_price.json", "price_encoders.json", logging.Nop{}, mx)
	require.True(t, d.Available())
	require.True(t, p.Available())
	return d, p
}

func sigmoid(x float64) float64 { return 1 / (1 + math.Exp(-x)) }

func TestDelayService_Predict(t *testing.T) {
	d, _ := loadBoth(t, metrics.New(nil))

	got, err := d.Predict(context.Background(), features.DelayInput{
		Airline: "UA", Origin: "Chicago, IL", Destination: "New York, NY",
		Date: "2024-03-15", Time: "18:10",
	})
	require.NoError(t, err)

	p := sigmoid(1.5)
	assert.Equal(t, inference.LabelDelayed, got.Label)
	assert.Equal(t, math.Round(p*1e4)/1e4, got.Probability)
	assert.Equal(t, int(math.Round(p*100)), got.RiskScore)
}

func TestDelayService_UnknownAirlineStillPredicts(t *testing.T) {
	mx := metrics.New(nil)
	d, _ := loadBoth(t, mx)

	got, err := d.Predict(context.Background(), features.DelayInput{
		Airline: "ZZ", Origin: "Chicago, IL", Destination: "New York, NY",
		Date: "2024-03-15", Time: "08:00",
	})
	require.NoError(t, err)
	assert.Equal(t, inference.LabelOnTime, got.Label)

	expected := `
# HELP flightapi_unknown_categories_total Categorical values encoded with the fallback code
# TYPE flightapi_unknown_categories_total counter
flightapi_unknown_categories_total{feature="Marketing_Airline_Network",model="delay"} 1
`
	assert.NoError(t, testutil.GatherAndCompare(mx.Registry(), strings.NewReader(expected),
		"flightapi_unknown_categories_total"))
}

func TestDelayService_Validation(t *testing.T) {
	d, _ := loadBoth(t, nil)

	_, err := d.Predict(context.Background(), features.DelayInput{Airline: "AA", Date: "15/03/2024", Time: "08:00"})
	assert.ErrorIs(t, err, common.ErrValidation)
}

func TestPriceService_Predict(t *testing.T) {
	mx := metrics.New(nil)
	_, p := loadBoth(t, mx)

	price, err := p.Predict(context.Background(), features.PriceInput{
		Airline: "Lion Air", Destination: "SUB", DurationMins: 125,
	})
	require.NoError(t, err)
	assert.False(t, math.IsInf(price, 0) || math.IsNaN(price))
	assert.GreaterOrEqual(t, price, 0.0)
	assert.Equal(t, 620000.0, price)

	_, err = p.Predict(context.Background(), features.PriceInput{Airline: "Lion Air", Destination: "SUB", DurationMins: -5})
	assert.ErrorIs(t, err, common.ErrValidation)

	expected := `
# HELP flightapi_predictions_total Predictions by model and outcome
# TYPE flightapi_predictions_total counter
flightapi_predictions_total{model="price",outcome="invalid"} 1
flightapi_predictions_total{model="price",outcome="ok"} 1
`
	assert.NoError(t, testutil.GatherAndCompare(mx.Registry(), strings.NewReader(expected),
		"flightapi_predictions_total"))
}

func TestOptions(t *testing.T) {
	d, p := loadBoth(t, nil)

	do, err := d.Options()
	require.NoError(t, err)
	assert.Equal(t, []string{"AA", "DL", "UA"}, do.Airlines)
	assert.Equal(t, []string{"Atlanta, GA", "Chicago, IL", "Denver, CO", "New York, NY"}, do.Cities)

	po, err := p.Options()
	require.NoError(t, err)
	assert.Equal(t, []string{"Garuda Indonesia", "Lion Air"}, po.Airlines)
	assert.Equal(t, []string{"DPS", "KNO", "SUB"}, po.Cities)

	all := MergeOptions(do, po)
	assert.Len(t, all.Airlines, 5)
	assert.Len(t, all.Cities, 7)
	assert.Equal(t, "AA", all.Airlines[0])
}

func TestMergeOptions_Empty(t *testing.T) {
	got := MergeOptions()
	assert.NotNil(t, got.Airlines)
	assert.Empty(t, got.Cities)
}

func TestLoad_FamiliesDegradeIndependently(t *testing.T) {
	tests := []struct {
		name      string
		files     map[string]string
		delayUp   bool
		priceUp   bool
		delayFile string
	}{
		{
			name: "price model missing",
			files: map[string]string{
				"xgb_flight_delay.json": delayModelJSON, "delay_encoders.json": delayEncodersJSON,
				"price_encoders.json": priceEncodersJSON,
			},
			delayUp: true,
		},
		{
			name: "delay encoders corrupt",
			files: map[string]string{
				"xgb_flight_delay.json": delayModelJSON, "delay_encoders.json": `{"Marketing_Airline_Network": [`,
				"xgb_price.json": priceModelJSON, "price_encoders.json": priceEncodersJSON,
			},
			priceUp: true,
		},
		{
			name: "delay encoders lack a column",
			files: map[string]string{
				"xgb_flight_delay.json": delayModelJSON, "delay_encoders.json": `{"Marketing_Airline_Network": ["AA"]}`,
				"xgb_price.json": priceModelJSON, "price_encoders.json": priceEncodersJSON,
			},
			priceUp: true,
		},
		{
			name: "price model has the wrong width",
			files: map[string]string{
				"xgb_flight_delay.json": delayModelJSON, "delay_encoders.json": delayEncodersJSON,
				"xgb_price.json":      strings.Replace(priceModelJSON, `"num_feature": 4`, `"num_feature": 3`, 1),
				"price_encoders.json": priceEncodersJSON,
			},
			delayUp: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mx := metrics.New(nil)
			store := writeArtifacts(t, tt.files)
			ctx := context.Background()

			d := LoadDelayService(ctx, store, "xgb_flight_delay.json", "delay_encoders.json", logging.Nop{}, mx)
			p := LoadPriceService(ctx, store, "xgb_price.json", "price_encoders.json", logging.Nop{}, mx)
			assert.Equal(t, tt.delayUp, d.Available())
			assert.Equal(t, tt.priceUp, p.Available())

			if !d.Available() {
				_, err := d.Predict(ctx, features.DelayInput{Airline: "AA", Date: "2024-01-01", Time: "10:00"})
				assert.ErrorIs(t, err, common.ErrModelUnavailable)
				_, err = d.Options()
				assert.ErrorIs(t, err, common.ErrModelUnavailable)
			}
			if !p.Available() {
				_, err := p.Predict(ctx, features.PriceInput{Airline: "Lion Air", Destination: "SUB", DurationMins: 60})
				assert.ErrorIs(t, err, common.ErrModelUnavailable)
			}
		})
	}
}

func TestUnavailableServices(t *testing.T) {
	cause := errors.New("artifact missing")

	d := UnavailableDelayService(cause, logging.Nop{}, nil)
	assert.False(t, d.Available())
	_, err := d.Predict(context.Background(), features.DelayInput{})
	assert.ErrorIs(t, err, common.ErrModelUnavailable)

	p := UnavailablePriceService(cause, logging.Nop{}, nil)
	_, err = p.Options()
	assert.ErrorIs(t, err, common.ErrModelUnavailable)
}
