package services

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/dmitrijs2005/windbreaker/internal/artifacts"
	"github.com/dmitrijs2005/windbreaker/internal/common"
	"github.com/dmitrijs2005/windbreaker/internal/encoders"
	"github.com/dmitrijs2005/windbreaker/internal/features"
	"github.com/dmitrijs2005/windbreaker/internal/inference"
	"github.com/dmitrijs2005/windbreaker/internal/logging"
	"github.com/dmitrijs2005/windbreaker/internal/metrics"
)

// Options lists the categories a client can pick from.
type Options struct {
	Airlines []string
	Cities   []string
}

// MergeOptions unions option sets, sorted and de-duplicated.
func MergeOptions(sets ...Options) Options {
	return Options{
		Airlines: union(func(o Options) []string { return o.Airlines }, sets),
		Cities:   union(func(o Options) []string { return o.Cities }, sets),
	}
}

func union(pick func(Options) []string, sets []Options) []string {
	seen := map[string]struct{}{}
	out := []string{}
	for _, s := range sets {
		for _, v := range pick(s) {
			if _, ok := seen[v]; !ok {
				seen[v] = struct{}{}
				out = append(out, v)
			}
		}
	}
	sort.Strings(out)
	return out
}

// family is what both prediction services share: a registry, a load error
// when the family is down, and observability.
type family struct {
	name     string
	registry *encoders.Registry
	cause    error
	logger   logging.Logger
	metrics  *metrics.Metrics
}

func (f *family) available() error {
	if f.cause != nil {
		return fmt.Errorf("%w: %s model", common.ErrModelUnavailable, f.name)
	}
	return nil
}

// observe counts the outcome of one prediction.
func (f *family) observe(start time.Time, err error) {
	outcome := metrics.OutcomeOK
	switch {
	case err == nil:
	case errors.Is(err, common.ErrValidation):
		outcome = metrics.OutcomeInvalid
	case errors.Is(err, common.ErrModelUnavailable):
		outcome = metrics.OutcomeUnavailable
	default:
		outcome = metrics.OutcomeError
	}
	f.metrics.ObservePrediction(f.name, outcome, time.Since(start))
}

// missHook logs unknown categories quietly and counts them.
func (f *family) missHook(ctx context.Context) encoders.MissHook {
	return func(feature, value string) {
		f.metrics.UnknownCategory(f.name, feature)
		f.logger.Debug(ctx, "unknown category, using fallback code",
			"model", f.name, "feature", feature, "value", value)
	}
}

func (f *family) options(airline string, cityFeatures ...string) (Options, error) {
	if err := f.available(); err != nil {
		return Options{}, err
	}

	airlines, err := f.registry.Classes(airline)
	if err != nil {
		return Options{}, fmt.Errorf("%w: %v", common.ErrInternal, err)
	}

	var cities []Options
	for _, feat := range cityFeatures {
		if !f.registry.Has(feat) {
			continue
		}
		classes, _ := f.registry.Classes(feat)
		cities = append(cities, Options{Cities: classes})
	}

	return Options{Airlines: MergeOptions(Options{Airlines: airlines}).Airlines, Cities: MergeOptions(cities...).Cities}, nil
}

// DelayService answers delay-risk questions.
type DelayService struct {
	family
	classifier *inference.Classifier
}

func NewDelayService(clf *inference.Classifier, reg *encoders.Registry, logger logging.Logger, mx *metrics.Metrics) *DelayService {
	return &DelayService{
		family:     family{name: metrics.ModelDelay, registry: reg, logger: logger, metrics: mx},
		classifier: clf,
	}
}

// UnavailableDelayService serves ErrModelUnavailable for every call.
func UnavailableDelayService(cause error, logger logging.Logger, mx *metrics.Metrics) *DelayService {
	return &DelayService{family: family{name: metrics.ModelDelay, cause: cause, logger: logger, metrics: mx}}
}

func (s *DelayService) Available() bool { return s.cause == nil }

func (s *DelayService) Predict(ctx context.Context, in features.DelayInput) (pred inference.DelayPrediction, err error) {
	start := time.Now()
	defer func() { s.observe(start, err) }()

	if err := s.available(); err != nil {
		return inference.DelayPrediction{}, err
	}

	vec, err := features.BuildDelay(in, s.registry.WithMissHook(s.missHook(ctx)))
	if err != nil {
		return inference.DelayPrediction{}, err
	}

	pred, err = s.classifier.Predict(vec)
	if err != nil {
		s.logger.Error(ctx, "delay inference failed", "error", err)
		return inference.DelayPrediction{}, err
	}
	return pred, nil
}

func (s *DelayService) Options() (Options, error) {
	return s.options(features.DelayAirline, features.DelayOrigin, features.DelayDestination)
}

// PriceService estimates ticket prices.
type PriceService struct {
	family
	regressor *inference.Regressor
}

func NewPriceService(r *inference.Regressor, reg *encoders.Registry, logger logging.Logger, mx *metrics.Metrics) *PriceService {
	return &PriceService{
		family:    family{name: metrics.ModelPrice, registry: reg, logger: logger, metrics: mx},
		regressor: r,
	}
}

// UnavailablePriceService serves ErrModelUnavailable for every call.
func UnavailablePriceService(cause error, logger logging.Logger, mx *metrics.Metrics) *PriceService {
	return &PriceService{family: family{name: metrics.ModelPrice, cause: cause, logger: logger, metrics: mx}}
}

func (s *PriceService) Available() bool { return s.cause == nil }

func (s *PriceService) Predict(ctx context.Context, in features.PriceInput) (price float64, err error) {
	start := time.Now()
	defer func() { s.observe(start, err) }()

	if err := s.available(); err != nil {
		return 0, err
	}

	vec, err := features.BuildPrice(in, s.registry.WithMissHook(s.missHook(ctx)))
	if err != nil {
		return 0, err
	}

	price, err = s.regressor.Predict(vec)
	if err != nil {
		s.logger.Error(ctx, "price inference failed", "error", err)
		return 0, err
	}
	return price, nil
}

func (s *PriceService) Options() (Options, error) {
	return s.options(features.PriceAirline, features.PriceOrigin, features.PriceDestination)
}

// LoadDelayService loads the delay family from store. It never fails: a
// broken artifact yields a service that reports ErrModelUnavailable.
func LoadDelayService(ctx context.Context, store artifacts.Store, modelName, encoderName string, logger logging.Logger, mx *metrics.Metrics) *DelayService {
	model, reg, err := loadFamily(ctx, store, modelName, encoderName,
		features.DelayAirline, features.DelayOrigin, features.DelayDestination)

	var clf *inference.Classifier
	if err == nil {
		clf, err = inference.NewClassifier(model, len(features.DelayColumns))
	}
	if err != nil {
		logger.Error(ctx, "delay model unavailable", "model", modelName, "encoders", encoderName, "error", err)
		mx.SetModelLoaded(metrics.ModelDelay, false)
		return UnavailableDelayService(err, logger, mx)
	}

	logger.Info(ctx, "delay model loaded", "model", modelName, "features", len(features.DelayColumns))
	mx.SetModelLoaded(metrics.ModelDelay, true)
	return NewDelayService(clf, reg, logger, mx)
}

// LoadPriceService is LoadDelayService for the price family. Only airline
// and destination encoders are mandatory.
func LoadPriceService(ctx context.Context, store artifacts.Store, modelName, encoderName string, logger logging.Logger, mx *metrics.Metrics) *PriceService {
	model, reg, err := loadFamily(ctx, store, modelName, encoderName,
		features.PriceAirline, features.PriceDestination)

	var r *inference.Regressor
	if err == nil {
		r, err = inference.NewRegressor(model, len(features.PriceColumns))
	}
	if err != nil {
		logger.Error(ctx, "price model unavailable", "model", modelName, "encoders", encoderName, "error", err)
		mx.SetModelLoaded(metrics.ModelPrice, false)
		return UnavailablePriceService(err, logger, mx)
	}

	logger.Info(ctx, "price model loaded", "model", modelName, "features", len(features.PriceColumns))
	mx.SetModelLoaded(metrics.ModelPrice, true)
	return NewPriceService(r, reg, logger, mx)
}

func loadFamily(ctx context.Context, store artifacts.Store, modelName, encoderName string, required ...string) (inference.Model, *encoders.Registry, error) {
	rc, err := store.Open(ctx, encoderName)
	if err != nil {
		return nil, nil, err
	}
	reg, err := encoders.LoadRegistry(rc)
	_ = rc.Close()
	if err != nil {
		return nil, nil, fmt.Errorf("%s: %w", encoderName, err)
	}
	if err := reg.Require(required...); err != nil {
		return nil, nil, fmt.Errorf("%s: %w", encoderName, err)
	}

	rc, err = store.Open(ctx, modelName)
	if err != nil {
		return nil, nil, err
	}
	defer rc.Close()

	model, err := inference.Load(modelName, rc)
	if err != nil {
		return nil, nil, err
	}
	return model, reg, nil
}
