package pipeline

import (
	"math"
	"reflect"
	"sync"
	"testing"

	"github.com/YuminosukeSato/emissions/dataset"
	"github.com/YuminosukeSato/emissions/pkg/errors"
)

// fitDefault は seed=42, n=1000, test_size=0.2 で学習したパイプラインを返す
func fitDefault(t *testing.T) (*Pipeline, []dataset.Sample, []dataset.Sample) {
	t.Helper()

	ds, err := dataset.Generate(42, 1000)
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}
	train, test, err := dataset.TrainTestSplit(ds, 0.2, 42)
	if err != nil {
		t.Fatalf("TrainTestSplit() error = %v", err)
	}

	p := New()
	if err := p.Fit(train); err != nil {
		t.Fatalf("Fit() error = %v", err)
	}
	return p, train, test
}

var referenceRow = dataset.Features{
	FuelConsumption: 10.0,
	VehicleType:     "car",
	Distance:        100.0,
	EngineSize:      2000.0,
	CountryFactor:   2.5,
}

func TestPipelineFeatureLayout(t *testing.T) {
	p, _, _ := fitDefault(t)

	want := []string{
		"vehicle_type_bus", "vehicle_type_car", "vehicle_type_truck",
		"fuel_consumption", "distance", "engine_size", "country_factor",
	}
	if got := p.FeatureNames(); !reflect.DeepEqual(got, want) {
		t.Errorf("FeatureNames() = %v, want %v", got, want)
	}
	if got := p.Categories(); !reflect.DeepEqual(got, []string{"bus", "car", "truck"}) {
		t.Errorf("Categories() = %v", got)
	}
	if len(p.Coefficients()) != len(want) {
		t.Errorf("len(Coefficients()) = %d, want %d", len(p.Coefficients()), len(want))
	}
	if p.Rank() != len(want) {
		t.Errorf("Rank() = %d, want %d", p.Rank(), len(want))
	}

	x, err := p.Encode(dataset.Features{
		FuelConsumption: 12, VehicleType: "truck", Distance: 250, EngineSize: 3000, CountryFactor: 4,
	})
	if err != nil {
		t.Fatalf("Encode() error = %v", err)
	}
	wantX := []float64{0, 0, 1, 12, 250, 3000, 4}
	for i, v := range wantX {
		if x.AtVec(i) != v {
			t.Errorf("Encode()[%d] = %v, want %v", i, x.AtVec(i), v)
		}
	}
}

func TestPipelineRecoversGeneratingCoefficients(t *testing.T) {
	p, _, test := fitDefault(t)
	coef := p.CoefficientMap()

	checks := []struct {
		name      string
		want      float64
		tolerance float64
	}{
		{dataset.ColFuelConsumption, 2.3, 0.15},
		{dataset.ColEngineSize, 0.001, 0.0005},
		{dataset.ColCountryFactor, 10, 0.6},
		{dataset.ColDistance, 0, 0.01},
	}
	for _, c := range checks {
		if math.Abs(coef[c.name]-c.want) > c.tolerance {
			t.Errorf("coefficient %s = %v, want %v ± %v", c.name, coef[c.name], c.want, c.tolerance)
		}
	}

	// category coefficients are expressed relative to the intercept
	var sum float64
	for _, name := range p.FeatureNames()[:3] {
		sum += coef[name]
		if math.Abs(coef[name]) > 1.5 {
			t.Errorf("category coefficient %s = %v, want near 0", name, coef[name])
		}
	}
	if math.Abs(sum) > 1e-9 {
		t.Errorf("category coefficients sum to %v, want 0", sum)
	}
	if math.Abs(p.Intercept()) > 5 {
		t.Errorf("Intercept() = %v, want near 0", p.Intercept())
	}

	eval, err := p.Evaluate(test)
	if err != nil {
		t.Fatalf("Evaluate() error = %v", err)
	}
	if eval.Samples != 200 {
		t.Errorf("Evaluate().Samples = %d, want 200", eval.Samples)
	}
	// noise has σ = 5
	if eval.RMSE < 4 || eval.RMSE > 6 {
		t.Errorf("RMSE = %v, want about 5", eval.RMSE)
	}
	if eval.R2 < 0.7 {
		t.Errorf("R2 = %v, want > 0.7", eval.R2)
	}
}

func TestPipelineConcreteScenario(t *testing.T) {
	p, _, _ := fitDefault(t)

	first, err := p.Predict(referenceRow)
	if err != nil {
		t.Fatalf("Predict() error = %v", err)
	}
	if math.IsNaN(first) || math.IsInf(first, 0) {
		t.Fatalf("Predict() = %v, want finite", first)
	}
	// 2.3*10 + 2000/1000 + 10*2.5 = 50
	if math.Abs(first-50) > 3 {
		t.Errorf("Predict() = %v, want about 50", first)
	}

	second, err := p.Predict(referenceRow)
	if err != nil {
		t.Fatal(err)
	}
	if first != second {
		t.Errorf("Predict() not idempotent: %v then %v", first, second)
	}
}

func TestPipelineFuelMonotonic(t *testing.T) {
	p, _, _ := fitDefault(t)

	low := referenceRow
	low.FuelConsumption = 5.0
	high := referenceRow
	high.FuelConsumption = 20.0

	lowPred, err := p.Predict(low)
	if err != nil {
		t.Fatal(err)
	}
	highPred, err := p.Predict(high)
	if err != nil {
		t.Fatal(err)
	}
	if highPred <= lowPred {
		t.Errorf("Predict(fuel=20) = %v, not greater than Predict(fuel=5) = %v", highPred, lowPred)
	}
}

func TestPipelineUnknownCategory(t *testing.T) {
	p, _, _ := fitDefault(t)

	row := referenceRow
	row.VehicleType = "motorcycle"
	_, err := p.Predict(row)
	var unknown *errors.UnknownCategoryError
	if !errors.As(err, &unknown) {
		t.Fatalf("expected UnknownCategoryError, got %v", err)
	}
	if unknown.Value != "motorcycle" {
		t.Errorf("Value = %q", unknown.Value)
	}

	if _, err := p.PredictBatch([]dataset.Features{referenceRow, row}); !errors.As(err, &unknown) {
		t.Errorf("PredictBatch() error = %v, want UnknownCategoryError", err)
	}
}

func TestPipelineInvalidRows(t *testing.T) {
	p, _, _ := fitDefault(t)

	missing := referenceRow
	missing.VehicleType = ""
	var shape *errors.InputShapeError
	if _, err := p.Predict(missing); !errors.As(err, &shape) {
		t.Errorf("expected InputShapeError, got %v", err)
	}

	nan := referenceRow
	nan.EngineSize = math.NaN()
	var validation *errors.ValidationError
	if _, err := p.Predict(nan); !errors.As(err, &validation) {
		t.Errorf("expected ValidationError, got %v", err)
	}
}

func TestPipelinePredictBatchMatchesPredict(t *testing.T) {
	p, _, test := fitDefault(t)

	rows := dataset.Rows(test)
	batch, err := p.PredictBatch(rows)
	if err != nil {
		t.Fatalf("PredictBatch() error = %v", err)
	}
	for i, row := range rows {
		single, err := p.Predict(row)
		if err != nil {
			t.Fatal(err)
		}
		if math.Abs(single-batch[i]) > 1e-9*math.Max(1, math.Abs(single)) {
			t.Errorf("row %d: Predict() = %v, PredictBatch() = %v", i, single, batch[i])
		}
	}

	empty, err := p.PredictBatch(nil)
	if err != nil || len(empty) != 0 {
		t.Errorf("PredictBatch(nil) = %v, %v", empty, err)
	}
}

func TestPipelineConcurrentPredict(t *testing.T) {
	p, _, test := fitDefault(t)
	want, err := p.Predict(test[0].Features)
	if err != nil {
		t.Fatal(err)
	}

	var wg sync.WaitGroup
	errs := make(chan error, 16)
	for g := 0; g < 16; g++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 50; i++ {
				got, err := p.Predict(test[0].Features)
				if err != nil {
					errs <- err
					return
				}
				if got != want {
					errs <- errors.Newf("got %v, want %v", got, want)
					return
				}
			}
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Error(err)
	}
}

func TestPipelineFitIsOneShot(t *testing.T) {
	p, train, _ := fitDefault(t)
	before := p.Coefficients()

	err := p.Fit(train[:10])
	var validation *errors.ValidationError
	if !errors.As(err, &validation) {
		t.Fatalf("second Fit() error = %v, want ValidationError", err)
	}
	if !reflect.DeepEqual(before, p.Coefficients()) {
		t.Error("rejected Fit() changed the coefficients")
	}
}

func TestPipelineNotFitted(t *testing.T) {
	p := New()
	var notFitted *errors.NotFittedError
	if _, err := p.Predict(referenceRow); !errors.As(err, &notFitted) {
		t.Errorf("Predict() error = %v, want NotFittedError", err)
	}
	if _, err := p.PredictBatch([]dataset.Features{referenceRow}); !errors.As(err, &notFitted) {
		t.Errorf("PredictBatch() error = %v, want NotFittedError", err)
	}
}

func TestPipelineFitRejectsInvalidSamples(t *testing.T) {
	var validation *errors.ValidationError
	if err := New().Fit(nil); !errors.As(err, &validation) {
		t.Errorf("Fit(nil) error = %v, want ValidationError", err)
	}

	samples := []dataset.Sample{
		{Features: referenceRow, Emissions: 50},
		{Features: referenceRow, Emissions: math.Inf(1)},
	}
	if err := New().Fit(samples); !errors.As(err, &validation) {
		t.Errorf("Fit() error = %v, want ValidationError", err)
	}
}

func TestPipelineRankDeficientTrainingData(t *testing.T) {
	ds, err := dataset.Generate(1, 50)
	if err != nil {
		t.Fatal(err)
	}
	// constant fuel is a multiple of the one-hot block sum
	for i := range ds.Samples {
		ds.Samples[i].FuelConsumption = 10
	}

	p := New()
	err = p.Fit(ds.Samples)
	var rankErr *errors.RankDeficientError
	if !errors.As(err, &rankErr) {
		t.Fatalf("expected RankDeficientError, got %v", err)
	}
	if p.IsFitted() {
		t.Error("failed Fit() must leave the pipeline unfitted")
	}
}

func TestPipelineWarnsOnMissingCategory(t *testing.T) {
	ds, err := dataset.Generate(42, 300)
	if err != nil {
		t.Fatal(err)
	}
	var noBus []dataset.Sample
	for _, s := range ds.Samples {
		if s.VehicleType != "bus" {
			noBus = append(noBus, s)
		}
	}

	var warnings []error
	errors.SetWarningHandler(func(w error) { warnings = append(warnings, w) })
	t.Cleanup(func() { errors.SetWarningHandler(nil) })

	p := New()
	if err := p.Fit(noBus); err != nil {
		t.Fatalf("Fit() error = %v", err)
	}
	if len(warnings) != 1 {
		t.Fatalf("got %d warnings, want 1", len(warnings))
	}
	var missing *errors.MissingCategoryWarning
	if !errors.As(warnings[0], &missing) || !reflect.DeepEqual(missing.Missing, []string{"bus"}) {
		t.Errorf("unexpected warning: %v", warnings[0])
	}

	if got := p.FeatureNames(); len(got) != 6 || got[0] != "vehicle_type_car" {
		t.Errorf("FeatureNames() = %v", got)
	}
	bus := referenceRow
	bus.VehicleType = "bus"
	var unknown *errors.UnknownCategoryError
	if _, err := p.Predict(bus); !errors.As(err, &unknown) {
		t.Errorf("Predict(bus) error = %v, want UnknownCategoryError", err)
	}
}
