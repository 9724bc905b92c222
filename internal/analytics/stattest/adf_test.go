package stattest

import (
	"errors"
	"math"
	"math/rand/v2"
	"testing"
)

func whiteNoise(n int, seed uint64) []float64 {
	rng := rand.New(rand.NewPCG(seed, seed+1))
	out := make([]float64, n)
	for i := range out {
		out[i] = rng.NormFloat64()
	}
	return out
}

func TestADF_StationarySeries(t *testing.T) {
	res, err := ADF(whiteNoise(300, 47))
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if res.PValue > 0.01 {
		t.Errorf("Expected white noise to reject the unit root, p = %f", res.PValue)
	}
	if !res.IsStationary {
		t.Error("Expected IsStationary for white noise")
	}
	if res.Statistic >= res.CriticalValues["1%"] {
		t.Errorf("Statistic %f should be below the 1%% critical value %f", res.Statistic, res.CriticalValues["1%"])
	}
	if res.NObs <= 0 || res.UsedLag < 0 {
		t.Errorf("Unexpected sample info: nobs=%d lag=%d", res.NObs, res.UsedLag)
	}
}

func TestADF_ExplosiveSeries(t *testing.T) {
	noise := whiteNoise(200, 3)
	values := make([]float64, len(noise))
	for i := range values {
		values[i] = math.Pow(1.02, float64(i)) + 0.01*noise[i]
	}
	p, err := ADFPValue(values)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if p < 0.5 {
		t.Errorf("Expected a non-stationary series to keep the unit root, p = %f", p)
	}
}

func TestADF_ShortSample(t *testing.T) {
	if _, err := ADF([]float64{1, 2, 3}); !errors.Is(err, ErrSampleTooShort) {
		t.Errorf("Expected ErrSampleTooShort, got %v", err)
	}
}

func TestADF_ConstantSeries(t *testing.T) {
	values := make([]float64, 40)
	for i := range values {
		values[i] = 5
	}
	if _, err := ADF(values); !errors.Is(err, ErrDegenerate) {
		t.Errorf("Expected ErrDegenerate, got %v", err)
	}
}

func TestMacKinnonPValue(t *testing.T) {
	if p := MacKinnonPValue(3); p != 1 {
		t.Errorf("Expected 1 above the upper bound, got %f", p)
	}
	if p := MacKinnonPValue(-20); p != 0 {
		t.Errorf("Expected 0 below the lower bound, got %f", p)
	}
	// the asymptotic 5% critical value
	if p := MacKinnonPValue(-2.86); math.Abs(p-0.05) > 0.005 {
		t.Errorf("Expected p near 0.05 at -2.86, got %f", p)
	}

	prev := 0.0
	for stat := -6.0; stat <= 2.5; stat += 0.25 {
		p := MacKinnonPValue(stat)
		if p < prev-1e-12 {
			t.Fatalf("p-value not monotone at %f: %f < %f", stat, p, prev)
		}
		prev = p
	}
}

func TestCriticalValues(t *testing.T) {
	cv := criticalValues(100000)
	expected := map[string]float64{"1%": -3.43, "5%": -2.86, "10%": -2.57}
	for level, want := range expected {
		if math.Abs(cv[level]-want) > 0.01 {
			t.Errorf("critical value %s = %f, expected %f", level, cv[level], want)
		}
	}
	small := criticalValues(50)
	if small["5%"] >= cv["5%"] {
		t.Error("Finite-sample critical values should be more negative")
	}
}
