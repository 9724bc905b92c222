// Package stattest implements unit-root stationarity tests used to annotate
// feature windows.
package stattest

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat/distuv"
)

var (
	// ErrSampleTooShort is returned when the sample cannot support a single regression
	ErrSampleTooShort = errors.New("sample too short for unit-root test")

	// ErrDegenerate is returned when the regression is singular or fits perfectly
	ErrDegenerate = errors.New("degenerate unit-root regression")
)

// PValueFunc maps a numeric sequence to a stationarity test p-value
type PValueFunc func(values []float64) (float64, error)

// ADFResult represents the result of an Augmented Dickey-Fuller test
type ADFResult struct {
	Statistic      float64
	PValue         float64
	UsedLag        int
	NObs           int
	CriticalValues map[string]float64 // 1%, 5%, 10%
	IsStationary   bool
}

// ADFPValue runs ADF and returns only the p-value
func ADFPValue(values []float64) (float64, error) {
	res, err := ADF(values)
	if err != nil {
		return 0, err
	}
	return res.PValue, nil
}

// ADF performs the Augmented Dickey-Fuller test with a constant term.
// The number of lagged differences is picked by AIC among 0..maxlag where
// maxlag = min(n/2-2, ceil(12*(n/100)^(1/4))). The null hypothesis is a unit
// root; small p-values indicate stationarity.
func ADF(values []float64) (*ADFResult, error) {
	n := len(values)
	maxLag := int(math.Ceil(12 * math.Pow(float64(n)/100, 0.25)))
	if limit := n/2 - 2; limit < maxLag {
		maxLag = limit
	}
	if maxLag < 0 {
		return nil, fmt.Errorf("%w: %d observations", ErrSampleTooShort, n)
	}

	diff := make([]float64, n-1)
	for i := range diff {
		diff[i] = values[i+1] - values[i]
	}

	// Select the lag on a common sample so AIC values are comparable
	bestLag, bestAIC := 0, math.Inf(1)
	for lag := 0; lag <= maxLag; lag++ {
		x, y := adfDesign(values, diff, maxLag, lag)
		fit, err := ols(x, y)
		if err != nil {
			continue
		}
		if fit.aic < bestAIC {
			bestAIC = fit.aic
			bestLag = lag
		}
	}

	x, y := adfDesign(values, diff, bestLag, bestLag)
	fit, err := ols(x, y)
	if err != nil {
		return nil, err
	}

	// column 1 is the lagged level
	tStat := fit.coef[1] / fit.stdErr[1]
	if math.IsNaN(tStat) || math.IsInf(tStat, 0) {
		return nil, fmt.Errorf("%w: non-finite statistic", ErrDegenerate)
	}

	nObs := len(y)
	pValue := MacKinnonPValue(tStat)
	return &ADFResult{
		Statistic:      tStat,
		PValue:         pValue,
		UsedLag:        bestLag,
		NObs:           nObs,
		CriticalValues: criticalValues(nObs),
		IsStationary:   pValue < 0.05,
	}, nil
}

// adfDesign builds the regression
//
//	dy_t = a + b*y_{t-1} + sum_{j=1..lag} g_j*dy_{t-j}
//
// over the observations that remain after trimming `trim` leading differences.
func adfDesign(values, diff []float64, trim, lag int) (*mat.Dense, []float64) {
	nObs := len(diff) - trim
	k := 2 + lag
	x := mat.NewDense(nObs, k, nil)
	y := make([]float64, nObs)
	for i := 0; i < nObs; i++ {
		t := i + trim
		y[i] = diff[t]
		x.Set(i, 0, 1)
		x.Set(i, 1, values[t])
		for j := 1; j <= lag; j++ {
			x.Set(i, 1+j, diff[t-j])
		}
	}
	return x, y
}

type olsFit struct {
	coef   []float64
	stdErr []float64
	aic    float64
}

func ols(x *mat.Dense, y []float64) (*olsFit, error) {
	n, k := x.Dims()
	if n <= k {
		return nil, fmt.Errorf("%w: %d observations for %d regressors", ErrDegenerate, n, k)
	}

	var xtx mat.Dense
	xtx.Mul(x.T(), x)
	var inv mat.Dense
	if err := inv.Inverse(&xtx); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDegenerate, err)
	}

	yv := mat.NewVecDense(n, y)
	var xty, beta mat.VecDense
	xty.MulVec(x.T(), yv)
	beta.MulVec(&inv, &xty)

	var fitted mat.VecDense
	fitted.MulVec(x, &beta)
	ssr := 0.0
	for i := 0; i < n; i++ {
		r := y[i] - fitted.AtVec(i)
		ssr += r * r
	}

	sigma2 := ssr / float64(n-k)
	coef := make([]float64, k)
	se := make([]float64, k)
	for j := 0; j < k; j++ {
		coef[j] = beta.AtVec(j)
		se[j] = math.Sqrt(sigma2 * inv.At(j, j))
	}

	nf := float64(n)
	llf := -nf/2*math.Log(2*math.Pi) - nf/2*math.Log(ssr/nf) - nf/2
	return &olsFit{
		coef:   coef,
		stdErr: se,
		aic:    -2*llf + 2*float64(k),
	}, nil
}

// MacKinnon (1994) response-surface coefficients for a single series with a constant
var (
	tauMaxC    = 2.74
	tauMinC    = -18.83
	tauStarC   = -1.61
	tauSmallPC = []float64{2.1659, 1.4412, 0.038269}
	tauLargePC = []float64{1.7339, 0.93202, -0.12745, -0.010368}
)

// MacKinnonPValue returns the approximate p-value of an ADF statistic
func MacKinnonPValue(stat float64) float64 {
	if stat > tauMaxC {
		return 1
	}
	if stat < tauMinC {
		return 0
	}
	coef := tauLargePC
	if stat <= tauStarC {
		coef = tauSmallPC
	}
	return distuv.UnitNormal.CDF(polyval(coef, stat))
}

// MacKinnon (2010) finite-sample critical value coefficients, constant only
var critCoefC = map[string][]float64{
	"1%":  {-3.43035, -6.5393, -16.786, -79.433},
	"5%":  {-2.86154, -2.8903, -4.234, -40.040},
	"10%": {-2.56677, -1.5384, -2.809},
}

func criticalValues(nObs int) map[string]float64 {
	out := make(map[string]float64, len(critCoefC))
	inv := 1 / float64(nObs)
	for level, c := range critCoefC {
		out[level] = polyval(c, inv)
	}
	return out
}

// polyval evaluates c[0] + c[1]*x + c[2]*x^2 + ...
func polyval(c []float64, x float64) float64 {
	res := 0.0
	for i := len(c) - 1; i >= 0; i-- {
		res = res*x + c[i]
	}
	return res
}
