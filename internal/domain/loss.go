package domain

import (
	"math"

	"gonum.org/v1/gonum/floats"
)

// LossCurvePoints is the number of samples returned by LossCurve.
const LossCurvePoints = 80

// LossCurve returns the synthetic training-loss sample shown on the chart:
// 0.5·e^(−x) + 0.02·sin(s) for x evenly spaced over [0, 5] and s over [0, 20].
func LossCurve() []float64 {
	x := floats.Span(make([]float64, LossCurvePoints), 0, 5)
	s := floats.Span(make([]float64, LossCurvePoints), 0, 20)

	loss := make([]float64, LossCurvePoints)
	for i := range loss {
		loss[i] = 0.5*math.Exp(-x[i]) + 0.02*math.Sin(s[i])
	}
	return loss
}
