// Command train fits the Celsius to Fahrenheit regression and writes the
// dense-v1 artifact the server loads on first use.
//
// Usage:
//
//	go run ./cmd/train -out predictor/model/model.json
package main

import (
	"flag"
	"fmt"
	"io"
	"math"
	"os"

	"github.com/couchcryptid/temperature-predictor/internal/domain"
	"github.com/couchcryptid/temperature-predictor/internal/predictor"
	"github.com/fatih/color"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// sample is the training grid: Celsius readings with their exact Fahrenheit labels.
var sample = []float64{-40, -10, 0, 8, 15, 22, 38}

// report holds the fit and its quality checks.
type report struct {
	slope     float64
	intercept float64
	r2        float64
	rmse      float64
}

func (r report) passed(maxRMSE float64) bool {
	return r.r2 > 0.999 && r.rmse <= maxRMSE
}

func main() {
	out := flag.String("out", predictor.DefaultArtifactPath, "path of the model artifact to write")
	maxRMSE := flag.Float64("max-rmse", 0.01, "largest acceptable training RMSE in degrees Fahrenheit")
	flag.Parse()

	os.Exit(run(os.Stdout, *out, *maxRMSE))
}

func run(w io.Writer, out string, maxRMSE float64) int {
	cyan := color.New(color.FgCyan)
	green := color.New(color.FgGreen, color.Bold)
	red := color.New(color.FgRed, color.Bold)

	celsius := append([]float64(nil), sample...)
	fahrenheit := make([]float64, len(celsius))
	for i, c := range celsius {
		fahrenheit[i] = domain.Fallback(c)
	}

	rep := fit(celsius, fahrenheit)
	_, _ = cyan.Fprintf(w, "=== Training on %d samples ===\n", len(celsius))
	fmt.Fprintf(w, "  slope      %.6f\n", rep.slope)
	fmt.Fprintf(w, "  intercept  %.6f\n", rep.intercept)
	fmt.Fprintf(w, "  R²         %.6f\n", rep.r2)
	fmt.Fprintf(w, "  RMSE       %.6f\n", rep.rmse)

	if !rep.passed(maxRMSE) {
		_, _ = red.Fprintln(w, "FAIL: fit does not meet quality thresholds, artifact not written")
		return 1
	}

	if err := predictor.WriteArtifact(out, artifactFor(rep)); err != nil {
		_, _ = red.Fprintf(w, "FAIL: %v\n", err)
		return 1
	}
	_, _ = green.Fprintf(w, "PASS: wrote %s\n", out)
	return 0
}

func fit(x, y []float64) report {
	intercept, slope := stat.LinearRegression(x, y, nil, false)

	predicted := make([]float64, len(x))
	for i, v := range x {
		predicted[i] = intercept + slope*v
	}
	rmse := floats.Distance(predicted, y, 2) / math.Sqrt(float64(len(y)))

	return report{
		slope:     slope,
		intercept: intercept,
		r2:        stat.RSquared(x, y, nil, intercept, slope),
		rmse:      rmse,
	}
}

func artifactFor(r report) predictor.Artifact {
	return predictor.Artifact{
		Format:   predictor.FormatDenseV1,
		InputDim: 1,
		Layers: []predictor.Layer{{
			Activation: "linear",
			Weights:    [][]float64{{r.slope}},
			Bias:       []float64{r.intercept},
		}},
	}
}
