package cmd

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
	"gonum.org/v1/gonum/mat"

	"github.com/adalundhe/gpr/core/gp"
)

var (
	sampleDataPath   string
	sampleSpecPath   string
	samplePointsPath string
	sampleCount      int
	sampleFullCov    bool
	sampleLatent     bool
	sampleJSON       bool
)

// SampleOutput carries the drawn samples: Draws[s][i] is draw s at point i.
type SampleOutput struct {
	Points [][]float64 `json:"points"`
	Draws  [][]float64 `json:"draws"`
}

var sampleCmd = &cobra.Command{
	Use:   "sample",
	Short: "Fit a GP model and draw posterior samples at new points",
	RunE: func(cmd *cobra.Command, _ []string) error {
		out, err := runSample()
		if err != nil {
			return err
		}
		w := cmd.OutOrStdout()
		if sampleJSON {
			enc := json.NewEncoder(w)
			enc.SetIndent("", "  ")
			return enc.Encode(out)
		}
		for s, draw := range out.Draws {
			fmt.Fprintf(w, "draw %d:", s)
			for _, v := range draw {
				fmt.Fprintf(w, " %.6f", v)
			}
			fmt.Fprintln(w)
		}
		return nil
	},
}

func runSample() (*SampleOutput, error) {
	spec, err := LoadModelSpec(sampleSpecPath)
	if err != nil {
		return nil, err
	}
	x, y, err := LoadTrainingCSV(sampleDataPath)
	if err != nil {
		return nil, err
	}
	points, err := LoadPointsCSV(samplePointsPath)
	if err != nil {
		return nil, err
	}
	model, err := buildModel(spec, x, y)
	if err != nil {
		return nil, err
	}
	if spec.Optimize.Enabled {
		cfg := gp.DefaultOptimizeConfig()
		cfg.MaxIterations = spec.Optimize.MaxIterations
		if _, err := model.Optimize(cfg); err != nil {
			return nil, err
		}
	}

	var draws *mat.Dense
	if sampleLatent {
		draws, err = model.SampleLatent(points, sampleCount, sampleFullCov)
	} else {
		draws, err = model.SampleObservations(points, sampleCount, sampleFullCov)
	}
	if err != nil {
		return nil, err
	}

	n, d := points.Dims()
	out := &SampleOutput{
		Points: make([][]float64, n),
		Draws:  make([][]float64, sampleCount),
	}
	for i := 0; i < n; i++ {
		point := make([]float64, d)
		for j := 0; j < d; j++ {
			point[j] = points.At(i, j)
		}
		out.Points[i] = point
	}
	for s := 0; s < sampleCount; s++ {
		draw := make([]float64, n)
		for i := 0; i < n; i++ {
			draw[i] = draws.At(i, s)
		}
		out.Draws[s] = draw
	}
	return out, nil
}

func init() {
	sampleCmd.Flags().StringVar(&sampleDataPath, "data", "", "training CSV: input columns, target last (required)")
	sampleCmd.Flags().StringVar(&sampleSpecPath, "spec", "", "YAML model spec (required)")
	sampleCmd.Flags().StringVar(&samplePointsPath, "points", "", "CSV of sampling inputs (required)")
	sampleCmd.Flags().IntVar(&sampleCount, "samples", 1, "number of posterior draws")
	sampleCmd.Flags().BoolVar(&sampleFullCov, "full-cov", false, "draw jointly from the full predictive covariance")
	sampleCmd.Flags().BoolVar(&sampleLatent, "latent", false, "sample the latent function instead of observations")
	sampleCmd.Flags().BoolVar(&sampleJSON, "json", false, "emit samples as JSON")
	_ = sampleCmd.MarkFlagRequired("data")
	_ = sampleCmd.MarkFlagRequired("spec")
	_ = sampleCmd.MarkFlagRequired("points")
	rootCmd.AddCommand(sampleCmd)
}
