package cmd

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/adalundhe/gpr/core/gp"
)

var (
	predictDataPath   string
	predictSpecPath   string
	predictPointsPath string
	predictJSON       bool
)

// PredictRow is one prediction record: mean, variance, and the quantile
// bounds at the model spec's levels (default central 95%).
type PredictRow struct {
	Point     []float64 `json:"point"`
	Mean      float64   `json:"mean"`
	Variance  float64   `json:"variance"`
	Quantiles []float64 `json:"quantiles"`
}

var predictCmd = &cobra.Command{
	Use:   "predict",
	Short: "Fit a GP model and predict at new points",
	RunE: func(cmd *cobra.Command, _ []string) error {
		rows, err := runPredict()
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		if predictJSON {
			enc := json.NewEncoder(out)
			enc.SetIndent("", "  ")
			return enc.Encode(rows)
		}
		for _, r := range rows {
			fmt.Fprintf(out, "%v\tmean=%.6f\tvar=%.6f\tquantiles=%v\n",
				r.Point, r.Mean, r.Variance, r.Quantiles)
		}
		return nil
	},
}

func runPredict() ([]PredictRow, error) {
	spec, err := LoadModelSpec(predictSpecPath)
	if err != nil {
		return nil, err
	}
	x, y, err := LoadTrainingCSV(predictDataPath)
	if err != nil {
		return nil, err
	}
	points, err := LoadPointsCSV(predictPointsPath)
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

	mean, variance, err := model.Predict(points, false)
	if err != nil {
		return nil, err
	}
	quantiles, err := model.PredictQuantiles(points, spec.Quantiles)
	if err != nil {
		return nil, err
	}

	n, d := points.Dims()
	rows := make([]PredictRow, n)
	for i := 0; i < n; i++ {
		point := make([]float64, d)
		for j := 0; j < d; j++ {
			point[j] = points.At(i, j)
		}
		qs := make([]float64, len(quantiles))
		for qi, q := range quantiles {
			qs[qi] = q.At(i, 0)
		}
		rows[i] = PredictRow{
			Point:     point,
			Mean:      mean.At(i, 0),
			Variance:  variance.At(i, 0),
			Quantiles: qs,
		}
	}
	return rows, nil
}

func init() {
	predictCmd.Flags().StringVar(&predictDataPath, "data", "", "training CSV: input columns, target last (required)")
	predictCmd.Flags().StringVar(&predictSpecPath, "spec", "", "YAML model spec (required)")
	predictCmd.Flags().StringVar(&predictPointsPath, "points", "", "CSV of prediction inputs (required)")
	predictCmd.Flags().BoolVar(&predictJSON, "json", false, "emit predictions as JSON")
	_ = predictCmd.MarkFlagRequired("data")
	_ = predictCmd.MarkFlagRequired("spec")
	_ = predictCmd.MarkFlagRequired("points")
	rootCmd.AddCommand(predictCmd)
}
