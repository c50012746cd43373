// Package cmd implements the gpfit command line tool: fitting Gaussian
// process models described by a YAML spec to CSV data, and querying
// predictions and posterior samples from the fitted model. All modeling goes
// through the core/gp surface; no inference logic lives here.
package cmd

import (
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "gpfit",
	Short: "gpfit - Gaussian process regression and classification",
	Long: `gpfit fits Gaussian process models to CSV data using a YAML model
specification, optimizes hyperparameters by maximizing the log marginal
likelihood, and serves predictions, predictive quantiles, and posterior
samples from the fitted model.`,
}

func Execute() error {
	return rootCmd.Execute()
}
