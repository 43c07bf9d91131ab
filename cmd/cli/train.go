package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"

	"github.com/spf13/cobra"

	"github.com/YuminosukeSato/emissions/training"
)

func newTrainCommand(a *app) *cobra.Command {
	var (
		seed     int64
		nSamples int
		testSize float64
		model    string
		plot     string
		asJSON   bool
	)

	cmd := &cobra.Command{
		Use:   "train",
		Short: "Generate synthetic data, fit the model and save the artifact",
		Example: `  emissions train
  emissions train --seed 7 --n-samples 5000 --model out/model.json --plot out/fit.png`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := training.Config{
				Seed:         a.cfg.Training.Seed,
				NSamples:     a.cfg.Training.NSamples,
				TestSize:     a.cfg.Training.TestSize,
				ArtifactPath: a.cfg.Model.Path,
				PlotPath:     a.cfg.Training.PlotPath,
			}
			flags := cmd.Flags()
			if flags.Changed("seed") {
				cfg.Seed = seed
			}
			if flags.Changed("n-samples") {
				cfg.NSamples = nSamples
			}
			if flags.Changed("test-size") {
				cfg.TestSize = testSize
			}
			if flags.Changed("model") {
				cfg.ArtifactPath = model
			}
			if flags.Changed("plot") {
				cfg.PlotPath = plot
			}

			report, err := training.Run(cmd.Context(), cfg, a.logger)
			if err != nil {
				return err
			}

			if asJSON {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(report)
			}
			printReport(cmd.OutOrStdout(), report)
			return nil
		},
	}

	cmd.Flags().Int64Var(&seed, "seed", 42, "Random seed for data generation and splitting")
	cmd.Flags().IntVar(&nSamples, "n-samples", 1000, "Number of synthetic samples")
	cmd.Flags().Float64Var(&testSize, "test-size", 0.2, "Fraction of samples held out for evaluation")
	cmd.Flags().StringVar(&model, "model", "model/model.json", "Artifact output path")
	cmd.Flags().StringVar(&plot, "plot", "", "Write a predicted vs actual scatter plot (png, svg or pdf)")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the training report as JSON")
	return cmd
}

func printReport(w io.Writer, r *training.Report) {
	fmt.Fprintf(w, "Model saved to %s (artifact %s)\n", r.ArtifactPath, r.ArtifactID)
	fmt.Fprintf(w, "Samples: %d train / %d test (seed %d)\n", r.TrainSamples, r.TestSamples, r.Seed)
	fmt.Fprintf(w, "Test MSE: %.4f  RMSE: %.4f  MAE: %.4f  R2: %.4f\n",
		r.Evaluation.MSE, r.Evaluation.RMSE, r.Evaluation.MAE, r.Evaluation.R2)
	fmt.Fprintf(w, "Intercept: %.6f\n", r.Intercept)

	names := make([]string, 0, len(r.Coefficients))
	for name := range r.Coefficients {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		fmt.Fprintf(w, "  %-28s %12.6f\n", name, r.Coefficients[name])
	}
	if r.PlotPath != "" {
		fmt.Fprintf(w, "Plot written to %s\n", r.PlotPath)
	}
}
