package cli

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/YuminosukeSato/emissions/dataset"
	"github.com/YuminosukeSato/emissions/pkg/errors"
	"github.com/YuminosukeSato/emissions/pkg/log"
)

func newGenerateCommand(a *app) *cobra.Command {
	var (
		seed     int64
		nSamples int
		out      string
	)

	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Write a synthetic emissions dataset as CSV",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			flags := cmd.Flags()
			if !flags.Changed("seed") {
				seed = a.cfg.Training.Seed
			}
			if !flags.Changed("n-samples") {
				nSamples = a.cfg.Training.NSamples
			}

			ds, err := dataset.Generate(seed, nSamples)
			if err != nil {
				return err
			}

			if out == "" || out == "-" {
				return ds.WriteCSV(cmd.OutOrStdout())
			}

			file, err := os.Create(out)
			if err != nil {
				return errors.Wrapf(err, "failed to create %s", out)
			}
			if err := ds.WriteCSV(file); err != nil {
				_ = file.Close()
				return err
			}
			if err := file.Close(); err != nil {
				return errors.Wrapf(err, "failed to close %s", out)
			}

			a.logger.Info("Dataset written",
				log.OperationKey, log.OperationGenerate,
				log.SamplesKey, len(ds.Samples),
				log.RandomSeedKey, seed,
				log.ArtifactPathKey, out,
			)
			return nil
		},
	}

	cmd.Flags().Int64Var(&seed, "seed", 42, "Random seed")
	cmd.Flags().IntVar(&nSamples, "n-samples", 1000, "Number of samples")
	cmd.Flags().StringVarP(&out, "out", "o", "", "Output file (stdout when empty or -)")
	return cmd
}
