package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/YuminosukeSato/emissions/dataset"
	"github.com/YuminosukeSato/emissions/inference"
	"github.com/YuminosukeSato/emissions/pkg/log"
)

func newPredictCommand(a *app) *cobra.Command {
	var (
		row   dataset.Features
		model string
	)

	cmd := &cobra.Command{
		Use:     "predict",
		Short:   "Predict emissions for one vehicle using a saved model",
		Example: `  emissions predict --fuel-consumption 10 --vehicle-type car --distance 100 --engine-size 2000 --country-factor 2.5`,
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			path := a.cfg.Model.Path
			if cmd.Flags().Changed("model") {
				path = model
			}

			predictor, err := inference.Open(path)
			if err != nil {
				return err
			}
			emissions, err := predictor.PredictRow(row)
			if err != nil {
				return err
			}

			a.logger.Debug("Prediction",
				log.OperationKey, log.OperationPredict,
				log.ArtifactIDKey, predictor.Model().ArtifactID,
			)
			fmt.Fprintf(cmd.OutOrStdout(), "%g\n", emissions)
			return nil
		},
	}

	flags := cmd.Flags()
	flags.Float64Var(&row.FuelConsumption, "fuel-consumption", 0, "Fuel consumption in L/100km")
	flags.StringVar(&row.VehicleType, "vehicle-type", "", "Vehicle type: car, truck or bus")
	flags.Float64Var(&row.Distance, "distance", 0, "Distance in km")
	flags.Float64Var(&row.EngineSize, "engine-size", 0, "Engine size in cc")
	flags.Float64Var(&row.CountryFactor, "country-factor", 0, "Country emission factor")
	flags.StringVar(&model, "model", "model/model.json", "Artifact path")

	for _, name := range []string{"fuel-consumption", "vehicle-type", "distance", "engine-size", "country-factor"} {
		_ = cmd.MarkFlagRequired(name)
	}
	return cmd
}
