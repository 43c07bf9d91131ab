package cli

import (
	"github.com/spf13/cobra"

	"github.com/YuminosukeSato/emissions/inference"
	"github.com/YuminosukeSato/emissions/internal/server"
	"github.com/YuminosukeSato/emissions/pkg/log"
)

func newServeCommand(a *app) *cobra.Command {
	var (
		addr  string
		model string
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve predictions over HTTP",
		Long: `Load the model artifact once and serve:
  POST /api/v1/predict  predict emissions for one JSON row
  GET  /api/v1/model    model metadata
  GET  /healthz         liveness
  GET  /metrics         Prometheus metrics`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			opts := server.Options{
				Addr:            a.cfg.Server.Addr,
				ReadTimeout:     a.cfg.Server.ReadTimeout,
				WriteTimeout:    a.cfg.Server.WriteTimeout,
				ShutdownTimeout: a.cfg.Server.ShutdownTimeout,
				MaxBodyBytes:    a.cfg.Server.MaxBodyBytes,
			}
			path := a.cfg.Model.Path
			if cmd.Flags().Changed("addr") {
				opts.Addr = addr
			}
			if cmd.Flags().Changed("model") {
				path = model
			}

			predictor, err := inference.Open(path)
			if err != nil {
				return err
			}
			a.logger.Info("Model loaded",
				log.OperationKey, log.OperationLoad,
				log.ArtifactIDKey, predictor.Model().ArtifactID,
				log.ArtifactPathKey, path,
			)

			return server.New(predictor, opts, a.logger).Run(cmd.Context())
		},
	}

	cmd.Flags().StringVar(&addr, "addr", ":8080", "Listen address")
	cmd.Flags().StringVar(&model, "model", "model/model.json", "Artifact path")
	return cmd
}
