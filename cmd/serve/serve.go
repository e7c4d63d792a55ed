package serve

import (
	"github.com/spf13/cobra"

	"github.com/firewatch-dev/firewatch/internal/app"
	"github.com/firewatch-dev/firewatch/internal/buildinfo"
	"github.com/firewatch-dev/firewatch/internal/conf"
	"github.com/firewatch-dev/firewatch/internal/logger"
)

// Command returns the serve command, which runs the HTTP API and, when
// alert.interval is set, periodic alert scans.
func Command(settings *conf.Settings, info *buildinfo.Context) *cobra.Command {
	var listen, demo string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		Long:  "Serve the function endpoints and REST API until interrupted.",
		RunE: func(cmd *cobra.Command, args []string) error {
			if listen != "" {
				settings.Server.Listen = listen
			}
			if demo != "" {
				settings.Reading.Backend = "memory"
				settings.Reading.DemoData = demo
			}

			a, err := app.New(settings, info)
			if err != nil {
				return err
			}
			defer a.Close()

			srv, err := a.Server()
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			a.Start(ctx)
			logger.Global().Module("main").Info("FireWatch starting",
				logger.String("version", info.GetVersion()),
				logger.String("listen", settings.Server.Listen),
				logger.Int("cameras", a.Cameras.Len()))
			return srv.Run(ctx)
		},
	}

	cmd.Flags().StringVarP(&listen, "listen", "l", "", "Listen address, overrides server.listen")
	cmd.Flags().StringVar(&demo, "demo", "", "Serve readings from a JSON file instead of DynamoDB")
	return cmd
}
