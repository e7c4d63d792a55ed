package scan

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/firewatch-dev/firewatch/internal/alert"
	"github.com/firewatch-dev/firewatch/internal/app"
	"github.com/firewatch-dev/firewatch/internal/buildinfo"
	"github.com/firewatch-dev/firewatch/internal/conf"
)

// Command returns the scan command, which runs one alert scan and prints the
// report.
func Command(settings *conf.Settings, info *buildinfo.Context) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "scan",
		Short: "Run one alert scan",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := app.New(settings, info)
			if err != nil {
				return err
			}
			defer a.Close()

			ctx := cmd.Context()
			if settings.Alert.Timeout > 0 {
				var cancel context.CancelFunc
				ctx, cancel = context.WithTimeout(ctx, settings.Alert.Timeout)
				defer cancel()
			}
			report, err := a.Scanner.Scan(ctx)
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

	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the report as JSON")
	return cmd
}

func printReport(out io.Writer, r *alert.Report) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "SUBSCRIPTION\tCAMERA\tPHONE\tOUTCOME\tSCORE\tDETAIL")
	for _, res := range r.Results {
		detail := res.MessageID
		if res.Error != "" {
			detail = res.Error
		}
		score := "-"
		if res.FireScore > 0 {
			score = fmt.Sprintf("%.2f", res.FireScore)
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n", res.SubscriptionID, res.CameraID, res.Phone, res.Outcome, score, detail)
	}
	_ = w.Flush()

	fmt.Fprintf(out, "\n%d subscriptions, %d triggered, %d sent, %d suppressed, %d failed in %s\n",
		r.Subscriptions, r.Triggered, r.Sent, r.Suppressed, r.Failed,
		r.FinishedAt.Sub(r.StartedAt).Round(time.Millisecond))
}
