package notify

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/firewatch-dev/firewatch/internal/camera"
	"github.com/firewatch-dev/firewatch/internal/conf"
	"github.com/firewatch-dev/firewatch/internal/notifier"
	"github.com/firewatch-dev/firewatch/internal/phone"
)

// Command returns a cobra command that sends one message through a notifier.
func Command(settings *conf.Settings) *cobra.Command {
	var (
		to          string
		message     string
		provider    string
		cameraID    string
		probability float64
		welcome     bool
	)

	cmd := &cobra.Command{
		Use:   "notify",
		Short: "Send a test message",
		Long: `Send one message through the configured notifier.

Examples:
  # Free text through the default provider
  firewatch notify --to "+14155551234" --message "test from firewatch"

  # Templated fire alert through the email relay
  firewatch notify --to "4155551234;carrier=att" --provider email --camera Axis-AlabamaHills1 --probability 0.83

  # Welcome message
  firewatch notify --to "+14155551234" --camera Axis-BaldMtn --welcome`,
		RunE: func(cmd *cobra.Command, args []string) error {
			set, err := notifier.NewSet(&settings.Notifier, nil, nil)
			if err != nil {
				return err
			}
			n := set.Default
			if provider != "" {
				if n = set.ByName(provider); n == nil {
					return fmt.Errorf("unknown provider: %s", provider)
				}
			}

			body := message
			if cameraID != "" {
				cameras, err := camera.Load(settings.Cameras.Catalog)
				if err != nil {
					return err
				}
				name := cameras.DisplayName(cameraID)
				switch {
				case welcome:
					body = notifier.Welcome(name)
				case message == "":
					body = notifier.ProbabilityAlert(name, probability)
				}
			}
			if body == "" {
				return fmt.Errorf("either --message or --camera is required")
			}

			receipt, err := n.Send(cmd.Context(), to, body)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Sent via %s to %s: %s (%s)\n", receipt.Provider, phone.Mask(receipt.Destination), receipt.MessageID, receipt.Status)
			return nil
		},
	}

	cmd.Flags().StringVar(&to, "to", "", "Destination phone number; append ;carrier=<name> for the email relay")
	cmd.Flags().StringVarP(&message, "message", "m", "", "Message text")
	cmd.Flags().StringVarP(&provider, "provider", "p", "", "Provider: twilio, email or log (default notifier.provider)")
	cmd.Flags().StringVar(&cameraID, "camera", "", "Camera id for a templated message")
	cmd.Flags().Float64Var(&probability, "probability", 0, "Fire probability for the alert template, a score in (0, 1] or a percentage")
	cmd.Flags().BoolVar(&welcome, "welcome", false, "Send the welcome template instead of an alert")
	_ = cmd.MarkFlagRequired("to")

	return cmd
}
