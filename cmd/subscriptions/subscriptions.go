package subscriptions

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/firewatch-dev/firewatch/internal/app"
	"github.com/firewatch-dev/firewatch/internal/buildinfo"
	"github.com/firewatch-dev/firewatch/internal/conf"
	"github.com/firewatch-dev/firewatch/internal/phone"
	"github.com/firewatch-dev/firewatch/internal/subscription"
)

// Command returns the subscriptions command group.
func Command(settings *conf.Settings, info *buildinfo.Context) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "subscriptions",
		Aliases: []string{"subs"},
		Short:   "Manage alert subscriptions",
	}
	cmd.AddCommand(listCommand(settings, info), addCommand(settings, info), removeCommand(settings, info))
	return cmd
}

func listCommand(settings *conf.Settings, info *buildinfo.Context) *cobra.Command {
	var (
		userID string
		full   bool
	)
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List subscriptions",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := app.New(settings, info)
			if err != nil {
				return err
			}
			defer a.Close()

			var subs []subscription.Subscription
			if userID != "" {
				subs, err = a.Subscriptions.ListByUser(cmd.Context(), userID)
			} else {
				subs, err = a.Subscriptions.List(cmd.Context())
			}
			if err != nil {
				return err
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tCAMERA\tPHONE\tUSER\tCREATED")
			for _, s := range subs {
				number := phone.Mask(s.PhoneNumber)
				if full {
					number = s.PhoneNumber
				}
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n", s.ID, s.CameraID, number, s.UserID, s.CreatedAt.Format(time.RFC3339))
			}
			return w.Flush()
		},
	}
	cmd.Flags().StringVar(&userID, "user", "", "Only list subscriptions of this user")
	cmd.Flags().BoolVar(&full, "full", false, "Show full phone numbers")
	return cmd
}

func addCommand(settings *conf.Settings, info *buildinfo.Context) *cobra.Command {
	var userID string
	cmd := &cobra.Command{
		Use:   "add <camera-id> <phone>",
		Short: "Subscribe a phone number to a camera and send the welcome message",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := app.New(settings, info)
			if err != nil {
				return err
			}
			defer a.Close()

			created, err := a.Subscriptions.Subscribe(cmd.Context(), args[0], args[1], userID)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Created subscription %s\n", created.Subscription.ID)
			if created.Warning != "" {
				fmt.Fprintf(cmd.OutOrStdout(), "Warning: %s\n", created.Warning)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&userID, "user", "", "Owning user id")
	return cmd
}

func removeCommand(settings *conf.Settings, info *buildinfo.Context) *cobra.Command {
	return &cobra.Command{
		Use:     "remove <id>",
		Aliases: []string{"rm"},
		Short:   "Delete a subscription",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := app.New(settings, info)
			if err != nil {
				return err
			}
			defer a.Close()

			if err := a.Subscriptions.Unsubscribe(cmd.Context(), args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Deleted subscription %s\n", args[0])
			return nil
		},
	}
}
