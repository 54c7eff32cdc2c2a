package cli

import (
	"fmt"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/newprojectblitz/chat-chrome-chatterbox/pkg/models"
)

func newChannelsCmd(o *options) *cobra.Command {
	return &cobra.Command{
		Use:   "channels",
		Short: "List public rooms and active direct channels",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			chans, err := o.client().Channels(cmd.Context())
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			for _, c := range chans {
				last := "never"
				if c.LastTS > 0 {
					last = humanize.Time(time.Unix(0, c.LastTS))
				}
				name := c.Name
				if c.Kind == models.ChannelDirect {
					name = "(direct)"
				}
				fmt.Fprintf(out, "%-24s %-28s %-12s %8s msgs  %s\n",
					c.ID, name, c.Category, humanize.Comma(c.Messages), last)
			}
			return nil
		},
	}
}

func newDMCmd(o *options) *cobra.Command {
	return &cobra.Command{
		Use:   "dm <peer-id>",
		Short: "Print the direct channel id shared with a peer",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := o.requireUser(); err != nil {
				return err
			}
			ch, err := o.client().Direct(cmd.Context(), o.user, args[0])
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), ch)
			return nil
		},
	}
}

func newTickerCmd(o *options) *cobra.Command {
	return &cobra.Command{
		Use:   "ticker",
		Short: "Show the latest cross-channel highlights",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			snap, err := o.client().Ticker(cmd.Context())
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if snap.GeneratedAt == 0 {
				fmt.Fprintln(out, "no ticker snapshot yet")
				return nil
			}
			fmt.Fprintf(out, "generated %s\n", humanize.Time(time.Unix(0, snap.GeneratedAt)))
			for _, ch := range snap.Channels {
				fmt.Fprintf(out, "\n# %s\n", displayName(ch.Channel, ch.Name))
				for i, h := range ch.Highlights {
					fmt.Fprintf(out, "  %d. %s\n", i+1, formatHighlight(h))
				}
			}
			return nil
		},
	}
}

func displayName(id, name string) string {
	if name == "" || name == id {
		return id
	}
	return fmt.Sprintf("%s (%s)", name, id)
}
