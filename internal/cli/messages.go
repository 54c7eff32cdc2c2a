package cli

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/newprojectblitz/chat-chrome-chatterbox/pkg/channel"
	"github.com/newprojectblitz/chat-chrome-chatterbox/pkg/chaterr"
	"github.com/newprojectblitz/chat-chrome-chatterbox/pkg/client"
	"github.com/newprojectblitz/chat-chrome-chatterbox/pkg/composer"
	"github.com/newprojectblitz/chat-chrome-chatterbox/pkg/models"
)

// resolveChannel maps "@peer" to the direct channel shared with peer.
func (o *options) resolveChannel(arg string) (string, error) {
	if !strings.HasPrefix(arg, "@") {
		return arg, nil
	}
	if err := o.requireUser(); err != nil {
		return "", err
	}
	peer := strings.TrimPrefix(arg, "@")
	if peer == "" || peer == o.user {
		return "", chaterr.ErrInvalidChannel
	}
	return channel.Resolve(o.user, peer), nil
}

func formatMessage(m models.Message, t models.ReactionTally) string {
	line := fmt.Sprintf("[%s] %s: %s", time.Unix(0, m.TS).Format("15:04:05"), m.Sender.Name, m.Body)
	if t.Likes > 0 || t.Dislikes > 0 {
		line += fmt.Sprintf("  (+%d -%d)", t.Likes, t.Dislikes)
	}
	return line
}

func formatHighlight(h models.Highlight) string {
	return fmt.Sprintf("%s  <%s>", formatMessage(h.Message, h.Tally), h.Message.ID)
}

func newHistoryCmd(o *options) *cobra.Command {
	var limit int
	var showIDs bool
	cmd := &cobra.Command{
		Use:   "history <channel|@peer>",
		Short: "Print a channel's recent messages with their tallies",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ch, err := o.resolveChannel(args[0])
			if err != nil {
				return err
			}
			c := client.New(o.server, client.Options{Timeout: o.timeout, HistoryLimit: limit})
			msgs, err := c.FetchHistory(cmd.Context(), ch)
			if err != nil {
				return err
			}
			ids := make([]string, 0, len(msgs))
			for _, m := range msgs {
				ids = append(ids, m.ID)
			}
			tallies, err := c.FetchReactions(cmd.Context(), ids)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			for _, m := range msgs {
				line := formatMessage(m, tallies[m.ID])
				if showIDs {
					line += "  <" + m.ID + ">"
				}
				fmt.Fprintln(out, line)
			}
			return nil
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 50, "number of messages to show")
	cmd.Flags().BoolVar(&showIDs, "ids", false, "print message ids")
	return cmd
}

func newPostCmd(o *options) *cobra.Command {
	return &cobra.Command{
		Use:   "post <channel|@peer> <message...>",
		Short: "Send a message",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := o.requireUser(); err != nil {
				return err
			}
			ch, err := o.resolveChannel(args[0])
			if err != nil {
				return err
			}
			comp := composer.New(o.client(), composer.Options{DispatchTimeout: o.timeout})
			m, err := comp.Submit(cmd.Context(), ch, o.identity(), strings.Join(args[1:], " "))
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), m.ID)
			return nil
		},
	}
}

func newReactCmd(o *options) *cobra.Command {
	return &cobra.Command{
		Use:   "react <message-id> <like|dislike>",
		Short: "Like or dislike a message",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			kind, ok := models.ParseReaction(args[1])
			if !ok {
				return chaterr.ErrUnknownReaction
			}
			return o.client().ReactAs(cmd.Context(), args[0], kind, o.user)
		},
	}
}

func newTopCmd(o *options) *cobra.Command {
	var n int
	cmd := &cobra.Command{
		Use:   "top <channel|@peer>",
		Short: "Show a channel's most liked messages",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ch, err := o.resolveChannel(args[0])
			if err != nil {
				return err
			}
			hs, err := o.client().Top(cmd.Context(), ch, n)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if len(hs) == 0 {
				fmt.Fprintln(out, "no liked messages yet")
				return nil
			}
			for i, h := range hs {
				fmt.Fprintf(out, "%d. %s\n", i+1, formatHighlight(h))
			}
			return nil
		},
	}
	cmd.Flags().IntVarP(&n, "count", "n", 3, "number of highlights")
	return cmd
}
