package cli

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/spf13/cobra"

	"github.com/newprojectblitz/chat-chrome-chatterbox/pkg/composer"
	"github.com/newprojectblitz/chat-chrome-chatterbox/pkg/live"
	"github.com/newprojectblitz/chat-chrome-chatterbox/pkg/logger"
	"github.com/newprojectblitz/chat-chrome-chatterbox/pkg/models"
	"github.com/newprojectblitz/chat-chrome-chatterbox/pkg/session"
	"github.com/newprojectblitz/chat-chrome-chatterbox/pkg/shutdown"
	"github.com/newprojectblitz/chat-chrome-chatterbox/pkg/subscription"
)

const watchHelp = `commands:
  /switch <channel>   join another room
  /dm <peer>          open the direct channel with peer
  /like <id>          like a message
  /dislike <id>       dislike a message
  /top                show the current top message
  /quit               leave
anything else is sent to the current channel`

// printer renders each new message once and announces top changes.
type printer struct {
	mu      sync.Mutex
	out     io.Writer
	channel string
	seen    map[string]bool
	top     string
}

func newPrinter(out io.Writer) *printer {
	return &printer{out: out, seen: make(map[string]bool)}
}

func (p *printer) printf(format string, args ...interface{}) {
	p.mu.Lock()
	defer p.mu.Unlock()
	fmt.Fprintf(p.out, format, args...)
}

func (p *printer) Render(v models.ChannelView) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if v.Channel != p.channel {
		p.channel = v.Channel
		p.seen = make(map[string]bool)
		p.top = ""
		fmt.Fprintf(p.out, "-- %s --\n", v.Channel)
	}
	for _, m := range v.Messages {
		if p.seen[m.ID] {
			continue
		}
		p.seen[m.ID] = true
		fmt.Fprintf(p.out, "%s  <%s>\n", formatMessage(m, v.Tallies[m.ID]), m.ID)
	}
	if v.Top != nil && v.Top.ID != p.top {
		p.top = v.Top.ID
		fmt.Fprintf(p.out, "** top: %s\n", formatMessage(*v.Top, v.Tallies[v.Top.ID]))
	}
}

func newWatchCmd(o *options) *cobra.Command {
	return &cobra.Command{
		Use:   "watch <channel|@peer>",
		Short: "Follow a channel live and chat from stdin",
		Long:  "Follow a channel live and chat from stdin.\n\n" + watchHelp,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := o.requireUser(); err != nil {
				return err
			}
			ch, err := o.resolveChannel(args[0])
			if err != nil {
				return err
			}
			ctx, cancel := shutdown.SetupSignalHandler(cmd.Context())
			defer cancel()
			return runWatch(ctx, o, ch, cmd.InOrStdin(), cmd.OutOrStdout())
		},
	}
}

// runWatch drives a session against the remote server until ctx ends or
// input stops.
func runWatch(ctx context.Context, o *options, ch string, in io.Reader, out io.Writer) error {
	var sess atomic.Pointer[session.Session]
	feed, err := live.NewClient(o.live, live.ClientOptions{
		OnReconnect: func(channelID string) {
			s := sess.Load()
			if s == nil {
				return
			}
			if err := s.Resync(ctx); err != nil {
				logger.Warn("watch_resync_failed", "channel", channelID, "error", err)
			}
		},
	})
	if err != nil {
		return err
	}
	defer feed.Close()

	p := newPrinter(out)
	s := session.New(o.identity(), o.client(), feed, p, session.Options{
		Subscription: subscription.Options{FetchTimeout: o.timeout},
		Composer:     composer.Options{DispatchTimeout: o.timeout},
		ReactTimeout: o.timeout,
	})
	defer s.Close()
	sess.Store(s)

	if err := s.Switch(ctx, ch); err != nil {
		return err
	}
	p.Render(s.View())

	lines := make(chan string)
	go func() {
		defer close(lines)
		sc := bufio.NewScanner(in)
		for sc.Scan() {
			select {
			case lines <- sc.Text():
			case <-ctx.Done():
				return
			}
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case line, ok := <-lines:
			if !ok {
				return nil
			}
			quit, err := handleLine(ctx, s, p, line)
			if err != nil {
				p.printf("!! %v\n", err)
			}
			if quit {
				return nil
			}
		}
	}
}

func handleLine(ctx context.Context, s *session.Session, p *printer, line string) (bool, error) {
	line = strings.TrimSpace(line)
	if line == "" {
		return false, nil
	}
	if !strings.HasPrefix(line, "/") {
		_, err := s.Send(ctx, line)
		return false, err
	}

	fields := strings.Fields(line)
	arg := ""
	if len(fields) > 1 {
		arg = fields[1]
	}
	switch fields[0] {
	case "/quit", "/exit":
		return true, nil
	case "/switch":
		return false, s.Switch(ctx, arg)
	case "/dm":
		return false, s.SwitchDirect(ctx, arg)
	case "/like":
		return false, s.React(ctx, arg, models.Like)
	case "/dislike":
		return false, s.React(ctx, arg, models.Dislike)
	case "/top":
		v := s.View()
		if v.Top == nil {
			p.printf("** no liked messages yet\n")
		} else {
			p.printf("** top: %s\n", formatMessage(*v.Top, v.Tallies[v.Top.ID]))
		}
		return false, nil
	case "/help":
		p.printf("%s\n", watchHelp)
		return false, nil
	}
	return false, fmt.Errorf("unknown command %s (try /help)", fields[0])
}
