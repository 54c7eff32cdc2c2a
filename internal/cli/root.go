// Package cli implements chatterctl, the command line client for a
// chatterbox server.
package cli

import (
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/newprojectblitz/chat-chrome-chatterbox/pkg/client"
	"github.com/newprojectblitz/chat-chrome-chatterbox/pkg/composer"
	"github.com/newprojectblitz/chat-chrome-chatterbox/pkg/logger"
	"github.com/newprojectblitz/chat-chrome-chatterbox/pkg/models"
)

var (
	version = "dev"
	commit  = "unknown"
)

// options are the persistent flags shared by every command.
type options struct {
	server  string
	live    string
	user    string
	name    string
	font    string
	color   string
	timeout time.Duration
	verbose bool
}

func (o *options) client() *client.Client {
	return client.New(o.server, client.Options{Timeout: o.timeout})
}

func (o *options) identity() models.SenderIdentity {
	name := o.name
	if name == "" {
		name = o.user
	}
	return composer.Stamp(models.SenderIdentity{
		ID:    o.user,
		Name:  name,
		Style: models.Style{Font: o.font, Color: o.color},
	})
}

// requireUser fails commands that act on behalf of a participant.
func (o *options) requireUser() error {
	if o.user == "" {
		return fmt.Errorf("--user is required (or set CHATTERBOX_USER)")
	}
	return nil
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// NewRootCmd builds the command tree. Flag defaults read CHATTERBOX_*
// variables, so load any .env file first.
func NewRootCmd() *cobra.Command {
	o := &options{}
	rootCmd := &cobra.Command{
		Use:   "chatterctl",
		Short: "Command line client for chatterbox",
		Long: `chatterctl talks to a chatterbox server: list rooms, read and post
messages, react, and follow a channel live.`,
		Version:       fmt.Sprintf("%s (commit: %s)", version, commit),
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			if o.verbose {
				logger.Init("debug")
			}
		},
	}
	rootCmd.CompletionOptions.DisableDefaultCmd = true

	pf := rootCmd.PersistentFlags()
	pf.StringVar(&o.server, "server", getEnvOrDefault("CHATTERBOX_SERVER", "http://localhost:8080"), "chatterbox API base URL")
	pf.StringVar(&o.live, "live", getEnvOrDefault("CHATTERBOX_LIVE", "http://localhost:8081"), "chatterbox live feed base URL")
	pf.StringVarP(&o.user, "user", "u", os.Getenv("CHATTERBOX_USER"), "your participant id")
	pf.StringVar(&o.name, "name", os.Getenv("CHATTERBOX_NAME"), "display name (defaults to --user)")
	pf.StringVar(&o.font, "font", getEnvOrDefault("CHATTERBOX_FONT", "system"), "message font")
	pf.StringVar(&o.color, "color", getEnvOrDefault("CHATTERBOX_COLOR", "#000000"), "message color as #RRGGBB")
	pf.DurationVar(&o.timeout, "timeout", 10*time.Second, "per request timeout")
	pf.BoolVarP(&o.verbose, "verbose", "v", false, "enable verbose output")

	rootCmd.AddCommand(
		newChannelsCmd(o),
		newDMCmd(o),
		newTickerCmd(o),
		newHistoryCmd(o),
		newPostCmd(o),
		newReactCmd(o),
		newTopCmd(o),
		newWatchCmd(o),
		newInspectCmd(),
	)
	return rootCmd
}

// Execute runs chatterctl with the process arguments.
func Execute() {
	_ = godotenv.Load(".env")
	if err := NewRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
