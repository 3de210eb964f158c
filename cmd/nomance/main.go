// Command nomance is a terminal client for Nomance: account management,
// matches, live conversations and the AI coach.
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/nomance-app/nomance/internal/client"
	"github.com/nomance-app/nomance/internal/coach"
	"github.com/nomance-app/nomance/internal/config"
	"github.com/nomance-app/nomance/internal/logging"
	"github.com/spf13/cobra"
	jww "github.com/spf13/jwalterweatherman"
)

// Flag variables.
var (
	apiURL, realtimeURL, coachURL  string
	sessionFile, logFile, logLevel string
)

// app holds what every subcommand needs once flags are parsed.
type app struct {
	cfg    *config.Config
	api    *client.Client
	coach  *coach.Client
	out    io.Writer
	logOut io.Closer
}

var current *app

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:           "nomance",
	Short:         "Terminal client for Nomance",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		cfg := config.Load()
		override(cmd, "api", &cfg.APIURL, apiURL)
		override(cmd, "realtime", &cfg.RealtimeURL, realtimeURL)
		override(cmd, "coach", &cfg.CoachURL, coachURL)
		override(cmd, "session", &cfg.SessionFile, sessionFile)
		override(cmd, "log-level", &cfg.LogLevel, logLevel)

		logging.Init(cfg.LogLevel)
		logOut, err := logging.ToFile(logFile)
		if err != nil {
			return err
		}

		session := client.FileSession{Path: cfg.SessionFile}
		current = &app{
			cfg:    cfg,
			api:    client.New(cfg.APIURL, cfg.RealtimeURL, client.WithSession(session)),
			coach:  coach.New(cfg.CoachURL, session.Load),
			out:    cmd.OutOrStdout(),
			logOut: logOut,
		}
		jww.DEBUG.Printf("nomance: api=%s realtime=%s", cfg.APIURL, cfg.RealtimeURL)
		return nil
	},
	PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
		if current != nil && current.logOut != nil {
			return current.logOut.Close()
		}
		return nil
	},
}

// override applies a flag value only when the flag was set explicitly, so
// the environment keeps priority over flag defaults.
func override(cmd *cobra.Command, flag string, dst *string, value string) {
	if cmd.Flags().Changed(flag) {
		*dst = value
	}
}

// init is the initialization function for Cobra which defines flags.
func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVar(&apiURL, "api", "", "Platform REST URL (default from API_URL)")
	pf.StringVar(&realtimeURL, "realtime", "", "Realtime websocket URL (default from REALTIME_URL)")
	pf.StringVar(&coachURL, "coach", "", "Coach endpoint URL (default from COACH_URL)")
	pf.StringVar(&sessionFile, "session", "", "Session token file (default from SESSION_FILE)")
	pf.StringVarP(&logFile, "log", "l", "nomance.log",
		"Log output path. Use \"-\" for stdout or \"\" to disable logging.")
	pf.StringVarP(&logLevel, "log-level", "v", "", "Log level: trace, debug, info, warn, error")

	rootCmd.AddCommand(signupCmd, loginCmd, logoutCmd, whoamiCmd)
	rootCmd.AddCommand(likeCmd, matchesCmd, chatCmd)
	rootCmd.AddCommand(coachCmd)
}
