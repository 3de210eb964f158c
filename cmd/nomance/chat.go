package main

import (
	"bufio"
	"context"
	"os"
	"strings"

	"github.com/google/uuid"
	"github.com/nomance-app/nomance/internal/client"
	"github.com/nomance-app/nomance/internal/conversation"
	"github.com/nomance-app/nomance/internal/domain"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	jww "github.com/spf13/jwalterweatherman"
)

var (
	_ conversation.Store    = (*client.Client)(nil)
	_ conversation.Realtime = (*client.Client)(nil)
)

var chatCmd = &cobra.Command{
	Use:   "chat <match-id>",
	Short: "Open a live conversation with a match",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		matchID, err := uuid.Parse(args[0])
		if err != nil {
			return errors.Wrap(err, "invalid match ID")
		}
		ctx := cmd.Context()

		user, err := current.api.CurrentUser(ctx)
		if err != nil {
			return err
		}
		identity := domain.ResolveIdentity(user)
		if identity.IsGuest() {
			jww.INFO.Printf("chat: no session, continuing as guest")
		}

		term := newTerminal(current.out, identity.UserID)
		view := conversation.Open(ctx, conversation.Config{
			MatchID:     matchID,
			Identity:    identity,
			Store:       current.api,
			Realtime:    current.api,
			Navigator:   term,
			Toaster:     term,
			Render:      term.Render,
			QuietPeriod: current.cfg.TypingQuietPeriod,
		})
		defer view.Close()

		lines := make(chan string)
		go func() {
			defer close(lines)
			scanner := bufio.NewScanner(os.Stdin)
			for scanner.Scan() {
				lines <- scanner.Text()
			}
		}()

		return chatLoop(ctx, view, lines)
	},
}

// chatView is the part of a conversation view the line loop drives.
type chatView interface {
	Send(text string)
	Submit()
	Resubscribe()
	Done() <-chan struct{}
}

// chatLoop sends each line as a message. Lines never go through the view's
// input, which keeps the text of a failed send for /retry.
func chatLoop(ctx context.Context, view chatView, lines <-chan string) error {
	for {
		select {
		case <-view.Done():
			return nil
		case <-ctx.Done():
			return nil
		case line, ok := <-lines:
			if !ok {
				return nil
			}
			switch strings.TrimSpace(line) {
			case "/quit":
				return nil
			case "/reconnect":
				view.Resubscribe()
			case "/retry":
				view.Submit()
			default:
				view.Send(line)
			}
		}
	}
}
