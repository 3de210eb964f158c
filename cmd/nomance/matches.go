package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/google/uuid"
	"github.com/nomance-app/nomance/internal/domain"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
)

var likeCmd = &cobra.Command{
	Use:   "like <user-id>",
	Short: "Express interest in another user",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		target, err := uuid.Parse(args[0])
		if err != nil {
			return errors.Wrap(err, "invalid user ID")
		}
		m, err := current.api.Like(cmd.Context(), target)
		if err != nil {
			return err
		}
		if m.Accepted() {
			fmt.Fprintf(current.out, "It's a match! Start chatting with: nomance chat %s\n", m.ID)
			return nil
		}
		fmt.Fprintln(current.out, "Liked. You'll match once they like you back.")
		return nil
	},
}

var matchesCmd = &cobra.Command{
	Use:   "matches",
	Short: "List your matches",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		user, err := current.api.CurrentUser(cmd.Context())
		if err != nil {
			return err
		}
		self := domain.ResolveIdentity(user).UserID

		matches, err := current.api.ListMatches(cmd.Context())
		if err != nil {
			return err
		}
		if len(matches) == 0 {
			fmt.Fprintln(current.out, "No matches yet")
			return nil
		}

		w := tabwriter.NewWriter(current.out, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "MATCH\tWITH\tSTATUS")
		for _, m := range matches {
			peer := m.OtherProfile(self)
			fmt.Fprintf(w, "%s\t%s (@%s)\t%s\n", m.ID, peer.DisplayName, peer.Username, m.Status)
		}
		return w.Flush()
	},
}
