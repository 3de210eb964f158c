package main

import (
	"fmt"
	"strings"

	"github.com/nomance-app/nomance/internal/coach"
	"github.com/spf13/cobra"
)

var coachCmd = &cobra.Command{
	Use:   "coach",
	Short: "Ask the AI coach for feedback",
}

var coachBioCmd = &cobra.Command{
	Use:   "bio <text>",
	Short: "Get feedback on a profile bio",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		resp, err := current.coach.AnalyzeBio(cmd.Context(), strings.Join(args, " "))
		if err != nil {
			return err
		}
		printCoach(resp)
		return nil
	},
}

var coachPhotosCmd = &cobra.Command{
	Use:   "photos <url>...",
	Short: "Get feedback on profile photos",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		resp, err := current.coach.AnalyzePhotos(cmd.Context(), args)
		if err != nil {
			return err
		}
		printCoach(resp)
		return nil
	},
}

var coachChatCmd = &cobra.Command{
	Use:   "chat <question>",
	Short: "Ask the coach a dating question",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		resp, err := current.coach.Chat(cmd.Context(), []coach.ChatMessage{
			{Role: "user", Content: strings.Join(args, " ")},
		})
		if err != nil {
			return err
		}
		printCoach(resp)
		return nil
	},
}

func printCoach(resp *coach.Response) {
	if resp.Score != nil {
		fmt.Fprintf(current.out, "Score: %d/10\n", *resp.Score)
	}
	if resp.Reply != "" {
		fmt.Fprintln(current.out, resp.Reply)
	}
	for i, s := range resp.Suggestions {
		fmt.Fprintf(current.out, "%d. %s\n", i+1, s.Title)
		if s.Detail != "" {
			fmt.Fprintf(current.out, "   %s\n", s.Detail)
		}
	}
}

func init() {
	coachCmd.AddCommand(coachBioCmd, coachPhotosCmd, coachChatCmd)
}
