package main

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/Chative-core-poc-v1/dialogue/internal/agent/graph/nodes"
	"github.com/Chative-core-poc-v1/dialogue/internal/agent/model"
)

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Talk to the agent on stdin",
	Long:  `Runs an interactive session. Type /exit to ask the agent to evaluate its exit conditions, /quit to leave.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		verbose, _ := cmd.Flags().GetBool("verbose")
		a, err := loadApp(!verbose)
		if err != nil {
			return err
		}
		defer a.Close()

		runner, err := a.runner(cmd.Context())
		if err != nil {
			return err
		}

		sessionID, _ := cmd.Flags().GetString("session")
		if sessionID == "" {
			sessionID = uuid.NewString()
		}
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "Session %s\n", sessionID)

		in := bufio.NewScanner(os.Stdin)
		var pending *model.Interrupt
		for {
			prompt := "> "
			if pending != nil && pending.Node != nodes.NodeWaitUserInput {
				prompt = pending.Prompt + " "
			}
			fmt.Fprint(out, prompt)
			if !in.Scan() {
				return in.Err()
			}
			line := strings.TrimSpace(in.Text())

			var res *model.TurnResult
			switch {
			case line == "/quit":
				return nil
			case line == "/exit":
				res, err = runner.EvaluateExit(cmd.Context(), sessionID, "")
			case pending != nil && pending.Node != nodes.NodeWaitUserInput:
				res, err = runner.Resume(cmd.Context(), sessionID, line)
			case line == "":
				continue
			default:
				res, err = runner.Send(cmd.Context(), sessionID, line)
			}
			if err != nil {
				fmt.Fprintf(out, "Error: %v\n", err)
				continue
			}

			printReplies(out, res)
			if res.Ended {
				fmt.Fprintln(out, "Conversation ended.")
				return nil
			}
			pending = res.Interrupt
		}
	},
}

func printReplies(w io.Writer, res *model.TurnResult) {
	for _, r := range res.Replies {
		fmt.Fprintf(w, "Assistant: %s\n", r)
	}
}

func init() {
	chatCmd.Flags().StringP("session", "s", "", "Resume this session id instead of starting a new one")
	chatCmd.Flags().BoolP("verbose", "v", false, "Show debug logs")
}
