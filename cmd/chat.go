package cmd

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/tanpawarit/outfitters-agent/agent/agents/orchestrator"
)

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Start an interactive chat session",
	Long: `Opens a terminal conversation with the agent. Type exit, quit or bye
to leave.`,
	RunE: runChat,
}

func init() {
	rootCmd.AddCommand(chatCmd)
}

type turnRunner interface {
	HandleMessage(ctx context.Context, sessionID, text string) (orchestrator.TurnResult, error)
}

func runChat(cmd *cobra.Command, _ []string) error {
	ctx, cancel := setupContext()
	defer cancel()

	cfg, err := loadAppConfig()
	if err != nil {
		return err
	}
	rt, err := newAgentRuntime(ctx, *cfg)
	if err != nil {
		return err
	}
	defer rt.Close(context.Background())

	return chatLoop(ctx, rt.orchestrator, uuid.NewString(), cmd.InOrStdin(), cmd.OutOrStdout())
}

func isExit(line string) bool {
	switch strings.ToLower(strings.TrimSpace(line)) {
	case "exit", "quit", "bye":
		return true
	}
	return false
}

// chatLoop opens with the welcome turn, then relays one line per turn until
// an exit word, EOF or cancellation.
func chatLoop(ctx context.Context, agent turnRunner, sessionID string, in io.Reader, out io.Writer) error {
	res, err := agent.HandleMessage(ctx, sessionID, "")
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "Agent: %s\n\n", res.Reply)

	scanner := bufio.NewScanner(in)
	for {
		fmt.Fprint(out, "You: ")
		if !scanner.Scan() {
			fmt.Fprintln(out)
			return scanner.Err()
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if isExit(line) {
			fmt.Fprintln(out, "Agent: Thanks for chatting with Sierra Outfitters. Happy trails! 🏔️")
			return nil
		}
		if err := ctx.Err(); err != nil {
			return nil
		}

		res, err := agent.HandleMessage(ctx, sessionID, line)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "Agent: %s\n\n", res.Reply)
	}
}
