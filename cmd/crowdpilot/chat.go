package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"crowdpilot/internal/agent"
)

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Interactive targeting session in the terminal",
	RunE: func(cmd *cobra.Command, args []string) error {
		engine, err := buildEngine()
		if err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		fmt.Println("crowdpilot - describe the audience you want to reach.")
		fmt.Println("Commands: /reset starts over, /quit exits.")

		sess, _ := engine.Sessions().GetOrCreate("")
		sessionID := sess.ID()

		scanner := bufio.NewScanner(os.Stdin)
		for {
			fmt.Print("\n> ")
			if !scanner.Scan() {
				return scanner.Err()
			}
			input := strings.TrimSpace(scanner.Text())
			switch {
			case input == "":
				continue
			case input == "/quit", input == "/exit":
				return nil
			case input == "/reset":
				fresh := engine.Sessions().Reset(sessionID)
				sessionID = fresh.ID()
				fmt.Println("Session reset.")
				continue
			}

			if err := runChatTurn(ctx, engine, sessionID, input); err != nil {
				if ctx.Err() != nil {
					return nil
				}
				fmt.Printf("error: %v\n", err)
			}
		}
	},
}

// runChatTurn streams one turn to the terminal: stage progress lines,
// then the report as it is generated.
func runChatTurn(ctx context.Context, engine *agent.Engine, sessionID, input string) error {
	sawDelta := false
	for ev := range engine.RunTurnStream(ctx, sessionID, input) {
		switch ev.Type {
		case agent.EventStageStart:
			fmt.Printf("... %s\n", strings.ReplaceAll(ev.Stage, "_", " "))
		case agent.EventDelta:
			sawDelta = true
			fmt.Print(ev.Message)
		case agent.EventTurnComplete:
			if ev.Result == nil {
				continue
			}
			// Deltas already printed the success report.
			if !sawDelta {
				fmt.Println()
				fmt.Println(ev.Result.Response)
			} else {
				fmt.Println()
			}
			if p := ev.Result.Prediction; p != nil {
				fmt.Printf("\n[audience %d | conversion %.1f%% | revenue ¥%.0f | ROI %.0f%%]\n",
					p.AudienceSize, p.ConversionRate*100, p.EstimatedRevenue, p.ROI)
			}
		case agent.EventTurnError:
			return fmt.Errorf("%s", ev.Message)
		}
	}
	return nil
}
