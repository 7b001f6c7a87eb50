package cmd

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	v1 "github.com/testbench/inspection-agent/api/v1"
)

// NewStatusCommand builds the `status` subcommand: a one-shot, colored
// summary of a running agent, for operators on the bench console.
func NewStatusCommand() *cobra.Command {
	var agentURL string

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show the state of a running agent",
		RunE: func(cmd *cobra.Command, _ []string) error {
			client := &http.Client{Timeout: 5 * time.Second}

			resp, err := client.Get(agentURL + "/api/v1/status")
			if err != nil {
				return fmt.Errorf("agent unreachable at %s: %w", agentURL, err)
			}
			defer resp.Body.Close()
			if resp.StatusCode != http.StatusOK {
				return fmt.Errorf("agent returned %s", resp.Status)
			}

			var status v1.AgentStatus
			if err := json.NewDecoder(resp.Body).Decode(&status); err != nil {
				return fmt.Errorf("decoding agent status: %w", err)
			}

			printStatus(cmd, status)
			return nil
		},
	}

	cmd.Flags().StringVar(&agentURL, "agent-url", "http://localhost:8000", "base URL of the running agent")

	return cmd
}

func printStatus(cmd *cobra.Command, status v1.AgentStatus) {
	out := cmd.OutOrStdout()

	fmt.Fprintf(out, "Stream:  %s\n", colorizeState(status.Stream.State))
	if status.Stream.Error != nil {
		fmt.Fprintf(out, "         %s\n", color.RedString(*status.Stream.Error))
	}

	fmt.Fprintf(out, "Session: %s\n", colorizeState(status.Session.Status))
	if status.Session.Barcode != "" {
		fmt.Fprintf(out, "         barcode=%s model=%s phase=%s\n",
			status.Session.Barcode, status.Session.ModelId, status.Session.CurrentPhase)
	}
	for _, phase := range status.Session.Phases {
		fmt.Fprintf(out, "         %-20s %s\n", phase.Name, colorizeVerdict(phase.Verdict))
	}
	if status.Session.OverallVerdict != "" {
		fmt.Fprintf(out, "Overall: %s\n", colorizeVerdict(status.Session.OverallVerdict))
	}

	fmt.Fprintln(out, "Devices:")
	if len(status.Devices) == 0 {
		fmt.Fprintln(out, "         none")
	}
	for _, device := range status.Devices {
		fmt.Fprintf(out, "         %-15s %s\n", device.Type, colorizeState(device.ConnectionStatus))
	}
}

func colorizeState(state string) string {
	switch state {
	case "connected", "running":
		return color.GreenString(state)
	case "connecting":
		return color.YellowString(state)
	case "error", "disconnected":
		return color.RedString(state)
	default:
		return state
	}
}

func colorizeVerdict(verdict string) string {
	switch verdict {
	case "PASS":
		return color.GreenString(verdict)
	case "FAIL":
		return color.RedString(verdict)
	default:
		return color.YellowString(verdict)
	}
}
