package client

import (
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"github.com/spf13/cobra"
)

// NewObligationCommand constructs the `ob` command group and subcommands.
func NewObligationCommand(baseURL BaseURLFunc) *cobra.Command {
	obCmd := &cobra.Command{Use: "ob", Short: "Obligation operations"}
	obCmd.AddCommand(
		newObRegisterCommand(baseURL),
		newObRunCommand(baseURL),
		newObCompactCommand(baseURL),
		newObStatusCommand(baseURL),
		newObGetCommand(baseURL),
		newObHistoryCommand(baseURL),
		newObPauseCommand(baseURL),
		newObResumeCommand(baseURL),
	)
	return obCmd
}

func newObRegisterCommand(baseURL BaseURLFunc) *cobra.Command {
	registerCmd := &cobra.Command{
		Use:   "register",
		Short: "Register an obligation (subject + amount)",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ledger, _ := cmd.Flags().GetString("ledger")
			subject, _ := cmd.Flags().GetString("subject")
			amount, _ := cmd.Flags().GetUint64("amount")
			var out map[string]any
			code, err := postJSON(baseURL(), "/v1/obligations/register", map[string]any{
				"ledger":  ledger,
				"subject": subject,
				"amount":  amount,
			}, &out)
			if err != nil {
				return err
			}
			if code != http.StatusCreated {
				return fmt.Errorf("register: status %d: %v", code, out)
			}
			printJSON(cmd.OutOrStdout(), out)
			return nil
		},
	}
	registerCmd.Flags().StringP("ledger", "l", "default", "Ledger")
	registerCmd.Flags().String("subject", "", "Subject key")
	registerCmd.Flags().Uint64("amount", 0, "Pending amount")
	_ = registerCmd.MarkFlagRequired("subject")
	return registerCmd
}

func newObRunCommand(baseURL BaseURLFunc) *cobra.Command {
	runCmd := &cobra.Command{
		Use:   "run",
		Short: "Run one bounded processing batch",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ledger, _ := cmd.Flags().GetString("ledger")
			limit, _ := cmd.Flags().GetInt("limit")
			webhook, _ := cmd.Flags().GetString("webhook")
			var out map[string]any
			code, err := postJSON(baseURL(), "/v1/obligations/run", map[string]any{
				"ledger":     ledger,
				"limit":      limit,
				"webhookUrl": webhook,
			}, &out)
			if err != nil {
				return err
			}
			// 502 carries the committed partial result alongside the failure.
			if code != http.StatusOK && code != http.StatusBadGateway {
				return fmt.Errorf("run: status %d: %v", code, out)
			}
			printJSON(cmd.OutOrStdout(), out)
			return nil
		},
	}
	runCmd.Flags().StringP("ledger", "l", "default", "Ledger")
	runCmd.Flags().Int("limit", 0, "Fulfillment limit (0 = ledger default)")
	runCmd.Flags().String("webhook", "", "Fulfillment webhook URL for this run")
	return runCmd
}

func newObCompactCommand(baseURL BaseURLFunc) *cobra.Command {
	compactCmd := &cobra.Command{
		Use:   "compact",
		Short: "Compact stale sequence slots",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ledger, _ := cmd.Flags().GetString("ledger")
			maxScan, _ := cmd.Flags().GetInt("max-scan")
			var out map[string]any
			code, err := postJSON(baseURL(), "/v1/obligations/compact", map[string]any{
				"ledger":  ledger,
				"maxScan": maxScan,
			}, &out)
			if err != nil {
				return err
			}
			if code != http.StatusOK {
				return fmt.Errorf("compact: status %d: %v", code, out)
			}
			printJSON(cmd.OutOrStdout(), out)
			return nil
		},
	}
	compactCmd.Flags().StringP("ledger", "l", "default", "Ledger")
	compactCmd.Flags().Int("max-scan", 0, "Slots per compaction step (0 = default)")
	return compactCmd
}

func newObStatusCommand(baseURL BaseURLFunc) *cobra.Command {
	statusCmd := &cobra.Command{
		Use:   "status",
		Short: "Show ledger queue status",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ledger, _ := cmd.Flags().GetString("ledger")
			var out map[string]any
			code, err := getJSON(baseURL(), "/v1/obligations/status?ledger="+url.QueryEscape(ledger), &out)
			if err != nil {
				return err
			}
			if code != http.StatusOK {
				return fmt.Errorf("status: status %d: %v", code, out)
			}
			printJSON(cmd.OutOrStdout(), out)
			return nil
		},
	}
	statusCmd.Flags().StringP("ledger", "l", "default", "Ledger")
	return statusCmd
}

func newObGetCommand(baseURL BaseURLFunc) *cobra.Command {
	getCmd := &cobra.Command{
		Use:   "get",
		Short: "Get the pending amount for a subject",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ledger, _ := cmd.Flags().GetString("ledger")
			subject, _ := cmd.Flags().GetString("subject")
			var out map[string]any
			code, err := getJSON(baseURL(),
				"/v1/obligations/get?ledger="+url.QueryEscape(ledger)+"&subject="+url.QueryEscape(subject), &out)
			if err != nil {
				return err
			}
			if code != http.StatusOK {
				return fmt.Errorf("get: status %d: %v", code, out)
			}
			printJSON(cmd.OutOrStdout(), out)
			return nil
		},
	}
	getCmd.Flags().StringP("ledger", "l", "default", "Ledger")
	getCmd.Flags().String("subject", "", "Subject key")
	_ = getCmd.MarkFlagRequired("subject")
	return getCmd
}

func newObHistoryCommand(baseURL BaseURLFunc) *cobra.Command {
	historyCmd := &cobra.Command{
		Use:   "history",
		Short: "Read fulfillment history",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ledger, _ := cmd.Flags().GetString("ledger")
			start, _ := cmd.Flags().GetUint64("start")
			limit, _ := cmd.Flags().GetInt("limit")
			reverse, _ := cmd.Flags().GetBool("reverse")
			q := "/v1/obligations/history?ledger=" + url.QueryEscape(ledger) +
				"&start=" + strconv.FormatUint(start, 10) +
				"&limit=" + strconv.Itoa(limit) +
				"&reverse=" + strconv.FormatBool(reverse)
			var out map[string]any
			code, err := getJSON(baseURL(), q, &out)
			if err != nil {
				return err
			}
			if code != http.StatusOK {
				return fmt.Errorf("history: status %d: %v", code, out)
			}
			printJSON(cmd.OutOrStdout(), out)
			return nil
		},
	}
	historyCmd.Flags().StringP("ledger", "l", "default", "Ledger")
	historyCmd.Flags().Uint64("start", 0, "Resume position (0 = start)")
	historyCmd.Flags().Int("limit", 100, "Max records")
	historyCmd.Flags().Bool("reverse", false, "Newest first")
	return historyCmd
}

func newObPauseCommand(baseURL BaseURLFunc) *cobra.Command {
	pauseCmd := &cobra.Command{
		Use:   "pause",
		Short: "Pause batches and compactions for a ledger",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ledger, _ := cmd.Flags().GetString("ledger")
			code, err := postJSON(baseURL(), "/v1/obligations/pause", map[string]string{"ledger": ledger}, nil)
			if err != nil {
				return err
			}
			if code != http.StatusNoContent {
				return fmt.Errorf("pause: status %d", code)
			}
			_, _ = fmt.Fprintln(cmd.OutOrStdout(), "status:", "paused")
			return nil
		},
	}
	pauseCmd.Flags().StringP("ledger", "l", "default", "Ledger")
	return pauseCmd
}

func newObResumeCommand(baseURL BaseURLFunc) *cobra.Command {
	resumeCmd := &cobra.Command{
		Use:   "resume",
		Short: "Resume a paused ledger",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ledger, _ := cmd.Flags().GetString("ledger")
			code, err := postJSON(baseURL(), "/v1/obligations/resume", map[string]string{"ledger": ledger}, nil)
			if err != nil {
				return err
			}
			if code != http.StatusNoContent {
				return fmt.Errorf("resume: status %d", code)
			}
			_, _ = fmt.Fprintln(cmd.OutOrStdout(), "status:", "resumed")
			return nil
		},
	}
	resumeCmd.Flags().StringP("ledger", "l", "default", "Ledger")
	return resumeCmd
}
