package cli

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Run a single scan over the due alerts",
	RunE:  runCheck,
}

func init() {
	rootCmd.AddCommand(checkCmd)
	checkCmd.Flags().Bool("json", false, "Print the scan summary as JSON")
}

func runCheck(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	a, err := newApp(cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	summary, err := a.scheduler.TriggerNow(cmd.Context())
	if err != nil {
		return fmt.Errorf("scan: %w", err)
	}

	if asJSON, _ := cmd.Flags().GetBool("json"); asJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(summary)
	}

	fmt.Printf("Scan complete:\n")
	fmt.Printf("  Active:     %d\n", summary.Active)
	fmt.Printf("  Due:        %d\n", summary.Due)
	fmt.Printf("  Updated:    %d\n", summary.Updated)
	fmt.Printf("  Triggered:  %d\n", summary.Triggered)
	fmt.Printf("  Skipped:    %d\n", summary.Skipped)
	fmt.Printf("  Errors:     %d\n", summary.Errors)
	fmt.Printf("  Duration:   %s\n", summary.Duration)

	return nil
}
