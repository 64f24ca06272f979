package cmd

import (
	"fmt"
	"time"

	"github.com/abramin/sharelens/internal/scan"
	"github.com/spf13/cobra"
)

var scanCmd = &cobra.Command{
	Use:   "scan [pass...]",
	Short: "Classify every server entity and write the report",
	Long: `Run the configured generation passes, or only the named ones.

The scan command:
- Loads the server and client images of each pass with go/packages
- Locates source files through the configured symbol providers
- Classifies every exported server entity
- Reports members that are not shared although their type is
- Persists results to .sharelens/report.db and .sharelens/report.json`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := GetConfig()
		if err := cfg.Validate(); err != nil {
			return fmt.Errorf("invalid configuration: %w", err)
		}

		fmt.Printf("Scanning project at: %s\n", projectDir)
		fmt.Printf("Config loaded with %d passes\n", len(cfg.Passes))

		runner := scan.NewRunner(cfg, projectDir, GetLogger())
		result, err := runner.Run(cmd.Context(), args...)
		if err != nil {
			return fmt.Errorf("scan failed: %w", err)
		}

		fmt.Println()
		fmt.Printf("Scan complete!\n")
		fmt.Printf("  Passes:      %d\n", len(result.Passes))
		fmt.Printf("  Entities:    %d\n", result.EntityCount)
		fmt.Printf("  Diagnostics: %d\n", result.DiagnosticCount)
		fmt.Printf("  Duration:    %s\n", result.Duration.Round(time.Millisecond))
		fmt.Printf("  Database:    %s\n", result.DBPath)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(scanCmd)
}
