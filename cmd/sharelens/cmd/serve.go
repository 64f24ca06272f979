package cmd

import (
	"fmt"

	"github.com/abramin/sharelens/internal/scan"
	"github.com/abramin/sharelens/internal/server"
	"github.com/spf13/cobra"
)

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the last scan report over HTTP",
	Long: `Start a local HTTP server exposing the report written by scan.

Endpoints:
- /api/stats, /api/passes, /api/diagnostics
- /api/entities (filter by pass, share_kind, kind, type)
- /api/entities/{id}, /api/search?query=
- /report.json`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := GetConfig()
		reportDir := scan.NewRunner(cfg, projectDir, GetLogger()).OutputDir()

		srv, err := server.New(server.Config{
			Port:      servePort,
			ReportDir: reportDir,
			Logger:    GetLogger(),
		})
		if err != nil {
			return fmt.Errorf("starting server: %w", err)
		}

		fmt.Printf("Serving %s on http://localhost:%d\n", reportDir, servePort)
		return srv.Start(cmd.Context())
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().IntVarP(&servePort, "port", "p", 8080, "port to run the report server on")
}
