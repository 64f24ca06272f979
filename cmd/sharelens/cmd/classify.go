package cmd

import (
	"fmt"
	"strings"

	"github.com/abramin/sharelens/internal/config"
	"github.com/abramin/sharelens/internal/memberkey"
	"github.com/abramin/sharelens/internal/scan"
	"github.com/abramin/sharelens/internal/share"
	"github.com/spf13/cobra"
)

var (
	classifyPass  string
	classifyFiles bool
)

var classifyCmd = &cobra.Command{
	Use:   "classify KEY...",
	Short: "Print the share kind of canonical member keys",
	Long: `Classify canonical member keys against one pass without writing a report.

Keys take the forms
  T:example.com/pkg.Type
  P:example.com/pkg.Type.Property
  M:example.com/pkg.Type.Method(string, ...int)
  C:example.com/pkg.Type(string)`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := GetConfig()
		if err := cfg.Validate(); err != nil {
			return fmt.Errorf("invalid configuration: %w", err)
		}
		pc, err := selectPass(cfg, classifyPass)
		if err != nil {
			return err
		}

		runner := scan.NewRunner(cfg, projectDir, GetLogger())
		svc, err := share.Open(cmd.Context(), runner.Options(pc))
		if err != nil {
			return fmt.Errorf("opening pass %s: %w", pc.Name, err)
		}
		defer svc.Close()

		out := cmd.OutOrStdout()
		var failed int
		for _, arg := range args {
			k, err := memberkey.Parse(arg)
			if err != nil {
				fmt.Fprintf(out, "%s\terror: %v\n", arg, err)
				failed++
				continue
			}
			kind, err := svc.Classify(k)
			if err != nil {
				fmt.Fprintf(out, "%s\terror: %v\n", k, err)
				failed++
				continue
			}
			fmt.Fprintf(out, "%s\t%s\n", k, kind)
			if classifyFiles {
				files, _ := svc.Files(k)
				for _, f := range files {
					fmt.Fprintf(out, "\t%s\n", f)
				}
			}
		}
		if failed > 0 {
			return fmt.Errorf("%d of %d keys could not be classified", failed, len(args))
		}
		return nil
	},
}

// selectPass returns the named pass, or the only pass when name is empty.
func selectPass(cfg *config.Config, name string) (config.PassConfig, error) {
	if name == "" {
		if len(cfg.Passes) != 1 {
			names := make([]string, len(cfg.Passes))
			for i, p := range cfg.Passes {
				names[i] = p.Name
			}
			return config.PassConfig{}, fmt.Errorf("--pass is required, one of: %s", strings.Join(names, ", "))
		}
		return cfg.Passes[0], nil
	}
	pc, ok := cfg.Pass(name)
	if !ok {
		return config.PassConfig{}, fmt.Errorf("unknown pass %q", name)
	}
	return pc, nil
}

func init() {
	rootCmd.AddCommand(classifyCmd)
	classifyCmd.Flags().StringVarP(&classifyPass, "pass", "p", "", "pass to classify against (required with several passes)")
	classifyCmd.Flags().BoolVar(&classifyFiles, "files", false, "also print the located source files")
}
