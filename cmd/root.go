package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/bridge-cli/internal/config"
)

var cfg *config.Config

// modeAnnotation names the config.Validate mode a command needs.
const modeAnnotation = "config-mode"

var rootCmd = &cobra.Command{
	Use:   "bridge-cli",
	Short: "High-resistance bridge analysis",
	Long:  "Reduces resistance-bridge measurement workbooks to calibrated resistances with GUM uncertainty budgets, and keeps the results and resistor profiles in a database.",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		c, err := config.Load()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		cfg = c

		if err := config.InitLogger(cfg.Log); err != nil {
			return fmt.Errorf("init logger: %w", err)
		}

		return cfg.Validate(configMode(cmd))
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = zap.L().Sync()
	},
	SilenceUsage: true,
}

// configMode returns the validation mode of cmd or its nearest annotated
// parent; commands that only touch the store default to "store".
func configMode(cmd *cobra.Command) string {
	for c := cmd; c != nil; c = c.Parent() {
		if m, ok := c.Annotations[modeAnnotation]; ok {
			return m
		}
	}
	return "store"
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
