package main

import (
	"fmt"
	"os"

	"github.com/aretw0/leadflow/internal/config"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "leadflow",
	Short: "Leadflow runs lead qualification conversations",
	Long: `Leadflow executes conversational flows (messages, choices and actions) that
qualify leads over messaging channels. Flows are JSON or YAML documents.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	// Persistent flags (available to all commands)
	rootCmd.PersistentFlags().String("config", "", "YAML config file (default $LEADFLOW_CONFIG)")
	rootCmd.PersistentFlags().String("log-level", "", "Log level: debug, info, warn, error")
	rootCmd.PersistentFlags().String("flows", "", "Directory containing flow documents")
	rootCmd.PersistentFlags().String("store", "", "Conversation store: memory, file, redis, sqlite, postgres")
}

// loadConfig reads the config file and environment, then applies the flags
// the user set explicitly.
func loadConfig(cmd *cobra.Command) (config.Config, error) {
	path, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(path)
	if err != nil {
		return cfg, err
	}

	overrides := map[string]*string{
		"log-level": &cfg.LogLevel,
		"flows":     &cfg.FlowsDir,
		"store":     &cfg.Store.Backend,
	}
	for name, dst := range overrides {
		if cmd.Flags().Changed(name) {
			*dst, _ = cmd.Flags().GetString(name)
		}
	}
	return cfg, cfg.Validate()
}
