package cmd

import (
	"fmt"

	"github.com/retazo0018/head-gaze-behavioural-prediction/hgconf"
	"github.com/spf13/cobra"
)

var configOut string

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Write the default pretraining config",
	Long: `Write the default pretraining config to a YAML file, to be edited and
passed to the preprocess and pretrain commands.`,
	RunE: runConfig,
}

func init() {
	rootCmd.AddCommand(configCmd)

	configCmd.Flags().StringVarP(&configOut, "out", "o", "pretrain.yaml", "Path of the config file to write")
}

func runConfig(cmd *cobra.Command, args []string) error {
	if err := hgconf.Default().Save(configOut); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	fmt.Printf("Wrote default config to %s\n", configOut)
	return nil
}

// loadConfig reads a config file, or returns the default
// config if path is empty.
func loadConfig(path string) (*hgconf.PretrainConfig, error) {
	if path == "" {
		return hgconf.Default(), nil
	}
	cfg, err := hgconf.Load(path)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	return cfg, nil
}
