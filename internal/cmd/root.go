package cmd

import (
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "hgbd",
	Short: "Pretrain head and gaze reconstruction models",
	Long: `hgbd preprocesses head/gaze recordings into windows, pretrains masked
reconstruction transformers over a hyperparameter grid and inspects the
tracked runs.`,
	SilenceUsage: true,
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.CompletionOptions.HiddenDefaultCmd = false
}
