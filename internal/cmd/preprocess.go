package cmd

import (
	"fmt"

	"github.com/retazo0018/head-gaze-behavioural-prediction/hgdata"
	"github.com/spf13/cobra"
)

var (
	preprocessData   string
	preprocessConfig string
	preprocessOut    string
)

var preprocessCmd = &cobra.Command{
	Use:   "preprocess",
	Short: "Window raw recordings into a dataset",
	Long: `Read every <subject>/<recording>.csv file under the data directory,
downsample and window the gaze and head direction columns, and save the
resulting dataset.`,
	RunE: runPreprocess,
}

func init() {
	rootCmd.AddCommand(preprocessCmd)

	preprocessCmd.Flags().StringVarP(&preprocessData, "data", "d", "../Data/Version2", "Directory of raw recordings")
	preprocessCmd.Flags().StringVarP(&preprocessConfig, "config", "c", "", "Pretraining config file (default: built-in config)")
	preprocessCmd.Flags().StringVarP(&preprocessOut, "out", "o", "dataset/hgbd", "Directory to save the dataset in")
}

func runPreprocess(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(preprocessConfig)
	if err != nil {
		return err
	}

	fmt.Printf("Preprocessing recordings in %s\n", preprocessData)
	dataset, err := hgdata.PreprocessDir(preprocessData, hgdata.OptionsFromConfig(&cfg.Dataset))
	if err != nil {
		return fmt.Errorf("failed to preprocess: %w", err)
	}
	if err := dataset.Save(preprocessOut); err != nil {
		return fmt.Errorf("failed to save dataset: %w", err)
	}

	shape := dataset.Gaze.Shape()
	fmt.Printf("Saved %d windows of %d x %d to %s\n", shape[0], shape[1], shape[2], preprocessOut)
	return nil
}
