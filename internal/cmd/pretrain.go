package cmd

import (
	"context"
	"fmt"
	"log"
	"path/filepath"

	"github.com/retazo0018/head-gaze-behavioural-prediction/hgbert"
	"github.com/retazo0018/head-gaze-behavioural-prediction/hgconf"
	"github.com/retazo0018/head-gaze-behavioural-prediction/hgdata"
	"github.com/retazo0018/head-gaze-behavioural-prediction/hgplot"
	"github.com/retazo0018/head-gaze-behavioural-prediction/hgsweep"
	"github.com/retazo0018/head-gaze-behavioural-prediction/hgtrack"
	"github.com/spf13/cobra"
	"github.com/unixpickle/rip"
)

var (
	pretrainConfig      string
	pretrainHParams     string
	pretrainDataset     string
	pretrainModelType   string
	pretrainSavePath    string
	pretrainModel       string
	pretrainTracking    string
	pretrainResults     string
	pretrainExperiment  string
	pretrainDescription string
)

var pretrainCmd = &cobra.Command{
	Use:   "pretrain",
	Short: "Pretrain a model for every hyperparameter combination",
	Long: `Pretrain a masked reconstruction model for every combination of the
hyperparameter grid. Every combination is tracked as a run with its
parameters, losses, distance metrics, plots and checkpoint.

Press ctrl+c once to stop training early; the current run still finishes
its evaluation.`,
	RunE: runPretrain,
}

func init() {
	rootCmd.AddCommand(pretrainCmd)

	pretrainCmd.Flags().StringVarP(&pretrainConfig, "config", "c", "", "Pretraining config file (default: built-in config)")
	pretrainCmd.Flags().StringVar(&pretrainHParams, "hparams", "hparams.yaml", "Hyperparameter grid file")
	pretrainCmd.Flags().StringVarP(&pretrainDataset, "dataset", "d", "dataset/hgbd", "Preprocessed dataset directory")
	pretrainCmd.Flags().StringVarP(&pretrainModelType, "model-type", "m", hgbert.TypeHeadGazeMM,
		"Model type: gaze, gaze_mm or head_gaze_mm")
	pretrainCmd.Flags().StringVarP(&pretrainSavePath, "save-path", "s", "saved/hgbd_pretrain", "Checkpoint path, without extension")
	pretrainCmd.Flags().StringVar(&pretrainModel, "pretrain-model", "", "Model file to initialize training from")
	pretrainCmd.Flags().StringVar(&pretrainTracking, "tracking", "mlruns", "Run tracking directory")
	pretrainCmd.Flags().StringVar(&pretrainResults, "results", "results", "Directory for reconstruction plots")
	pretrainCmd.Flags().StringVar(&pretrainExperiment, "experiment", hgsweep.DefaultExperiment, "Experiment name")
	pretrainCmd.Flags().StringVar(&pretrainDescription, "description", hgsweep.DefaultDescription, "Run description")
}

func runPretrain(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(pretrainConfig)
	if err != nil {
		return err
	}
	hp, err := hgconf.LoadHyperParams(pretrainHParams)
	if err != nil {
		return fmt.Errorf("failed to load hyperparameters: %w", err)
	}
	dataset, err := hgdata.Load(pretrainDataset)
	if err != nil {
		return fmt.Errorf("failed to load dataset: %w", err)
	}
	store, err := hgtrack.Open(pretrainTracking)
	if err != nil {
		return err
	}
	defer store.Close()

	fmt.Printf("Loaded %d windows from %s\n", dataset.Gaze.Len(), pretrainDataset)
	fmt.Printf("Running %d combinations of %s\n", hp.Size(), filepath.Base(pretrainHParams))

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()
	interrupt := rip.NewRIP().Chan()
	go func() {
		select {
		case <-interrupt:
			log.Println("Interrupted; stopping after the current batch...")
			cancel()
		case <-ctx.Done():
		}
	}()

	sweep := &hgsweep.Sweep{
		Config:        cfg,
		HyperParams:   hp,
		ModelType:     pretrainModelType,
		Dataset:       dataset,
		Store:         store,
		SavePath:      pretrainSavePath,
		PretrainModel: pretrainModel,
		Plotter:       &hgplot.Plotter{Dir: pretrainResults, Seed: hgsweep.DefaultPlotSeed},
		Experiment:    pretrainExperiment,
		Description:   pretrainDescription,
	}
	outcomes, err := sweep.Run(ctx)
	for _, outcome := range outcomes {
		fmt.Printf("run %d (lr=%g batch_size=%d mask_ratio=%g): val=%.5f test=%.5f\n",
			outcome.RunID, outcome.LR, outcome.BatchSize, outcome.MaskRatio,
			outcome.Result.ValLoss, outcome.Result.TestLoss)
	}
	if err != nil {
		return fmt.Errorf("failed to pretrain: %w", err)
	}
	return nil
}
