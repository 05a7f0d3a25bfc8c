package cmd

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/retazo0018/head-gaze-behavioural-prediction/hgsweep"
	"github.com/retazo0018/head-gaze-behavioural-prediction/hgtrack"
	"github.com/spf13/cobra"
)

var (
	runsTracking   string
	runsExperiment string
	runsMetric     string
	runsMaximize   bool
	runsRun        string
)

var runsCmd = &cobra.Command{
	Use:   "runs",
	Short: "List tracked runs and their metrics",
	Long: `List the runs of an experiment with their hyperparameters and latest
metrics. With --metric, also report the best run for that metric. With
--run, print the full metric history and artifacts of a single run.`,
	RunE: runRuns,
}

func init() {
	rootCmd.AddCommand(runsCmd)

	runsCmd.Flags().StringVar(&runsTracking, "tracking", "mlruns", "Run tracking directory")
	runsCmd.Flags().StringVarP(&runsExperiment, "experiment", "e", hgsweep.DefaultExperiment, "Experiment name")
	runsCmd.Flags().StringVar(&runsMetric, "metric", "", "Metric used to pick the best run")
	runsCmd.Flags().BoolVar(&runsMaximize, "maximize", false, "Pick the run with the highest metric instead of the lowest")
	runsCmd.Flags().StringVar(&runsRun, "run", "", "UUID of a single run to show in detail")
}

func runRuns(cmd *cobra.Command, args []string) error {
	store, err := hgtrack.Open(runsTracking)
	if err != nil {
		return err
	}
	defer store.Close()

	if runsRun != "" {
		return showRun(store, runsRun)
	}

	runs, err := store.Runs(runsExperiment)
	if err != nil {
		return err
	}
	if len(runs) == 0 {
		return fmt.Errorf("no runs found for experiment: %s", runsExperiment)
	}

	for _, run := range runs {
		fmt.Printf("Run %d %s [%s] started %s\n", run.ID, run.UUID, run.Status,
			run.Started.Format("2006-01-02 15:04"))
		fmt.Printf("  params: %s\n", formatParams(run.Params))
		metrics, err := store.LatestMetrics(run.ID)
		if err != nil {
			return err
		}
		for _, key := range sortedKeys(metrics) {
			fmt.Printf("  %s: %.5f\n", key, metrics[key])
		}
	}

	if runsMetric == "" {
		return nil
	}
	best, value, err := store.BestRun(runsExperiment, runsMetric, runsMaximize)
	if errors.Is(err, hgtrack.ErrNoRuns) {
		fmt.Printf("No run logged %s\n", runsMetric)
		return nil
	} else if err != nil {
		return err
	}
	fmt.Printf("Best run for %s: %d (%.5f)\n", runsMetric, best.ID, value)
	return nil
}

func showRun(store *hgtrack.Store, runUUID string) error {
	run, err := store.FindRun(runUUID)
	if err != nil {
		return err
	}
	fmt.Printf("Run %d %s in %s [%s]\n", run.ID, run.UUID, run.Experiment, run.Status)
	if run.Description != "" {
		fmt.Printf("  %s\n", run.Description)
	}
	keys := make([]string, 0, len(run.Params))
	for key := range run.Params {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	for _, key := range keys {
		fmt.Printf("  %s = %s\n", key, run.Params[key])
	}

	points, err := store.Metrics(run.ID, "")
	if err != nil {
		return err
	}
	for _, p := range points {
		fmt.Printf("  %s [step %d]: %.5f\n", p.Key, p.Step, p.Value)
	}
	artifacts, err := store.Artifacts(run.ID)
	if err != nil {
		return err
	}
	for _, path := range artifacts {
		fmt.Printf("  artifact: %s\n", path)
	}
	return nil
}

func formatParams(params map[string]string) string {
	var parts []string
	for _, key := range []string{"learning_rate", "batch_size", "mask_ratio"} {
		if value, ok := params[key]; ok {
			parts = append(parts, key+"="+value)
		}
	}
	return strings.Join(parts, " ")
}

func sortedKeys(m map[string]float64) []string {
	keys := make([]string, 0, len(m))
	for key := range m {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}
