// Command bikedemand runs the bike-share demand-imbalance pipeline.
//
//	bikedemand run --config bikedemand.yaml
//	bikedemand features --config bikedemand.yaml --out features.csv
package main

import (
	"context"
	"fmt"
	"io"
	"math"
	"os"
	"os/signal"
	"path/filepath"
	"sort"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/YuminosukeSato/bikedemand/config"
	"github.com/YuminosukeSato/bikedemand/evaluation"
	"github.com/YuminosukeSato/bikedemand/features"
	"github.com/YuminosukeSato/bikedemand/pipeline"
	"github.com/YuminosukeSato/bikedemand/pkg/log"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "bikedemand:", err)
		stop()
		os.Exit(1)
	}
}

type globalFlags struct {
	configPath string
	logLevel   string
	logFormat  string
}

func newRootCmd() *cobra.Command {
	g := &globalFlags{}
	root := &cobra.Command{
		Use:           "bikedemand",
		Short:         "Predict station-hour demand imbalance for a bike-share network",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	pf := root.PersistentFlags()
	pf.StringVar(&g.configPath, "config", "", "YAML configuration file (defaults are used when empty)")
	pf.StringVar(&g.logLevel, "log-level", "", "debug, info, warn or error (overrides logging.level)")
	pf.StringVar(&g.logFormat, "log-format", "", "json or console (overrides logging.format)")

	root.AddCommand(newRunCmd(g), newFeaturesCmd(g))
	return root
}

// load resolves the configuration and installs the logger.
func (g *globalFlags) load(cmd *cobra.Command) (*config.Config, error) {
	cfg, err := config.Load(g.configPath)
	if err != nil {
		return nil, err
	}
	if g.logLevel != "" {
		cfg.Logging.Level = g.logLevel
	}
	if g.logFormat != "" {
		cfg.Logging.Format = g.logFormat
	}
	if err := log.Setup(cfg.Logging.Level, cfg.Logging.Format, cmd.ErrOrStderr()); err != nil {
		return nil, err
	}
	return cfg, nil
}

func newRunCmd(g *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Run the full pipeline and write every artefact to paths.output_dir",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := g.load(cmd)
			if err != nil {
				return err
			}
			res, err := pipeline.Run(cmd.Context(), cfg, log.GetLoggerWithName("cli"))
			if err != nil {
				return err
			}
			printRun(cmd.OutOrStdout(), res)
			return nil
		},
	}
}

func newFeaturesCmd(g *globalFlags) *cobra.Command {
	var out string
	cmd := &cobra.Command{
		Use:   "features",
		Short: "Merge the inputs and write the feature table only",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := g.load(cmd)
			if err != nil {
				return err
			}
			res, err := pipeline.New(cfg, log.GetLoggerWithName("cli")).BuildFeatures(cmd.Context())
			if err != nil {
				return err
			}
			if out == "" {
				out = filepath.Join(cfg.Paths.OutputDir, pipeline.FeaturesFile)
			}
			if err := pipeline.WriteFeatures(res, out); err != nil {
				return err
			}
			printFeatures(cmd.OutOrStdout(), res)
			fmt.Fprintf(cmd.OutOrStdout(), "wrote %s\n", out)
			return nil
		},
	}
	cmd.Flags().StringVarP(&out, "out", "o", "", "output CSV (default <output_dir>/"+pipeline.FeaturesFile+")")
	return cmd
}

func count(n int) string { return humanize.Comma(int64(n)) }

func printFeatures(w io.Writer, res *pipeline.Result) {
	fmt.Fprintf(w, "stations   %s read, %s outside the wards\n",
		count(res.Ingest.Stations.Kept()), count(res.Stations.OutsideWards))
	fmt.Fprintf(w, "snapshots  %s read, %s skipped\n",
		count(res.Ingest.Snapshots.Kept()), count(res.Ingest.Snapshots.Skipped))
	fmt.Fprintf(w, "weather    %s hours, %s skipped\n",
		count(res.Ingest.Weather.Kept()), count(res.Ingest.Weather.Skipped))
	fmt.Fprintf(w, "merged     %s rows, %s dropped\n", count(res.Merge.Output), count(res.Merge.Dropped()))
	fmt.Fprintf(w, "features   %s rows, %s unlabeled\n", count(res.Features.Rows), count(res.Features.Unlabeled))

	classes := make([]features.Class, 0, len(res.Features.Classes))
	for c := range res.Features.Classes {
		if c.Labeled() {
			classes = append(classes, c)
		}
	}
	sort.Slice(classes, func(i, j int) bool { return classes[i] < classes[j] })
	parts := make([]string, len(classes))
	for i, c := range classes {
		parts[i] = fmt.Sprintf("%s=%s", c, count(res.Features.Classes[c]))
	}
	fmt.Fprintf(w, "classes    %s\n", strings.Join(parts, " "))
}

func printRun(w io.Writer, res *pipeline.Result) {
	printFeatures(w, res)
	fmt.Fprintf(w, "split      %s train, %s test\n", count(res.TrainRows), count(res.TestRows))
	if h := res.History; h != nil && len(h.Valid) > 0 {
		fmt.Fprintf(w, "model      %s, %d rounds, test RMSE %.4f\n", res.ModelName, len(h.Train), h.Valid[len(h.Valid)-1])
	} else {
		fmt.Fprintf(w, "model      %s\n", res.ModelName)
	}
	fmt.Fprintf(w, "thresholds %.4f %.4f (train QWK %s, start %s)\n",
		res.Thresholds.Cuts[0], res.Thresholds.Cuts[1],
		kappa(res.Thresholds.QWK), kappa(res.Thresholds.Initial))
	for _, rep := range []*evaluation.Report{res.Train, res.Test} {
		fmt.Fprintf(w, "%-10s QWK %s  accuracy %.3f  MAE %.3f\n", rep.Name, kappa(rep.QWK), rep.Accuracy, rep.MAE)
	}
	for _, p := range res.Outputs {
		fmt.Fprintf(w, "wrote %s\n", p)
	}
}

func kappa(v float64) string {
	if math.IsNaN(v) {
		return "undefined"
	}
	return fmt.Sprintf("%.4f", v)
}
