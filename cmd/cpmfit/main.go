// Command cpmfit estimates coregistration polynomials from point-pair CSV files and prints the results.
package main

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"sar-coreg/internal/alignment"
	"sar-coreg/internal/config"
	"sar-coreg/internal/gcp"
	"sar-coreg/internal/logging"
	"sar-coreg/internal/report"
	"sar-coreg/internal/version"
	"sar-coreg/pkg/geometry"

	"github.com/spf13/cobra"
)

func main() {
	defer logging.Flush()

	rootCmd := &cobra.Command{
		Use:           "cpmfit",
		Short:         "Estimate coregistration polynomials from matched point pairs",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	// glog flags (-v, -log_dir, ...) are accepted as persistent flags
	rootCmd.PersistentFlags().AddGoFlagSet(flag.CommandLine)
	rootCmd.AddCommand(newEstimateCmd(), newVersionCmd())

	if err := rootCmd.Execute(); err != nil {
		logging.Flush()
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "cpmfit %s\n", version.String())
		},
	}
}

type estimateFlags struct {
	configPath    string
	degree        int
	maxIterations int
	criticalValue float64
	alpha         float64
	weighting     string
	window        string
	master        string
	survivors     string
	output        string
	workers       int
	debug         bool
}

func newEstimateCmd() *cobra.Command {
	var f estimateFlags

	cmd := &cobra.Command{
		Use:   "estimate [points.csv ...]",
		Short: "Fit one coregistration polynomial per point-pair file",
		Long: `Fit a coregistration polynomial to each point-pair file, rejecting outliers by data snooping.

Each CSV record is: id, master_row, master_col, slave_row, slave_col[, quality[, geo_row, geo_col]].
The normalization window is taken from --window, else from the --master image bounds,
else from the configuration file, else from the bounding box of the master points.

Example: cpmfit estimate gcps.csv --degree 2 --alpha 0.001 --master master.tif`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runEstimate(cmd, f, args)
		},
	}

	fl := cmd.Flags()
	fl.StringVarP(&f.configPath, "config", "c", "", "TOML configuration file")
	fl.IntVarP(&f.degree, "degree", "d", 2, "Polynomial degree (1-3)")
	fl.IntVar(&f.maxIterations, "max-iterations", 20, "Maximum number of outlier removals")
	fl.Float64Var(&f.criticalValue, "critical-value", alignment.DefaultCriticalValue, "w-test critical value")
	fl.Float64Var(&f.alpha, "alpha", 0, "Significance level, replaces --critical-value")
	fl.StringVarP(&f.weighting, "weighting", "w", "none", "Weighting: none, linear or quadratic")
	fl.StringVar(&f.window, "window", "", "Normalization window as line_lo,line_hi,pix_lo,pix_hi")
	fl.StringVarP(&f.master, "master", "m", "", "Master image; its bounds give the normalization window")
	fl.StringVar(&f.survivors, "survivors", "", "Directory to write surviving point pairs to")
	fl.StringVarP(&f.output, "output", "o", "", "Directory to write .cpm.json result files to")
	fl.IntVar(&f.workers, "workers", 0, "Concurrent estimations (0 = GOMAXPROCS)")
	fl.BoolVar(&f.debug, "debug", false, "Trace every iteration")

	return cmd
}

func runEstimate(cmd *cobra.Command, f estimateFlags, files []string) error {
	cfg, err := config.Load(f.configPath)
	if err != nil {
		return err
	}
	if err := applyFlags(cmd, f, cfg); err != nil {
		return err
	}

	level := logging.ParseLevel(cfg.LogLevel)
	if cfg.Estimation.Debug {
		level = logging.LevelDebug
	}
	if err := logging.Configure(level); err != nil {
		return err
	}
	logger := logging.New()

	window, err := resolveWindow(f)
	if err != nil {
		return err
	}

	jobs := make([]alignment.Job, 0, len(files))
	for _, path := range files {
		pairs, err := gcp.ReadFile(path)
		if err != nil {
			return err
		}
		w := window
		if w == nil && cfg.Estimation.Window == nil {
			roi := pointWindow(pairs)
			logger.Infof("%s: no window given, using master point extent %s", path, roi)
			w = &roi
		}
		opts, err := cfg.Options(w)
		if err != nil {
			return fmt.Errorf("%s: %w", path, err)
		}
		jobs = append(jobs, alignment.Job{Name: path, Pairs: pairs, Options: opts})
	}

	results := alignment.EstimateAll(cmd.Context(), jobs, cfg.Workers, logger)

	out := cmd.OutOrStdout()
	var failed int
	for _, jr := range results {
		if jr.Err != nil {
			failed++
			logger.Errorf("%s: %v", jr.Name, jr.Err)
			continue
		}
		for _, d := range jr.Result.Diagnostics {
			logger.Warnf("%s: %s", jr.Name, d)
		}
		printReport(out, jr.Name, jr.Result)

		if f.survivors != "" {
			if err := writeSurvivors(f.survivors, jr.Name, jr.Result); err != nil {
				return err
			}
		}
		if f.output != "" {
			path, err := writeResult(f.output, f.master, jr.Name, jr.Result)
			if err != nil {
				return err
			}
			logger.Infof("%s: result written to %s", jr.Name, path)
		}
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d estimations failed", failed, len(results))
	}
	return nil
}

// applyFlags lets explicitly set flags override the loaded configuration.
func applyFlags(cmd *cobra.Command, f estimateFlags, cfg *config.Config) error {
	fl := cmd.Flags()
	e := &cfg.Estimation
	if fl.Changed("degree") {
		e.Degree = f.degree
	}
	if fl.Changed("max-iterations") {
		e.MaxIterations = f.maxIterations
	}
	if fl.Changed("alpha") {
		e.Alpha = f.alpha
		e.CriticalValue = 0
	}
	if fl.Changed("critical-value") {
		e.CriticalValue = f.criticalValue
	}
	if fl.Changed("weighting") {
		w, err := alignment.ParseWeighting(f.weighting)
		if err != nil {
			return err
		}
		e.Weighting = w
	}
	if fl.Changed("workers") {
		cfg.Workers = f.workers
	}
	if fl.Changed("debug") {
		e.Debug = f.debug
	}
	return nil
}

func resolveWindow(f estimateFlags) (*geometry.Window, error) {
	if f.window != "" {
		w, err := parseWindow(f.window)
		if err != nil {
			return nil, err
		}
		return &w, nil
	}
	if f.master != "" {
		w, err := imageWindow(f.master)
		if err != nil {
			return nil, err
		}
		return &w, nil
	}
	return nil, nil
}

func parseWindow(s string) (geometry.Window, error) {
	parts := strings.Split(s, ",")
	if len(parts) != 4 {
		return geometry.Window{}, fmt.Errorf("window %q: want line_lo,line_hi,pix_lo,pix_hi", s)
	}
	var v [4]float64
	for i, p := range parts {
		var err error
		if v[i], err = strconv.ParseFloat(strings.TrimSpace(p), 64); err != nil {
			return geometry.Window{}, fmt.Errorf("window %q: %w", s, err)
		}
	}
	return geometry.NewWindow(v[0], v[1], v[2], v[3]), nil
}

func pointWindow(pairs []alignment.PointPair) geometry.Window {
	masters := make([]geometry.Pixel, len(pairs))
	for i, p := range pairs {
		masters[i] = p.Master
	}
	return geometry.BoundingWindow(masters)
}

func writeSurvivors(dir, name string, res *alignment.Result) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	path := filepath.Join(dir, strings.TrimSuffix(filepath.Base(name), filepath.Ext(name))+"_survivors.csv")
	out, err := os.Create(path)
	if err != nil {
		return err
	}
	pairs := make([]alignment.PointPair, len(res.Observations))
	for i, o := range res.Observations {
		pairs[i] = o.Pair()
	}
	if err := gcp.Write(out, pairs); err != nil {
		out.Close()
		return fmt.Errorf("write %s: %w", path, err)
	}
	return out.Close()
}

func writeResult(dir, master, name string, res *alignment.Result) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}
	path := report.DefaultPath(dir, name)
	rf := report.New(name, res)
	rf.SetPoints(path, name)
	if master != "" {
		rf.SetMasterImage(path, master)
	}
	if err := rf.Save(path); err != nil {
		return "", fmt.Errorf("write %s: %w", path, err)
	}
	return path, nil
}
