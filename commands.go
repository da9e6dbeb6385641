package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/spf13/cobra"

	"market-surplus/config"
	"market-surplus/models"
	"market-surplus/render"
	"market-surplus/services"
	"market-surplus/storage"
	"market-surplus/utils"
)

// app carries the state shared by every subcommand. It is built once per
// invocation in PersistentPreRunE.
type app struct {
	cfg    *config.Config
	logger *utils.Logger
	calc   *services.Calculator

	envFile  string
	logLevel string
}

// outputFlags are shared by calculate and lines.
type outputFlags struct {
	exportPath string
	format     string
	noExport   bool
	svgPath    string
	pngPath    string
	steps      int
	persist    bool
}

func newRootCmd() *cobra.Command {
	a := &app{}

	root := &cobra.Command{
		Use:   "market-surplus",
		Short: "Fit supply and demand curves and compute equilibrium and surplus",
		Long: `market-surplus fits linear supply and demand curves to sampled
price/quantity observations by least squares, intersects them to find the
market equilibrium, and integrates consumer and producer surplus.

Input files use the columns curve_type,price,quantity where curve_type is
"supply" or "demand".`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.init()
		},
	}

	root.PersistentFlags().StringVar(&a.envFile, "env-file", "", "Path to a .env file (default ./.env)")
	root.PersistentFlags().StringVar(&a.logLevel, "log-level", "", "Log level: debug|info|warn|error")

	root.AddCommand(a.newCalculateCmd(), a.newLinesCmd(), a.newHistoryCmd())
	return root
}

func (a *app) init() error {
	if a.envFile != "" {
		a.cfg = config.Load(a.envFile)
	} else {
		a.cfg = config.Load()
	}

	a.logger = utils.NewLogger()
	level := a.cfg.LogLevel
	if a.logLevel != "" {
		level = a.logLevel
	}
	a.logger.SetLevel(level)

	a.calc = services.NewCalculator(a.logger)
	return nil
}

func addOutputFlags(cmd *cobra.Command, o *outputFlags) {
	cmd.Flags().StringVar(&o.exportPath, "export", "", "Export results to this file (default EXPORT_PATH)")
	cmd.Flags().StringVar(&o.format, "format", "", "Export format: csv|yaml (default EXPORT_FORMAT)")
	cmd.Flags().BoolVar(&o.noExport, "no-export", false, "Skip exporting results")
	cmd.Flags().StringVar(&o.svgPath, "svg", "", "Write an SVG chart to this path")
	cmd.Flags().StringVar(&o.pngPath, "png", "", "Render a PNG chart through headless Chrome to this path")
	cmd.Flags().IntVar(&o.steps, "steps", 0, "Samples per plotted line (default PLOT_STEPS)")
	cmd.Flags().BoolVar(&o.persist, "persist", false, "Store results in PostgreSQL even if POSTGRES_ENABLED is off")
}

// manualFlags carry observations typed on the command line.
type manualFlags struct {
	name                           string
	demandPrices, demandQuantities string
	supplyPrices, supplyQuantities string
	example                        bool
}

func (m manualFlags) any() bool {
	return m.demandPrices != "" || m.demandQuantities != "" || m.supplyPrices != "" || m.supplyQuantities != ""
}

func (a *app) newCalculateCmd() *cobra.Command {
	var (
		out     outputFlags
		manual  manualFlags
		workers int
	)

	cmd := &cobra.Command{
		Use:   "calculate [file.csv...]",
		Short: "Calculate equilibrium and surplus from observations",
		Long: `Calculate fits both curves and derives equilibrium and surplus.
Observations come from CSV files, from price/quantity lists given as flags,
or from the built-in example market (--example). Sources can be combined.`,
		Example: `  market-surplus calculate data/market.csv
  market-surplus calculate --demand-prices 4,5,6 --demand-quantities 135,104,81 \
      --supply-prices 4,5,6 --supply-quantities 26,53,81
  market-surplus calculate --example --svg chart.svg`,
		Args: cobra.ArbitraryArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 0 && !manual.any() && !manual.example {
				return errors.New("nothing to calculate: pass CSV files, --demand-*/--supply-* lists or --example")
			}
			if workers <= 0 {
				workers = a.cfg.MaxConcurrency
			}

			seen := utils.NewStringSet()
			names := utils.NewStringSet()
			var jobs []services.Job
			var loadErrs []error

			for _, path := range args {
				abs, err := filepath.Abs(path)
				if err != nil {
					abs = path
				}
				if !seen.Add(abs) {
					a.logger.Warn("Skipping repeated input %s", path)
					continue
				}

				demand, supply, err := storage.LoadObservations(path)
				if err != nil {
					a.logger.Error("Failed to load %s: %v", path, err)
					loadErrs = append(loadErrs, err)
					continue
				}
				a.logger.Info("Loaded %s: %d demand, %d supply observations", path, demand.Len(), supply.Len())

				jobs = append(jobs, services.Job{Dataset: uniqueName(names, datasetName(path)), Demand: demand, Supply: supply})
			}

			if manual.any() {
				job, err := manualJob(manual)
				if err != nil {
					return err
				}
				job.Dataset = uniqueName(names, job.Dataset)
				jobs = append(jobs, job)
			}

			if manual.example {
				demand, supply := storage.ExampleObservations()
				jobs = append(jobs, services.Job{Dataset: uniqueName(names, storage.ExampleDatasetName), Demand: demand, Supply: supply})
			}

			a.logger.Info("Calculating %d dataset(s) with %d worker(s)", names.Size(), workers)
			bundles := a.calc.CalculateAll(jobs, workers)
			if err := a.emit(cmd.Context(), bundles, out); err != nil {
				return err
			}

			if len(loadErrs) > 0 {
				return fmt.Errorf("%d input file(s) could not be loaded: %w", len(loadErrs), errors.Join(loadErrs...))
			}
			return failedCount(bundles)
		},
	}

	addOutputFlags(cmd, &out)
	cmd.Flags().IntVar(&workers, "workers", 0, "Datasets calculated in parallel (default MAX_CONCURRENCY)")
	cmd.Flags().StringVar(&manual.name, "name", "manual", "Dataset name for observations given as flags")
	cmd.Flags().StringVar(&manual.demandPrices, "demand-prices", "", "Demand prices, comma separated")
	cmd.Flags().StringVar(&manual.demandQuantities, "demand-quantities", "", "Demand quantities, comma separated")
	cmd.Flags().StringVar(&manual.supplyPrices, "supply-prices", "", "Supply prices, comma separated")
	cmd.Flags().StringVar(&manual.supplyQuantities, "supply-quantities", "", "Supply quantities, comma separated")
	cmd.Flags().BoolVar(&manual.example, "example", false, "Also calculate the built-in example market")
	return cmd
}

// manualJob builds a job from the --demand-*/--supply-* lists. All four are required.
func manualJob(m manualFlags) (services.Job, error) {
	if m.demandPrices == "" || m.demandQuantities == "" || m.supplyPrices == "" || m.supplyQuantities == "" {
		return services.Job{}, errors.New("manual entry needs --demand-prices, --demand-quantities, --supply-prices and --supply-quantities")
	}

	demand, err := storage.ManualObservations(models.CurveDemand, m.demandPrices, m.demandQuantities)
	if err != nil {
		return services.Job{}, err
	}
	supply, err := storage.ManualObservations(models.CurveSupply, m.supplyPrices, m.supplyQuantities)
	if err != nil {
		return services.Job{}, err
	}
	return services.Job{Dataset: m.name, Demand: demand, Supply: supply}, nil
}

func (a *app) newLinesCmd() *cobra.Command {
	var (
		out            outputFlags
		name           string
		demand, supply string
	)

	cmd := &cobra.Command{
		Use:   "lines",
		Short: "Calculate equilibrium and surplus from known line parameters",
		Example: `  market-surplus lines --demand -2,20 --supply 3,5
  market-surplus lines --demand=-2500,15000 --supply=7500,2000 --svg chart.svg`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			d, err := parseLine(demand)
			if err != nil {
				return fmt.Errorf("--demand: %w", err)
			}
			s, err := parseLine(supply)
			if err != nil {
				return fmt.Errorf("--supply: %w", err)
			}

			bundles := []*models.ResultBundle{a.calc.CalculateLines(name, d, s)}
			if err := a.emit(cmd.Context(), bundles, out); err != nil {
				return err
			}
			return failedCount(bundles)
		},
	}

	addOutputFlags(cmd, &out)
	cmd.Flags().StringVar(&name, "name", "manual", "Dataset name used in reports and exports")
	cmd.Flags().StringVar(&demand, "demand", "", "Demand line as slope,intercept")
	cmd.Flags().StringVar(&supply, "supply", "", "Supply line as slope,intercept")
	_ = cmd.MarkFlagRequired("demand")
	_ = cmd.MarkFlagRequired("supply")
	return cmd
}

func (a *app) newHistoryCmd() *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "history",
		Short: "List calculations stored in PostgreSQL",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			pw, err := a.openPostgres(cmd.Context())
			if err != nil {
				return err
			}
			defer pw.Close()

			var reader storage.RunReader = pw
			runs, err := reader.FetchRecent(limit)
			if err != nil {
				return err
			}
			if len(runs) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No stored calculations")
				return nil
			}

			w := cmd.OutOrStdout()
			for _, run := range runs {
				fmt.Fprintln(w, formatRun(run))
			}
			return nil
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 20, "Number of runs to show")
	return cmd
}

// emit prints, exports, plots and persists bundles. Output problems are
// logged per bundle and returned together at the end.
func (a *app) emit(ctx context.Context, bundles []*models.ResultBundle, out outputFlags) error {
	var errs []error

	reporter := services.NewReporter(os.Stdout)
	for _, b := range bundles {
		reporter.Print(os.Stdout, b)
	}

	if !out.noExport && len(bundles) > 0 {
		if err := a.export(bundles, out); err != nil {
			a.logger.Error("Export failed: %v", err)
			errs = append(errs, err)
		}
	}

	svgPath := firstNonEmpty(out.svgPath, a.cfg.SVGOutputPath)
	pngPath := firstNonEmpty(out.pngPath, a.cfg.PNGOutputPath)
	if svgPath != "" || pngPath != "" {
		steps := out.steps
		if steps <= 0 {
			steps = a.cfg.PlotSteps
		}
		multi := len(bundles) > 1
		renderer := render.NewRenderer(a.cfg.ChromeBin, a.cfg.MaxRetries, a.logger)

		// Each PNG starts its own browser; space the launches out.
		rateLimitMs := 0
		if pngPath != "" {
			rateLimitMs = a.cfg.RenderRateLimitMs
		}
		pool := utils.NewWorkerPool(a.cfg.MaxConcurrency, rateLimitMs)

		var mu sync.Mutex
		for _, b := range bundles {
			if b.Demand == nil && b.Supply == nil {
				continue
			}
			b := b
			pool.Submit(func() {
				err := a.plot(ctx, renderer, b, steps, perDataset(svgPath, b.Dataset, multi), perDataset(pngPath, b.Dataset, multi))
				if err != nil {
					a.logger.Error("Plot for %s failed: %v", b.Dataset, err)
					mu.Lock()
					errs = append(errs, err)
					mu.Unlock()
				}
			})
		}
		pool.Wait()
	}

	if (out.persist || a.cfg.PostgresEnabled) && len(bundles) > 0 {
		if err := a.persist(ctx, bundles); err != nil {
			a.logger.Error("PostgreSQL write failed: %v", err)
			errs = append(errs, err)
		}
	}

	return errors.Join(errs...)
}

func (a *app) export(bundles []*models.ResultBundle, out outputFlags) error {
	path := firstNonEmpty(out.exportPath, a.cfg.ExportPath)
	format := strings.ToLower(firstNonEmpty(out.format, a.cfg.ExportFormat))

	w, err := storage.NewBundleWriter(format, path)
	if err != nil {
		return err
	}
	if err := w.Write(bundles); err != nil {
		_ = w.Close()
		return err
	}
	if err := w.Close(); err != nil {
		return err
	}

	a.logger.Info("Results exported to %s (%s)", path, format)
	return nil
}

func (a *app) plot(ctx context.Context, renderer *render.Renderer, b *models.ResultBundle, steps int, svgPath, pngPath string) error {
	series, err := services.PlotSeries(b, steps)
	if err != nil {
		return err
	}
	svg, err := render.SVG(b, series)
	if err != nil {
		return err
	}

	if svgPath != "" {
		if err := render.WriteSVG(svg, svgPath); err != nil {
			return err
		}
		a.logger.Info("Chart saved to %s", svgPath)
	}
	if pngPath != "" {
		return renderer.PNG(ctx, svg, pngPath)
	}
	return nil
}

func (a *app) persist(ctx context.Context, bundles []*models.ResultBundle) error {
	pw, err := a.openPostgres(ctx)
	if err != nil {
		return err
	}
	defer pw.Close()

	if err := pw.Write(bundles); err != nil {
		return err
	}
	a.logger.Info("Stored %d calculation(s) in PostgreSQL (table: calculations)", len(bundles))
	return nil
}

func (a *app) openPostgres(ctx context.Context) (*storage.PostgresWriter, error) {
	retry := &utils.RetryConfig{MaxAttempts: a.cfg.MaxRetries, BaseDelay: 2 * time.Second, Logger: a.logger}

	pw, err := storage.NewPostgresWriter(ctx, a.cfg.DSN(), retry)
	if err != nil {
		a.logger.Error("Make sure PostgreSQL is running and POSTGRES_* is set")
		return nil, err
	}
	return pw, nil
}

// parseLine reads "slope,intercept".
func parseLine(s string) (models.LineModel, error) {
	parts := strings.Split(s, ",")
	if len(parts) != 2 {
		return models.LineModel{}, fmt.Errorf("expected slope,intercept, got %q", s)
	}
	slope, err := strconv.ParseFloat(strings.TrimSpace(parts[0]), 64)
	if err != nil {
		return models.LineModel{}, fmt.Errorf("slope: %w", err)
	}
	intercept, err := strconv.ParseFloat(strings.TrimSpace(parts[1]), 64)
	if err != nil {
		return models.LineModel{}, fmt.Errorf("intercept: %w", err)
	}
	return models.LineModel{Slope: slope, Intercept: intercept}, nil
}

func datasetName(path string) string {
	return strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
}

// uniqueName records base in names, suffixing -2, -3, ... when it is taken,
// so a/data.csv and b/data.csv do not share exports or chart files.
func uniqueName(names *utils.StringSet, base string) string {
	name := base
	for i := 2; names.Contains(name); i++ {
		name = fmt.Sprintf("%s-%d", base, i)
	}
	names.Add(name)
	return name
}

// perDataset derives one output file per dataset when several are written.
func perDataset(path, dataset string, multi bool) string {
	if path == "" || !multi {
		return path
	}
	ext := filepath.Ext(path)
	return strings.TrimSuffix(path, ext) + "-" + dataset + ext
}

func failedCount(bundles []*models.ResultBundle) error {
	failed := 0
	for _, b := range bundles {
		if !b.OK() {
			failed++
		}
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d calculation(s) failed", failed, len(bundles))
	}
	return nil
}

func formatRun(run *models.StoredRun) string {
	b := run.Bundle
	head := fmt.Sprintf("%s  %s  %-20s", b.CalculatedAt.Local().Format("2006-01-02 15:04:05"), run.ID, b.Dataset)
	if b.Failure != nil {
		return head + "  FAILED " + b.Failure.Kind
	}
	if b.Equilibrium == nil || b.Surplus == nil {
		return head + "  incomplete"
	}
	s := fmt.Sprintf("%s  Q*=%.4f P*=%.4f CS=%.4f PS=%.4f", head,
		b.Equilibrium.Quantity, b.Equilibrium.Price, b.Surplus.Consumer, b.Surplus.Producer)
	if n := len(b.Warnings); n > 0 {
		s += fmt.Sprintf("  (%d warning(s))", n)
	}
	return s
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
