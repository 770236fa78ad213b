package cli

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ppiankov/lossledger/internal/assets"
	"github.com/ppiankov/lossledger/internal/model"
	"github.com/ppiankov/lossledger/internal/pipeline"
	"github.com/ppiankov/lossledger/internal/worker"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"go.uber.org/zap"
)

// outputFlags are shared by run and parse
type outputFlags struct {
	format  string
	output  string
	report  string
	asOf    string
	summary bool
	workers int
	timeout time.Duration
}

func (o *outputFlags) register(fs *pflag.FlagSet) {
	fs.StringVarP(&o.format, "format", "f", "", "output format: json or csv (default from config)")
	fs.StringVarP(&o.output, "output", "o", "", "output path, - for stdout (default from config)")
	fs.StringVar(&o.report, "report", "", "write the warning report to this path")
	fs.StringVar(&o.asOf, "as-of", "", "as-of date stamped on every record, YYYY-MM-DD (default today)")
	fs.BoolVar(&o.summary, "summary", false, "print a run summary to stderr")
	fs.IntVar(&o.workers, "workers", 0, "pages processed concurrently (default from config)")
	fs.DurationVar(&o.timeout, "timeout", 30*time.Minute, "overall run timeout")
}

// apply overrides the loaded config with flags that were set
func (o *outputFlags) apply(c *model.Config) {
	if o.format != "" {
		c.Output.Format = o.format
	}
	if o.output != "" {
		c.Output.Path = o.output
	}
	if o.report != "" {
		c.Output.Report = o.report
	}
	if o.workers > 0 {
		c.Concurrency.Workers = o.workers
	}
}

// asOfDate parses --as-of, defaulting to the current UTC date
func (o *outputFlags) asOfDate(now time.Time) (time.Time, error) {
	if o.asOf == "" {
		y, m, d := now.UTC().Date()
		return time.Date(y, m, d, 0, 0, 0, 0, time.UTC), nil
	}
	t, err := time.Parse(time.DateOnly, o.asOf)
	if err != nil {
		return time.Time{}, eris.Wrapf(err, "bad --as-of %q", o.asOf)
	}
	return t, nil
}

var (
	runFlags  outputFlags
	pagesFile string
	noCache   bool
	noRobots  bool
)

// runCmd represents the run command
var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Fetch the report pages and build the dataset",
	Long: `Run fetches every configured report page, extracts the documented
losses, normalizes them and writes the dataset.

Pages come from the config file, or from --pages, one page per line:

  <url> [<country> <section index>]

Lines without a country are split on their country headings.

Example:
  lossledger run
  lossledger run --format csv --output losses.csv --summary
  lossledger run --pages pages.txt --as-of 2024-03-01`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		runFlags.apply(cfg)
		if noCache {
			cfg.Cache.Enabled = false
		}
		if noRobots {
			cfg.HTTP.RespectRobots = false
		}

		pages := cfg.Pages
		if pagesFile != "" {
			var err error
			if pages, err = worker.ReadPagesFromFile(pagesFile); err != nil {
				return err
			}
		}
		if len(pages) == 0 {
			return eris.New("no pages configured")
		}

		return execute(cmd, &runFlags, pages, func(p *pipeline.Pipeline) worker.PageSource {
			return p.Web()
		})
	},
}

var (
	parseFlags   outputFlags
	parseCountry string
	parseSection int
)

// parseCmd represents the parse command
var parseCmd = &cobra.Command{
	Use:   "parse <file>...",
	Short: "Build the dataset from saved report pages",
	Long: `Parse reads report pages saved to disk instead of fetching them.

Without --country every file is treated as a combined page and split on its
country headings.

Example:
  lossledger parse naval.html aircraft.html
  lossledger parse russia.html --country Russia --section 7 --format csv`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		parseFlags.apply(cfg)

		pages := make([]model.PageConfig, len(args))
		for i, path := range args {
			pages[i] = model.PageConfig{URL: path, Country: parseCountry, SectionIndex: parseSection}
		}

		return execute(cmd, &parseFlags, pages, func(p *pipeline.Pipeline) worker.PageSource {
			return p.Files()
		})
	},
}

func init() {
	runFlags.register(runCmd.Flags())
	runCmd.Flags().StringVar(&pagesFile, "pages", "", "page list file, replaces the configured pages")
	runCmd.Flags().BoolVar(&noCache, "no-cache", false, "disable the page cache (force fresh fetch)")
	runCmd.Flags().BoolVar(&noRobots, "ignore-robots", false, "do not consult robots.txt")

	parseFlags.register(parseCmd.Flags())
	parseCmd.Flags().StringVar(&parseCountry, "country", "", "country of every file (default: split combined pages)")
	parseCmd.Flags().IntVar(&parseSection, "section", 0, "index of the data section, with --country")

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(parseCmd)
}

// execute builds the pipeline, runs it over pages and writes the outputs
func execute(cmd *cobra.Command, flags *outputFlags, pages []model.PageConfig, source func(*pipeline.Pipeline) worker.PageSource) error {
	asOf, err := flags.asOfDate(time.Now())
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithTimeout(ctx, flags.timeout)
	defer cancel()

	tables, err := assets.Load(ctx, cfg.Assets, logger)
	if err != nil {
		return err
	}

	p, err := pipeline.NewPipeline(cfg, tables, logger)
	if err != nil {
		return err
	}

	dataset, err := p.Run(ctx, source(p), pages, asOf)
	if err != nil {
		return eris.Wrap(err, "run failed")
	}

	renderer := pipeline.NewRenderer()
	if err := renderer.RenderFile(dataset, cfg.Output.Format, cfg.Output.Path); err != nil {
		return err
	}
	if cfg.Output.Report != "" {
		if err := renderer.RenderReportFile(dataset.Report, cfg.Output.Report); err != nil {
			return err
		}
	}
	if flags.summary {
		renderer.RenderSummary(cmd.ErrOrStderr(), dataset)
	}

	logger.Info("dataset written",
		zap.String("path", cfg.Output.Path),
		zap.String("format", cfg.Output.Format),
		zap.Int("records", len(dataset.Records)))
	return nil
}
