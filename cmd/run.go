package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/KaramelBytes/insightloom/internal/ai"
	cfgpkg "github.com/KaramelBytes/insightloom/internal/config"
	"github.com/KaramelBytes/insightloom/internal/dataset"
	"github.com/KaramelBytes/insightloom/internal/insights"
	"github.com/KaramelBytes/insightloom/internal/telemetry"
	"github.com/KaramelBytes/insightloom/internal/utils"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	runDescription     string
	runDescriptionFile string
	runOutputPath      string
	runSeed            int64
	runRowCap          int
	runConcurrency     int
	runTrace           bool
	runMetricsFile     string
	runTimeoutSec      int
)

// invokerFactory builds the inference stack for a run. The returned
// RuntimeInvoker, when non-nil, reports token usage.
var invokerFactory = func(c *cfgpkg.Global, obs ai.CallObserver, l *zap.Logger) (ai.Invoker, *ai.RuntimeInvoker, error) {
	rt, ok := ai.GetRuntime(c.Provider, c.RuntimeConfig())
	if !ok {
		return nil, nil, fmt.Errorf("unknown provider: %s", c.Provider)
	}
	if c.Provider != ai.ProviderOllama && c.ResolveAPIKey() == "" {
		return nil, nil, fmt.Errorf("no API key for %s: set api_key or the provider's API key variable", c.Provider)
	}
	base := ai.NewRuntimeInvoker(rt, c.Model, c.Temperature)
	opts := c.RetryOptions()
	opts.Observer = obs
	return ai.NewRetrying(base, opts, l), base, nil
}

var runCmd = &cobra.Command{
	Use:   "run <rows.json|->",
	Short: "Generate trends, anomalies and predictions for a dataset",
	Long: `Reads a JSON array of row objects (or one object of aggregate metrics) and prints the
insights as JSON. Use "-" to read from stdin.`,
	Example: `  insightloom run sales.json --description "Q3 order export"
  insightloom run rows.json --description-file notes.md --seed 7 --output insights.json
  cat metrics.json | insightloom run - --provider ollama --model llama3.1:8b`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := requireConfig()
		if err != nil {
			return err
		}
		runCfg := *c
		f := cmd.Flags()
		if f.Changed("seed") {
			runCfg.SampleSeed = runSeed
		}
		if f.Changed("row-cap") && runRowCap > 0 {
			runCfg.RowCap = runRowCap
		}
		if f.Changed("concurrency") && runConcurrency > 0 {
			runCfg.ChunkConcurrency = runConcurrency
		}
		if err := runCfg.Validate(); err != nil {
			return fmt.Errorf("invalid configuration: %w", err)
		}

		ds, err := readDataset(cmd.InOrStdin(), args[0])
		if err != nil {
			return err
		}
		desc, err := readDescription()
		if err != nil {
			return err
		}

		metrics := telemetry.NewMetrics()
		opts := []insights.Option{insights.WithMetrics(metrics)}
		if runTrace {
			tp, err := telemetry.NewTracerProvider(telemetry.TracingConfig{Writer: cmd.ErrOrStderr(), PrettyPrint: true, SamplingRate: 1})
			if err != nil {
				return err
			}
			defer func() {
				ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				_ = telemetry.Shutdown(ctx, tp)
			}()
			opts = append(opts, insights.WithTracer(tp.Tracer(telemetry.TracerName)))
		}

		inv, usage, err := invokerFactory(&runCfg, metrics, logger)
		if err != nil {
			return err
		}

		ctx := cmd.Context()
		if ctx == nil {
			ctx = context.Background()
		}
		if runTimeoutSec > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, time.Duration(runTimeoutSec)*time.Second)
			defer cancel()
		}

		p := insights.NewPipeline(inv, runCfg.PipelineConfig(), logger, opts...)
		res := p.Generate(ctx, ds, desc)

		b, err := utils.PrettyJSON(res)
		if err != nil {
			return err
		}
		if runOutputPath != "" {
			if err := utils.SafeWriteFile(runOutputPath, append(b, '\n')); err != nil {
				return fmt.Errorf("write output: %w", err)
			}
			fmt.Fprintf(cmd.ErrOrStderr(), "✓ Insights written to %s\n", runOutputPath)
		} else {
			fmt.Fprintln(cmd.OutOrStdout(), string(b))
		}

		if usage != nil {
			printUsage(cmd.ErrOrStderr(), runCfg.Model, usage.Usage())
		}
		if res.Degraded() {
			fmt.Fprintln(cmd.ErrOrStderr(), "⚠ Some insights could not be generated; see logs for details")
		}
		if runMetricsFile != "" {
			if err := metrics.WriteTextfile(runMetricsFile); err != nil {
				return fmt.Errorf("write metrics: %w", err)
			}
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(runCmd)
	runCmd.Flags().StringVar(&runDescription, "description", "", "free-text description of the dataset")
	runCmd.Flags().StringVar(&runDescriptionFile, "description-file", "", "read the description from a file")
	runCmd.Flags().StringVarP(&runOutputPath, "output", "o", "", "write the insights JSON to a file instead of stdout")
	runCmd.Flags().Int64Var(&runSeed, "seed", 0, "seed for reproducible row sampling (overrides config)")
	runCmd.Flags().IntVar(&runRowCap, "row-cap", 0, "maximum rows sent to the model (overrides config)")
	runCmd.Flags().IntVar(&runConcurrency, "concurrency", 0, "parallel chunk calls per stage (overrides config)")
	runCmd.Flags().BoolVar(&runTrace, "trace", false, "print OpenTelemetry spans to stderr")
	runCmd.Flags().StringVar(&runMetricsFile, "metrics-file", "", "write Prometheus metrics in text format to this file")
	runCmd.Flags().IntVar(&runTimeoutSec, "timeout", 0, "overall deadline for the run in seconds (0 = none)")
	runCmd.MarkFlagsMutuallyExclusive("description", "description-file")
}

func readDataset(stdin io.Reader, path string) (*dataset.Dataset, error) {
	var r io.Reader = stdin
	if path != "-" {
		fh, err := os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("open dataset: %w", err)
		}
		defer fh.Close()
		r = fh
	}
	ds, err := dataset.ReadJSON(r)
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", path, err)
	}
	return ds, nil
}

func readDescription() (string, error) {
	if runDescriptionFile == "" {
		return strings.TrimSpace(runDescription), nil
	}
	b, err := os.ReadFile(runDescriptionFile)
	if err != nil {
		return "", fmt.Errorf("read description: %w", err)
	}
	return strings.TrimSpace(string(b)), nil
}

func printUsage(w io.Writer, model string, u ai.Usage) {
	fmt.Fprintf(w, "Tokens: prompt=%d completion=%d total=%d\n", u.PromptTokens, u.CompletionTokens, u.TotalTokens)
	if cost, ok := ai.EstimateCostUSD(model, u.PromptTokens, u.CompletionTokens); ok {
		fmt.Fprintf(w, "Estimated cost: $%.4f\n", cost)
	}
}
