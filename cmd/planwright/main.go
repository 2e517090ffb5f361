package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sort"
	"strings"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/zen-systems/planwright/pkg/adapter"
	"github.com/zen-systems/planwright/pkg/config"
	"github.com/zen-systems/planwright/pkg/pipeline"
	"github.com/zen-systems/planwright/pkg/report"
)

const previewLimit = 500

var (
	configFile string
	verbose    bool
	logger     = zap.NewNop()
	aliases    *config.ModelAliases
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "planwright",
		Short: "Four-agent product planning workflow",
		Long: `Planwright runs a fixed sequence of LLM agents (market research,
	opportunity analysis, product blueprint, strategic review) over a product
	topic and writes a transcript and an executive summary to disk.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			l, err := buildLogger(verbose)
			if err != nil {
				return fmt.Errorf("failed to build logger: %w", err)
			}
			logger = l
			return nil
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			_ = logger.Sync()
		},
	}

	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "path to config file (default ~/.planwright/config.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "development logging")

	rootCmd.AddCommand(runCmd())
	rootCmd.AddCommand(stagesCmd())
	rootCmd.AddCommand(validateCmd())
	rootCmd.AddCommand(configCmd())
	rootCmd.AddCommand(modelsCmd())

	return rootCmd
}

func buildLogger(verbose bool) (*zap.Logger, error) {
	if verbose {
		return zap.NewDevelopmentConfig().Build()
	}
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(zap.WarnLevel)
	return cfg.Build()
}

type runFlags struct {
	topic        string
	provider     string
	model        string
	outputDir    string
	contextMode  string
	contextLimit int
	profile      string
	stagesFile   string
	maxBudgetUSD float64
	echo         bool
	record       bool
}

func runCmd() *cobra.Command {
	var flags runFlags

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the product planning workflow",
		Long: `Runs research, analysis, blueprint and review in order. Each stage
	sees only the outputs of the stages it depends on. Files are written only
	after every stage has succeeded.

	Use --context truncated to embed at most --context-limit characters of
	each earlier output in later prompts.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			cfg, err := loadConfig()
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}
			applyRunFlags(cmd, cfg, flags)
			if err := prepareConfig(cfg); err != nil {
				return err
			}

			var opts []pipeline.Option
			if flags.stagesFile != "" {
				p, err := loadStages(flags.stagesFile)
				if err != nil {
					return err
				}
				opts = append(opts, pipeline.WithStages(p.Stages))
			}

			completer, err := createAdapter(ctx, cfg)
			if err != nil {
				return fmt.Errorf("failed to create adapter: %w", err)
			}

			out := cmd.ErrOrStderr()
			opts = append(opts,
				pipeline.WithLogger(logger),
				pipeline.WithStageHook(progressHook(out, flags.echo)))
			runner, err := pipeline.NewRunner(cfg, completer, opts...)
			if err != nil {
				return err
			}

			writer, err := report.NewWriter(cfg.OutputDir)
			if err != nil {
				return err
			}

			fmt.Fprintf(out, "Starting workflow: %s via %s/%s (%d stages, context %s)\n",
				cfg.Topic, completer.Name(), cfg.Model, len(runner.Stages()), pipeline.PolicyFromConfig(cfg.Context))

			outputs, runErr := runner.Run(ctx, cfg.Topic)
			if flags.record && outputs.Len() > 0 {
				if path, err := writer.WriteRecord(outputs, runner.Stages()); err != nil {
					logger.Warn("failed to write run record", zap.Error(err))
				} else {
					fmt.Fprintf(out, "Run record saved to: %s\n", path)
				}
			}
			if runErr != nil {
				return fmt.Errorf("workflow failed after %d of %d stages: %w", outputs.Len(), len(runner.Stages()), runErr)
			}

			fullPath, summaryPath, err := writer.Write(outputs, runner.Stages())
			if err != nil {
				return fmt.Errorf("failed to save outputs: %w", err)
			}

			fmt.Fprintln(out, strings.Repeat("=", 80))
			fmt.Fprintln(out, "WORKFLOW COMPLETED SUCCESSFULLY")
			fmt.Fprintln(out, strings.Repeat("=", 80))
			fmt.Fprintf(out, "Total tokens: %d\n", outputs.TotalUsage.TotalTokens)
			fmt.Fprintf(cmd.OutOrStdout(), "Full outputs saved to: %s\n", fullPath)
			fmt.Fprintf(cmd.OutOrStdout(), "Summary saved to: %s\n", summaryPath)
			return nil
		},
	}

	cmd.Flags().StringVarP(&flags.topic, "topic", "t", "", "product topic to plan")
	cmd.Flags().StringVarP(&flags.provider, "provider", "p", "", "completion provider ("+strings.Join(adapter.Names(), ", ")+")")
	cmd.Flags().StringVarP(&flags.model, "model", "m", "", "model name or alias")
	cmd.Flags().StringVarP(&flags.outputDir, "out", "o", "", "directory for transcript and summary")
	cmd.Flags().StringVar(&flags.contextMode, "context", "", "context policy for earlier outputs (full or truncated)")
	cmd.Flags().IntVar(&flags.contextLimit, "context-limit", 0, "characters kept per earlier output in truncated mode")
	cmd.Flags().StringVar(&flags.profile, "profile", "", "prompt profile ("+strings.Join(pipeline.Profiles(), " or ")+")")
	cmd.Flags().StringVar(&flags.stagesFile, "stages", "", "YAML pipeline manifest replacing the built-in stages")
	cmd.Flags().Float64Var(&flags.maxBudgetUSD, "max-budget-usd", 0, "stop before a call once estimated spend reaches this amount")
	cmd.Flags().BoolVar(&flags.echo, "echo", false, "print a preview of each stage output")
	cmd.Flags().BoolVar(&flags.record, "record", false, "also write a JSON run record")

	return cmd
}

func applyRunFlags(cmd *cobra.Command, cfg *config.Config, flags runFlags) {
	changed := cmd.Flags().Changed
	if changed("topic") {
		cfg.Topic = flags.topic
	}
	if changed("provider") {
		cfg.Provider = flags.provider
		if !changed("model") && cfg.Model == config.DefaultModel {
			cfg.Model = defaultModelFor(cfg.Provider)
		}
	}
	if changed("model") {
		cfg.Model = flags.model
	}
	if changed("out") {
		cfg.OutputDir = flags.outputDir
	}
	if changed("context") {
		cfg.Context.Mode = flags.contextMode
	}
	if changed("context-limit") {
		cfg.Context.Limit = flags.contextLimit
	}
	if changed("profile") {
		cfg.Profile = flags.profile
	}
	if changed("max-budget-usd") {
		cfg.MaxBudgetUSD = flags.maxBudgetUSD
	}
}

// defaultModelFor picks the first known model of a provider, so switching
// provider alone does not keep an OpenAI model name.
func defaultModelFor(provider string) string {
	if provider == "mock" {
		return "mock-1"
	}
	if models := aliasesOrDefault().GetProviderModels(provider); len(models) > 0 {
		return models[0]
	}
	return config.DefaultModel
}

func prepareConfig(cfg *config.Config) error {
	if err := aliasesOrDefault().ResolveConfig(cfg); err != nil {
		return err
	}
	if err := aliasesOrDefault().ValidateModel(cfg.Provider, cfg.Model); err != nil {
		logger.Warn("model not listed for provider", zap.String("provider", cfg.Provider), zap.String("model", cfg.Model), zap.Error(err))
	}
	return cfg.Validate()
}

func progressHook(out io.Writer, echo bool) func(*pipeline.StageResult) {
	return func(res *pipeline.StageResult) {
		fmt.Fprintf(out, "✓ Phase %d complete: %s (%d chars, %s)\n", res.Ordinal, res.Name, res.Artifact.Len(), res.Duration.Round(time.Millisecond))
		if echo {
			fmt.Fprintln(out, strings.Repeat("-", 80))
			fmt.Fprintln(out, preview(res.Text(), previewLimit))
			fmt.Fprintln(out, strings.Repeat("-", 80))
		}
	}
}

func preview(text string, limit int) string {
	runes := []rune(text)
	if len(runes) <= limit {
		return text
	}
	return string(runes[:limit]) + "..."
}

func stagesCmd() *cobra.Command {
	var profile string
	var stagesFile string

	cmd := &cobra.Command{
		Use:   "stages",
		Short: "List the workflow stages and their dependencies",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			var p *pipeline.Pipeline
			var err error
			if stagesFile != "" {
				p, err = loadStages(stagesFile)
			} else {
				p, err = pipeline.Default(profile)
			}
			if err != nil {
				return err
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "#\tSTAGE\tAGENT\tDEPENDS ON\tTITLE")
			for _, s := range p.Stages {
				fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\n", s.Ordinal, s.Name, s.Agent, formatList(s.DependsOn), s.Title)
			}
			return w.Flush()
		},
	}

	cmd.Flags().StringVar(&profile, "profile", pipeline.ProfileDetailed, "prompt profile ("+strings.Join(pipeline.Profiles(), " or ")+")")
	cmd.Flags().StringVar(&stagesFile, "stages", "", "YAML pipeline manifest to list instead")

	return cmd
}

func validateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate [pipeline.yaml]",
		Short: "Validate configuration or a pipeline manifest",
		Long: `Without arguments, checks that the configuration is complete, including
	a usable API key for the selected provider. With a manifest path, validates
	the pipeline YAML without executing it.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 1 {
				if _, err := loadStages(args[0]); err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), "Pipeline manifest is valid.")
				return nil
			}

			cfg, err := loadConfig()
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}
			if err := prepareConfig(cfg); err != nil {
				return err
			}
			if _, err := pipeline.DefaultStages(cfg.Profile); err != nil {
				return fmt.Errorf("%w: %v", config.ErrInvalidConfig, err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Configuration is valid.")
			return nil
		},
	}
}

func configCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "Print the effective configuration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}
			cfg.Model = aliasesOrDefault().Resolve(cfg.Model)
			fmt.Fprint(cmd.OutOrStdout(), cfg.Summary())
			return nil
		},
	}
}

func modelsCmd() *cobra.Command {
	var resolveFlag bool

	cmd := &cobra.Command{
		Use:   "models",
		Short: "List providers, models and aliases",
		Long: `Lists providers with their known models and whether a usable API key is set.

	Use --resolve to show aliases and what they resolve to.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}

			if resolveFlag {
				return showAliases(cmd.OutOrStdout())
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "PROVIDER\tMODELS\tSTATUS")

			providers := aliasesOrDefault().ListProviders()
			if len(providers) == 0 {
				providers = adapter.Names()
			}

			for _, provider := range providers {
				models := formatList(aliasesOrDefault().GetProviderModels(provider))
				status := "no key"
				if cfg.HasAdapter(provider) {
					status = "ready"
				}
				fmt.Fprintf(w, "%s\t%s\t%s\n", provider, models, status)
			}

			return w.Flush()
		},
	}

	cmd.Flags().BoolVar(&resolveFlag, "resolve", false, "show aliases and what they resolve to")

	return cmd
}

func showAliases(out io.Writer) error {
	all := aliasesOrDefault().ListAliases()
	names := make([]string, 0, len(all))
	for name := range all {
		names = append(names, name)
	}
	sort.Strings(names)

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ALIAS\tMODEL\tPROVIDER")
	for _, name := range names {
		model := all[name]
		fmt.Fprintf(w, "%s\t%s\t%s\n", name, model, aliasesOrDefault().GetProviderForModel(model))
	}
	return w.Flush()
}

func formatList(items []string) string {
	if len(items) == 0 {
		return "-"
	}
	return strings.Join(items, ", ")
}

func loadConfig() (*config.Config, error) {
	var cfg *config.Config
	var err error

	if configFile != "" {
		cfg, err = config.LoadFile(configFile)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return nil, err
	}

	aliases, err = config.LoadAliasesWithFallback(cfg.ConfigDir)
	if err != nil {
		logger.Warn("failed to load model aliases, using built-in set", zap.Error(err))
		aliases = config.DefaultAliases()
	}
	if cfg.Verbose {
		logger.Debug("configuration loaded", zap.String("provider", cfg.Provider), zap.String("model", cfg.Model))
	}

	return cfg, nil
}

func aliasesOrDefault() *config.ModelAliases {
	if aliases == nil {
		aliases = config.DefaultAliases()
	}
	return aliases
}

func loadStages(path string) (*pipeline.Pipeline, error) {
	p, err := pipeline.LoadManifest(path)
	if err != nil {
		return nil, err
	}
	if err := p.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", config.ErrInvalidConfig, path, err)
	}
	return p, nil
}

func createAdapter(ctx context.Context, cfg *config.Config) (adapter.Adapter, error) {
	switch cfg.Provider {
	case "openai":
		return adapter.NewOpenAIAdapter(cfg.OpenAIAPIKey, cfg.BaseURLFor(cfg.Provider))
	case "anthropic":
		return adapter.NewAnthropicAdapter(cfg.AnthropicAPIKey)
	case "google":
		return adapter.NewGoogleAdapter(ctx, cfg.GoogleAPIKey)
	case "deepseek":
		return adapter.NewDeepSeekAdapter(cfg.DeepSeekAPIKey, cfg.BaseURLFor(cfg.Provider), nil)
	case "mock":
		return adapter.NewMockAdapter(), nil
	default:
		return nil, fmt.Errorf("%w: unknown provider %q", config.ErrInvalidConfig, cfg.Provider)
	}
}
