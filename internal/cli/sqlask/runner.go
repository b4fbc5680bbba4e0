package sqlask

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/spf13/cobra"

	"github.com/sqlask/sqlask/internal/config"
	"github.com/sqlask/sqlask/internal/db"
	"github.com/sqlask/sqlask/internal/llm"
	"github.com/sqlask/sqlask/internal/observability"
	"github.com/sqlask/sqlask/internal/prompt"
	"github.com/sqlask/sqlask/internal/query"
	"github.com/sqlask/sqlask/internal/render"
	"github.com/sqlask/sqlask/internal/schema"
)

type ClientFactory func(cfg config.AIConfig, logger *slog.Logger) (llm.Client, error)

type Options struct {
	Config    config.Config
	NewClient ClientFactory
	Stdin     io.Reader
	Stdout    io.Writer
	Stderr    io.Writer
}

// exitError carries the process exit status for a failed command. The message
// has already been printed when printed is true.
type exitError struct {
	code    int
	err     error
	printed bool
}

func (e *exitError) Error() string {
	if e.err == nil {
		return fmt.Sprintf("exit status %d", e.code)
	}
	return e.err.Error()
}

func (e *exitError) Unwrap() error { return e.err }

func fail(err error) error {
	return &exitError{code: 1, err: err}
}

type usageError struct{ msg string }

func (e usageError) Error() string { return e.msg }

type flagValues struct {
	dbDriver    string
	dsn         string
	promptPath  string
	model       string
	maxTokens   int
	temperature float64
	format      string
	metricsFile string
	question    string
	debug       bool
}

type app struct {
	opts   Options
	flags  flagValues
	cfg    config.Config
	logger *slog.Logger
	stdout io.Writer
	stderr io.Writer
}

func Run(ctx context.Context, args []string, defaults Options) int {
	stdout := defaults.Stdout
	if stdout == nil {
		stdout = io.Discard
	}
	stderr := defaults.Stderr
	if stderr == nil {
		stderr = io.Discard
	}
	stdin := defaults.Stdin
	if stdin == nil {
		stdin = strings.NewReader("")
	}
	if defaults.NewClient == nil {
		defaults.NewClient = llm.New
	}

	a := &app{opts: defaults, cfg: defaults.Config, stdout: stdout, stderr: stderr}
	root := a.rootCommand()
	root.SetArgs(args)
	root.SetIn(stdin)
	root.SetOut(stdout)
	root.SetErr(stderr)

	err := root.ExecuteContext(ctx)
	a.writeMetrics()
	if err == nil {
		return 0
	}

	var exitErr *exitError
	if errors.As(err, &exitErr) {
		if !exitErr.printed && exitErr.err != nil {
			_, _ = fmt.Fprintf(stderr, "Error: %v\n", exitErr.err)
		}
		return exitErr.code
	}
	_, _ = fmt.Fprintf(stderr, "Error: %v\n\n", err)
	_, _ = fmt.Fprint(stderr, root.UsageString())
	return 2
}

func (a *app) rootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:           "sqlask",
		Short:         "Ask a question about a database in plain language",
		Long:          "sqlask turns a natural-language question into SQL with a language model, runs it against a local database and prints the rows.",
		SilenceUsage:  true,
		SilenceErrors: true,
		Args:          noArgs,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.setup(cmd)
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.ask(cmd)
		},
	}
	root.SetFlagErrorFunc(func(_ *cobra.Command, err error) error {
		return usageError{msg: err.Error()}
	})

	persistent := root.PersistentFlags()
	persistent.StringVar(&a.flags.dbDriver, "db-driver", "", "database driver: sqlite, postgres or duckdb")
	persistent.StringVar(&a.flags.dsn, "db", "", "database file path or DSN")
	persistent.StringVar(&a.flags.promptPath, "prompt", "", "path to the prompt template (.json or .yaml)")
	persistent.StringVar(&a.flags.model, "model", "", "model name")
	persistent.IntVar(&a.flags.maxTokens, "max-tokens", 0, "maximum tokens to generate")
	persistent.Float64Var(&a.flags.temperature, "temperature", 0, "sampling temperature")
	persistent.StringVar(&a.flags.format, "format", "", "result format: tuple, table or json")
	persistent.StringVar(&a.flags.metricsFile, "metrics-file", "", "write Prometheus metrics to this file on exit")
	persistent.BoolVar(&a.flags.debug, "debug", false, "log diagnostics, including database errors, to stderr")

	root.Flags().StringVarP(&a.flags.question, "question", "q", "", "question to ask instead of reading it from stdin")

	root.AddCommand(a.schemaCommand(), a.execCommand(), a.promptCommand())
	return root
}

func (a *app) schemaCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "schema",
		Short: "Print the schema description sent to the model",
		Args:  noArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			introspector, err := a.introspector()
			if err != nil {
				return fail(err)
			}
			descriptor, err := introspector.Describe(cmd.Context())
			if err != nil {
				return fail(err)
			}
			_, _ = fmt.Fprint(a.stdout, descriptor.Render())
			return nil
		},
	}
}

func (a *app) execCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "exec <sql>",
		Short: "Run SQL directly and print the rows",
		Args: func(_ *cobra.Command, args []string) error {
			if len(args) == 0 {
				return usageError{msg: "exec requires a SQL statement"}
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.execute(cmd.Context(), strings.Join(args, " "))
		},
	}
}

func (a *app) promptCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "prompt",
		Short: "Print the formatted prompt without calling the model",
		Args:  noArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			question, err := a.readQuestion(cmd)
			if err != nil {
				return fail(err)
			}
			pair, err := a.buildPrompt(cmd.Context(), question)
			if err != nil {
				return fail(err)
			}
			if pair.System != nil {
				_, _ = fmt.Fprintf(a.stdout, "System:\n%s\n\n", *pair.System)
			}
			_, _ = fmt.Fprintf(a.stdout, "User:\n%s\n", pair.User)
			return nil
		},
	}
	cmd.Flags().StringVarP(&a.flags.question, "question", "q", "", "question to format instead of reading it from stdin")
	return cmd
}

func (a *app) setup(cmd *cobra.Command) error {
	cfg, err := a.flags.apply(cmd, a.cfg)
	if err != nil {
		return usageError{msg: err.Error()}
	}
	a.cfg = cfg
	a.logger = observability.NewLogger(cfg, a.stderr)

	runID := observability.NewRunID()
	cmd.SetContext(observability.ContextWithRunID(cmd.Context(), runID))
	a.logger = a.logger.With(slog.String("run_id", runID))
	return nil
}

// ask runs the full pipeline: question, prompt, completion, execution.
func (a *app) ask(cmd *cobra.Command) error {
	ctx := cmd.Context()
	question, err := a.readQuestion(cmd)
	if err != nil {
		return fail(err)
	}

	client, err := a.opts.NewClient(a.cfg.AI, a.logger)
	if err != nil {
		return fail(err)
	}

	pair, err := a.buildPrompt(ctx, question)
	if err != nil {
		return fail(err)
	}

	req := llm.NewGenerateRequest(pair.User, pair.System)
	req.MaxTokens = a.cfg.AI.MaxTokens
	req.Temperature = a.cfg.AI.Temperature
	text, err := client.GenerateResponse(ctx, req)
	if err != nil {
		return fail(fmt.Errorf("completion request: %w", err))
	}

	sqlText := llm.StripMarkdownSQL(text)
	if sqlText == "" {
		_, _ = fmt.Fprintln(a.stderr, "Error: No response from model.")
		return &exitError{code: 1, err: errors.New("empty completion"), printed: true}
	}
	a.logger.InfoContext(ctx, "sql generated", slog.String("model", a.cfg.AI.Model))

	_, _ = fmt.Fprintf(a.stdout, "\nRunning SQL:\n%s\n\n", sqlText)
	return a.execute(ctx, sqlText)
}

func (a *app) execute(ctx context.Context, sqlText string) error {
	runner, err := query.NewRunner(db.FromConfig(a.cfg.Database), a.cfg.Database.Driver, a.logger)
	if err != nil {
		return fail(err)
	}
	result, ok := runner.Run(ctx, sqlText)
	if !ok {
		_, _ = fmt.Fprintln(a.stderr, "Error executing SQL query.")
		return &exitError{code: 1, err: errors.New("query failed"), printed: true}
	}
	a.logger.InfoContext(ctx, "query executed",
		slog.Int("rows", len(result.Rows)),
		slog.String("duration", result.Duration.String()),
	)

	_, _ = fmt.Fprintln(a.stdout, "SQL Query Results:")
	if err := render.Write(a.stdout, a.cfg.Output.Format, result); err != nil {
		return fail(fmt.Errorf("write results: %w", err))
	}
	return nil
}

func (a *app) introspector() (*schema.Introspector, error) {
	return schema.NewIntrospector(db.FromConfig(a.cfg.Database), a.cfg.Database.Driver, a.logger)
}

func (a *app) buildPrompt(ctx context.Context, question string) (prompt.Pair, error) {
	introspector, err := a.introspector()
	if err != nil {
		return prompt.Pair{}, err
	}
	builder, err := prompt.NewBuilder(a.cfg.Prompt.Path, introspector)
	if err != nil {
		return prompt.Pair{}, err
	}
	return builder.Build(ctx, question)
}

func (a *app) readQuestion(cmd *cobra.Command) (string, error) {
	if question := strings.TrimSpace(a.flags.question); question != "" {
		return question, nil
	}
	_, _ = fmt.Fprint(a.stdout, "Enter your prompt: ")
	line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", fmt.Errorf("read question: %w", err)
	}
	question := strings.TrimSpace(line)
	if question == "" {
		return "", errors.New("a question is required")
	}
	return question, nil
}

func (a *app) writeMetrics() {
	path := a.cfg.Observability.MetricsFile
	if path == "" {
		return
	}
	if err := observability.WriteTextfile(path); err != nil && a.logger != nil {
		a.logger.Warn("failed to write metrics", slog.Any("error", err))
	}
}

func (f flagValues) apply(cmd *cobra.Command, cfg config.Config) (config.Config, error) {
	flags := cmd.Flags()
	if flags.Changed("db-driver") {
		cfg.Database.Driver = strings.TrimSpace(f.dbDriver)
	}
	if flags.Changed("db") {
		cfg.Database.DSN = strings.TrimSpace(f.dsn)
	}
	if flags.Changed("prompt") {
		cfg.Prompt.Path = strings.TrimSpace(f.promptPath)
	}
	if flags.Changed("model") {
		cfg.AI.Model = strings.TrimSpace(f.model)
	}
	if flags.Changed("max-tokens") {
		cfg.AI.MaxTokens = f.maxTokens
	}
	if flags.Changed("temperature") {
		cfg.AI.Temperature = f.temperature
	}
	if flags.Changed("format") {
		cfg.Output.Format = strings.TrimSpace(f.format)
	}
	if flags.Changed("metrics-file") {
		cfg.Observability.MetricsFile = strings.TrimSpace(f.metricsFile)
	}
	if f.debug {
		cfg.Observability.LogLevel = slog.LevelDebug
	}
	if err := cfg.Validate(); err != nil {
		return config.Config{}, err
	}
	return cfg, nil
}

func noArgs(cmd *cobra.Command, args []string) error {
	if len(args) > 0 {
		return usageError{msg: fmt.Sprintf("unknown command %q for %q", args[0], cmd.CommandPath())}
	}
	return nil
}
