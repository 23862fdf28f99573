package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"runtime"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/ajitpratap0/nebula-convert/internal/pipeline"
	"github.com/ajitpratap0/nebula-convert/internal/server"
	"github.com/ajitpratap0/nebula-convert/pkg/archive"
	"github.com/ajitpratap0/nebula-convert/pkg/config"
	"github.com/ajitpratap0/nebula-convert/pkg/convert"
	"github.com/ajitpratap0/nebula-convert/pkg/logger"
	"github.com/ajitpratap0/nebula-convert/pkg/observability"
)

// app carries state shared by the subcommands
type app struct {
	stdout, stderr io.Writer

	viper      *viper.Viper
	configFile string
	cpuProfile string
	memProfile string

	config   *config.Config
	logger   *zap.Logger
	profiler *profiler
}

// run executes the command line and always releases what setup acquired,
// even when the command fails
func run(args []string, stdout, stderr io.Writer) error {
	a := &app{stdout: stdout, stderr: stderr, viper: config.NewViper()}
	root := a.rootCmd()
	root.SetArgs(args)
	err := root.Execute()
	a.teardown()
	return err
}

func (a *app) rootCmd() *cobra.Command {

	root := &cobra.Command{
		Use:   "nebula-convert",
		Short: "Convert between CSV, JSON and YAML",
		Long: `nebula-convert reads a CSV, JSON or YAML document, converts it into the
other two encodings and bundles both artifacts into converted_files.zip.

Configuration is read from --config, then NEBULA_CONVERT_* environment
variables, then flags.`,
		SilenceUsage:      true,
		SilenceErrors:     true,
		PersistentPreRunE: a.setup,
	}
	root.SetOut(a.stdout)
	root.SetErr(a.stderr)

	pf := root.PersistentFlags()
	pf.StringVar(&a.configFile, "config", "", "Path to a YAML, JSON or TOML configuration file")
	pf.String("log-level", "info", "Log level (debug, info, warn, error)")
	pf.StringVar(&a.cpuProfile, "cpuprofile", "", "Write a CPU profile to file")
	pf.StringVar(&a.memProfile, "memprofile", "", "Write a heap profile to file on exit")
	_ = a.viper.BindPFlag("logging.level", pf.Lookup("log-level"))

	root.AddCommand(
		a.convertCmd(),
		a.serveCmd(),
		a.formatsCmd(),
		a.versionCmd(),
	)
	return root
}

func (a *app) setup(cmd *cobra.Command, _ []string) error {
	cfg, err := config.LoadViper(a.viper, a.configFile)
	if err != nil {
		return err
	}
	a.config = cfg

	if err := logger.Init(cfg.Logging); err != nil {
		return err
	}
	a.logger = logger.Component("cli").With(zap.String("command", cmd.Name()))

	if err := observability.Init(cfg.Observability.Tracing); err != nil {
		return err
	}

	a.profiler, err = startProfiler(a.cpuProfile, a.memProfile)
	return err
}

func (a *app) teardown() {
	if err := a.profiler.Stop(); err != nil {
		fmt.Fprintf(a.stderr, "warning: failed to write profile: %v\n", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := observability.Shutdown(ctx); err != nil {
		fmt.Fprintf(a.stderr, "warning: failed to flush traces: %v\n", err)
	}
	_ = logger.Sync()
}

func (a *app) convertCmd() *cobra.Command {
	var (
		out     string
		format  string
		workDir string
		timeout time.Duration
	)

	cmd := &cobra.Command{
		Use:   "convert <file|url>",
		Short: "Convert a document and write the archive",
		Long: `Convert a local file or an http(s) URL. The archive is written to --out,
which may be a path, a directory ending in /, s3://bucket/key or
gs://bucket/key. Without --out the configured output.destination is used,
and without that the archive lands in the current directory.

Example:
  nebula-convert convert people.csv --format tar.zst --out exports/`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer cancel()
			if timeout > 0 {
				var cancelTimeout context.CancelFunc
				ctx, cancelTimeout = context.WithTimeout(ctx, timeout)
				defer cancelTimeout()
			}

			req := pipeline.Request{Location: args[0], WorkDir: workDir}
			if format != "" {
				f, err := archive.ParseFormat(format)
				if err != nil {
					return err
				}
				req.Format = f
			}
			req.Destination = out
			if req.Destination == "" && a.config.Output.Destination == "" {
				req.Destination = "." + string(os.PathSeparator)
			}

			p, err := pipeline.New(a.config, a.logger)
			if err != nil {
				return err
			}
			report, err := p.Run(ctx, req)
			if err != nil {
				return err
			}
			a.printReport(report)
			return nil
		},
	}

	cmd.Flags().StringVarP(&out, "out", "o", "", "Archive destination: path, directory/, s3://bucket/key or gs://bucket/key")
	cmd.Flags().StringVarP(&format, "format", "f", "", "Archive format (zip, tar.gz, tar.zst, tar.lz4, tar.s2)")
	cmd.Flags().StringVar(&workDir, "work-dir", "", "Working directory to keep; a temporary one is used by default")
	cmd.Flags().DurationVar(&timeout, "timeout", 0, "Overall conversion timeout (0 disables)")
	return cmd
}

func (a *app) printReport(r *pipeline.Report) {
	fmt.Fprintf(a.stdout, "source:    %s (%s)\n", r.Source, r.Encoding)
	if len(r.Artifacts) == 0 {
		fmt.Fprintln(a.stdout, "artifacts: none")
	} else {
		fmt.Fprintf(a.stdout, "artifacts: %s\n", strings.Join(r.Artifacts, ", "))
	}
	fmt.Fprintf(a.stdout, "archive:   %s (%d bytes)\n", r.DeliveredTo, len(r.Archive))
	if r.Warning != nil {
		fmt.Fprintf(a.stderr, "warning: %v\n", r.Warning)
	}
}

func (a *app) serveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve conversions over HTTP",
		Long: `Serve POST /convert, GET /healthz and GET /metrics.

Example:
  curl -F file=@people.csv -o converted_files.zip localhost:8080/convert`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if addr, _ := cmd.Flags().GetString("addr"); cmd.Flags().Changed("addr") {
				a.config.Server.Addr = addr
			}

			p, err := pipeline.New(a.config, a.logger)
			if err != nil {
				return err
			}

			ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer cancel()
			a.logger.Info("starting server", zap.String("addr", a.config.Server.Addr))
			return server.New(a.config, p, a.logger).ListenAndServe(ctx)
		},
	}
	cmd.Flags().String("addr", ":8080", "Listen address")
	return cmd
}

func (a *app) formatsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "formats",
		Short: "List source encodings and archive formats",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintln(a.stdout, "Encodings:")
			for _, e := range convert.All {
				targets := make([]string, 0, 2)
				for _, t := range e.Targets() {
					targets = append(targets, t.ArtifactName())
				}
				fmt.Fprintf(a.stdout, "  - %-12s .%-4s -> %s\n", e, e.Extension(), strings.Join(targets, ", "))
			}
			fmt.Fprintln(a.stdout, "\nArchive formats:")
			for _, f := range archive.Formats {
				fmt.Fprintf(a.stdout, "  - %s\n", f)
			}
		},
	}
}

func (a *app) versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(a.stdout, "nebula-convert v%s\n", version)
			fmt.Fprintf(a.stdout, "Go version: %s\n", runtime.Version())
			fmt.Fprintf(a.stdout, "OS/Arch: %s/%s\n", runtime.GOOS, runtime.GOARCH)
		},
	}
}
