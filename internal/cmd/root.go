package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/tomasbasham/cli-runtime/iooption"
	"github.com/tomasbasham/cli-runtime/templates"

	"resumeboost/internal/config"
	"resumeboost/internal/logger"
)

const app = "resumeboost"

var (
	rootLong = templates.LongDesc(`
		Analyze a PDF resume against a job posting.

		The analyze command runs one analysis from the terminal. The serve,
		extractor and scraper commands run the HTTP API and the bundled
		remote functions.`)

	// Injected at build time using ldflags.
	version = ""
	commit  = ""
)

// RootOptions holds the global flags and the state built from them.
type RootOptions struct {
	ConfigFile string
	Debug      bool
	JSON       bool

	iooption.IOStreams
}

// NewRootOptions provides an initialised RootOptions instance.
func NewRootOptions(streams iooption.IOStreams) *RootOptions {
	return &RootOptions{IOStreams: streams}
}

// Load reads the configuration and builds the logger. Flags win over the file.
func (o *RootOptions) Load() (*config.AppConfig, *zap.Logger, error) {
	cfg, err := config.Load(o.ConfigFile)
	if err != nil {
		return nil, nil, err
	}
	log, err := logger.New(o.JSON || cfg.Log.JSON, o.Debug || cfg.Log.Debug)
	if err != nil {
		return nil, nil, fmt.Errorf("creating a logger: %w", err)
	}
	return cfg, log, nil
}

// NewRootCommand creates the `resumeboost` command with default arguments.
func NewRootCommand() *cobra.Command {
	return NewRootCommandWithArgs(NewRootOptions(iooption.IOStreams{
		In:     os.Stdin,
		Out:    os.Stdout,
		ErrOut: os.Stderr,
	}))
}

// NewRootCommandWithArgs creates the `resumeboost` command and its nested children.
func NewRootCommandWithArgs(o *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:           app + " [command]",
		Version:       versionInfo(),
		Short:         "Resume analysis against job postings",
		Long:          rootLong,
		SilenceErrors: true,
		SilenceUsage:  true,
	}
	cmd.SetIn(o.In)
	cmd.SetOut(o.Out)
	cmd.SetErr(o.ErrOut)

	pflags := cmd.PersistentFlags()
	pflags.StringVar(&o.ConfigFile, "config", "", "a config file (yaml, toml or json)")
	pflags.BoolVarP(&o.Debug, "debug", "d", false, "verbose/debug output")
	pflags.BoolVarP(&o.JSON, "json", "j", false, "json format for logging")

	cmd.AddCommand(NewAnalyzeCommand(NewAnalyzeOptions(o)))
	cmd.AddCommand(NewServeCommand(NewServeOptions(o)))
	cmd.AddCommand(NewExtractorCommand(NewFunctionOptions(o)))
	cmd.AddCommand(NewScraperCommand(NewFunctionOptions(o)))
	cmd.AddCommand(NewVersionCommand(o))

	return cmd
}

func versionInfo() string {
	if version == "" {
		return "unknown"
	}
	if commit == "" {
		return version
	}
	return fmt.Sprintf("%s (%s)", version, commit)
}

// NewVersionCommand prints the build version.
func NewVersionCommand(o *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Run: func(_ *cobra.Command, _ []string) {
			fmt.Fprintf(o.Out, "%s version: %s\n", app, versionInfo())
		},
	}
}
