package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/manifoldco/promptui"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/tomasbasham/cli-runtime/templates"

	"resumeboost/internal/bootstrap"
	"resumeboost/internal/model"
	"resumeboost/internal/orchestrator"
)

var (
	analyzeLong = templates.LongDesc(`
		Upload a PDF resume, extract its text and scrape the job posting in
		parallel, then print the analysis. When --mode is omitted the analysis
		type is chosen interactively.`)

	analyzeExample = templates.Examples(`
		# Quick scan against a posting
		resumeboost analyze --resume cv.pdf --job-url https://jobs.example.com/42 --mode quick

		# Choose the analysis type from a menu
		resumeboost analyze --resume cv.pdf --job-url https://jobs.example.com/42`)
)

// AnalyzeOptions defines the options for the `analyze` command.
type AnalyzeOptions struct {
	root *RootOptions

	ResumePath string
	JobURL     string
	ModeName   string

	resume     []byte
	mode       model.AnalysisMode
	selectMode func() (model.AnalysisMode, error)
	runner     func(ctx context.Context, in orchestrator.Input) (*orchestrator.Output, error)
}

func NewAnalyzeOptions(root *RootOptions) *AnalyzeOptions {
	return &AnalyzeOptions{root: root, selectMode: promptMode}
}

func NewAnalyzeCommand(o *AnalyzeOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "analyze",
		Short:   "Analyze a resume against a job posting",
		Long:    analyzeLong,
		Example: analyzeExample,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := o.Complete(cmd, args); err != nil {
				return err
			}
			if err := o.Validate(); err != nil {
				return err
			}
			return o.Run()
		},
	}

	cmd.Flags().StringVarP(&o.ResumePath, "resume", "r", "", "path to the PDF resume")
	cmd.Flags().StringVarP(&o.JobURL, "job-url", "u", "", "job posting URL")
	cmd.Flags().StringVarP(&o.ModeName, "mode", "m", "", "analysis type: quick, detailed or ats")

	return cmd
}

func promptMode() (model.AnalysisMode, error) {
	prompt := promptui.Select{
		Label: "Analysis type",
		Items: model.AnalysisModes,
	}
	i, _, err := prompt.Run()
	if err != nil {
		return "", err
	}
	return model.AnalysisModes[i], nil
}

func (o *AnalyzeOptions) Complete(_ *cobra.Command, _ []string) error {
	if o.ResumePath == "" {
		return errors.New("--resume is required")
	}
	data, err := os.ReadFile(o.ResumePath)
	if err != nil {
		return fmt.Errorf("read resume: %w", err)
	}
	o.resume = data

	if o.ModeName == "" {
		mode, err := o.selectMode()
		if err != nil {
			return fmt.Errorf("choose analysis type: %w", err)
		}
		o.mode = mode
		return nil
	}
	mode, err := model.ParseAnalysisMode(o.ModeName)
	if err != nil {
		return fmt.Errorf("--mode %q: %w", o.ModeName, err)
	}
	o.mode = mode
	return nil
}

func (o *AnalyzeOptions) Validate() error {
	if o.JobURL == "" {
		return errors.New("--job-url is required")
	}
	return nil
}

func (o *AnalyzeOptions) Run() error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	runner := o.runner
	if runner == nil {
		cfg, log, err := o.root.Load()
		if err != nil {
			return err
		}
		defer func() { _ = log.Sync() }()

		pipeline, err := bootstrap.NewPipeline(ctx, cfg, nil, log)
		if err != nil {
			log.Error("initializing pipeline", zap.Error(err))
			return err
		}
		runner = pipeline.Orchestrator.AnalyzeResume
	}

	fmt.Fprintf(o.root.ErrOut, "Analyzing %s against %s (%s)...\n", filepath.Base(o.ResumePath), o.JobURL, o.mode)
	out, err := runner(ctx, orchestrator.Input{
		Resume:   o.resume,
		Filename: filepath.Base(o.ResumePath),
		JobURL:   o.JobURL,
		Mode:     o.mode,
	})
	if err != nil {
		return fmt.Errorf("%s: %w", orchestrator.KindOf(err).Code(), err)
	}

	fmt.Fprintln(o.root.Out, out.Analysis.String())
	return nil
}
