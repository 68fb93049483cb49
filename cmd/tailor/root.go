package main

import (
	"context"
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"resume-agent/internal/bootstrap"
	"resume-agent/internal/extract"
	"resume-agent/internal/resume"
	"resume-agent/internal/shared/config"
	"resume-agent/internal/shared/storage/object/local"
	"resume-agent/internal/shared/telemetry"
)

//nolint:gochecknoglobals // Cobra boilerplate
var (
	verbose    bool
	configFile string
	resumePath string
	jobPath    string
	outDir     string
)

//nolint:gochecknoglobals // Cobra boilerplate
var rootCmd = &cobra.Command{
	Use:   "tailor",
	Short: "Tailor a resume to a job description with an LLM",
	Long: `tailor parses a resume into structured data, lets you discuss it with the
model, and regenerates a LaTeX resume targeted at a job description.

The model never adds experience, skills or credentials that are not in the
parsed resume or the conversation.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if configFile != "" {
			if err := os.Setenv("CONFIG_FILE", configFile); err != nil {
				return errors.Wrap(err, "set CONFIG_FILE")
			}
		}
		return nil
	},
}

//nolint:gochecknoinits // Cobra boilerplate
func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Verbose logging")
	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "YAML or .env config file (default: environment and ./.env)")
	rootCmd.PersistentFlags().StringVar(&resumePath, "resume", "", "Resume document (.pdf, .docx, .txt, .md)")
	rootCmd.PersistentFlags().StringVar(&jobPath, "job", "", "Job description text file")
	rootCmd.PersistentFlags().StringVar(&outDir, "out-dir", ".", "Directory for generated .tex files")
}

// startSession loads configuration, parses the resume and sets the job description.
func startSession(ctx context.Context) (*resume.Session, error) {
	if resumePath == "" || jobPath == "" {
		return nil, errors.New("--resume and --job are required")
	}

	cfg, err := config.Load()
	if err != nil {
		return nil, errors.Wrap(err, "load config")
	}
	if verbose {
		cfg.LogLevel = "debug"
	}
	telemetry.SetLevel(cfg.LogLevel)

	gateway, err := bootstrap.NewGateway(cfg)
	if err != nil {
		return nil, errors.Wrap(err, "configure model gateway")
	}
	session := bootstrap.NewSessionFactory(gateway, bootstrap.NewPrompts(cfg))()

	raw, err := os.ReadFile(resumePath)
	if err != nil {
		return nil, errors.Wrapf(err, "read resume %s", resumePath)
	}
	document, err := extract.Text(ctx, raw, "", filepath.Base(resumePath))
	if err != nil {
		return nil, errors.Wrapf(err, "extract text from %s", resumePath)
	}
	if _, err := session.Parse(ctx, document); err != nil {
		return nil, errors.Wrap(err, "parse resume")
	}

	jd, err := os.ReadFile(jobPath)
	if err != nil {
		return nil, errors.Wrapf(err, "read job description %s", jobPath)
	}
	if err := session.SetJobDescription(strings.TrimSpace(string(jd))); err != nil {
		return nil, errors.Wrap(err, "set job description")
	}
	return session, nil
}

// saveMarkup writes result under outDir and returns the written path.
func saveMarkup(ctx context.Context, dir string, result resume.RegenerationResult) (string, error) {
	if dir == "" {
		dir = "."
	}
	store := local.New(dir)
	if _, err := store.Put(ctx, result.SuggestedID, "application/x-tex", strings.NewReader(result.Markup)); err != nil {
		return "", errors.Wrapf(err, "write %s", result.SuggestedID)
	}
	return filepath.Join(dir, result.SuggestedID), nil
}
