package main

import (
	"context"
	"fmt"
	"time"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"resume-agent/internal/resume"
)

//nolint:gochecknoglobals // Cobra boilerplate
var (
	messages      []string
	targetVersion int
	runTimeout    time.Duration
)

//nolint:gochecknoglobals // Cobra boilerplate
var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Parse, optionally chat, and regenerate in one pass",
	Long: `Parse the resume, send each --message to the model, then regenerate the
resume for the job description and write the .tex file.

Example:
  tailor run --resume resume.pdf --job jd.txt --message "Emphasize Kubernetes work"`,
	Args: cobra.NoArgs,
	RunE: runRun,
}

//nolint:gochecknoinits // Cobra boilerplate
func init() {
	rootCmd.AddCommand(runCmd)
	runCmd.Flags().StringArrayVarP(&messages, "message", "m", nil, "Chat message sent before regenerating (repeatable)")
	runCmd.Flags().IntVar(&targetVersion, "version", resume.Latest, "Version index to regenerate (-1 for latest)")
	runCmd.Flags().DurationVar(&runTimeout, "timeout", 10*time.Minute, "Overall timeout")
}

func runRun(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithTimeout(cmd.Context(), runTimeout)
	defer cancel()

	session, err := startSession(ctx)
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()

	for _, msg := range messages {
		reply, err := session.Chat(ctx, msg)
		if err != nil {
			return errors.Wrap(err, "chat")
		}
		fmt.Fprintf(out, "> %s\n%s\n\n", msg, reply)
	}

	result, err := session.Regenerate(ctx, targetVersion)
	if err != nil {
		return errors.Wrap(err, "regenerate")
	}
	path, err := saveMarkup(ctx, outDir, result)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "Wrote version %d to %s\n", result.VersionIndex, path)
	return nil
}
