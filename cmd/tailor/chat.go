package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"resume-agent/internal/resume"
)

//nolint:gochecknoglobals // Cobra boilerplate
var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Interactive session",
	Long: `Start an interactive session. Free text is sent to the model. Commands:

  /regenerate [N]  regenerate version N (default latest) and write the .tex file
  /versions        list versions
  /focus TEXT      set the focus used in chat context
  /quit            exit`,
	Args: cobra.NoArgs,
	RunE: runChat,
}

//nolint:gochecknoinits // Cobra boilerplate
func init() {
	rootCmd.AddCommand(chatCmd)
}

func runChat(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	session, err := startSession(ctx)
	if err != nil {
		return err
	}
	save := func(ctx context.Context, result resume.RegenerationResult) (string, error) {
		return saveMarkup(ctx, outDir, result)
	}
	return repl(ctx, session, cmd.InOrStdin(), cmd.OutOrStdout(), save)
}

type saveFunc func(ctx context.Context, result resume.RegenerationResult) (string, error)

// repl reads lines from in until EOF or /quit. Operation failures are printed
// and the loop continues.
func repl(ctx context.Context, session *resume.Session, in io.Reader, out io.Writer, save saveFunc) error {
	scanner := bufio.NewScanner(in)
	scanner.Buffer(make([]byte, 0, 64*1024), 1<<20)
	fmt.Fprint(out, "tailor> ")
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "/quit" || line == "/exit" {
			return nil
		}
		if line != "" {
			if err := handleLine(ctx, session, line, out, save); err != nil {
				fmt.Fprintf(out, "error: %v\n", err)
			}
		}
		fmt.Fprint(out, "tailor> ")
	}
	if err := scanner.Err(); err != nil {
		return errors.Wrap(err, "read input")
	}
	return nil
}

func handleLine(ctx context.Context, session *resume.Session, line string, out io.Writer, save saveFunc) error {
	command, rest, _ := strings.Cut(line, " ")
	rest = strings.TrimSpace(rest)
	switch command {
	case "/regenerate":
		target := resume.Latest
		if rest != "" {
			n, err := strconv.Atoi(rest)
			if err != nil {
				return errors.Errorf("invalid version %q", rest)
			}
			target = n
		}
		result, err := session.Regenerate(ctx, target)
		if err != nil {
			return err
		}
		path, err := save(ctx, result)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "Wrote version %d to %s\n", result.VersionIndex, path)
	case "/versions":
		for _, snap := range session.Versions().All() {
			rendered := "no"
			if snap.RenderedMarkup != nil {
				rendered = "yes"
			}
			fmt.Fprintf(out, "%d  %s  %s  rendered=%s\n",
				snap.VersionIndex, snap.CreatedAt.Format("2006-01-02 15:04:05"), snap.ChangeSummary, rendered)
		}
	case "/focus":
		session.SetFocus(rest)
		fmt.Fprintf(out, "Focus set to %q\n", session.Focus())
	default:
		if strings.HasPrefix(command, "/") {
			return errors.Errorf("unknown command %s", command)
		}
		reply, err := session.Chat(ctx, line)
		if err != nil {
			return err
		}
		fmt.Fprintln(out, reply)
	}
	return nil
}
