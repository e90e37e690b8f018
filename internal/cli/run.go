package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/aretw0/kiln"
	"github.com/aretw0/kiln/internal/presentation/tui"
)

// RunOptions configures Run.
type RunOptions struct {
	Flags
	// Quiet suppresses the banner and the system messages.
	Quiet bool
	// Out receives the banner and the system messages. Defaults to stdout.
	Out io.Writer
	// Runtime holds extra runtime options, such as a custom host.
	Runtime []kiln.Option
}

// Run builds the runtime, invokes the entry point with args and closes the
// runtime. Cancellation by signal is not an error.
func Run(ctx context.Context, opts RunOptions, args []string) error {
	out := opts.Out
	if out == nil {
		out = os.Stdout
	}

	rt, cfg, err := CreateRuntime(opts.Flags, opts.Runtime...)
	if err != nil {
		return err
	}
	defer rt.Close()

	if !opts.Quiet {
		tui.PrintBanner(out)
		printSystemMessage(out, "Entering %s", cfg.EntrySymbol)
	}

	err = rt.Run(ctx, args)
	if !opts.Quiet {
		logCompletion(out, rt, err)
	}
	return handleExecutionError(err)
}

func printSystemMessage(w io.Writer, format string, args ...any) {
	fmt.Fprintf(w, ">>> %s\n", fmt.Sprintf(format, args...))
}

func logCompletion(w io.Writer, rt *kiln.Runtime, err error) {
	switch {
	case err == nil:
		printSystemMessage(w, "Program finished (%d extensions)", len(rt.Modules()))
	case isInterrupted(err):
		printSystemMessage(w, "Interrupted")
	}
}

func isInterrupted(err error) bool {
	return errors.Is(err, context.Canceled)
}

func handleExecutionError(err error) error {
	if err == nil || isInterrupted(err) {
		return nil
	}
	return err
}
