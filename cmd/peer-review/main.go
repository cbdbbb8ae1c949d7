// Command peer-review mails the most recently modified file of each given
// folder as attachments of a single review request.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/peer-review/internal/app"
	"github.com/peer-review/internal/cmd"
	"github.com/peer-review/internal/config"
	"github.com/peer-review/internal/email"
	"github.com/peer-review/internal/mailer"
	"github.com/peer-review/internal/scanner"
	"github.com/peer-review/pkg/version"
)

// Exit statuses follow sysexits(3).
const (
	exitOK          = 0
	exitFailure     = 1
	exitUsage       = 64
	exitNoInput     = 66
	exitUnavailable = 69
	exitIOErr       = 74
	exitConfig      = 78
)

// usageError marks command-line parsing failures.
type usageError struct{ err error }

func (e *usageError) Error() string { return e.err.Error() }
func (e *usageError) Unwrap() error { return e.err }

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	cancel()
	os.Exit(code)
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	root := newRootCmd(stdout, stderr)
	root.SetArgs(args)
	if err := root.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(stderr, "peer-review: %v\n", err)
		return exitCode(err)
	}
	return exitOK
}

func newRootCmd(stdout, stderr io.Writer) *cobra.Command {
	root := &cobra.Command{
		Use:   "peer-review [flags] FOLDER...",
		Short: "Mail the newest file of each folder for review",
		Long: `peer-review picks the most recently modified file in every given folder
and sends them as attachments of one email to the configured reviewers.

Settings are read from an optional TOML file, the environment (and a .env
file in the working directory) and finally the command-line flags.`,
		Args:          cobra.ArbitraryArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if versionFlag, _ := cmd.Flags().GetBool("version"); versionFlag {
				_, err := fmt.Fprintln(cmd.OutOrStdout(), version.GetVersion().String())
				return err
			}
			return runReview(cmd.Context(), cmd.Flags(), args, stdout, stderr)
		},
	}
	root.SetOut(stdout)
	root.SetErr(stderr)
	root.SetFlagErrorFunc(func(_ *cobra.Command, err error) error {
		return &usageError{err: err}
	})

	root.Flags().BoolP("version", "v", false, "Print version information and exit")
	config.RegisterFlags(root.Flags())

	root.AddCommand(cmd.NewVersionCmd())
	return root
}

func runReview(ctx context.Context, flags *pflag.FlagSet, args []string, stdout, stderr io.Writer) error {
	path, _ := flags.GetString("config")
	cfg, err := config.Load(path)
	if err != nil {
		return err
	}
	if err := cfg.ApplyFlags(flags, args); err != nil {
		return err
	}

	a, err := app.New(cfg, app.Options{Stdout: stdout, Stderr: stderr})
	if err != nil {
		return err
	}
	_, err = a.Run(ctx)
	return err
}

func exitCode(err error) int {
	var usage *usageError
	switch {
	case err == nil:
		return exitOK
	case errors.As(err, &usage):
		return exitUsage
	case errors.Is(err, config.ErrInvalid):
		return exitConfig
	case errors.Is(err, scanner.ErrNotFound):
		return exitNoInput
	case errors.Is(err, email.ErrAttachment):
		return exitIOErr
	case errors.Is(err, mailer.ErrDispatch):
		return exitUnavailable
	default:
		return exitFailure
	}
}
