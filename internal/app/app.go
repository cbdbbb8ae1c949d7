// Package app wires configuration, scanning, composition and dispatch into a
// single run.
package app

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/osfs"

	"github.com/peer-review/internal/config"
	"github.com/peer-review/internal/email"
	"github.com/peer-review/internal/mailer"
	"github.com/peer-review/internal/model"
	"github.com/peer-review/internal/scanner"
)

type App struct {
	config     *config.Config
	logger     *slog.Logger
	scanner    *scanner.Scanner
	composer   *email.Composer
	encryptor  *email.Encryptor
	dispatcher mailer.Dispatcher
}

// Options overrides the process-wide defaults used by New.
type Options struct {
	// Stdout receives the message for the stdout transport.
	Stdout io.Writer
	// Stderr receives log output.
	Stderr io.Writer
	// FS is the filesystem scanned and read. Defaults to the host filesystem.
	FS billy.Filesystem
	// Now is the clock used for the Date header.
	Now func() time.Time
}

// New validates cfg and builds every pipeline stage.
func New(cfg *config.Config, opts Options) (*App, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if opts.FS == nil {
		opts.FS = osfs.New("/")
	}
	if opts.Stdout == nil {
		opts.Stdout = os.Stdout
	}
	if opts.Stderr == nil {
		opts.Stderr = os.Stderr
	}

	logger := newLogger(cfg, opts.Stderr)

	from, err := cfg.Sender()
	if err != nil {
		return nil, err
	}
	to, err := config.Addresses(cfg.To)
	if err != nil {
		return nil, err
	}
	cc, err := config.Addresses(cfg.Cc)
	if err != nil {
		return nil, err
	}

	var enc *email.Encryptor
	if cfg.PGPPublicKeyPath != "" {
		enc, err = email.LoadEncryptor(cfg.PGPPublicKeyPath)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", config.ErrInvalid, err)
		}
	}

	app := &App{
		config: cfg,
		logger: logger,
		scanner: scanner.New(opts.FS, scanner.Options{
			IncludeHidden: cfg.IncludeHidden,
			Logger:        logger,
		}),
		composer: email.NewComposer(opts.FS, email.ComposerConfig{
			From:              from,
			To:                to,
			Cc:                cc,
			SubjectTemplate:   cfg.Subject,
			BodyTemplate:      cfg.Body,
			StripMetadata:     cfg.StripMetadata,
			MaxAttachmentSize: cfg.MaxAttachmentSize(),
			Logger:            logger,
			Now:               opts.Now,
		}),
		encryptor:  enc,
		dispatcher: newDispatcher(cfg, opts.Stdout, logger),
	}
	return app, nil
}

func newDispatcher(cfg *config.Config, stdout io.Writer, logger *slog.Logger) mailer.Dispatcher {
	switch cfg.ResolvedTransport() {
	case mailer.TransportSMTP:
		return mailer.NewSMTP(mailer.SMTPConfig{
			Host:     cfg.SMTPHost,
			Port:     cfg.SMTPPort,
			Username: cfg.SMTPUser,
			Password: cfg.SMTPPass,
			Security: cfg.SMTPSecurity,
			Timeout:  cfg.Timeout,
		}, logger)
	case mailer.TransportSendmail:
		return mailer.NewSendmail(cfg.SendmailPath, logger)
	case mailer.TransportMbox:
		return mailer.NewMbox(cfg.MboxPath, logger)
	case mailer.TransportIMAP:
		return mailer.NewIMAP(mailer.IMAPConfig{
			Addr:     cfg.IMAPAddr,
			Username: cfg.IMAPUser,
			Password: cfg.IMAPPass,
			Mailbox:  cfg.IMAPMailbox,
			Security: cfg.IMAPSecurity,
			Timeout:  cfg.Timeout,
		}, logger)
	default:
		if !cfg.DryRun && strings.ToLower(strings.TrimSpace(cfg.Transport)) != mailer.TransportStdout {
			logger.Warn("no SMTP host configured, writing message to stdout")
		}
		return mailer.NewStdout(stdout)
	}
}

// Run scans the folders, composes the message and dispatches it once.
func (app *App) Run(ctx context.Context) (*model.Message, error) {
	folders := model.Folders(app.config.FolderPaths())
	app.logger.Debug("scanning folders", "folders", len(folders))

	files, err := app.scanner.Scan(folders)
	if err != nil {
		return nil, fmt.Errorf("scan: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	msg, err := app.composer.Compose(files)
	if err != nil {
		return nil, fmt.Errorf("compose: %w", err)
	}

	raw, err := email.Build(msg, app.encryptor)
	if err != nil {
		return nil, fmt.Errorf("build message: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	app.logger.Info("dispatching message",
		"transport", app.dispatcher.Name(),
		"attachments", strings.Join(msg.AttachmentNames(), ", "),
		"size", humanize.Bytes(uint64(len(raw))),
		"encrypted", app.encryptor != nil)

	if err := app.dispatcher.Dispatch(ctx, msg, raw); err != nil {
		return nil, err
	}

	app.logger.Info("message dispatched", "transport", app.dispatcher.Name(), "message_id", msg.ID)
	return msg, nil
}

// Transport reports the name of the transport the run will use.
func (app *App) Transport() string {
	return app.dispatcher.Name()
}

func newLogger(cfg *config.Config, w io.Writer) *slog.Logger {
	logLevel, _ := config.ParseLevel(cfg.LogLevel)

	logger := slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{
		Level: logLevel,
	}))

	slog.SetDefault(logger)
	return logger
}
