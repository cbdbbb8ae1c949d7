package mailer

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/emersion/go-mbox"

	"github.com/peer-review/internal/model"
)

// MboxDispatcher appends messages to an mbox file, for pickup by a mail
// client or a later batch send.
type MboxDispatcher struct {
	path   string
	logger *slog.Logger
}

func NewMbox(path string, logger *slog.Logger) *MboxDispatcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &MboxDispatcher{path: path, logger: logger}
}

func (d *MboxDispatcher) Name() string { return TransportMbox }

func (d *MboxDispatcher) Dispatch(ctx context.Context, msg *model.Message, raw []byte) error {
	if err := ctx.Err(); err != nil {
		return dispatchErr(d.Name(), err)
	}

	f, err := os.OpenFile(d.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o600)
	if err != nil {
		return dispatchErr(d.Name(), fmt.Errorf("cannot open mbox: %w", err))
	}
	defer f.Close()

	from := msg.From.Address
	if from == "" {
		from = "MAILER-DAEMON"
	}

	w := mbox.NewWriter(f)
	mw, err := w.CreateMessage(from, msg.Date)
	if err != nil {
		return dispatchErr(d.Name(), fmt.Errorf("start message: %w", err))
	}
	// mbox files use bare LF line endings.
	if _, err := mw.Write(bytes.ReplaceAll(raw, []byte("\r\n"), []byte("\n"))); err != nil {
		return dispatchErr(d.Name(), fmt.Errorf("write message: %w", err))
	}
	if err := w.Close(); err != nil {
		return dispatchErr(d.Name(), fmt.Errorf("finish message: %w", err))
	}
	if err := f.Close(); err != nil {
		return dispatchErr(d.Name(), fmt.Errorf("close mbox: %w", err))
	}

	d.logger.Info("mbox: appended message", "path", d.path, "size", len(raw))
	return nil
}
