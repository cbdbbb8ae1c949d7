package mailer

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"os/exec"
	"strings"

	"github.com/peer-review/internal/model"
)

// DefaultSendmailPath is the conventional location of the local MTA binary.
const DefaultSendmailPath = "/usr/sbin/sendmail"

// SendmailDispatcher pipes messages to a local sendmail-compatible binary,
// letting it read recipients from the headers.
type SendmailDispatcher struct {
	path   string
	logger *slog.Logger
}

func NewSendmail(path string, logger *slog.Logger) *SendmailDispatcher {
	if path == "" {
		path = DefaultSendmailPath
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &SendmailDispatcher{path: path, logger: logger}
}

func (d *SendmailDispatcher) Name() string { return TransportSendmail }

func (d *SendmailDispatcher) Dispatch(ctx context.Context, msg *model.Message, raw []byte) error {
	args := []string{"-t", "-oi"}
	if msg.From.Address != "" {
		args = append(args, "-f", msg.From.Address)
	}
	cmd := exec.CommandContext(ctx, d.path, args...)
	cmd.Stdin = bytes.NewReader(bytes.ReplaceAll(raw, []byte("\r\n"), []byte("\n")))
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	d.logger.Info("sendmail: handing over message", "path", d.path, "size", len(raw))
	if err := cmd.Run(); err != nil {
		if msg := strings.TrimSpace(stderr.String()); msg != "" {
			return dispatchErr(d.Name(), fmt.Errorf("%s: %w: %s", d.path, err, msg))
		}
		return dispatchErr(d.Name(), fmt.Errorf("%s: %w", d.path, err))
	}
	return nil
}
