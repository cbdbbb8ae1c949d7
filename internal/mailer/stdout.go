package mailer

import (
	"bytes"
	"context"
	"io"

	"github.com/peer-review/internal/model"
)

// StdoutDispatcher writes the message instead of sending it. Used for dry
// runs and when no transport is configured.
type StdoutDispatcher struct {
	w io.Writer
}

func NewStdout(w io.Writer) *StdoutDispatcher {
	return &StdoutDispatcher{w: w}
}

func (d *StdoutDispatcher) Name() string { return TransportStdout }

func (d *StdoutDispatcher) Dispatch(_ context.Context, _ *model.Message, raw []byte) error {
	out := bytes.ReplaceAll(raw, []byte("\r\n"), []byte("\n"))
	if !bytes.HasSuffix(out, []byte("\n")) {
		out = append(out, '\n')
	}
	_, err := d.w.Write(out)
	return dispatchErr(d.Name(), err)
}
