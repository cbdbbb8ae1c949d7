// Package mailer hands composed messages to a mail transport.
package mailer

import (
	"context"
	"errors"
	"fmt"

	"github.com/peer-review/internal/model"
)

// Transport names accepted by the configuration.
const (
	TransportAuto     = "auto"
	TransportSMTP     = "smtp"
	TransportSendmail = "sendmail"
	TransportMbox     = "mbox"
	TransportIMAP     = "imap"
	TransportStdout   = "stdout"
)

// Transports lists every selectable transport.
var Transports = []string{TransportAuto, TransportSMTP, TransportSendmail, TransportMbox, TransportIMAP, TransportStdout}

// ErrDispatch is matched by every DispatchError.
var ErrDispatch = errors.New("dispatch failed")

// DispatchError reports a transport that was unavailable or refused the
// message. Dispatch is never retried.
type DispatchError struct {
	Transport string
	Err       error
}

func (e *DispatchError) Error() string {
	return fmt.Sprintf("dispatch via %s: %v", e.Transport, e.Err)
}

func (e *DispatchError) Unwrap() error { return e.Err }

func (e *DispatchError) Is(target error) bool { return target == ErrDispatch }

// Dispatcher delivers a built message. raw is the serialized RFC 5322 message
// for msg.
type Dispatcher interface {
	Dispatch(ctx context.Context, msg *model.Message, raw []byte) error
	Name() string
}

func dispatchErr(transport string, err error) error {
	if err == nil {
		return nil
	}
	return &DispatchError{Transport: transport, Err: err}
}
