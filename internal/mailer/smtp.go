package mailer

import (
	"context"
	"crypto/tls"
	"fmt"
	"log/slog"
	"net"
	"net/smtp"
	"strconv"
	"time"

	"github.com/peer-review/internal/model"
)

// SMTP connection security modes.
const (
	SecuritySTARTTLS = "starttls"
	SecurityTLS      = "tls"
	SecurityNone     = "none"
)

// SMTPConfig describes the submission server.
type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	Security string
	Timeout  time.Duration

	// TLSConfig overrides the default client TLS settings.
	TLSConfig *tls.Config
}

// SMTPDispatcher sends messages to an SMTP submission server.
type SMTPDispatcher struct {
	cfg    SMTPConfig
	logger *slog.Logger
	// sendFn is swapped out in tests.
	sendFn func(ctx context.Context, from string, to []string, raw []byte) error
}

func NewSMTP(cfg SMTPConfig, logger *slog.Logger) *SMTPDispatcher {
	if cfg.Security == "" {
		cfg.Security = SecuritySTARTTLS
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}
	d := &SMTPDispatcher{cfg: cfg, logger: logger}
	d.sendFn = d.send
	return d
}

func (d *SMTPDispatcher) Name() string { return TransportSMTP }

// Dispatch sends raw with the message sender as envelope sender and To plus
// Cc as envelope recipients.
func (d *SMTPDispatcher) Dispatch(ctx context.Context, msg *model.Message, raw []byte) error {
	rcpts := msg.Recipients()
	if len(rcpts) == 0 {
		return dispatchErr(d.Name(), fmt.Errorf("no recipients"))
	}
	d.logger.Info("smtp: sending message", "host", d.cfg.Host, "port", d.cfg.Port, "to", rcpts, "size", len(raw))
	return dispatchErr(d.Name(), d.sendFn(ctx, msg.From.Address, rcpts, raw))
}

func (d *SMTPDispatcher) addr() string {
	return net.JoinHostPort(d.cfg.Host, strconv.Itoa(d.cfg.Port))
}

func (d *SMTPDispatcher) tlsConfig() *tls.Config {
	if d.cfg.TLSConfig != nil {
		return d.cfg.TLSConfig
	}
	return &tls.Config{ServerName: d.cfg.Host, MinVersion: tls.VersionTLS12}
}

func (d *SMTPDispatcher) send(ctx context.Context, from string, to []string, raw []byte) error {
	ctx, cancel := context.WithTimeout(ctx, d.cfg.Timeout)
	defer cancel()

	dialer := &net.Dialer{}
	conn, err := dialer.DialContext(ctx, "tcp", d.addr())
	if err != nil {
		return fmt.Errorf("connect %s: %w", d.addr(), err)
	}
	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetDeadline(deadline)
	}
	// Unblock reads and writes when ctx is cancelled mid-conversation.
	stop := context.AfterFunc(ctx, func() { _ = conn.SetDeadline(time.Now()) })
	defer stop()

	if d.cfg.Security == SecurityTLS {
		conn = tls.Client(conn, d.tlsConfig())
	}

	c, err := smtp.NewClient(conn, d.cfg.Host)
	if err != nil {
		conn.Close()
		return fmt.Errorf("smtp handshake: %w", err)
	}
	defer c.Close()

	if d.cfg.Security == SecuritySTARTTLS {
		if ok, _ := c.Extension("STARTTLS"); !ok {
			return fmt.Errorf("server %s does not support STARTTLS", d.cfg.Host)
		}
		if err := c.StartTLS(d.tlsConfig()); err != nil {
			return fmt.Errorf("starttls: %w", err)
		}
	}

	if d.cfg.Username != "" {
		auth := smtp.PlainAuth("", d.cfg.Username, d.cfg.Password, d.cfg.Host)
		if err := c.Auth(auth); err != nil {
			return fmt.Errorf("auth: %w", err)
		}
	}

	if err := c.Mail(from); err != nil {
		return fmt.Errorf("mail from %s: %w", from, err)
	}
	for _, rcpt := range to {
		if err := c.Rcpt(rcpt); err != nil {
			return fmt.Errorf("rcpt to %s: %w", rcpt, err)
		}
	}

	w, err := c.Data()
	if err != nil {
		return fmt.Errorf("data: %w", err)
	}
	if _, err := w.Write(raw); err != nil {
		return fmt.Errorf("write message: %w", err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("finish message: %w", err)
	}
	return c.Quit()
}
