package scheduler

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/smtp"
	"net/textproto"
	"strings"
	"time"
)

// defaultSendTimeout bounds a single delivery attempt when no timeout is
// configured.
const defaultSendTimeout = 30 * time.Second

// DeliveryError classifies a failed send. Transient failures are retried,
// permanent ones fail the invite immediately.
type DeliveryError struct {
	Permanent bool
	Err       error
}

func (e *DeliveryError) Error() string {
	kind := "transient"
	if e.Permanent {
		kind = "permanent"
	}
	return fmt.Sprintf("%s delivery failure: %v", kind, e.Err)
}

func (e *DeliveryError) Unwrap() error { return e.Err }

// Sender delivers a single email.
type Sender interface {
	Send(ctx context.Context, to, subject, body string) error
}

// SMTPConfig configures the SMTP sender.
type SMTPConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
	From     string `mapstructure:"from"`
	// Timeout bounds one delivery attempt. Zero means the 30 second
	// default.
	Timeout time.Duration `mapstructure:"timeout"`
}

// SMTPSender delivers mail through a plain SMTP relay.
type SMTPSender struct {
	cfg SMTPConfig

	// send is swappable in tests.
	send func(addr string, auth smtp.Auth, from string, to []string, msg []byte) error
}

// NewSMTPSender creates a sender for the given relay.
func NewSMTPSender(cfg SMTPConfig) *SMTPSender {
	return &SMTPSender{cfg: cfg, send: smtp.SendMail}
}

// Send delivers one message, classifying any failure as transient or
// permanent. Each attempt is bounded by the configured timeout; an attempt
// that hits it comes back as a transient DeliveryError.
func (s *SMTPSender) Send(ctx context.Context, to, subject, body string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	var msg strings.Builder
	fmt.Fprintf(&msg, "From: %s\r\n", s.cfg.From)
	fmt.Fprintf(&msg, "To: %s\r\n", to)
	fmt.Fprintf(&msg, "Subject: %s\r\n", subject)
	msg.WriteString("MIME-Version: 1.0\r\n")
	msg.WriteString("Content-Type: text/plain; charset=UTF-8\r\n")
	msg.WriteString("\r\n")
	msg.WriteString(body)

	addr := fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port)

	var auth smtp.Auth
	if s.cfg.Username != "" {
		auth = smtp.PlainAuth("", s.cfg.Username, s.cfg.Password, s.cfg.Host)
	}

	timeout := s.cfg.Timeout
	if timeout <= 0 {
		timeout = defaultSendTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	done := make(chan error, 1)
	go func() {
		done <- s.send(addr, auth, s.cfg.From, []string{to}, []byte(msg.String()))
	}()

	select {
	case err := <-done:
		if err != nil {
			return classifyDelivery(err)
		}
		return nil
	case <-ctx.Done():
		// smtp.SendMail cannot be interrupted mid-dialogue; the goroutine
		// finishes against its own TCP deadlines and its result is
		// discarded.
		return &DeliveryError{Permanent: false, Err: ctx.Err()}
	}
}

// classifyDelivery maps SMTP reply codes to retry semantics: 4xx replies
// and network timeouts are worth retrying, 5xx replies are not.
func classifyDelivery(err error) error {
	var proto *textproto.Error
	if errors.As(err, &proto) {
		return &DeliveryError{Permanent: proto.Code >= 500, Err: err}
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return &DeliveryError{Permanent: false, Err: err}
	}

	return &DeliveryError{Permanent: false, Err: err}
}
