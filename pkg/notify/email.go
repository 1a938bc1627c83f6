package notify

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/mail"
	"net/textproto"
	"strings"

	"github.com/google/uuid"
	"gopkg.in/gomail.v2"
)

// Email failure reasons.
const (
	ReasonAuth           = "auth"
	ReasonNetwork        = "network"
	ReasonInvalidAddress = "invalid_address"
	ReasonTimeout        = "timeout"
	ReasonBusy           = "busy"
	ReasonUnknown        = "unknown"
)

// EmailResult is the outcome of one email attempt.
type EmailResult struct {
	Success   bool   `json:"success"`
	Provider  string `json:"provider"`
	MessageID string `json:"message_id,omitempty"`
	Error     string `json:"error,omitempty"`
	Reason    string `json:"reason,omitempty"`
}

// Mailer sends one HTML email. Failures are reported in the result.
type Mailer interface {
	SendEmail(ctx context.Context, to, subject, htmlBody string) EmailResult
}

type messageSender interface {
	DialAndSend(m ...*gomail.Message) error
}

// maxInflightSends caps SMTP sessions still running after their caller gave up.
const maxInflightSends = 4

// SMTPMailer delivers email through a single SMTP transport. inflight holds
// one slot per running DialAndSend; nil means unbounded.
type SMTPMailer struct {
	from     string
	dialer   messageSender
	inflight chan struct{}
}

// NewSMTPMailer builds a mailer for the given SMTP server.
func NewSMTPMailer(host string, port int, username, password, from string) *SMTPMailer {
	return &SMTPMailer{
		from:     from,
		dialer:   gomail.NewDialer(host, port, username, password),
		inflight: make(chan struct{}, maxInflightSends),
	}
}

// SendEmail sends the message, giving up when ctx expires. gomail has no
// context support and no deadline past the dial, so the session runs in its
// own goroutine and keeps its inflight slot until the server answers. When
// every slot is taken the send fails fast with ReasonBusy.
func (m *SMTPMailer) SendEmail(ctx context.Context, to, subject, htmlBody string) EmailResult {
	result := EmailResult{Provider: "smtp"}
	if _, err := mail.ParseAddress(to); err != nil {
		result.Error = err.Error()
		result.Reason = ReasonInvalidAddress
		return result
	}

	messageID := uuid.NewString()
	msg := gomail.NewMessage()
	msg.SetHeader("From", m.from)
	msg.SetHeader("To", to)
	msg.SetHeader("Subject", subject)
	msg.SetHeader("Message-ID", fmt.Sprintf("<%s@hearing-attendance>", messageID))
	msg.SetBody("text/html", htmlBody)

	if m.inflight != nil {
		select {
		case m.inflight <- struct{}{}:
		default:
			result.Error = "smtp transport busy"
			result.Reason = ReasonBusy
			return result
		}
	}

	done := make(chan error, 1)
	go func() {
		err := m.dialer.DialAndSend(msg)
		if m.inflight != nil {
			<-m.inflight
		}
		done <- err
	}()

	select {
	case <-ctx.Done():
		result.Error = ctx.Err().Error()
		result.Reason = ReasonTimeout
		return result
	case err := <-done:
		if err != nil {
			result.Error = err.Error()
			result.Reason = classifyEmailError(err)
			return result
		}
	}

	result.Success = true
	result.MessageID = messageID
	return result
}

func classifyEmailError(err error) string {
	var protoErr *textproto.Error
	if errors.As(err, &protoErr) {
		switch {
		case protoErr.Code == 530 || protoErr.Code == 534 || protoErr.Code == 535:
			return ReasonAuth
		case protoErr.Code == 550 || protoErr.Code == 553 || protoErr.Code == 501:
			return ReasonInvalidAddress
		}
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		if netErr.Timeout() {
			return ReasonTimeout
		}
		return ReasonNetwork
	}

	// gomail flattens send errors into strings
	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "535") || strings.Contains(msg, "auth"):
		return ReasonAuth
	case strings.Contains(msg, "550") || strings.Contains(msg, "553") || strings.Contains(msg, "mailbox") || strings.Contains(msg, "address"):
		return ReasonInvalidAddress
	case strings.Contains(msg, "connection") || strings.Contains(msg, "dial") || strings.Contains(msg, "eof"):
		return ReasonNetwork
	}
	return ReasonUnknown
}
