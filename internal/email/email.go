package email

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/resend/resend-go/v2"
)

// Message is one outbound verification email. Link is the verify URL the
// recipient should open; senders that only forward a link use it directly.
type Message struct {
	To      string
	Subject string
	HTML    string
	Link    string
}

type Sender interface {
	Send(ctx context.Context, msg Message) error
}

const (
	BackendLog    = "log"
	BackendResend = "resend"
	BackendHTTP   = "http"
)

// LogSender logs emails instead of sending them. Used for local development.
type LogSender struct {
	logger *slog.Logger
}

func NewLogSender(logger *slog.Logger) *LogSender {
	return &LogSender{logger: logger.With("component", "email")}
}

func (s *LogSender) Send(ctx context.Context, msg Message) error {
	s.logger.InfoContext(ctx, "verification email (local dev)", "to", msg.To, "subject", msg.Subject, "link", msg.Link)
	return nil
}

// ResendSender sends emails via the Resend API.
type ResendSender struct {
	client *resend.Client
	from   string
}

func NewResendSender(apiKey, from string) *ResendSender {
	return &ResendSender{
		client: resend.NewClient(apiKey),
		from:   from,
	}
}

func (s *ResendSender) Send(ctx context.Context, msg Message) error {
	params := &resend.SendEmailRequest{
		From:    s.from,
		To:      []string{msg.To},
		Subject: msg.Subject,
		Html:    msg.HTML,
	}
	_, err := s.client.Emails.SendWithContext(ctx, params)
	if err != nil {
		return fmt.Errorf("send email: %w", err)
	}
	return nil
}

type Config struct {
	Backend      string
	ResendAPIKey string
	ResendFrom   string
	APIURL       string
	APIToken     string
}

// NewSender picks the delivery backend named in cfg.Backend.
func NewSender(cfg Config, logger *slog.Logger) (Sender, error) {
	switch cfg.Backend {
	case BackendLog, "":
		return NewLogSender(logger), nil
	case BackendResend:
		return NewResendSender(cfg.ResendAPIKey, cfg.ResendFrom), nil
	case BackendHTTP:
		return NewHTTPSender(cfg.APIURL, cfg.APIToken, &http.Client{Timeout: 10 * time.Second})
	default:
		return nil, fmt.Errorf("unknown email backend %q", cfg.Backend)
	}
}
