package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"
	gomail "github.com/wneessen/go-mail"

	"github.com/tcioe/appointment-service/internal/config"
)

// Provider is a mail transport.
type Provider interface {
	Send(ctx context.Context, msg Message) error
}

// NewProvider selects a transport from config. Unknown kinds fall back to
// the log provider so a misconfigured box still boots.
func NewProvider(cfg config.Config) Provider {
	switch cfg.MailProvider {
	case "smtp":
		return &smtpProvider{
			host:     cfg.SMTPHost,
			port:     cfg.SMTPPort,
			username: cfg.SMTPUsername,
			password: cfg.SMTPPassword,
			from:     cfg.MailFrom,
		}
	case "webhook":
		if cfg.WebhookURL == "" {
			return logProvider{}
		}
		return &webhookProvider{url: cfg.WebhookURL, token: cfg.WebhookToken}
	default:
		return logProvider{}
	}
}

type logProvider struct{}

func (logProvider) Send(ctx context.Context, msg Message) error {
	log.Info().
		Strs("to", msg.To).
		Str("subject", msg.Subject).
		Msg("mail (log provider)")
	return nil
}

type webhookProvider struct {
	url   string
	token string
}

func (p *webhookProvider) Send(ctx context.Context, msg Message) error {
	payload := map[string]any{
		"to":      msg.To,
		"subject": msg.Subject,
		"body":    msg.Body,
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if p.token != "" {
		req.Header.Set("Authorization", "Bearer "+p.token)
	}
	client := &http.Client{Timeout: 5 * time.Second}
	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return errors.New("mail webhook rejected request")
	}
	return nil
}

type smtpProvider struct {
	host     string
	port     int
	username string
	password string
	from     string
}

func (p *smtpProvider) Send(ctx context.Context, msg Message) error {
	m := gomail.NewMsg()
	if err := m.From(p.from); err != nil {
		return fmt.Errorf("set from: %w", err)
	}
	if err := m.To(msg.To...); err != nil {
		return fmt.Errorf("set to: %w", err)
	}
	m.Subject(msg.Subject)
	m.SetBodyString(gomail.TypeTextPlain, msg.Body)

	client, err := gomail.NewClient(p.host,
		gomail.WithPort(p.port),
		gomail.WithSMTPAuth(gomail.SMTPAuthPlain),
		gomail.WithUsername(p.username),
		gomail.WithPassword(p.password),
	)
	if err != nil {
		return fmt.Errorf("smtp client: %w", err)
	}

	return client.DialAndSendWithContext(ctx, m)
}
