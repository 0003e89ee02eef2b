package notify

import (
	"context"
	"errors"
	"fmt"

	"github.com/nadmax/failscope/internal/metrics"
	"github.com/sendgrid/sendgrid-go"
	"github.com/sendgrid/sendgrid-go/helpers/mail"
	"github.com/sirupsen/logrus"
)

type Notifier interface {
	Notify(ctx context.Context, d Digest) error
}

type SendGridOptions struct {
	APIKey      string
	FromName    string
	FromAddress string
	To          []string
}

type SendGridNotifier struct {
	opts   SendGridOptions
	client *sendgrid.Client
}

func NewSendGridNotifier(opts SendGridOptions) (*SendGridNotifier, error) {
	if opts.APIKey == "" {
		return nil, errors.New("sendgrid api key is required")
	}
	if len(opts.To) == 0 {
		return nil, errors.New("at least one digest recipient is required")
	}

	return &SendGridNotifier{
		opts:   opts,
		client: sendgrid.NewSendClient(opts.APIKey),
	}, nil
}

func (n *SendGridNotifier) Notify(ctx context.Context, d Digest) error {
	if d.Empty() {
		return nil
	}

	response, err := n.client.SendWithContext(ctx, n.message(d))
	if err != nil {
		return fmt.Errorf("failed to send digest: %w", err)
	}
	if response.StatusCode >= 400 {
		return fmt.Errorf("sendgrid error: status %d: %s", response.StatusCode, response.Body)
	}

	metrics.RecordDigestSent(d.Project)
	logrus.WithFields(logrus.Fields{
		"project":    d.Project,
		"failures":   d.Count,
		"recipients": len(n.opts.To),
		"status":     response.StatusCode,
	}).Info("digest sent")
	return nil
}

func (n *SendGridNotifier) message(d Digest) *mail.SGMailV3 {
	m := mail.NewV3Mail()
	m.SetFrom(mail.NewEmail(n.opts.FromName, n.opts.FromAddress))
	m.Subject = d.Subject

	p := mail.NewPersonalization()
	for _, to := range n.opts.To {
		p.AddTos(mail.NewEmail("", to))
	}
	m.AddPersonalizations(p)
	m.AddContent(mail.NewContent("text/plain", d.Text), mail.NewContent("text/html", d.HTML))
	return m
}

// LogNotifier writes digests to the log when no mail provider is configured.
type LogNotifier struct {
	Log *logrus.Entry
}

func (n LogNotifier) Notify(_ context.Context, d Digest) error {
	if d.Empty() {
		return nil
	}

	log := n.Log
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	log.WithFields(logrus.Fields{"project": d.Project, "failures": d.Count}).Info(d.Subject)
	metrics.RecordDigestSent(d.Project)
	return nil
}
