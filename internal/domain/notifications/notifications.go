// Package notifications provides interfaces for telling businesses and
// operators about ad lifecycle outcomes
package notifications

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
)

// EmailNotification represents an email to send
type EmailNotification struct {
	To      string
	Subject string
	Body    string
}

// EmailProvider defines the interface for email providers
type EmailProvider interface {
	Send(ctx context.Context, notification EmailNotification) error
}

// Notifier is what the ad services call after a lifecycle change
type Notifier interface {
	AdPublished(ctx context.Context, to, title string, days int) error
	AdRejected(ctx context.Context, to, title string) error
	AdCancelled(ctx context.Context, to, title string) error
	OperatorAlert(ctx context.Context, subject, detail string) error
}

// EmailNotifier implements Notifier on top of an EmailProvider
type EmailNotifier struct {
	email    EmailProvider
	operator string
}

// NewEmailNotifier creates a notifier. operator receives partial-write alerts.
func NewEmailNotifier(email EmailProvider, operator string) *EmailNotifier {
	return &EmailNotifier{email: email, operator: operator}
}

func (n *EmailNotifier) send(ctx context.Context, to, subject, body string) error {
	if n.email == nil || to == "" {
		return nil
	}
	return n.email.Send(ctx, EmailNotification{To: to, Subject: subject, Body: body})
}

func (n *EmailNotifier) AdPublished(ctx context.Context, to, title string, days int) error {
	return n.send(ctx, to, "Your ad is live",
		fmt.Sprintf("%q is now running for %d days.", title, days))
}

func (n *EmailNotifier) AdRejected(ctx context.Context, to, title string) error {
	return n.send(ctx, to, "Your ad was not approved",
		fmt.Sprintf("%q was reviewed and rejected.", title))
}

func (n *EmailNotifier) AdCancelled(ctx context.Context, to, title string) error {
	return n.send(ctx, to, "Your ad was cancelled",
		fmt.Sprintf("%q has been cancelled.", title))
}

func (n *EmailNotifier) OperatorAlert(ctx context.Context, subject, detail string) error {
	return n.send(ctx, n.operator, subject, detail)
}

// LogEmailProvider writes emails to the log instead of sending them
type LogEmailProvider struct {
	log *slog.Logger
}

func NewLogEmailProvider(log *slog.Logger) *LogEmailProvider {
	return &LogEmailProvider{log: log}
}

func (p *LogEmailProvider) Send(ctx context.Context, n EmailNotification) error {
	p.log.InfoContext(ctx, "email", "to", n.To, "subject", n.Subject, "body", n.Body)
	return nil
}

// MockEmailProvider records emails for tests
type MockEmailProvider struct {
	mu   sync.Mutex
	Sent []EmailNotification
}

func (m *MockEmailProvider) Send(ctx context.Context, n EmailNotification) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Sent = append(m.Sent, n)
	return nil
}
