// Package email provides the email client for sending lead notifications.
package email

import (
	"fmt"
	"html"
	"os"

	"github.com/resendlabs/resend-go"
)

// Service defines the interface for sending emails, allowing for mock implementations in tests.
type Service interface {
	SendLeadNotification(leadEmail, leadName string) error
}

// ResendClient is the concrete implementation of the email Service using the Resend API.
type ResendClient struct {
	client    *resend.Client
	fromEmail string
	fromName  string
	toEmail   string
}

// NewService creates a new email service client, returning the Service interface.
func NewService(notifyEmail string) (Service, error) {
	apiKey := os.Getenv("RESEND_API_KEY")
	if apiKey == "" {
		return nil, fmt.Errorf("RESEND_API_KEY environment variable is required")
	}
	if notifyEmail == "" {
		return nil, fmt.Errorf("lead notification email address is required")
	}

	fromEmail := os.Getenv("NOTIFY_EMAIL_FROM")
	if fromEmail == "" {
		fromEmail = "noreply@revtrace.io" // Default from address
	}

	fromName := os.Getenv("NOTIFY_EMAIL_FROM_NAME")
	if fromName == "" {
		fromName = "RevTrace" // Default from name
	}

	return &ResendClient{
		client:    resend.NewClient(apiKey),
		fromEmail: fromEmail,
		fromName:  fromName,
		toEmail:   notifyEmail,
	}, nil
}

// SendLeadNotification composes and sends the new-lead notification email.
func (c *ResendClient) SendLeadNotification(leadEmail, leadName string) error {
	subject := "New lead captured"

	name := leadName
	if name == "" {
		name = "(no name)"
	}

	htmlContent := fmt.Sprintf(
		`<h2>New lead</h2><p><strong>%s</strong> &lt;%s&gt; just converted. `+
			`Their full journey is available in your RevTrace dashboard.</p>`,
		html.EscapeString(name), html.EscapeString(leadEmail))

	params := &resend.SendEmailRequest{
		From:    fmt.Sprintf("%s <%s>", c.fromName, c.fromEmail),
		To:      []string{c.toEmail},
		Subject: subject,
		Html:    htmlContent,
	}

	_, err := c.client.Emails.Send(params)
	if err != nil {
		return fmt.Errorf("failed to send lead notification: %w", err)
	}
	return nil
}
