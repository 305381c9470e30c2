package email

import (
	"fmt"

	"github.com/sendgrid/sendgrid-go"
	"github.com/sendgrid/sendgrid-go/helpers/mail"
)

// Sender handles sending emails via SendGrid
type Sender struct {
	client    *sendgrid.Client
	fromName  string
	fromEmail string
}

// NewSender creates a new email sender
func NewSender(apiKey, fromName, fromEmail string) *Sender {
	return &Sender{
		client:    sendgrid.NewSendClient(apiKey),
		fromName:  fromName,
		fromEmail: fromEmail,
	}
}

// SendPasswordResetEmail sends a password reset email with the reset link
func (s *Sender) SendPasswordResetEmail(recipientEmail, resetURL string) error {
	from := mail.NewEmail(s.fromName, s.fromEmail)
	subject := "Reset Your Barangay Portal Password"
	to := mail.NewEmail(recipientEmail, recipientEmail)

	plainText := fmt.Sprintf(`Hello,

You have requested to reset your password for your Barangay Portal account.

Click the link below to reset your password:
%s

This link will expire in 1 hour.

If you did not request a password reset, please ignore this email.

Best regards,
Your Barangay Office`, resetURL)

	htmlContent := fmt.Sprintf(`<p>Hello,</p>
<p>You have requested to reset your password for your Barangay Portal account.</p>
<p><a href="%s">Reset your password</a></p>
<p>This link will expire in 1 hour. If you did not request a password reset,
please ignore this email.</p>
<p>Best regards,<br>Your Barangay Office</p>`, resetURL)

	message := mail.NewSingleEmail(from, subject, to, plainText, htmlContent)
	response, err := s.client.Send(message)
	if err != nil {
		return fmt.Errorf("failed to send email: %w", err)
	}
	if response.StatusCode >= 400 {
		return fmt.Errorf("sendgrid returned status %d: %s", response.StatusCode, response.Body)
	}
	return nil
}
