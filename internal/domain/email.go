package domain

import (
	"context"
	"time"
)

// Mailer defines the contract for sending emails (infrastructure port).
type Mailer interface {
	Send(ctx context.Context, to, subject, html, text string) error
}

// EmailTemplateRenderer renders email content from a named template with the given data.
type EmailTemplateRenderer interface {
	Render(templateName string, data any) (subject, htmlBody, textBody string, err error)
}

// EmailMessage is a fully rendered email, as carried on the outbound queue.
type EmailMessage struct {
	To      string `json:"to"`
	Subject string `json:"subject"`
	HTML    string `json:"html"`
	Text    string `json:"text"`
}

// VerificationCodeEmailData holds data for the email verification code email.
type VerificationCodeEmailData struct {
	Email            string
	Name             string
	Code             string
	ExpiresInMinutes int
}

// RegistrationConfirmationEmailData holds data for the registration confirmation email.
type RegistrationConfirmationEmailData struct {
	Email        string
	Name         string
	EventTitle   string
	SubEventName string
	Date         time.Time
	Location     string
	CalendarURL  string
	EventURL     string
}

// EmailService defines the contract for sending domain-level emails.
type EmailService interface {
	SendVerificationCode(ctx context.Context, data *VerificationCodeEmailData) error
	SendRegistrationConfirmation(ctx context.Context, data *RegistrationConfirmationEmailData) error
}
