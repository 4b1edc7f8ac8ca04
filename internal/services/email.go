package services

import (
	"context"
	"fmt"
	"log/slog"

	"eventhub/internal/domain"
)

const (
	templateVerificationCode         = "verification_code"
	templateRegistrationConfirmation = "registration_confirmation"
)

type emailService struct {
	mailer   domain.Mailer
	renderer domain.EmailTemplateRenderer
	metrics  domain.Metrics
	logger   *slog.Logger
}

// NewEmailService returns an EmailService that renders named templates and sends them through mailer.
func NewEmailService(mailer domain.Mailer, renderer domain.EmailTemplateRenderer, metrics domain.Metrics, logger *slog.Logger) domain.EmailService {
	return &emailService{mailer: mailer, renderer: renderer, metrics: metrics, logger: logger}
}

func (s *emailService) SendVerificationCode(ctx context.Context, data *domain.VerificationCodeEmailData) error {
	if data == nil {
		return fmt.Errorf("verification code email data is nil")
	}
	return s.send(ctx, templateVerificationCode, data.Email, data)
}

func (s *emailService) SendRegistrationConfirmation(ctx context.Context, data *domain.RegistrationConfirmationEmailData) error {
	if data == nil {
		return fmt.Errorf("registration confirmation email data is nil")
	}
	return s.send(ctx, templateRegistrationConfirmation, data.Email, data)
}

func (s *emailService) send(ctx context.Context, template, to string, data any) error {
	subject, htmlBody, textBody, err := s.renderer.Render(template, data)
	if err != nil {
		s.metrics.EmailSent(template, err)
		return fmt.Errorf("render %s template: %w", template, err)
	}
	err = s.mailer.Send(ctx, to, subject, htmlBody, textBody)
	s.metrics.EmailSent(template, err)
	if err != nil {
		return fmt.Errorf("send %s email: %w", template, err)
	}
	s.logger.InfoContext(ctx, "email sent", "template", template, "to", to)
	return nil
}
