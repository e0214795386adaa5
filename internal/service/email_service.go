package service

import (
	"context"
	"fmt"
	"html"
	"net/url"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/sesv2"
	"github.com/aws/aws-sdk-go-v2/service/sesv2/types"

	"admindash/internal/logging"
)

// sesSender is the part of the SES v2 client the service uses
type sesSender interface {
	SendEmail(ctx context.Context, params *sesv2.SendEmailInput, optFns ...func(*sesv2.Options)) (*sesv2.SendEmailOutput, error)
}

// EmailConfig configures the SES notifier
type EmailConfig struct {
	Region     string
	FromEmail  string
	FromName   string
	AppBaseURL string
	// LogSecrets writes codes and reset links to the log while delivery is
	// disabled, so local development can complete a login.
	LogSecrets bool
}

// EmailService handles sending emails via Amazon SES
type EmailService struct {
	client     sesSender
	fromEmail  string
	fromName   string
	appBaseURL string
	enabled    bool
	logSecrets bool
	log        logging.Logger
}

// NewEmailService creates a new email service.
// Without a sender address the service is disabled and only logs.
func NewEmailService(ctx context.Context, cfg EmailConfig, log logging.Logger) (*EmailService, error) {
	if log == nil {
		log = logging.Nop()
	}
	log = log.With("component", "email")

	if cfg.FromEmail == "" {
		log.Info(ctx, "email service disabled: SES_FROM_EMAIL not configured")
		return &EmailService{
			appBaseURL: cfg.AppBaseURL,
			logSecrets: cfg.LogSecrets,
			log:        log,
		}, nil
	}

	awsCfg, err := config.LoadDefaultConfig(ctx, config.WithRegion(cfg.Region))
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	log.Info(ctx, "email service enabled", "from", cfg.FromEmail, "region", cfg.Region)
	return newEmailServiceWithClient(sesv2.NewFromConfig(awsCfg), cfg, log), nil
}

func newEmailServiceWithClient(client sesSender, cfg EmailConfig, log logging.Logger) *EmailService {
	return &EmailService{
		client:     client,
		fromEmail:  cfg.FromEmail,
		fromName:   cfg.FromName,
		appBaseURL: cfg.AppBaseURL,
		enabled:    true,
		log:        log,
	}
}

// IsEnabled returns whether the email service is enabled
func (s *EmailService) IsEnabled() bool {
	return s.enabled
}

// SendTwoFactorCode emails the verification code of a login attempt
func (s *EmailService) SendTwoFactorCode(ctx context.Context, toEmail, toName, code string) error {
	if !s.enabled {
		if s.logSecrets {
			s.log.Warn(ctx, "email disabled, verification code not sent", "to", toEmail, "code", code)
		} else {
			s.log.Info(ctx, "skipping email send (service disabled): verification code", "to", toEmail)
		}
		return nil
	}

	subject := "Your verification code"
	htmlBody := fmt.Sprintf(`
<!DOCTYPE html>
<html>
<head>
	<meta charset="UTF-8">
	<style>
		body { font-family: Arial, sans-serif; line-height: 1.6; color: #333; }
		.container { max-width: 600px; margin: 0 auto; padding: 20px; }
		.header { background-color: #3498db; color: white; padding: 20px; text-align: center; border-radius: 5px 5px 0 0; }
		.content { background-color: #f9f9f9; padding: 30px; border-radius: 0 0 5px 5px; }
		.code { font-size: 32px; letter-spacing: 8px; font-weight: bold; text-align: center; margin: 20px 0; }
		.footer { text-align: center; margin-top: 20px; font-size: 12px; color: #666; }
	</style>
</head>
<body>
	<div class="container">
		<div class="header">
			<h1>Verification Code</h1>
		</div>
		<div class="content">
			<p>Hi %s,</p>
			<p>Use the code below to finish signing in:</p>
			<p class="code">%s</p>
			<p><strong>This code will expire in 15 minutes.</strong></p>
			<p>If you did not try to sign in, change your password.</p>
		</div>
		<div class="footer">
			<p>This is an automated email. Please do not reply.</p>
		</div>
	</div>
</body>
</html>
`, html.EscapeString(toName), code)

	textBody := fmt.Sprintf(`Hi %s,

Use the code below to finish signing in:

%s

This code will expire in 15 minutes.

If you did not try to sign in, change your password.
`, toName, code)

	return s.sendEmail(ctx, toEmail, subject, htmlBody, textBody)
}

// SendPasswordResetEmail sends a password reset email with a reset link
func (s *EmailService) SendPasswordResetEmail(ctx context.Context, toEmail, toName, resetToken string) error {
	resetLink := s.resetLink(resetToken)

	if !s.enabled {
		if s.logSecrets {
			s.log.Warn(ctx, "email disabled, password reset link not sent", "to", toEmail, "link", resetLink)
		} else {
			s.log.Info(ctx, "skipping email send (service disabled): password reset", "to", toEmail)
		}
		return nil
	}

	subject := "Reset your password"
	htmlBody := fmt.Sprintf(`
<!DOCTYPE html>
<html>
<head>
	<meta charset="UTF-8">
	<style>
		body { font-family: Arial, sans-serif; line-height: 1.6; color: #333; }
		.container { max-width: 600px; margin: 0 auto; padding: 20px; }
		.header { background-color: #3498db; color: white; padding: 20px; text-align: center; border-radius: 5px 5px 0 0; }
		.content { background-color: #f9f9f9; padding: 30px; border-radius: 0 0 5px 5px; }
		.button { display: inline-block; padding: 12px 30px; background-color: #3498db; color: white; text-decoration: none; border-radius: 5px; margin: 20px 0; }
		.footer { text-align: center; margin-top: 20px; font-size: 12px; color: #666; }
	</style>
</head>
<body>
	<div class="container">
		<div class="header">
			<h1>Password Reset Request</h1>
		</div>
		<div class="content">
			<p>Hi %s,</p>
			<p>We received a request to reset your password.</p>
			<p style="text-align: center;">
				<a href="%s" class="button">Reset Password</a>
			</p>
			<p>Or copy and paste this link into your browser:</p>
			<p style="word-break: break-all; font-size: 12px; color: #666;">%s</p>
			<p><strong>This link will expire in 1 hour.</strong></p>
			<p>If you didn't request a password reset, you can safely ignore this email.</p>
		</div>
		<div class="footer">
			<p>This is an automated email. Please do not reply.</p>
		</div>
	</div>
</body>
</html>
`, html.EscapeString(toName), html.EscapeString(resetLink), html.EscapeString(resetLink))

	textBody := fmt.Sprintf(`Hi %s,

We received a request to reset your password.

Click the link below to reset your password:
%s

This link will expire in 1 hour.

If you didn't request a password reset, you can safely ignore this email.
`, toName, resetLink)

	return s.sendEmail(ctx, toEmail, subject, htmlBody, textBody)
}

func (s *EmailService) resetLink(token string) string {
	return fmt.Sprintf("%s/reset-password?token=%s", s.appBaseURL, url.QueryEscape(token))
}

// sendEmail sends an email using Amazon SES
func (s *EmailService) sendEmail(ctx context.Context, toEmail, subject, htmlBody, textBody string) error {
	fromAddress := s.fromEmail
	if s.fromName != "" {
		fromAddress = fmt.Sprintf("%s <%s>", s.fromName, s.fromEmail)
	}

	input := &sesv2.SendEmailInput{
		FromEmailAddress: aws.String(fromAddress),
		Destination: &types.Destination{
			ToAddresses: []string{toEmail},
		},
		Content: &types.EmailContent{
			Simple: &types.Message{
				Subject: &types.Content{
					Data:    aws.String(subject),
					Charset: aws.String("UTF-8"),
				},
				Body: &types.Body{
					Html: &types.Content{
						Data:    aws.String(htmlBody),
						Charset: aws.String("UTF-8"),
					},
					Text: &types.Content{
						Data:    aws.String(textBody),
						Charset: aws.String("UTF-8"),
					},
				},
			},
		},
	}

	result, err := s.client.SendEmail(ctx, input)
	if err != nil {
		return fmt.Errorf("failed to send email to %s: %w", toEmail, err)
	}

	s.log.Info(ctx, "email sent", "to", toEmail, "subject", subject, "message_id", aws.ToString(result.MessageId))
	return nil
}
