package service

import (
	"context"
	"fmt"
	"html"
	"strings"
	"time"

	"github.com/sendgrid/rest"
	"github.com/sendgrid/sendgrid-go"
	"github.com/sendgrid/sendgrid-go/helpers/mail"
	"gopkg.in/gomail.v2"

	"voluntia-backend/internal/config"
	"voluntia-backend/internal/domain"
	"voluntia-backend/internal/logger"
)

// EmailMessage is a single rendered email
type EmailMessage struct {
	To        string
	ToName    string
	Subject   string
	PlainText string
	HTML      string
}

// EmailSender is any email backend
type EmailSender interface {
	SendEmail(ctx context.Context, msg EmailMessage) error
}

// NewEmailSender picks the delivery backend configured in cfg. Disabled
// delivery only logs envelopes.
func NewEmailSender(cfg config.EmailConfig) EmailSender {
	if !cfg.Enabled {
		return NewLogSender()
	}
	if cfg.Provider == config.EmailProviderSMTP {
		return NewSMTPSender(cfg.SMTP.Host, cfg.SMTP.Port, cfg.SMTP.User, cfg.SMTP.Password, cfg.FromAddress, cfg.FromName)
	}
	return NewSendGridSender(cfg.SendGridAPIKey, cfg.FromAddress, cfg.FromName)
}

type sendGridClient interface {
	SendWithContext(ctx context.Context, email *mail.SGMailV3) (*rest.Response, error)
}

type sendGridSender struct {
	client    sendGridClient
	fromEmail string
	fromName  string
}

func NewSendGridSender(apiKey, fromEmail, fromName string) EmailSender {
	return &sendGridSender{
		client:    sendgrid.NewSendClient(apiKey),
		fromEmail: fromEmail,
		fromName:  fromName,
	}
}

func (s *sendGridSender) SendEmail(ctx context.Context, msg EmailMessage) error {
	logger.ExternalServiceCall("sendgrid", "send", "to", msg.To, "subject", msg.Subject)

	from := mail.NewEmail(s.fromName, s.fromEmail)
	recipient := mail.NewEmail(msg.ToName, msg.To)
	message := mail.NewSingleEmail(from, msg.Subject, recipient, msg.PlainText, msg.HTML)

	response, err := s.client.SendWithContext(ctx, message)
	if err != nil {
		err = fmt.Errorf("failed to send email: %w", err)
		logger.ExternalServiceResult("sendgrid", "send", err, "to", msg.To)
		return err
	}
	if response.StatusCode >= 400 {
		err = fmt.Errorf("sendgrid error: status %d, body: %s", response.StatusCode, response.Body)
		logger.ExternalServiceResult("sendgrid", "send", err, "to", msg.To)
		return err
	}

	logger.ExternalServiceResult("sendgrid", "send", nil, "to", msg.To, "status", response.StatusCode)
	return nil
}

type smtpDialer interface {
	DialAndSend(m ...*gomail.Message) error
}

type smtpSender struct {
	dialer    smtpDialer
	fromEmail string
	fromName  string
}

func NewSMTPSender(host string, port int, username, password, fromEmail, fromName string) EmailSender {
	return &smtpSender{
		dialer:    gomail.NewDialer(host, port, username, password),
		fromEmail: fromEmail,
		fromName:  fromName,
	}
}

func (s *smtpSender) SendEmail(ctx context.Context, msg EmailMessage) error {
	logger.ExternalServiceCall("smtp", "send", "to", msg.To, "subject", msg.Subject)

	m := gomail.NewMessage()
	m.SetAddressHeader("From", s.fromEmail, s.fromName)
	m.SetAddressHeader("To", msg.To, msg.ToName)
	m.SetHeader("Subject", msg.Subject)
	m.SetBody("text/plain", msg.PlainText)
	if msg.HTML != "" {
		m.AddAlternative("text/html", msg.HTML)
	}

	if err := s.dialer.DialAndSend(m); err != nil {
		err = fmt.Errorf("failed to send email via smtp: %w", err)
		logger.ExternalServiceResult("smtp", "send", err, "to", msg.To)
		return err
	}
	logger.ExternalServiceResult("smtp", "send", nil, "to", msg.To)
	return nil
}

// logSender stands in for a real backend when email is disabled. Only the envelope
// is logged; bodies can contain credentials.
type logSender struct{}

func NewLogSender() EmailSender {
	return logSender{}
}

func (logSender) SendEmail(ctx context.Context, msg EmailMessage) error {
	logger.Info("Email delivery disabled, message dropped", "to", msg.To, "subject", msg.Subject)
	return nil
}

type Mailer struct {
	sender   EmailSender
	loginURL string
}

// NewMailer renders messages and hands them to sender. It implements both
// EmailService and WelcomeNotifier.
func NewMailer(sender EmailSender, loginURL string) *Mailer {
	return &Mailer{sender: sender, loginURL: loginURL}
}

var membershipLabels = map[domain.MembershipType]string{
	domain.MembershipTypeCommunity: "community member",
	domain.MembershipTypeSupporter: "supporter",
	domain.MembershipTypeMember:    "member",
}

func (s *Mailer) SendWelcome(ctx context.Context, user *domain.User, membershipType domain.MembershipType, temporaryPassword string) error {
	label := membershipLabels[membershipType]
	if label == "" {
		label = string(membershipType)
	}

	var plain strings.Builder
	fmt.Fprintf(&plain, "Welcome, %s!\n\n", user.Name)
	fmt.Fprintf(&plain, "Your application to join Voluntia as a %s has been approved.\n\n", label)
	fmt.Fprintf(&plain, "You can now sign in with your email address (%s) and this temporary password:\n\n%s\n\n", user.Email, temporaryPassword)
	plain.WriteString("Please change your password after the first sign-in.\n")
	if s.loginURL != "" {
		fmt.Fprintf(&plain, "\nSign in: %s\n", s.loginURL)
	}
	plain.WriteString("\nThe Voluntia Team")

	htmlBody := fmt.Sprintf(`<h1>Welcome, %s!</h1>
<p>Your application to join Voluntia as a %s has been approved.</p>
<p>You can now sign in with your email address (%s) and this temporary password:</p>
<p><b>%s</b></p>
<p>Please change your password after the first sign-in.</p>`,
		html.EscapeString(user.Name), label, html.EscapeString(user.Email), html.EscapeString(temporaryPassword))
	if s.loginURL != "" {
		htmlBody += fmt.Sprintf(`<p><a href="%s">Sign in</a></p>`, html.EscapeString(s.loginURL))
	}
	htmlBody += "<p>The Voluntia Team</p>"

	return s.sender.SendEmail(ctx, EmailMessage{
		To:        user.Email,
		ToName:    user.Name,
		Subject:   "Welcome to Voluntia!",
		PlainText: plain.String(),
		HTML:      htmlBody,
	})
}

func (s *Mailer) SendCallReminder(ctx context.Context, user *domain.User, callAt time.Time) error {
	when := callAt.UTC().Format("Monday, 2 January 2006 at 15:04 MST")
	plain := fmt.Sprintf("Hello %s,\n\nThis is a reminder of your introductory call with the Voluntia team on %s.\n\nThe Voluntia Team", user.Name, when)
	htmlBody := fmt.Sprintf("<p>Hello %s,</p><p>This is a reminder of your introductory call with the Voluntia team on <b>%s</b>.</p><p>The Voluntia Team</p>",
		html.EscapeString(user.Name), when)

	return s.sender.SendEmail(ctx, EmailMessage{
		To:        user.Email,
		ToName:    user.Name,
		Subject:   "Reminder: your call with Voluntia",
		PlainText: plain,
		HTML:      htmlBody,
	})
}

func (s *Mailer) SendPendingDigest(ctx context.Context, to []domain.User, pendingCount int32, olderThan time.Duration) error {
	days := int(olderThan.Hours() / 24)
	subject := fmt.Sprintf("%d application(s) waiting for review", pendingCount)
	plain := fmt.Sprintf("%d membership application(s) have been pending for more than %d day(s).", pendingCount, days)
	htmlBody := fmt.Sprintf("<p><b>%d</b> membership application(s) have been pending for more than %d day(s).</p>", pendingCount, days)

	var firstErr error
	for _, u := range to {
		err := s.sender.SendEmail(ctx, EmailMessage{To: u.Email, ToName: u.Name, Subject: subject, PlainText: plain, HTML: htmlBody})
		if err != nil && firstErr == nil {
			firstErr = fmt.Errorf("failed to send digest to %s: %w", u.Email, err)
		}
	}
	return firstErr
}

// NotifyApproved implements WelcomeNotifier.
func (s *Mailer) NotifyApproved(ctx context.Context, user *domain.User, app *domain.Application, temporaryPassword string) error {
	return s.SendWelcome(ctx, user, app.DesiredMembershipType, temporaryPassword)
}
