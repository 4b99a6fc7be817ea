package notify

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/vitotech/website-api/internal/models"
	"github.com/vitotech/website-api/pkg/logger"
	"github.com/vitotech/website-api/pkg/mail"
	"github.com/vitotech/website-api/pkg/metrics"
)

// Settings configures the notifier. Recipient is the operator address
// alerted on every new contact message; leaving it empty disables the
// operator alert without affecting the visitor acknowledgment.
type Settings struct {
	From      string
	Recipient string
	SiteName  string

	// Timezone is used for the human-readable submission timestamp in
	// email bodies. Defaults to UTC when unset or unknown.
	Timezone string
}

// Notifier sends the two post-submission emails. Both sends are
// best-effort: every transport failure is logged and swallowed so the
// contact form never fails because of the mail system.
type Notifier struct {
	mailer   mail.Mailer
	settings Settings
	location *time.Location
	log      *zap.Logger
}

// New constructs a Notifier. A nil mailer turns both sends into no-ops.
func New(mailer mail.Mailer, settings Settings) *Notifier {
	if strings.TrimSpace(settings.SiteName) == "" {
		settings.SiteName = "VitoTech"
	}

	location := time.UTC
	if tz := strings.TrimSpace(settings.Timezone); tz != "" {
		if loc, err := time.LoadLocation(tz); err == nil {
			location = loc
		}
	}

	return &Notifier{
		mailer:   mailer,
		settings: settings,
		location: location,
		log:      logger.WithModule("notify"),
	}
}

// NotifyAdmin alerts the configured operator address about a new
// message. Without a configured recipient this is a no-op.
func (n *Notifier) NotifyAdmin(ctx context.Context, notification *models.Notification) {
	recipient := strings.TrimSpace(n.settings.Recipient)
	if recipient == "" || n.mailer == nil {
		return
	}

	subject := fmt.Sprintf("[%s Website] New contact message from %s", n.settings.SiteName, notification.Name)
	body := n.adminBody(notification)

	n.send(ctx, "admin", mail.Message{
		From:    n.settings.From,
		To:      []string{recipient},
		Subject: subject,
		Body:    body,
	})
}

// NotifySubmitter acknowledges receipt to the visitor. Records without
// an email (should not pass validation, but guarded anyway) are skipped.
func (n *Notifier) NotifySubmitter(ctx context.Context, notification *models.Notification) {
	if strings.TrimSpace(notification.Email) == "" || n.mailer == nil {
		return
	}

	subject := fmt.Sprintf("We have received your message – %s", n.settings.SiteName)
	body := n.submitterBody(notification)

	n.send(ctx, "submitter", mail.Message{
		From:    n.settings.From,
		To:      []string{notification.Email},
		Subject: subject,
		Body:    body,
	})
}

func (n *Notifier) send(ctx context.Context, audience string, msg mail.Message) {
	if err := n.mailer.Send(ctx, msg); err != nil {
		metrics.MailDeliveries.WithLabelValues(audience, "failed").Inc()
		n.log.Warn("email delivery failed",
			zap.String("audience", audience),
			zap.Error(err),
		)
		return
	}
	metrics.MailDeliveries.WithLabelValues(audience, "sent").Inc()
}

func (n *Notifier) adminBody(notification *models.Notification) string {
	lines := []string{
		"Hello,",
		"",
		fmt.Sprintf("A new contact message has been submitted on the %s website.", n.settings.SiteName),
		"",
	}
	lines = append(lines, n.summaryLines(notification)...)
	lines = append(lines,
		"",
		"Message:",
		"--------------------------------------------------",
		notification.Message,
		"--------------------------------------------------",
		"",
		"You can also view and manage this message in the admin panel.",
		"",
		fmt.Sprintf("— %s Website Notification System", n.settings.SiteName),
	)
	return strings.Join(lines, "\n")
}

func (n *Notifier) submitterBody(notification *models.Notification) string {
	greeting := notification.Name
	if strings.TrimSpace(greeting) == "" {
		greeting = "there"
	}

	lines := []string{
		fmt.Sprintf("Hi %s,", greeting),
		"",
		fmt.Sprintf("Thank you for contacting %s through our website.", n.settings.SiteName),
		"This e-mail is to confirm that we have received your message and",
		"our team will review it and get back to you as soon as possible.",
		"",
		"Summary of your message:",
		"--------------------------------------------------",
	}
	lines = append(lines, n.summaryLines(notification)...)
	lines = append(lines,
		"",
		"Message:",
		notification.Message,
		"--------------------------------------------------",
		"",
		"If you did not make this request, you can ignore this e-mail.",
		"",
		"Best regards,",
		fmt.Sprintf("%s Team", n.settings.SiteName),
	)
	return strings.Join(lines, "\n")
}

func (n *Notifier) summaryLines(notification *models.Notification) []string {
	created := notification.CreatedAt.In(n.location).Format("2006-01-02 15:04")

	lines := []string{
		fmt.Sprintf("Name:    %s", notification.Name),
		fmt.Sprintf("Email:   %s", notification.Email),
		fmt.Sprintf("Phone:   %s", dashIfEmpty(notification.Phone)),
		fmt.Sprintf("Company: %s", dashIfEmpty(notification.Company)),
		fmt.Sprintf("Service: %s", dashIfEmpty(notification.Service)),
		fmt.Sprintf("Date:    %s", created),
	}

	if notification.HasAttachment() {
		lines = append(lines, fmt.Sprintf("Attachment: %s", notification.AttachmentFilename()))
	} else {
		lines = append(lines, "Attachment: -")
	}
	return lines
}

func dashIfEmpty(value string) string {
	if strings.TrimSpace(value) == "" {
		return "-"
	}
	return value
}
