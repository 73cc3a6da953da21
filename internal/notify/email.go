package notify

import (
	"context"
	"fmt"
	"net/smtp"
	"packwatch/internal/catalog"
	"packwatch/internal/components/assert"
	"packwatch/internal/components/telemetry"
	"strings"
	"time"

	"github.com/jordan-wright/email"
)

const report_email_send = "email.send"

// DefaultSendTimeout bounds one delivery when the caller's context has no
// deadline of its own.
const DefaultSendTimeout = 30 * time.Second

type SmtpConfig struct {
	Server       string `json:"server" envconfig:"SERVER"`
	Port         int    `json:"port" envconfig:"PORT"`
	EmailAddress string `json:"email_address" envconfig:"EMAIL_ADDRESS"`
	Password     string `json:"password" envconfig:"PASSWORD"`
}

type EmailConfig struct {
	Smtp SmtpConfig `json:"smtp" envconfig:"SMTP"`
	// Recipients maps a subscriber id to its email address.
	Recipients map[int64]string `json:"recipients" envconfig:"RECIPIENTS"`
}

type sendFunc func(mail *email.Email, addr string, auth smtp.Auth) error

func sendMail(mail *email.Email, addr string, auth smtp.Auth) error {
	return mail.Send(addr, auth)
}

type EmailNotifier struct {
	config EmailConfig
	send   sendFunc
	tel    telemetry.API
}

func NewEmailNotifier(config EmailConfig, tel telemetry.API) *EmailNotifier {
	assert.NotEmptyStr(config.Smtp.Server)
	assert.NotNil(tel)

	return &EmailNotifier{
		config: config,
		send:   sendMail,
		tel:    telemetry.NewScopedAPI("notify", tel),
	}
}

func (n *EmailNotifier) Notify(ctx context.Context, subscriberId int64, events []catalog.ChangeEvent) error {
	address, ok := n.config.Recipients[subscriberId]
	if !ok {
		n.tel.ReportDebug("no email address for subscriber", subscriberId)
		return nil
	}

	mail := email.NewEmail()
	mail.From = fmt.Sprintf("Pack Watch <%s>", n.config.Smtp.EmailAddress)
	mail.To = []string{address}
	mail.Subject = subject(events)
	mail.Text = []byte(FormatEvents(events))

	addr := fmt.Sprintf("%s:%d", n.config.Smtp.Server, n.config.Smtp.Port)
	auth := smtp.PlainAuth("", n.config.Smtp.EmailAddress, n.config.Smtp.Password, n.config.Smtp.Server)

	ctx, cancel := context.WithTimeout(ctx, DefaultSendTimeout)
	defer cancel()

	err := n.sendContext(ctx, mail, addr, auth)
	if err != nil && strings.Contains(err.Error(), "server doesn't support AUTH") {
		err = n.sendContext(ctx, mail, addr, nil)
	}
	if err != nil {
		n.tel.ReportBroken(report_email_send, err, subscriberId)
		return fmt.Errorf("send email to subscriber %d: %w", subscriberId, err)
	}
	return nil
}

// sendContext returns as soon as ctx is done. The email library dials and
// talks SMTP without deadlines, so a silent server would otherwise hold the
// caller forever; the abandoned send finishes (or fails) in the background.
func (n *EmailNotifier) sendContext(ctx context.Context, mail *email.Email, addr string, auth smtp.Auth) error {
	done := make(chan error, 1)
	go func() {
		done <- n.send(mail, addr, auth)
	}()
	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return fmt.Errorf("smtp %s: %w", addr, ctx.Err())
	}
}

func subject(events []catalog.ChangeEvent) string {
	if len(events) == 1 {
		return FormatEvent(events[0])
	}
	return fmt.Sprintf("%d War Thunder pack updates", len(events))
}
