package clients

import (
	"context"
	"net/smtp"
	"ticketing/entity"
	"time"

	"github.com/ThreeDotsLabs/go-event-driven/common/log"
	"github.com/domodwyer/mailyak/v3"
	"github.com/google/uuid"
)

type MailerConfig struct {
	Addr     string
	Host     string
	Username string
	Password string
	From     string
}

// Mailer sends HTML email over SMTP. It does not retry; callers that need
// retries rely on message redelivery.
type Mailer struct {
	cfg MailerConfig
}

func NewMailer(cfg MailerConfig) Mailer {
	return Mailer{
		cfg: cfg,
	}
}

func (m Mailer) SendEmail(ctx context.Context, to, subject, html string) (entity.DeliveryReceipt, error) {
	if m.cfg.Addr == "" {
		return entity.DeliveryReceipt{}, entity.Configuration("smtp host is not set")
	}

	var auth smtp.Auth
	if m.cfg.Username != "" {
		auth = smtp.PlainAuth("", m.cfg.Username, m.cfg.Password, m.cfg.Host)
	}

	messageID := uuid.NewString()

	mail := mailyak.New(m.cfg.Addr, auth)
	mail.To(to)
	mail.From(m.cfg.From)
	mail.FromName("Eventful")
	mail.Subject(subject)
	mail.AddHeader("X-Message-ID", messageID)
	mail.HTML().Set(html)

	if err := mail.Send(); err != nil {
		return entity.DeliveryReceipt{}, entity.Delivery(err)
	}

	log.FromContext(ctx).WithField("message_id", messageID).Info("Email sent")

	return entity.DeliveryReceipt{
		MessageID:  messageID,
		To:         to,
		AcceptedAt: time.Now().UTC(),
	}, nil
}
