package email

import (
	"context"
	"fmt"
	"net/smtp"
	"time"

	"github.com/Dan9191/bank-cards/internal/config"
	"github.com/Dan9191/bank-cards/internal/models"
	"github.com/jordan-wright/email"
	"github.com/sirupsen/logrus"
)

// Sender handles sending card notifications via SMTP
type Sender struct {
	cfg    *config.Config
	logger *logrus.Logger
	send   func(e *email.Email) error
}

// NewSender creates a new email sender
func NewSender(cfg *config.Config, logger *logrus.Logger) *Sender {
	s := &Sender{
		cfg:    cfg,
		logger: logger,
	}
	s.send = s.sendSMTP
	return s
}

// CardBlocked tells the owner that one of their cards was blocked
func (s *Sender) CardBlocked(ctx context.Context, owner models.User, maskedNumber string) error {
	body := fmt.Sprintf(
		"Your card %s has been blocked at your request.\n"+
			"Payments and transfers with this card are no longer possible.\n"+
			"Contact support if you did not request this.\n",
		maskedNumber,
	)
	return s.deliver(ctx, owner, "Card Blocked", body)
}

// TransferCompleted confirms a transfer between the owner's cards
func (s *Sender) TransferCompleted(ctx context.Context, owner models.User, receipt models.TransferReceipt) error {
	body := fmt.Sprintf(
		"A transfer of %s has been completed.\n"+
			"From card: %s\n"+
			"To card: %s\n"+
			"Transaction time: %s\n",
		receipt.Amount.StringFixed(2), receipt.FromCardNumber, receipt.ToCardNumber,
		receipt.Timestamp.Format("2006-01-02 15:04:05"),
	)
	return s.deliver(ctx, owner, "Transfer Notification", body)
}

// CardExpiring reminds the owner that a card expires soon
func (s *Sender) CardExpiring(ctx context.Context, owner models.User, maskedNumber string, expiresOn time.Time) error {
	body := fmt.Sprintf(
		"This is a reminder that your card %s expires on %s.\n"+
			"Please contact the bank to have a new card issued.\n",
		maskedNumber, expiresOn.Format("2006-01-02"),
	)
	return s.deliver(ctx, owner, "Card Expiry Reminder", body)
}

func (s *Sender) deliver(ctx context.Context, owner models.User, subject, text string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if owner.Email == "" {
		s.logger.WithField("user_id", owner.ID).Debugf("No email address, skipping %q", subject)
		return nil
	}

	e := s.compose(owner, subject, text)
	if err := s.send(e); err != nil {
		s.logger.Errorf("Failed to send email to %s: %v", owner.Email, err)
		return fmt.Errorf("failed to send email: %w", err)
	}

	s.logger.Infof("Email sent to %s: %s", owner.Email, subject)
	return nil
}

func (s *Sender) compose(owner models.User, subject, text string) *email.Email {
	e := email.NewEmail()
	e.From = s.cfg.SenderEmail
	e.To = []string{owner.Email}
	e.Subject = subject

	name := owner.FullName
	if name == "" {
		name = owner.Username
	}
	body := fmt.Sprintf("Dear %s,\n\n", name) + text
	body += "\nBest regards,\nBank Cards Service"
	e.Text = []byte(body)
	return e
}

func (s *Sender) sendSMTP(e *email.Email) error {
	addr := fmt.Sprintf("%s:%s", s.cfg.SMTPHost, s.cfg.SMTPPort)
	auth := smtp.PlainAuth("", s.cfg.SMTPUsername, s.cfg.SMTPPassword, s.cfg.SMTPHost)
	return e.Send(addr, auth)
}
