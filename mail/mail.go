// Package mail sends transactional mail through a narrow interface so
// the rest of the app never touches SMTP directly
package mail

import (
	"errors"

	"github.com/spf13/viper"
	"go.uber.org/zap"
	"gopkg.in/gomail.v2"
)

type Sender interface {
	Send(to, subject, text string) error
}

// NewFromConfig returns an SMTP sender, or a logging sender when no
// mail host is configured so local setups still surface codes
func NewFromConfig() Sender {
	if viper.GetString("mail.host") == "" {
		return &LogSender{}
	}

	return &SMTPSender{
		host:     viper.GetString("mail.host"),
		port:     viper.GetInt("mail.port"),
		from:     viper.GetString("mail.sender"),
		password: viper.GetString("mail.password"),
	}
}

type SMTPSender struct {
	host     string
	port     int
	from     string
	password string
}

func (s *SMTPSender) Send(to, subject, text string) error {
	if to == s.from {
		return errors.New("invalid email address")
	}

	m := gomail.NewMessage()
	m.SetHeader("From", s.from)
	m.SetHeader("To", to)
	m.SetHeader("Subject", subject)
	m.SetBody("text/plain", text)

	d := gomail.NewDialer(s.host, s.port, s.from, s.password)

	return d.DialAndSend(m)
}

// LogSender writes mail to the log instead of delivering it
type LogSender struct{}

func (*LogSender) Send(to, subject, text string) error {
	zap.L().Info("Outbound mail (no mail host configured)",
		zap.String("to", to),
		zap.String("subject", subject),
		zap.String("text", text),
	)
	return nil
}
