// Package mail delivers verification codes and password-reset links.
package mail

import (
	"fmt"
	"net/smtp"

	"go.uber.org/zap"
)

// Mailer is implemented by SMTP delivery and by the log-only stub used in
// development and tests.
type Mailer interface {
	SendCode(to, code string) error
	SendResetLink(to, link string) error
}

// SMTP sends mail through a single upstream relay.
type SMTP struct {
	host string
	addr string
	from string
	auth smtp.Auth
}

func NewSMTP(host string, port int, user, pass string) *SMTP {
	return &SMTP{
		host: host,
		addr: fmt.Sprintf("%s:%d", host, port),
		from: user,
		auth: smtp.PlainAuth("", user, pass, host),
	}
}

func (m *SMTP) SendCode(to, code string) error {
	body := fmt.Sprintf("Your Garage Sale verification code is: %s\r\nThe code expires in one hour.", code)
	return m.send(to, "Garage Sale - verification code", body)
}

func (m *SMTP) SendResetLink(to, link string) error {
	body := fmt.Sprintf("Follow this link to reset your Garage Sale password:\r\n%s\r\nThe link expires in 15 minutes.", link)
	return m.send(to, "Garage Sale - password reset", body)
}

func (m *SMTP) send(to, subject, body string) error {
	msg := fmt.Sprintf("From: Garage sale <%s>\r\nTo: %s\r\nSubject: %s\r\n\r\n%s\r\n",
		m.from, to, subject, body)
	return smtp.SendMail(m.addr, m.auth, m.from, []string{to}, []byte(msg))
}

// LogMailer writes would-be mails to the log instead of sending them.
type LogMailer struct {
	Log *zap.Logger
}

func (m *LogMailer) SendCode(to, code string) error {
	m.Log.Info("mail suppressed", zap.String("to", to), zap.String("code", code))
	return nil
}

func (m *LogMailer) SendResetLink(to, link string) error {
	m.Log.Info("mail suppressed", zap.String("to", to), zap.String("link", link))
	return nil
}
