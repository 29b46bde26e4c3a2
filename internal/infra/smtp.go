package infra

import (
	"fmt"
	"net/smtp"

	"github.com/jordan-wright/email"
)

// Mailer sends closing reports to the supervisor mailbox. Only sessions whose
// difference classification is "alerta" generate mail.
type Mailer struct {
	host     string
	user     string
	password string
	addr     string
}

func NewMailer(host string, port int, user, password string) *Mailer {
	return &Mailer{
		host:     host,
		user:     user,
		password: password,
		addr:     fmt.Sprintf("%s:%d", host, port),
	}
}

// SendRelatorio sends the closing worksheet with the PDF attached.
func (m *Mailer) SendRelatorio(to, subject, body, pdfPath string) error {
	e := email.NewEmail()
	e.From = m.user
	e.To = []string{to}
	e.Subject = subject
	e.Text = []byte(body)

	if pdfPath != "" {
		if _, err := e.AttachFile(pdfPath); err != nil {
			return fmt.Errorf("mailer: attach PDF: %w", err)
		}
	}

	auth := smtp.PlainAuth("", m.user, m.password, m.host)
	return e.Send(m.addr, auth)
}
