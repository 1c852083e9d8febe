// Package mailer sends best-effort borrower notifications over SMTP.
// Delivery failures never affect the lifecycle transition that triggered
// them; callers log the error and move on.
package mailer

import (
	"fmt"
	"net/smtp"
	"strings"
	"time"

	"toolledger-api/internal/config"
	"toolledger-api/internal/models"
)

type Mailer struct {
	host     string
	port     string
	username string
	password string
	from     string
	enabled  bool

	// send is swappable for tests
	send func(addr string, a smtp.Auth, from string, to []string, msg []byte) error
}

func New(cfg *config.Config) *Mailer {
	return &Mailer{
		host:     cfg.SMTPHost,
		port:     cfg.SMTPPort,
		username: cfg.SMTPUser,
		password: cfg.SMTPPass,
		from:     cfg.SMTPFrom,
		enabled:  cfg.MailEnabled(),
		send:     smtp.SendMail,
	}
}

// Enabled reports whether the mailer is configured to deliver anything.
func (m *Mailer) Enabled() bool {
	return m.enabled
}

// SendApproval notifies the borrower that their request was approved.
func (m *Mailer) SendApproval(req *models.BorrowRequestWithDetails) error {
	if !m.enabled {
		return nil
	}
	subject := fmt.Sprintf("Tool Request Approved: %s", req.Equipment.Name)
	body := approvalBody(req)
	return m.sendMail(req.User.Email, subject, body)
}

// SendReturn confirms to the borrower that their return was recorded.
func (m *Mailer) SendReturn(req *models.BorrowRequestWithDetails) error {
	if !m.enabled {
		return nil
	}
	subject := fmt.Sprintf("Tool Return Recorded: %s", req.Equipment.Name)
	body := returnBody(req)
	return m.sendMail(req.User.Email, subject, body)
}

func (m *Mailer) sendMail(to, subject, body string) error {
	var msg strings.Builder
	msg.WriteString("From: " + m.from + "\r\n")
	msg.WriteString("To: " + to + "\r\n")
	msg.WriteString("Subject: " + subject + "\r\n")
	msg.WriteString("MIME-Version: 1.0\r\n")
	msg.WriteString("Content-Type: text/plain; charset=\"utf-8\"\r\n")
	msg.WriteString("\r\n")
	msg.WriteString(body)

	var a smtp.Auth
	if m.username != "" {
		a = smtp.PlainAuth("", m.username, m.password, m.host)
	}
	return m.send(m.host+":"+m.port, a, m.from, []string{to}, []byte(msg.String()))
}

func approvalBody(req *models.BorrowRequestWithDetails) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Hello %s,\n\n", req.User.Name)
	fmt.Fprintf(&b, "Good news! Your request for %q has been APPROVED.\n\n", req.Equipment.Name)
	fmt.Fprintf(&b, "Borrow date: %s\n", formatDate(req.BorrowDate))
	fmt.Fprintf(&b, "Expected return: %s\n\n", formatDate(req.ExpectedReturnDate))
	if req.AdminNotes != nil && *req.AdminNotes != "" {
		fmt.Fprintf(&b, "Notes: %s\n\n", *req.AdminNotes)
	}
	fmt.Fprintf(&b, "Request ID: %d\n\n", req.ID)
	b.WriteString("Please bring a valid ID when picking up the tool. If you need to reschedule, reply to this email or contact the admin.\n\n")
	b.WriteString("Thank you,\nToolLedger")
	return b.String()
}

func returnBody(req *models.BorrowRequestWithDetails) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Hello %s,\n\n", req.User.Name)
	fmt.Fprintf(&b, "Your return of %q has been recorded.\n\n", req.Equipment.Name)
	fmt.Fprintf(&b, "Borrow date: %s\n", formatDate(req.BorrowDate))
	if req.ActualReturnDate != nil {
		fmt.Fprintf(&b, "Return date: %s\n\n", formatDate(*req.ActualReturnDate))
	}
	fmt.Fprintf(&b, "Request ID: %d\n\n", req.ID)
	b.WriteString("Thank you for returning the tool on record.\n\n")
	b.WriteString("Thank you,\nToolLedger")
	return b.String()
}

func formatDate(t time.Time) string {
	if t.IsZero() {
		return "N/A"
	}
	return t.Format("Jan 2, 2006 15:04")
}
