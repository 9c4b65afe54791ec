package notify

import (
	"context"
	"fmt"
	"log"
	"net/smtp"
	"strings"
)

// Mailer sends notifications over SMTP. Zero credentials means
// unauthenticated relay, which is what local catch-all servers expect.
type Mailer struct {
	Host     string
	Port     int
	From     string
	Username string
	Password string
}

func (m Mailer) send(to, subject, body string) error {
	if strings.TrimSpace(to) == "" {
		return fmt.Errorf("mail: empty recipient")
	}
	addr := fmt.Sprintf("%s:%d", m.Host, m.Port)
	msg := strings.Join([]string{
		"From: " + m.From,
		"To: " + to,
		"Subject: " + subject,
		"MIME-Version: 1.0",
		"Content-Type: text/plain; charset=utf-8",
		"",
		body,
	}, "\r\n")
	var auth smtp.Auth
	if m.Username != "" {
		auth = smtp.PlainAuth("", m.Username, m.Password, m.Host)
	}
	return smtp.SendMail(addr, auth, m.From, []string{to}, []byte(msg))
}

func (m Mailer) SendVerification(_ context.Context, p VerificationPayload) error {
	return m.send(p.Email, "Verify your email",
		fmt.Sprintf("Hello %s,\n\nYour verification code is %s.\n", p.Name, p.Code))
}

func (m Mailer) SendEmployeeRegistered(_ context.Context, p EmployeeRegisteredPayload) error {
	return m.send(p.ConciergerieEmail, "New worker registration",
		fmt.Sprintf("%s (%s) registered and is awaiting approval.\n", p.EmployeeName, p.EmployeeEmail))
}

func (m Mailer) SendEmployeeApproved(_ context.Context, p EmployeeApprovedPayload) error {
	return m.send(p.Email, "Your registration was reviewed",
		fmt.Sprintf("Hello %s,\n\nYour registration status is now: %s.\n", p.Name, p.Approval))
}

func (m Mailer) SendMissionStatus(_ context.Context, p MissionStatusPayload) error {
	return m.send(p.ConciergerieEmail, "Mission status changed",
		fmt.Sprintf("Mission %s at %s is now %s (worker: %s).\n", p.MissionID, p.HomeTitle, p.Status, p.EmployeeName))
}

func (m Mailer) SendMissionLate(_ context.Context, p MissionLatePayload) error {
	return m.send(p.ConciergerieEmail, "Mission completed late",
		fmt.Sprintf("Mission %s at %s was due %s but completed %s (worker: %s).\n",
			p.MissionID, p.HomeTitle, p.End, p.CompletedAt, p.EmployeeName))
}

func (m Mailer) SendMissionAssigned(_ context.Context, p MissionAssignedPayload) error {
	return m.send(p.Email, "Mission confirmed",
		fmt.Sprintf("You accepted mission %s at %s (%s to %s).\n", p.MissionID, p.HomeTitle, p.Start, p.End))
}

func (m Mailer) SendMissionUpdated(_ context.Context, p MissionUpdatedPayload) error {
	return m.send(p.Email, "Mission updated",
		fmt.Sprintf("Mission %s at %s changed; it now runs %s to %s.\n", p.MissionID, p.HomeTitle, p.Start, p.End))
}

func (m Mailer) SendMissionRemoved(_ context.Context, p MissionRemovedPayload) error {
	return m.send(p.Email, "Mission no longer yours",
		fmt.Sprintf("Mission %s at %s was %s and is no longer assigned to you.\n", p.MissionID, p.HomeTitle, p.Reason))
}

// LogSender writes notifications to a logger instead of delivering them.
// Used by development workspaces without SMTP configured.
type LogSender struct {
	Logger *log.Logger
}

func (l LogSender) logf(kind string, payload any) error {
	logger := l.Logger
	if logger == nil {
		logger = log.Default()
	}
	logger.Printf("notify %s: %+v", kind, payload)
	return nil
}

func (l LogSender) SendVerification(_ context.Context, p VerificationPayload) error {
	return l.logf(KindVerification, p)
}

func (l LogSender) SendEmployeeRegistered(_ context.Context, p EmployeeRegisteredPayload) error {
	return l.logf(KindEmployeeRegistered, p)
}

func (l LogSender) SendEmployeeApproved(_ context.Context, p EmployeeApprovedPayload) error {
	return l.logf(KindEmployeeApproved, p)
}

func (l LogSender) SendMissionStatus(_ context.Context, p MissionStatusPayload) error {
	return l.logf(KindMissionStatus, p)
}

func (l LogSender) SendMissionLate(_ context.Context, p MissionLatePayload) error {
	return l.logf(KindMissionLate, p)
}

func (l LogSender) SendMissionAssigned(_ context.Context, p MissionAssignedPayload) error {
	return l.logf(KindMissionAssigned, p)
}

func (l LogSender) SendMissionUpdated(_ context.Context, p MissionUpdatedPayload) error {
	return l.logf(KindMissionUpdated, p)
}

func (l LogSender) SendMissionRemoved(_ context.Context, p MissionRemovedPayload) error {
	return l.logf(KindMissionRemoved, p)
}
