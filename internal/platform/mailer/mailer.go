// Package mailer delivers transactional email for account verification and
// appointment notifications. Delivery is pluggable behind the Sender
// interface; in development the LogSender writes messages to the structured
// log instead of an SMTP relay.
package mailer

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/rs/zerolog"
)

// Sender is the interface for sending email messages.
type Sender interface {
	Send(ctx context.Context, to, subject, body string) error
}

// ---------------------------------------------------------------------------
// Template Engine
// ---------------------------------------------------------------------------

// Template defines a reusable email template with {{key}} placeholders.
type Template struct {
	ID      string
	Subject string
	Body    string
}

// Built-in template identifiers.
const (
	TemplateVerificationCode     = "verification-code"
	TemplateAppointmentBooked    = "appointment-booked"
	TemplateAppointmentReminder  = "appointment-reminder"
	TemplateAppointmentCancelled = "appointment-cancelled"
)

// TemplateEngine manages email templates and renders them with data.
type TemplateEngine struct {
	mu        sync.RWMutex
	templates map[string]*Template
}

// NewTemplateEngine creates a TemplateEngine with the built-in templates
// pre-registered.
func NewTemplateEngine() *TemplateEngine {
	e := &TemplateEngine{
		templates: make(map[string]*Template),
	}
	e.registerBuiltIn()
	return e
}

func (e *TemplateEngine) registerBuiltIn() {
	builtIn := []Template{
		{
			ID:      TemplateVerificationCode,
			Subject: "Your MedConnect verification code",
			Body:    "Hello {{name}},\n\nYour verification code is {{code}}. It expires in 10 minutes.\n\nIf you did not request this code, you can ignore this message.",
		},
		{
			ID:      TemplateAppointmentBooked,
			Subject: "Appointment confirmed for {{date}}",
			Body:    "Dear {{patient_name}}, your appointment with {{doctor_name}} on {{date}} at {{time}} has been booked.",
		},
		{
			ID:      TemplateAppointmentReminder,
			Subject: "Appointment reminder",
			Body:    "Dear {{patient_name}}, this is a reminder of your appointment on {{date}} at {{time}} with {{doctor_name}}.",
		},
		{
			ID:      TemplateAppointmentCancelled,
			Subject: "Appointment cancelled",
			Body:    "Dear {{patient_name}}, your appointment on {{date}} at {{time}} with {{doctor_name}} has been cancelled.",
		},
	}
	for i := range builtIn {
		t := builtIn[i]
		e.templates[t.ID] = &t
	}
}

// RegisterTemplate adds or replaces a template in the engine.
func (e *TemplateEngine) RegisterTemplate(t Template) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.templates[t.ID] = &t
}

// Render looks up a template by ID and performs {{key}} replacement using the
// supplied data map. Keys present in the template but absent from data are
// left as-is.
func (e *TemplateEngine) Render(templateID string, data map[string]string) (subject, body string, err error) {
	e.mu.RLock()
	t, ok := e.templates[templateID]
	e.mu.RUnlock()
	if !ok {
		return "", "", fmt.Errorf("template %q not found", templateID)
	}

	subject = t.Subject
	body = t.Body
	for k, v := range data {
		placeholder := "{{" + k + "}}"
		subject = strings.ReplaceAll(subject, placeholder, v)
		body = strings.ReplaceAll(body, placeholder, v)
	}
	return subject, body, nil
}

// ---------------------------------------------------------------------------
// Mailer
// ---------------------------------------------------------------------------

// Mailer renders templates and dispatches them through a Sender.
type Mailer struct {
	sender    Sender
	templates *TemplateEngine
	from      string
}

// New constructs a Mailer.
func New(sender Sender, templates *TemplateEngine, from string) *Mailer {
	return &Mailer{sender: sender, templates: templates, from: from}
}

// SendTemplate renders the named template and sends it to the recipient.
func (m *Mailer) SendTemplate(ctx context.Context, to, templateID string, data map[string]string) error {
	subject, body, err := m.templates.Render(templateID, data)
	if err != nil {
		return fmt.Errorf("render template: %w", err)
	}
	if err := m.sender.Send(ctx, to, subject, body); err != nil {
		return fmt.Errorf("send %s to %s: %w", templateID, to, err)
	}
	return nil
}

// SendVerificationCode sends the OTP email used during registration.
func (m *Mailer) SendVerificationCode(ctx context.Context, to, name, code string) error {
	return m.SendTemplate(ctx, to, TemplateVerificationCode, map[string]string{
		"name": name,
		"code": code,
	})
}

// ---------------------------------------------------------------------------
// Senders
// ---------------------------------------------------------------------------

// LogSender writes outbound mail to the structured log. It is the default
// sender in development, where the verification code in the log body stands
// in for a real delivery channel.
type LogSender struct {
	logger zerolog.Logger
}

// NewLogSender creates a LogSender.
func NewLogSender(logger zerolog.Logger) *LogSender {
	return &LogSender{logger: logger}
}

// Send logs the message instead of delivering it.
func (s *LogSender) Send(_ context.Context, to, subject, body string) error {
	s.logger.Info().
		Str("to", to).
		Str("subject", subject).
		Str("body", body).
		Msg("outbound email")
	return nil
}

// Call records a single call to Send on a MockSender.
type Call struct {
	To      string
	Subject string
	Body    string
}

// MockSender is a test double for Sender.
type MockSender struct {
	mu         sync.Mutex
	calls      []Call
	ShouldFail bool
	FailError  string
}

// Send records the call and optionally returns an error.
func (m *MockSender) Send(_ context.Context, to, subject, body string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, Call{To: to, Subject: subject, Body: body})
	if m.ShouldFail {
		return errors.New(m.FailError)
	}
	return nil
}

// Calls returns a copy of recorded calls.
func (m *MockSender) Calls() []Call {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Call, len(m.calls))
	copy(out, m.calls)
	return out
}
