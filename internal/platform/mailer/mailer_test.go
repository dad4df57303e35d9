package mailer

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/rs/zerolog"
)

func TestRenderSubstitutesPlaceholders(t *testing.T) {
	e := NewTemplateEngine()
	subject, body, err := e.Render(TemplateVerificationCode, map[string]string{
		"name": "Ada",
		"code": "482913",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(body, "Ada") || !strings.Contains(body, "482913") {
		t.Errorf("body missing substitutions: %s", body)
	}
	if strings.Contains(subject+body, "{{") {
		t.Errorf("unrendered placeholder remains: %s %s", subject, body)
	}
}

func TestRenderUnknownTemplate(t *testing.T) {
	e := NewTemplateEngine()
	if _, _, err := e.Render("no-such-template", nil); err == nil {
		t.Fatal("expected error for unknown template")
	}
}

func TestRenderMissingKeysLeftAsIs(t *testing.T) {
	e := NewTemplateEngine()
	_, body, err := e.Render(TemplateAppointmentBooked, map[string]string{
		"patient_name": "Ada",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(body, "{{doctor_name}}") {
		t.Errorf("absent key should stay as placeholder, got: %s", body)
	}
}

func TestRegisterTemplateOverrides(t *testing.T) {
	e := NewTemplateEngine()
	e.RegisterTemplate(Template{
		ID:      TemplateVerificationCode,
		Subject: "custom",
		Body:    "code={{code}}",
	})
	subject, body, err := e.Render(TemplateVerificationCode, map[string]string{"code": "1"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if subject != "custom" || body != "code=1" {
		t.Errorf("override not applied: %s / %s", subject, body)
	}
}

func TestSendVerificationCode(t *testing.T) {
	sender := &MockSender{}
	m := New(sender, NewTemplateEngine(), "noreply@medconnect.example")

	if err := m.SendVerificationCode(context.Background(), "ada@example.com", "Ada", "123456"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	calls := sender.Calls()
	if len(calls) != 1 {
		t.Fatalf("got %d calls, want 1", len(calls))
	}
	if calls[0].To != "ada@example.com" {
		t.Errorf("to = %q", calls[0].To)
	}
	if !strings.Contains(calls[0].Body, "123456") {
		t.Errorf("body missing code: %s", calls[0].Body)
	}
}

func TestSendTemplateSenderFailure(t *testing.T) {
	sender := &MockSender{ShouldFail: true, FailError: "smtp down"}
	m := New(sender, NewTemplateEngine(), "noreply@medconnect.example")

	err := m.SendVerificationCode(context.Background(), "ada@example.com", "Ada", "123456")
	if err == nil {
		t.Fatal("expected error from failing sender")
	}
	if !strings.Contains(err.Error(), "smtp down") {
		t.Errorf("error should wrap sender failure: %v", err)
	}
}

func TestLogSenderWritesEntry(t *testing.T) {
	var buf bytes.Buffer
	s := NewLogSender(zerolog.New(&buf))

	if err := s.Send(context.Background(), "ada@example.com", "hi", "code 123456"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	out := buf.String()
	for _, want := range []string{"ada@example.com", "code 123456", "outbound email"} {
		if !strings.Contains(out, want) {
			t.Errorf("log missing %q: %s", want, out)
		}
	}
}
