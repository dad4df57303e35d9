package prescription

import (
	"bytes"
	"context"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/medconnect/medconnect/internal/platform/auth"
	"github.com/medconnect/medconnect/internal/platform/phi"
)

type mockRepo struct {
	prescriptions map[uuid.UUID]*Prescription
}

func newMockRepo() *mockRepo {
	return &mockRepo{prescriptions: make(map[uuid.UUID]*Prescription)}
}

func (m *mockRepo) Create(_ context.Context, p *Prescription) error {
	p.ID = uuid.New()
	p.CreatedAt = time.Now().UTC()
	stored := *p
	m.prescriptions[p.ID] = &stored
	return nil
}

func (m *mockRepo) GetByID(_ context.Context, id uuid.UUID) (*Prescription, error) {
	p, ok := m.prescriptions[id]
	if !ok {
		return nil, ErrNotFound
	}
	copied := *p
	return &copied, nil
}

func (m *mockRepo) Update(_ context.Context, p *Prescription) error {
	if _, ok := m.prescriptions[p.ID]; !ok {
		return ErrNotFound
	}
	stored := *p
	m.prescriptions[p.ID] = &stored
	return nil
}

func (m *mockRepo) List(_ context.Context, f ListFilter) ([]*Prescription, error) {
	var out []*Prescription
	for _, p := range m.prescriptions {
		if f.PatientID != nil && p.PatientID != *f.PatientID {
			continue
		}
		if f.DoctorID != nil && p.DoctorID != *f.DoctorID {
			continue
		}
		copied := *p
		out = append(out, &copied)
	}
	return out, nil
}

func newTestService(t *testing.T) (*Service, *mockRepo, *bytes.Buffer) {
	t.Helper()
	key, err := phi.DeriveKey([]byte("test-secret"))
	if err != nil {
		t.Fatalf("derive key: %v", err)
	}
	enc, err := phi.NewEncryptor(key)
	if err != nil {
		t.Fatalf("new encryptor: %v", err)
	}
	var buf bytes.Buffer
	repo := newMockRepo()
	audit := phi.NewAuditLogger(zerolog.New(&buf), nil)
	return NewService(repo, enc, audit, zerolog.Nop()), repo, &buf
}

func doctorPrincipal() *auth.Principal {
	return &auth.Principal{ID: uuid.New().String(), Email: "doc@example.com", Role: phi.RoleDoctor}
}

func str(s string) *string { return &s }

func aspirin() []Medication {
	return []Medication{{Name: "Aspirin", Dosage: "100mg", Frequency: "daily", Duration: "7 days"}}
}

func TestCreate_EncryptsInstructions(t *testing.T) {
	svc, repo, _ := newTestService(t)
	doc := doctorPrincipal()

	rx, err := svc.Create(context.Background(), doc, CreateInput{
		PatientID:    uuid.New(),
		Medications:  aspirin(),
		Instructions: str("take with food"),
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if *rx.Instructions != "take with food" {
		t.Errorf("returned instructions = %q", *rx.Instructions)
	}

	stored := repo.prescriptions[rx.ID]
	if stored.Instructions == nil || *stored.Instructions == "take with food" {
		t.Error("instructions stored as plaintext")
	}
	if len(stored.Medications) != 1 || stored.Medications[0].Name != "Aspirin" {
		t.Errorf("medications not persisted: %+v", stored.Medications)
	}
}

func TestCreate_Validation(t *testing.T) {
	svc, _, buf := newTestService(t)

	t.Run("patient denied and audited", func(t *testing.T) {
		buf.Reset()
		p := &auth.Principal{ID: uuid.New().String(), Role: phi.RolePatient}
		if _, err := svc.Create(context.Background(), p, CreateInput{
			PatientID: uuid.New(), Medications: aspirin(),
		}); err != phi.ErrAuthorizationDenied {
			t.Errorf("got %v, want ErrAuthorizationDenied", err)
		}
		if !strings.Contains(buf.String(), "denied") {
			t.Error("denial was not audited")
		}
	})

	t.Run("admin denied and audited", func(t *testing.T) {
		buf.Reset()
		a := &auth.Principal{ID: uuid.New().String(), Role: phi.RoleAdmin}
		if _, err := svc.Create(context.Background(), a, CreateInput{
			PatientID: uuid.New(), Medications: aspirin(),
		}); err != phi.ErrAuthorizationDenied {
			t.Errorf("got %v, want ErrAuthorizationDenied", err)
		}
		if !strings.Contains(buf.String(), "denied") {
			t.Error("denial was not audited")
		}
	})

	t.Run("no medications", func(t *testing.T) {
		if _, err := svc.Create(context.Background(), doctorPrincipal(), CreateInput{
			PatientID: uuid.New(),
		}); err != ErrNoMedications {
			t.Errorf("got %v, want ErrNoMedications", err)
		}
	})
}

func TestList_RoleScoping(t *testing.T) {
	svc, _, _ := newTestService(t)
	doc := doctorPrincipal()
	otherDoc := doctorPrincipal()
	patientID := uuid.New()

	mustCreate := func(p *auth.Principal, patient uuid.UUID) {
		t.Helper()
		if _, err := svc.Create(context.Background(), p, CreateInput{
			PatientID: patient, Medications: aspirin(), Instructions: str("before bed"),
		}); err != nil {
			t.Fatalf("create: %v", err)
		}
	}
	mustCreate(doc, patientID)
	mustCreate(doc, uuid.New())
	mustCreate(otherDoc, patientID)

	t.Run("patient sees own decrypted", func(t *testing.T) {
		p := &auth.Principal{ID: patientID.String(), Role: phi.RolePatient}
		got, err := svc.List(context.Background(), p, nil, nil, nil)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(got) != 2 {
			t.Fatalf("got %d prescriptions, want 2", len(got))
		}
		if got[0]["instructions"] != "before bed" {
			t.Errorf("instructions = %v", got[0]["instructions"])
		}
	})

	t.Run("doctor defaults to own", func(t *testing.T) {
		got, err := svc.List(context.Background(), doc, nil, nil, nil)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(got) != 2 {
			t.Errorf("got %d prescriptions, want 2", len(got))
		}
	})

	t.Run("admin sees all without filter", func(t *testing.T) {
		a := &auth.Principal{ID: uuid.New().String(), Role: phi.RoleAdmin}
		got, err := svc.List(context.Background(), a, nil, nil, nil)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(got) != 3 {
			t.Errorf("got %d prescriptions, want 3", len(got))
		}
	})
}

func TestUpdate(t *testing.T) {
	svc, repo, buf := newTestService(t)
	doc := doctorPrincipal()

	created, err := svc.Create(context.Background(), doc, CreateInput{
		PatientID: uuid.New(), Medications: aspirin(), Instructions: str("before bed"),
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	t.Run("reencrypts instructions", func(t *testing.T) {
		updated, err := svc.Update(context.Background(), doc, created.ID, map[string]any{
			"instructions": "after meals",
		})
		if err != nil {
			t.Fatalf("update: %v", err)
		}
		if *updated.Instructions != "after meals" {
			t.Errorf("instructions = %q", *updated.Instructions)
		}
		stored := repo.prescriptions[created.ID]
		if *stored.Instructions == "after meals" {
			t.Error("updated instructions stored as plaintext")
		}
	})

	t.Run("replaces medications", func(t *testing.T) {
		updated, err := svc.Update(context.Background(), doc, created.ID, map[string]any{
			"medications": []any{
				map[string]any{"name": "Ibuprofen", "dosage": "200mg", "frequency": "as needed", "duration": "5 days"},
			},
		})
		if err != nil {
			t.Fatalf("update: %v", err)
		}
		if len(updated.Medications) != 1 || updated.Medications[0].Name != "Ibuprofen" {
			t.Errorf("medications = %+v", updated.Medications)
		}
	})

	t.Run("other doctor gets not found", func(t *testing.T) {
		if _, err := svc.Update(context.Background(), doctorPrincipal(), created.ID, map[string]any{
			"instructions": "x",
		}); err != ErrNotFound {
			t.Errorf("got %v, want ErrNotFound", err)
		}
	})

	t.Run("patient denied and audited", func(t *testing.T) {
		buf.Reset()
		p := &auth.Principal{ID: created.PatientID.String(), Role: phi.RolePatient}
		if _, err := svc.Update(context.Background(), p, created.ID, map[string]any{
			"instructions": "x",
		}); err != phi.ErrAuthorizationDenied {
			t.Errorf("got %v, want ErrAuthorizationDenied", err)
		}
		if !strings.Contains(buf.String(), "denied") {
			t.Error("denial was not audited")
		}
	})

	t.Run("protected fields only", func(t *testing.T) {
		if _, err := svc.Update(context.Background(), doc, created.ID, map[string]any{
			"patient_id": uuid.New().String(),
		}); err != ErrNoValidFields {
			t.Errorf("got %v, want ErrNoValidFields", err)
		}
	})
}
