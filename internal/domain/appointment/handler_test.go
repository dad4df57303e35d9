package appointment

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/medconnect/medconnect/internal/platform/auth"
	"github.com/medconnect/medconnect/internal/platform/phi"
)

func newTestHandler() (*Handler, *mockRepo, *mockUsers) {
	svc, repo, users, _ := newTestService()
	return NewHandler(svc), repo, users
}

func authedContext(e *echo.Echo, method, target string, body string, p *auth.Principal) (echo.Context, *httptest.ResponseRecorder) {
	var reader *strings.Reader
	if body == "" {
		reader = strings.NewReader("")
	} else {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, reader)
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	if p != nil {
		req = req.WithContext(auth.WithPrincipal(req.Context(), p))
	}
	rec := httptest.NewRecorder()
	return e.NewContext(req, rec), rec
}

func TestHandlerCreate_Created(t *testing.T) {
	h, _, users := newTestHandler()
	doctor := addDoctor(users, true)
	e := echo.New()

	body := fmt.Sprintf(`{"doctor_id":%q,"appointment_date":"2026-09-14T10:00:00Z"}`, doctor.ID)
	c, rec := authedContext(e, http.MethodPost, "/appointments", body, patientPrincipal())

	if err := h.Create(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, want 201", rec.Code)
	}

	var got Appointment
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatalf("invalid response body: %v", err)
	}
	if got.Status != StatusScheduled || got.DurationMinutes != DefaultDurationMinutes {
		t.Errorf("unexpected defaults: %+v", got)
	}
}

func TestHandlerCreate_UnpaidIs402(t *testing.T) {
	h, repo, users := newTestHandler()
	doctor := addDoctor(users, true)
	p := patientPrincipal()
	e := echo.New()

	repo.appointments[uuid.New()] = &Appointment{
		ID: uuid.New(), PatientID: uuid.MustParse(p.ID), DoctorID: doctor.ID,
		AppointmentDate: time.Now().UTC(), Status: StatusCompleted, PaymentStatus: PaymentPending,
	}

	body := fmt.Sprintf(`{"doctor_id":%q,"appointment_date":"2026-09-14T10:00:00Z"}`, doctor.ID)
	c, _ := authedContext(e, http.MethodPost, "/appointments", body, p)

	err := h.Create(c)
	var he *echo.HTTPError
	if !asHTTPError(err, &he) || he.Code != http.StatusPaymentRequired {
		t.Fatalf("got %v, want 402", err)
	}
}

func TestHandlerCreate_SlotConflictIs409(t *testing.T) {
	h, _, users := newTestHandler()
	doctor := addDoctor(users, true)
	e := echo.New()

	body := fmt.Sprintf(`{"doctor_id":%q,"appointment_date":"2026-09-14T10:00:00Z"}`, doctor.ID)
	c, _ := authedContext(e, http.MethodPost, "/appointments", body, patientPrincipal())
	if err := h.Create(c); err != nil {
		t.Fatalf("first booking: %v", err)
	}

	c, _ = authedContext(e, http.MethodPost, "/appointments", body, patientPrincipal())
	err := h.Create(c)
	var he *echo.HTTPError
	if !asHTTPError(err, &he) || he.Code != http.StatusConflict {
		t.Fatalf("got %v, want 409", err)
	}
}

func TestHandlerCreate_DoctorNotFoundIs404(t *testing.T) {
	h, _, _ := newTestHandler()
	e := echo.New()

	body := fmt.Sprintf(`{"doctor_id":%q,"appointment_date":"2026-09-14T10:00:00Z"}`, uuid.New())
	c, _ := authedContext(e, http.MethodPost, "/appointments", body, patientPrincipal())

	err := h.Create(c)
	var he *echo.HTTPError
	if !asHTTPError(err, &he) || he.Code != http.StatusNotFound {
		t.Fatalf("got %v, want 404", err)
	}
}

func TestHandlerCreate_DoctorRoleIs403(t *testing.T) {
	h, _, users := newTestHandler()
	doctor := addDoctor(users, true)
	e := echo.New()

	body := fmt.Sprintf(`{"doctor_id":%q,"appointment_date":"2026-09-14T10:00:00Z"}`, doctor.ID)
	dp := &auth.Principal{ID: doctor.ID.String(), Role: phi.RoleDoctor}
	c, _ := authedContext(e, http.MethodPost, "/appointments", body, dp)

	err := h.Create(c)
	var he *echo.HTTPError
	if !asHTTPError(err, &he) || he.Code != http.StatusForbidden {
		t.Fatalf("got %v, want 403", err)
	}
}

func TestHandlerCreate_Unauthenticated(t *testing.T) {
	h, _, _ := newTestHandler()
	e := echo.New()

	c, _ := authedContext(e, http.MethodPost, "/appointments", `{}`, nil)
	err := h.Create(c)
	var he *echo.HTTPError
	if !asHTTPError(err, &he) || he.Code != http.StatusUnauthorized {
		t.Fatalf("got %v, want 401", err)
	}
}

func TestHandlerList_EmptyIsArray(t *testing.T) {
	h, _, _ := newTestHandler()
	e := echo.New()

	c, rec := authedContext(e, http.MethodGet, "/appointments", "", patientPrincipal())
	if err := h.List(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if body := strings.TrimSpace(rec.Body.String()); body != "[]" {
		t.Errorf("body = %q, want []", body)
	}
}

func TestHandlerList_BadDateFilter(t *testing.T) {
	h, _, _ := newTestHandler()
	e := echo.New()

	c, _ := authedContext(e, http.MethodGet, "/appointments?date_from=yesterday", "", patientPrincipal())
	err := h.List(c)
	var he *echo.HTTPError
	if !asHTTPError(err, &he) || he.Code != http.StatusBadRequest {
		t.Fatalf("got %v, want 400", err)
	}
}

func TestHandlerUpdateStatus_NotOwnerIs403(t *testing.T) {
	h, repo, users := newTestHandler()
	doctor := addDoctor(users, true)
	owner := patientPrincipal()
	e := echo.New()

	id := uuid.New()
	repo.appointments[id] = &Appointment{
		ID: id, PatientID: uuid.MustParse(owner.ID), DoctorID: doctor.ID,
		AppointmentDate: time.Now().UTC(), Status: StatusScheduled, PaymentStatus: PaymentPaid,
	}

	c, _ := authedContext(e, http.MethodPut, "/appointments/"+id.String(), `{"status":"cancelled"}`, patientPrincipal())
	c.SetParamNames("id")
	c.SetParamValues(id.String())

	err := h.UpdateStatus(c)
	var he *echo.HTTPError
	if !asHTTPError(err, &he) || he.Code != http.StatusForbidden {
		t.Fatalf("got %v, want 403", err)
	}
}

func TestHandlerSetPaymentStatus(t *testing.T) {
	h, repo, users := newTestHandler()
	doctor := addDoctor(users, true)
	owner := patientPrincipal()
	admin := &auth.Principal{ID: uuid.New().String(), Role: phi.RoleAdmin}
	e := echo.New()

	id := uuid.New()
	repo.appointments[id] = &Appointment{
		ID: id, PatientID: uuid.MustParse(owner.ID), DoctorID: doctor.ID,
		AppointmentDate: time.Now().UTC(), Status: StatusScheduled, PaymentStatus: PaymentPending,
	}

	c, rec := authedContext(e, http.MethodPatch, "/appointments/"+id.String()+"/payment-status", `{"payment_status":"paid"}`, admin)
	c.SetParamNames("id")
	c.SetParamValues(id.String())

	if err := h.SetPaymentStatus(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", rec.Code)
	}
	if repo.appointments[id].PaymentStatus != PaymentPaid {
		t.Errorf("payment status not persisted")
	}
}

func asHTTPError(err error, target **echo.HTTPError) bool {
	he, ok := err.(*echo.HTTPError)
	if !ok {
		return false
	}
	*target = he
	return true
}
