package appointment

import (
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/medconnect/medconnect/internal/platform/auth"
	"github.com/medconnect/medconnect/internal/platform/phi"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(authed *echo.Group) {
	authed.POST("/appointments", h.Create)
	authed.GET("/appointments", h.List)
	authed.PUT("/appointments/:id", h.UpdateStatus)
	authed.PATCH("/appointments/:id/payment-status", h.SetPaymentStatus,
		auth.RequireRole(phi.RoleAdmin))
}

func principal(c echo.Context) (*auth.Principal, error) {
	p := auth.PrincipalFromContext(c.Request().Context())
	if p == nil {
		return nil, echo.NewHTTPError(http.StatusUnauthorized, "authentication required")
	}
	return p, nil
}

func (h *Handler) Create(c echo.Context) error {
	p, err := principal(c)
	if err != nil {
		return err
	}

	var in CreateInput
	if err := c.Bind(&in); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	a, err := h.svc.Create(c.Request().Context(), p, in)
	if err != nil {
		switch {
		case errors.Is(err, ErrPatientsOnly), errors.Is(err, phi.ErrAuthorizationDenied):
			return echo.NewHTTPError(http.StatusForbidden, "access denied")
		case errors.Is(err, ErrUnpaidAppointments):
			return echo.NewHTTPError(http.StatusPaymentRequired,
				"You have unpaid appointments. Please settle payment before booking a new appointment.")
		case errors.Is(err, ErrSlotTaken):
			return echo.NewHTTPError(http.StatusConflict,
				"This time slot is already booked. Please choose another time.")
		case errors.Is(err, ErrDoctorUnavailable):
			return echo.NewHTTPError(http.StatusNotFound, "doctor not found or is not available")
		default:
			return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
		}
	}
	return c.JSON(http.StatusCreated, a)
}

func (h *Handler) List(c echo.Context) error {
	p, err := principal(c)
	if err != nil {
		return err
	}

	var dateFrom, dateTo *time.Time
	if v := c.QueryParam("date_from"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid date_from")
		}
		dateFrom = &t
	}
	if v := c.QueryParam("date_to"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid date_to")
		}
		dateTo = &t
	}

	appts, err := h.svc.List(c.Request().Context(), p, c.QueryParam("status"), dateFrom, dateTo)
	if err != nil {
		switch {
		case errors.Is(err, phi.ErrAuthorizationDenied):
			return echo.NewHTTPError(http.StatusForbidden, "access denied")
		case errors.Is(err, ErrInvalidStatus):
			return echo.NewHTTPError(http.StatusBadRequest, "invalid status filter")
		default:
			return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
		}
	}
	if appts == nil {
		appts = []*Appointment{}
	}
	return c.JSON(http.StatusOK, appts)
}

func (h *Handler) UpdateStatus(c echo.Context) error {
	p, err := principal(c)
	if err != nil {
		return err
	}
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}

	var body struct {
		Status string `json:"status"`
	}
	if err := c.Bind(&body); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	a, err := h.svc.UpdateStatus(c.Request().Context(), p, id, body.Status)
	if err != nil {
		switch {
		case errors.Is(err, ErrNotFound):
			return echo.NewHTTPError(http.StatusNotFound, "appointment not found")
		case errors.Is(err, ErrForbidden):
			return echo.NewHTTPError(http.StatusForbidden, "access denied")
		case errors.Is(err, ErrInvalidStatus):
			return echo.NewHTTPError(http.StatusBadRequest, "invalid status")
		default:
			return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
		}
	}
	return c.JSON(http.StatusOK, a)
}

func (h *Handler) SetPaymentStatus(c echo.Context) error {
	p, err := principal(c)
	if err != nil {
		return err
	}
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}

	var body struct {
		PaymentStatus string `json:"payment_status"`
	}
	if err := c.Bind(&body); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	if err := h.svc.SetPaymentStatus(c.Request().Context(), p, id, body.PaymentStatus); err != nil {
		switch {
		case errors.Is(err, ErrNotFound):
			return echo.NewHTTPError(http.StatusNotFound, "appointment not found")
		case errors.Is(err, ErrForbidden):
			return echo.NewHTTPError(http.StatusForbidden, "admin access required")
		case errors.Is(err, ErrInvalidPaymentStatus):
			return echo.NewHTTPError(http.StatusBadRequest, "invalid payment status")
		default:
			return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
		}
	}
	return c.JSON(http.StatusOK, map[string]string{"message": "Payment status updated successfully"})
}
