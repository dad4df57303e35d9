package prescription

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
	authed.POST("/prescriptions", h.Create)
	authed.GET("/prescriptions", h.List)
	authed.PUT("/prescriptions/:id", h.Update)
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

	rx, err := h.svc.Create(c.Request().Context(), p, in)
	if err != nil {
		switch {
		case errors.Is(err, phi.ErrAuthorizationDenied):
			return echo.NewHTTPError(http.StatusForbidden, "only doctors can create prescriptions")
		case errors.Is(err, ErrNoMedications):
			return echo.NewHTTPError(http.StatusBadRequest, "at least one medication is required")
		default:
			return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
		}
	}
	return c.JSON(http.StatusCreated, rx)
}

func (h *Handler) List(c echo.Context) error {
	p, err := principal(c)
	if err != nil {
		return err
	}

	var patientID *uuid.UUID
	if v := c.QueryParam("patient_id"); v != "" {
		id, err := uuid.Parse(v)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid patient_id")
		}
		patientID = &id
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

	prescriptions, err := h.svc.List(c.Request().Context(), p, patientID, dateFrom, dateTo)
	if err != nil {
		if errors.Is(err, phi.ErrAuthorizationDenied) {
			return echo.NewHTTPError(http.StatusForbidden, "unauthorized access to prescriptions")
		}
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	if prescriptions == nil {
		prescriptions = []map[string]any{}
	}
	return c.JSON(http.StatusOK, prescriptions)
}

func (h *Handler) Update(c echo.Context) error {
	p, err := principal(c)
	if err != nil {
		return err
	}
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}

	var updates map[string]any
	if err := c.Bind(&updates); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	rx, err := h.svc.Update(c.Request().Context(), p, id, updates)
	if err != nil {
		switch {
		case errors.Is(err, phi.ErrAuthorizationDenied):
			return echo.NewHTTPError(http.StatusForbidden, "only doctors can update prescriptions")
		case errors.Is(err, ErrNotFound):
			return echo.NewHTTPError(http.StatusNotFound, "prescription not found")
		case errors.Is(err, ErrNoValidFields):
			return echo.NewHTTPError(http.StatusBadRequest, "no valid fields to update")
		case errors.Is(err, ErrNoMedications):
			return echo.NewHTTPError(http.StatusBadRequest, "at least one medication is required")
		default:
			return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
		}
	}
	return c.JSON(http.StatusOK, rx)
}
