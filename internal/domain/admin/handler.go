package admin

import (
	"errors"
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/medconnect/medconnect/internal/domain/identity"
	"github.com/medconnect/medconnect/internal/platform/auth"
	"github.com/medconnect/medconnect/internal/platform/phi"
	"github.com/medconnect/medconnect/pkg/pagination"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(authed *echo.Group) {
	// Role-scoped dashboard, available to every authenticated user.
	authed.GET("/dashboard/stats", h.DashboardStats)

	admin := authed.Group("/admin", auth.RequireRole(phi.RoleAdmin))
	admin.GET("/dashboard/stats", h.PlatformStats)
	admin.GET("/users", h.ListUsers)
	admin.PUT("/users/:id", h.UpdateUser)
	admin.DELETE("/users/:id", h.DeleteUser)
	admin.GET("/appointments", h.ListAppointments)
	admin.PUT("/appointments/:id", h.SetAppointmentStatus)
	admin.GET("/payments", h.ListPayments)
	admin.PUT("/payments/:id", h.SetPaymentStatus)
}

func principal(c echo.Context) (*auth.Principal, error) {
	p := auth.PrincipalFromContext(c.Request().Context())
	if p == nil {
		return nil, echo.NewHTTPError(http.StatusUnauthorized, "authentication required")
	}
	return p, nil
}

func (h *Handler) DashboardStats(c echo.Context) error {
	p, err := principal(c)
	if err != nil {
		return err
	}
	stats, err := h.svc.DashboardStats(c.Request().Context(), p)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, stats)
}

func (h *Handler) PlatformStats(c echo.Context) error {
	stats, err := h.svc.PlatformStats(c.Request().Context())
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, stats)
}

func (h *Handler) ListUsers(c echo.Context) error {
	params := pagination.FromContext(c)
	users, total, err := h.svc.ListUsers(c.Request().Context(),
		phi.Role(c.QueryParam("role")), params.Limit, params.Offset)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	if users == nil {
		users = []*identity.User{}
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(users, total, params.Limit, params.Offset))
}

func (h *Handler) UpdateUser(c echo.Context) error {
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

	u, err := h.svc.UpdateUser(c.Request().Context(), p, id, updates)
	if err != nil {
		switch {
		case errors.Is(err, ErrAdminEscalation):
			return echo.NewHTTPError(http.StatusBadRequest, "Cannot create admin users through this endpoint")
		case errors.Is(err, identity.ErrNotFound):
			return echo.NewHTTPError(http.StatusNotFound, "user not found")
		case errors.Is(err, ErrNoValidFields):
			return echo.NewHTTPError(http.StatusBadRequest, "no valid fields to update")
		default:
			return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
		}
	}
	return c.JSON(http.StatusOK, u)
}

func (h *Handler) DeleteUser(c echo.Context) error {
	p, err := principal(c)
	if err != nil {
		return err
	}
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	if err := h.svc.DeleteUser(c.Request().Context(), p, id); err != nil {
		if errors.Is(err, identity.ErrNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, "user not found")
		}
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, map[string]string{"message": "User deleted successfully"})
}

func (h *Handler) ListAppointments(c echo.Context) error {
	params := pagination.FromContext(c)
	appts, err := h.svc.ListAppointments(c.Request().Context(),
		c.QueryParam("status"), params.Limit, params.Offset)
	if err != nil {
		if errors.Is(err, ErrInvalidStatus) {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid status filter")
		}
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	if appts == nil {
		appts = []*AppointmentSummary{}
	}
	return c.JSON(http.StatusOK, appts)
}

func (h *Handler) SetAppointmentStatus(c echo.Context) error {
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
	if err := h.svc.SetAppointmentStatus(c.Request().Context(), id, body.Status); err != nil {
		switch {
		case errors.Is(err, ErrInvalidStatus):
			return echo.NewHTTPError(http.StatusBadRequest, "invalid status")
		case errors.Is(err, ErrAppointmentNotFound):
			return echo.NewHTTPError(http.StatusNotFound, "appointment not found")
		default:
			return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
		}
	}
	return c.JSON(http.StatusOK, map[string]string{"message": "Appointment updated successfully"})
}

func (h *Handler) ListPayments(c echo.Context) error {
	params := pagination.FromContext(c)
	payments, err := h.svc.ListPayments(c.Request().Context(),
		c.QueryParam("status"), params.Limit, params.Offset)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	if payments == nil {
		payments = []*Payment{}
	}
	return c.JSON(http.StatusOK, payments)
}

func (h *Handler) SetPaymentStatus(c echo.Context) error {
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
	if err := h.svc.SetPaymentStatus(c.Request().Context(), id, body.Status); err != nil {
		switch {
		case errors.Is(err, ErrInvalidPaymentStatus):
			return echo.NewHTTPError(http.StatusBadRequest, "invalid payment status")
		case errors.Is(err, ErrPaymentNotFound):
			return echo.NewHTTPError(http.StatusNotFound, "payment not found")
		default:
			return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
		}
	}
	return c.JSON(http.StatusOK, map[string]string{"message": "Payment updated successfully"})
}
