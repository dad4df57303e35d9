package identity

import (
	"errors"
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/medconnect/medconnect/internal/platform/auth"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

// RegisterRoutes wires the auth and user endpoints. public carries no auth
// middleware; authed requires a valid bearer token.
func (h *Handler) RegisterRoutes(public, authed *echo.Group) {
	public.POST("/auth/register", h.Register)
	public.POST("/auth/verify-email", h.VerifyEmail)
	public.POST("/auth/login", h.Login)
	public.GET("/users/doctors", h.ListDoctors)

	authed.GET("/auth/me", h.Me)
	authed.PUT("/auth/me", h.UpdateMe)
	authed.GET("/users/patients", h.ListPatients)
	authed.GET("/users/:id", h.GetUser)
}

func (h *Handler) Register(c echo.Context) error {
	var in RegisterInput
	if err := c.Bind(&in); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	if _, err := h.svc.Register(c.Request().Context(), in); err != nil {
		if errors.Is(err, ErrEmailTaken) {
			return echo.NewHTTPError(http.StatusConflict, "email already registered")
		}
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	return c.JSON(http.StatusCreated, map[string]string{
		"message": "Registration initiated. Please check your email for verification code.",
		"email":   in.Email,
	})
}

func (h *Handler) VerifyEmail(c echo.Context) error {
	var in struct {
		Email string `json:"email"`
		OTP   string `json:"otp"`
	}
	if err := c.Bind(&in); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	tok, err := h.svc.VerifyEmail(c.Request().Context(), in.Email, in.OTP)
	if err != nil {
		if errors.Is(err, ErrInvalidOTP) {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid or expired verification code")
		}
		if errors.Is(err, ErrNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, "user not found")
		}
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, tok)
}

func (h *Handler) Login(c echo.Context) error {
	var in struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := c.Bind(&in); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	tok, err := h.svc.Login(c.Request().Context(), in.Email, in.Password)
	if err != nil {
		switch {
		case errors.Is(err, ErrInvalidCredentials):
			return echo.NewHTTPError(http.StatusUnauthorized, "invalid email or password")
		case errors.Is(err, ErrEmailNotVerified):
			return echo.NewHTTPError(http.StatusBadRequest, "email not verified")
		default:
			return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
		}
	}
	return c.JSON(http.StatusOK, tok)
}

func (h *Handler) Me(c echo.Context) error {
	p := auth.PrincipalFromContext(c.Request().Context())
	if p == nil {
		return echo.NewHTTPError(http.StatusUnauthorized, "authentication required")
	}
	id, err := uuid.Parse(p.ID)
	if err != nil {
		return echo.NewHTTPError(http.StatusUnauthorized, "invalid principal")
	}

	u, err := h.svc.Me(c.Request().Context(), id)
	if err != nil {
		return echo.NewHTTPError(http.StatusNotFound, "user not found")
	}
	return c.JSON(http.StatusOK, u)
}

func (h *Handler) UpdateMe(c echo.Context) error {
	p := auth.PrincipalFromContext(c.Request().Context())
	if p == nil {
		return echo.NewHTTPError(http.StatusUnauthorized, "authentication required")
	}
	id, err := uuid.Parse(p.ID)
	if err != nil {
		return echo.NewHTTPError(http.StatusUnauthorized, "invalid principal")
	}

	var updates map[string]any
	if err := c.Bind(&updates); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	u, err := h.svc.UpdateMe(c.Request().Context(), id, updates)
	if err != nil {
		if errors.Is(err, ErrNoValidFields) {
			return echo.NewHTTPError(http.StatusBadRequest, "no valid fields to update")
		}
		if errors.Is(err, ErrNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, "user not found")
		}
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, u)
}

func (h *Handler) ListDoctors(c echo.Context) error {
	doctors, err := h.svc.Doctors(c.Request().Context(),
		c.QueryParam("specialization"), c.QueryParam("search"))
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	if doctors == nil {
		doctors = []*DoctorProfile{}
	}
	return c.JSON(http.StatusOK, doctors)
}

func (h *Handler) ListPatients(c echo.Context) error {
	p := auth.PrincipalFromContext(c.Request().Context())
	if p == nil {
		return echo.NewHTTPError(http.StatusUnauthorized, "authentication required")
	}

	patients, err := h.svc.Patients(c.Request().Context(), p, c.QueryParam("search"))
	if err != nil {
		if errors.Is(err, ErrForbidden) {
			return echo.NewHTTPError(http.StatusForbidden, "access denied")
		}
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	if patients == nil {
		patients = []*PatientProfile{}
	}
	return c.JSON(http.StatusOK, patients)
}

func (h *Handler) GetUser(c echo.Context) error {
	p := auth.PrincipalFromContext(c.Request().Context())
	if p == nil {
		return echo.NewHTTPError(http.StatusUnauthorized, "authentication required")
	}
	targetID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}

	u, err := h.svc.GetUser(c.Request().Context(), p, targetID)
	if err != nil {
		if errors.Is(err, ErrForbidden) {
			return echo.NewHTTPError(http.StatusForbidden, "access denied")
		}
		if errors.Is(err, ErrNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, "user not found")
		}
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, u)
}
