package chat

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

func (h *Handler) RegisterRoutes(authed *echo.Group) {
	authed.POST("/chat/messages", h.Send)
	authed.GET("/chat/messages", h.Conversation)
}

func principal(c echo.Context) (*auth.Principal, error) {
	p := auth.PrincipalFromContext(c.Request().Context())
	if p == nil {
		return nil, echo.NewHTTPError(http.StatusUnauthorized, "authentication required")
	}
	return p, nil
}

func (h *Handler) Send(c echo.Context) error {
	p, err := principal(c)
	if err != nil {
		return err
	}

	var in SendInput
	if err := c.Bind(&in); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	m, err := h.svc.Send(c.Request().Context(), p, in)
	if err != nil {
		switch {
		case errors.Is(err, ErrEmptyMessage), errors.Is(err, ErrInvalidType), errors.Is(err, ErrSelfMessaging):
			return echo.NewHTTPError(http.StatusBadRequest, err.Error())
		default:
			return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
		}
	}
	return c.JSON(http.StatusCreated, m)
}

func (h *Handler) Conversation(c echo.Context) error {
	p, err := principal(c)
	if err != nil {
		return err
	}

	otherID, err := uuid.Parse(c.QueryParam("other_user_id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "other_user_id is required")
	}

	messages, err := h.svc.Conversation(c.Request().Context(), p, otherID)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	if messages == nil {
		messages = []*Message{}
	}
	return c.JSON(http.StatusOK, messages)
}
