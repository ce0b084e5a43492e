package handlers

import (
	"errors"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/rental-portal/internal/api/dto"
	"github.com/spec-kit/rental-portal/internal/domain"
	"github.com/spec-kit/rental-portal/internal/session"
	"github.com/spec-kit/rental-portal/internal/token"
	apperrors "github.com/spec-kit/rental-portal/pkg/util/errorutil"
)

// SessionHandler exposes the customer session endpoints.
type SessionHandler struct {
	sessions *session.Service
	validate *validator.Validate
}

// NewSessionHandler constructs handler.
func NewSessionHandler(sessions *session.Service, validate *validator.Validate) *SessionHandler {
	return &SessionHandler{sessions: sessions, validate: validate}
}

// Login POST /auth/login.
func (h *SessionHandler) Login(c *fiber.Ctx) error {
	var req dto.LoginRequest
	if err := h.parseBody(c, &req); err != nil {
		return err
	}
	login, err := h.sessions.LoginWithBooking(c.UserContext(), req.BookingNumber, req.Email)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": sessionResponse(login)})
}

// SendMagicLink POST /auth/magic-link. Replies 202 whether or not the address
// is known; only a directory outage changes the answer.
func (h *SessionHandler) SendMagicLink(c *fiber.Ctx) error {
	var req dto.MagicLinkRequest
	if err := h.parseBody(c, &req); err != nil {
		return err
	}
	if err := h.sessions.SendMagicLink(c.UserContext(), req.Email); err != nil {
		return err
	}
	return c.Status(fiber.StatusAccepted).JSON(fiber.Map{"data": fiber.Map{
		"message": "if the address is registered, a sign-in link is on its way",
	}})
}

// VerifyMagicLink POST /auth/magic-link/verify.
func (h *SessionHandler) VerifyMagicLink(c *fiber.Ctx) error {
	var req dto.VerifyMagicLinkRequest
	if err := h.parseBody(c, &req); err != nil {
		return err
	}
	login, err := h.sessions.VerifyMagicLink(c.UserContext(), req.Token)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": sessionResponse(login)})
}

// Refresh POST /auth/refresh.
func (h *SessionHandler) Refresh(c *fiber.Ctx) error {
	var req dto.RefreshRequest
	if err := h.parseBody(c, &req); err != nil {
		return err
	}
	pair, err := h.sessions.Refresh(c.UserContext(), req.RefreshToken)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": tokenResponse(pair)})
}

// Logout POST /auth/logout. The access token comes from the Authorization
// header; the body with the refresh token is optional.
func (h *SessionHandler) Logout(c *fiber.Ctx) error {
	accessToken := token.AccessTokenFromContext(c)
	if accessToken == "" {
		return apperrors.NewUnauthorized("missing bearer token")
	}

	var req dto.LogoutRequest
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&req); err != nil {
			return apperrors.NewValidationError("invalid payload", nil)
		}
	}

	if err := h.sessions.Logout(c.UserContext(), accessToken, req.RefreshToken); err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": fiber.Map{"message": "logged out"}})
}

// Me GET /auth/me.
func (h *SessionHandler) Me(c *fiber.Ctx) error {
	principal, ok := token.PrincipalFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("authentication required")
	}
	return c.JSON(fiber.Map{"data": principalResponse(principal)})
}

func (h *SessionHandler) parseBody(c *fiber.Ctx, req any) error {
	if err := c.BodyParser(req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	if err := h.validate.Struct(req); err != nil {
		return apperrors.NewValidationError("invalid payload", validationDetails(err))
	}
	return nil
}

func validationDetails(err error) map[string]any {
	var fieldErrors validator.ValidationErrors
	if !errors.As(err, &fieldErrors) {
		return nil
	}
	details := make(map[string]any, len(fieldErrors))
	for _, fieldError := range fieldErrors {
		details[fieldError.Field()] = "failed '" + fieldError.Tag() + "' validation"
	}
	return details
}

func sessionResponse(login *session.Login) dto.SessionResponse {
	resp := dto.SessionResponse{
		Customer: customerResponse(login.Customer),
		Tokens:   tokenResponse(login.Tokens),
	}
	if len(login.Bookings) > 0 {
		resp.Bookings = make([]dto.BookingResponse, 0, len(login.Bookings))
		for i := range login.Bookings {
			resp.Bookings = append(resp.Bookings, bookingResponse(&login.Bookings[i]))
		}
	}
	return resp
}

func customerResponse(customer *domain.Customer) dto.CustomerResponse {
	return dto.CustomerResponse{
		ID:        customer.ID,
		Email:     customer.Email,
		FirstName: customer.FirstName,
		LastName:  customer.LastName,
		Name:      customer.FullName(),
		Phone:     customer.Phone,
	}
}

func bookingResponse(booking *domain.Booking) dto.BookingResponse {
	return dto.BookingResponse{
		ID:            booking.ID,
		BookingNumber: booking.Number,
		VehicleModel:  booking.VehicleModel,
		Status:        booking.Status,
		StartsAt:      booking.StartsAt,
		EndsAt:        booking.EndsAt,
	}
}

func tokenResponse(pair *domain.TokenPair) dto.TokenResponse {
	return dto.TokenResponse{
		AccessToken:  pair.AccessToken,
		RefreshToken: pair.RefreshToken,
		ExpiresIn:    pair.ExpiresIn,
	}
}

func principalResponse(principal *domain.Principal) dto.PrincipalResponse {
	return dto.PrincipalResponse{
		CustomerID: principal.CustomerID,
		Email:      principal.Email,
		Name:       principal.Name,
	}
}
