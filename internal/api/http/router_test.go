package http

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/spec-kit/rental-portal/internal/api/dto"
	"github.com/spec-kit/rental-portal/internal/api/http/handlers"
	"github.com/spec-kit/rental-portal/internal/cache"
	"github.com/spec-kit/rental-portal/internal/config"
	"github.com/spec-kit/rental-portal/internal/directory"
	"github.com/spec-kit/rental-portal/internal/domain"
	"github.com/spec-kit/rental-portal/internal/events"
	"github.com/spec-kit/rental-portal/internal/magiclink"
	"github.com/spec-kit/rental-portal/internal/mail"
	"github.com/spec-kit/rental-portal/internal/service"
	"github.com/spec-kit/rental-portal/internal/session"
	"github.com/spec-kit/rental-portal/internal/store"
	"github.com/spec-kit/rental-portal/internal/token"
)

type fakeDirectory struct {
	bookings  map[string]*domain.Booking
	customers map[string]*domain.Customer
	byEmail   map[string]*domain.Customer
	down      bool
}

func newFakeDirectory() *fakeDirectory {
	return &fakeDirectory{
		bookings:  make(map[string]*domain.Booking),
		customers: make(map[string]*domain.Customer),
		byEmail:   make(map[string]*domain.Customer),
	}
}

func (f *fakeDirectory) seed(booking *domain.Booking, customer *domain.Customer) {
	f.bookings[booking.Number] = booking
	f.customers[customer.ID] = customer
	f.byEmail[customer.Email] = customer
}

func (f *fakeDirectory) FindBookingByNumber(_ context.Context, number string) (*domain.Booking, error) {
	if f.down {
		return nil, fmt.Errorf("%w: connection refused", directory.ErrUnavailable)
	}
	booking, ok := f.bookings[number]
	if !ok {
		return nil, directory.ErrNotFound
	}
	return booking, nil
}

func (f *fakeDirectory) FindCustomerByID(_ context.Context, id string) (*domain.Customer, error) {
	if f.down {
		return nil, fmt.Errorf("%w: connection refused", directory.ErrUnavailable)
	}
	customer, ok := f.customers[id]
	if !ok {
		return nil, directory.ErrNotFound
	}
	return customer, nil
}

func (f *fakeDirectory) FindCustomerByEmail(_ context.Context, email string) (*domain.Customer, error) {
	if f.down {
		return nil, fmt.Errorf("%w: connection refused", directory.ErrUnavailable)
	}
	customer, ok := f.byEmail[email]
	if !ok {
		return nil, directory.ErrNotFound
	}
	return customer, nil
}

func (f *fakeDirectory) ListBookingsByCustomer(_ context.Context, customerID string) ([]domain.Booking, error) {
	if f.down {
		return nil, fmt.Errorf("%w: connection refused", directory.ErrUnavailable)
	}
	var bookings []domain.Booking
	for _, booking := range f.bookings {
		if booking.CustomerID == customerID {
			bookings = append(bookings, *booking)
		}
	}
	return bookings, nil
}

func (f *fakeDirectory) Ping(_ context.Context) error {
	if f.down {
		return directory.ErrUnavailable
	}
	return nil
}

type linkCapture struct {
	tokens []string
}

func (l *linkCapture) handle(_ context.Context, event events.Event) error {
	if payload, ok := event.Payload.(events.MagicLinkIssuedPayload); ok {
		l.tokens = append(l.tokens, payload.Token)
	}
	return nil
}

type testEnv struct {
	app   *fiber.App
	dir   *fakeDirectory
	links *linkCapture
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	return newTestEnvWithLimit(t, config.RateLimitConfig{RequestsPerMinute: 6000, Burst: 100})
}

func newTestEnvWithLimit(t *testing.T, limit config.RateLimitConfig) *testEnv {
	t.Helper()

	dir := newFakeDirectory()
	dir.seed(
		&domain.Booking{ID: "bk-1", Number: "6004", CustomerID: "cust-77", VehicleModel: "Kona", Status: domain.BookingStatusConfirmed},
		&domain.Customer{ID: "cust-77", Email: "maria.ostos97@gmail.com", FirstName: "Maria", LastName: "Ostos"},
	)

	logger := zap.NewNop()
	sessions := store.NewMemory()
	bookings := cache.New[*domain.Booking](5 * time.Minute)
	dispatcher := events.NewInMemoryDispatcher()

	links := &linkCapture{}
	dispatcher.Subscribe(events.EventMagicLinkIssued, links.handle)

	tokens := token.NewService("test-secret", time.Hour, sessions, dir, logger)
	magicLinks := magiclink.NewService(sessions, dir, dispatcher, logger)
	facade := session.NewService(session.Dependencies{
		Verifier:   directory.NewVerifier(dir, bookings),
		Directory:  dir,
		MagicLinks: magicLinks,
		Tokens:     tokens,
		Dispatcher: dispatcher,
	})

	notifier := service.NewNotificationService(dispatcher, mail.New(config.MailConfig{}, logger), logger, nil, config.MailConfig{})
	notifier.RegisterHandlers()

	app := fiber.New()
	RegisterMiddlewares(app, logger, nil, 5*time.Second)
	RegisterRoutes(app, RouteConfig{
		Health:         handlers.NewHealthHandler("rental-portal", "test", sessions, dir),
		Session:        handlers.NewSessionHandler(facade, validator.New()),
		AuthMiddleware: token.NewMiddleware(tokens),
		Limiter:        NewRateLimiter(limit),
	})

	return &testEnv{app: app, dir: dir, links: links}
}

func (e *testEnv) request(t *testing.T, method, path string, body any, bearer string) *http.Response {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}

	resp, err := e.app.Test(req, -1)
	require.NoError(t, err)
	return resp
}

type sessionEnvelope struct {
	Data struct {
		Customer dto.CustomerResponse  `json:"customer"`
		Bookings []dto.BookingResponse `json:"bookings"`
		Tokens   dto.TokenResponse     `json:"tokens"`
	} `json:"data"`
}

type tokenEnvelope struct {
	Data dto.TokenResponse `json:"data"`
}

type principalEnvelope struct {
	Data dto.PrincipalResponse `json:"data"`
}

type errorEnvelope struct {
	Error struct {
		Code    string         `json:"code"`
		Message string         `json:"message"`
		Details map[string]any `json:"details"`
	} `json:"error"`
}

func decode(t *testing.T, resp *http.Response, out any) {
	t.Helper()
	defer resp.Body.Close()
	require.NoError(t, json.NewDecoder(resp.Body).Decode(out))
}

func login(t *testing.T, env *testEnv) dto.TokenResponse {
	t.Helper()
	resp := env.request(t, fiber.MethodPost, "/auth/login",
		dto.LoginRequest{BookingNumber: "6004", Email: "maria.ostos97@gmail.com"}, "")
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	var envelope sessionEnvelope
	decode(t, resp, &envelope)
	return envelope.Data.Tokens
}

func TestLoginReturnsSessionEnvelope(t *testing.T) {
	env := newTestEnv(t)

	resp := env.request(t, fiber.MethodPost, "/auth/login",
		dto.LoginRequest{BookingNumber: "6004", Email: "maria.ostos97@gmail.com"}, "")
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	var envelope sessionEnvelope
	decode(t, resp, &envelope)
	require.Equal(t, "cust-77", envelope.Data.Customer.ID)
	require.Equal(t, "Maria Ostos", envelope.Data.Customer.Name)
	require.Len(t, envelope.Data.Bookings, 1)
	require.Equal(t, "6004", envelope.Data.Bookings[0].BookingNumber)
	require.NotEmpty(t, envelope.Data.Tokens.AccessToken)
	require.NotEmpty(t, envelope.Data.Tokens.RefreshToken)
	require.Equal(t, int64(3600), envelope.Data.Tokens.ExpiresIn)
}

func TestLoginWrongEmailKeepsErrorShape(t *testing.T) {
	env := newTestEnv(t)

	resp := env.request(t, fiber.MethodPost, "/auth/login",
		dto.LoginRequest{BookingNumber: "6004", Email: "other@example.com"}, "")
	require.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)

	var envelope errorEnvelope
	decode(t, resp, &envelope)
	require.Equal(t, "INVALID_CREDENTIALS", envelope.Error.Code)
	require.NotContains(t, envelope.Error.Message, "email")
}

func TestLoginValidationFailure(t *testing.T) {
	env := newTestEnv(t)

	resp := env.request(t, fiber.MethodPost, "/auth/login",
		map[string]string{"booking_number": "6004"}, "")
	require.Equal(t, fiber.StatusBadRequest, resp.StatusCode)

	var envelope errorEnvelope
	decode(t, resp, &envelope)
	require.Equal(t, "VALIDATION_FAILED", envelope.Error.Code)
	require.Contains(t, envelope.Error.Details, "Email")
}

func TestLoginDirectoryOutage(t *testing.T) {
	env := newTestEnv(t)
	env.dir.down = true

	resp := env.request(t, fiber.MethodPost, "/auth/login",
		dto.LoginRequest{BookingNumber: "6004", Email: "maria.ostos97@gmail.com"}, "")
	require.Equal(t, fiber.StatusServiceUnavailable, resp.StatusCode)

	var envelope errorEnvelope
	decode(t, resp, &envelope)
	require.Equal(t, "SERVICE_UNAVAILABLE", envelope.Error.Code)
}

func TestMagicLinkFlow(t *testing.T) {
	env := newTestEnv(t)

	resp := env.request(t, fiber.MethodPost, "/auth/magic-link",
		dto.MagicLinkRequest{Email: "maria.ostos97@gmail.com"}, "")
	require.Equal(t, fiber.StatusAccepted, resp.StatusCode)
	resp.Body.Close()
	require.Len(t, env.links.tokens, 1)

	resp = env.request(t, fiber.MethodPost, "/auth/magic-link/verify",
		dto.VerifyMagicLinkRequest{Token: env.links.tokens[0]}, "")
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	var envelope sessionEnvelope
	decode(t, resp, &envelope)
	require.Equal(t, "cust-77", envelope.Data.Customer.ID)
	require.Empty(t, envelope.Data.Bookings)
	require.NotEmpty(t, envelope.Data.Tokens.AccessToken)

	// single use
	resp = env.request(t, fiber.MethodPost, "/auth/magic-link/verify",
		dto.VerifyMagicLinkRequest{Token: env.links.tokens[0]}, "")
	require.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)

	var failure errorEnvelope
	decode(t, resp, &failure)
	require.Equal(t, "INVALID_MAGIC_LINK", failure.Error.Code)
}

func TestMagicLinkUnknownEmailLooksIdentical(t *testing.T) {
	env := newTestEnv(t)

	known := env.request(t, fiber.MethodPost, "/auth/magic-link",
		dto.MagicLinkRequest{Email: "maria.ostos97@gmail.com"}, "")
	unknown := env.request(t, fiber.MethodPost, "/auth/magic-link",
		dto.MagicLinkRequest{Email: "nobody@example.com"}, "")
	require.Equal(t, known.StatusCode, unknown.StatusCode)

	var knownBody, unknownBody map[string]any
	decode(t, known, &knownBody)
	decode(t, unknown, &unknownBody)
	require.Equal(t, knownBody, unknownBody)
}

func TestMagicLinkDirectoryOutage(t *testing.T) {
	env := newTestEnv(t)
	env.dir.down = true

	resp := env.request(t, fiber.MethodPost, "/auth/magic-link",
		dto.MagicLinkRequest{Email: "maria.ostos97@gmail.com"}, "")
	require.Equal(t, fiber.StatusServiceUnavailable, resp.StatusCode)

	var envelope errorEnvelope
	decode(t, resp, &envelope)
	require.Equal(t, "SERVICE_UNAVAILABLE", envelope.Error.Code)
}

func TestRefreshRotatesAndRejectsReplay(t *testing.T) {
	env := newTestEnv(t)
	first := login(t, env)

	resp := env.request(t, fiber.MethodPost, "/auth/refresh",
		dto.RefreshRequest{RefreshToken: first.RefreshToken}, "")
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	var rotated tokenEnvelope
	decode(t, resp, &rotated)
	require.NotEmpty(t, rotated.Data.AccessToken)
	require.NotEqual(t, first.RefreshToken, rotated.Data.RefreshToken)

	resp = env.request(t, fiber.MethodPost, "/auth/refresh",
		dto.RefreshRequest{RefreshToken: first.RefreshToken}, "")
	require.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)

	var envelope errorEnvelope
	decode(t, resp, &envelope)
	require.Equal(t, "INVALID_REFRESH_TOKEN", envelope.Error.Code)
}

func TestMeAnswersFromClaims(t *testing.T) {
	env := newTestEnv(t)
	tokens := login(t, env)

	resp := env.request(t, fiber.MethodGet, "/auth/me", nil, tokens.AccessToken)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	var envelope principalEnvelope
	decode(t, resp, &envelope)
	require.Equal(t, "cust-77", envelope.Data.CustomerID)
	require.Equal(t, "maria.ostos97@gmail.com", envelope.Data.Email)
	require.Equal(t, "Maria Ostos", envelope.Data.Name)
}

func TestMeWithoutBearer(t *testing.T) {
	env := newTestEnv(t)

	resp := env.request(t, fiber.MethodGet, "/auth/me", nil, "")
	require.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)

	var envelope errorEnvelope
	decode(t, resp, &envelope)
	require.Equal(t, "UNAUTHORIZED", envelope.Error.Code)
}

func TestMeWithGarbageToken(t *testing.T) {
	env := newTestEnv(t)

	resp := env.request(t, fiber.MethodGet, "/auth/me", nil, "not-a-jwt")
	require.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)

	var envelope errorEnvelope
	decode(t, resp, &envelope)
	require.Equal(t, "INVALID_TOKEN", envelope.Error.Code)
}

func TestLogoutKillsBothTokens(t *testing.T) {
	env := newTestEnv(t)
	tokens := login(t, env)

	resp := env.request(t, fiber.MethodPost, "/auth/logout",
		dto.LogoutRequest{RefreshToken: tokens.RefreshToken}, tokens.AccessToken)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	resp.Body.Close()

	resp = env.request(t, fiber.MethodGet, "/auth/me", nil, tokens.AccessToken)
	require.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)

	var envelope errorEnvelope
	decode(t, resp, &envelope)
	require.Equal(t, "TOKEN_REVOKED", envelope.Error.Code)

	resp = env.request(t, fiber.MethodPost, "/auth/refresh",
		dto.RefreshRequest{RefreshToken: tokens.RefreshToken}, "")
	require.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)
	resp.Body.Close()
}

func TestLogoutWithoutBody(t *testing.T) {
	env := newTestEnv(t)
	tokens := login(t, env)

	resp := env.request(t, fiber.MethodPost, "/auth/logout", nil, tokens.AccessToken)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	resp.Body.Close()

	// refresh token was not presented, so it still works
	resp = env.request(t, fiber.MethodPost, "/auth/refresh",
		dto.RefreshRequest{RefreshToken: tokens.RefreshToken}, "")
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	resp.Body.Close()
}

func TestRateLimiterCapsLoginAttempts(t *testing.T) {
	env := newTestEnvWithLimit(t, config.RateLimitConfig{RequestsPerMinute: 1, Burst: 2})

	payload := dto.LoginRequest{BookingNumber: "6004", Email: "maria.ostos97@gmail.com"}
	for i := 0; i < 2; i++ {
		resp := env.request(t, fiber.MethodPost, "/auth/login", payload, "")
		require.Equal(t, fiber.StatusOK, resp.StatusCode)
		resp.Body.Close()
	}

	resp := env.request(t, fiber.MethodPost, "/auth/login", payload, "")
	require.Equal(t, fiber.StatusTooManyRequests, resp.StatusCode)

	var envelope errorEnvelope
	decode(t, resp, &envelope)
	require.Equal(t, "RATE_LIMITED", envelope.Error.Code)
}

func TestRateLimiterLeavesVerifyAlone(t *testing.T) {
	env := newTestEnvWithLimit(t, config.RateLimitConfig{RequestsPerMinute: 1, Burst: 1})

	resp := env.request(t, fiber.MethodPost, "/auth/login",
		dto.LoginRequest{BookingNumber: "6004", Email: "maria.ostos97@gmail.com"}, "")
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	resp.Body.Close()

	// the limiter budget is spent, but verify is not behind it
	resp = env.request(t, fiber.MethodPost, "/auth/magic-link/verify",
		dto.VerifyMagicLinkRequest{Token: "bogus"}, "")
	require.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)
	resp.Body.Close()
}

func TestHealthLive(t *testing.T) {
	env := newTestEnv(t)

	resp := env.request(t, fiber.MethodGet, "/health/live", nil, "")
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	var body map[string]any
	decode(t, resp, &body)
	require.Equal(t, "alive", body["status"])
	require.Equal(t, "rental-portal", body["service"])
}

func TestHealthReadyReportsDirectoryOutage(t *testing.T) {
	env := newTestEnv(t)

	resp := env.request(t, fiber.MethodGet, "/health/ready", nil, "")
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	resp.Body.Close()

	env.dir.down = true
	resp = env.request(t, fiber.MethodGet, "/health/ready", nil, "")
	require.Equal(t, fiber.StatusServiceUnavailable, resp.StatusCode)

	var envelope errorEnvelope
	decode(t, resp, &envelope)
	require.Equal(t, "DEPENDENCY_UNAVAILABLE", envelope.Error.Code)
	require.Contains(t, envelope.Error.Details, "directory")
	require.Equal(t, "ok", envelope.Error.Details["session_store"])
}
