package directory

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/spec-kit/rental-portal/internal/config"
	"github.com/spec-kit/rental-portal/internal/domain"
)

// ErrNotFound reports that the directory has no record for the query. Callers
// translate it into their own failure class; the client never decides whether
// a missing record is a credential problem.
var ErrNotFound = errors.New("directory: record not found")

// ErrUnavailable reports that the directory could not answer at all
// (transport failure, 5xx, unexpected status). Distinct from ErrNotFound so
// callers can keep retryable failures apart from credential failures.
var ErrUnavailable = errors.New("directory: service unavailable")

// Client reads booking and customer records from the external booking
// directory. The directory owns these records; the portal only reads them.
type Client interface {
	FindBookingByNumber(ctx context.Context, number string) (*domain.Booking, error)
	FindCustomerByID(ctx context.Context, id string) (*domain.Customer, error)
	FindCustomerByEmail(ctx context.Context, email string) (*domain.Customer, error)
	ListBookingsByCustomer(ctx context.Context, customerID string) ([]domain.Booking, error)
	Ping(ctx context.Context) error
}

type httpClient struct {
	baseURL string
	apiKey  string
	client  *http.Client
}

// NewClient returns a Client backed by the directory's REST API.
func NewClient(cfg config.DirectoryConfig) Client {
	return &httpClient{
		baseURL: cfg.BaseURL,
		apiKey:  cfg.APIKey,
		client:  &http.Client{Timeout: cfg.Timeout()},
	}
}

func (c *httpClient) FindBookingByNumber(ctx context.Context, number string) (*domain.Booking, error) {
	var record bookingRecord
	if err := c.get(ctx, "/bookings/"+url.PathEscape(number), &record); err != nil {
		return nil, err
	}
	booking := record.toDomain()
	return &booking, nil
}

func (c *httpClient) FindCustomerByID(ctx context.Context, id string) (*domain.Customer, error) {
	var record customerRecord
	if err := c.get(ctx, "/customers/"+url.PathEscape(id), &record); err != nil {
		return nil, err
	}
	customer := record.toDomain()
	return &customer, nil
}

func (c *httpClient) FindCustomerByEmail(ctx context.Context, email string) (*domain.Customer, error) {
	var record customerRecord
	if err := c.get(ctx, "/customers/by-email/"+url.PathEscape(email), &record); err != nil {
		return nil, err
	}
	customer := record.toDomain()
	return &customer, nil
}

func (c *httpClient) ListBookingsByCustomer(ctx context.Context, customerID string) ([]domain.Booking, error) {
	var records []bookingRecord
	if err := c.get(ctx, "/customers/"+url.PathEscape(customerID)+"/bookings", &records); err != nil {
		return nil, err
	}
	bookings := make([]domain.Booking, 0, len(records))
	for _, record := range records {
		bookings = append(bookings, record.toDomain())
	}
	return bookings, nil
}

// Ping hits the directory's health endpoint. Used by readiness probes only.
func (c *httpClient) Ping(ctx context.Context) error {
	request, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/health", nil)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	response, err := c.client.Do(request)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer response.Body.Close()

	if response.StatusCode >= 300 {
		return fmt.Errorf("%w: status %d", ErrUnavailable, response.StatusCode)
	}
	return nil
}

func (c *httpClient) get(ctx context.Context, path string, out any) error {
	request, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	if c.apiKey != "" {
		request.Header.Set("Authorization", "Bearer "+c.apiKey)
	}
	request.Header.Set("Accept", "application/json")

	response, err := c.client.Do(request)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer response.Body.Close()

	switch {
	case response.StatusCode == http.StatusOK:
		if err := json.NewDecoder(response.Body).Decode(out); err != nil {
			return fmt.Errorf("%w: decoding response: %v", ErrUnavailable, err)
		}
		return nil
	case response.StatusCode == http.StatusNotFound:
		return ErrNotFound
	default:
		// Auth/config problems on the directory side are still an outage
		// from the portal's point of view.
		return fmt.Errorf("%w: status %d", ErrUnavailable, response.StatusCode)
	}
}

// Wire records for the directory's JSON API, mapped into domain values so the
// domain package stays free of transport tags.

type bookingRecord struct {
	ID           string    `json:"id"`
	Number       string    `json:"booking_number"`
	CustomerID   string    `json:"customer_id"`
	VehicleModel string    `json:"vehicle_model"`
	Status       string    `json:"status"`
	StartsAt     time.Time `json:"starts_at"`
	EndsAt       time.Time `json:"ends_at"`
}

func (r bookingRecord) toDomain() domain.Booking {
	return domain.Booking{
		ID:           r.ID,
		Number:       r.Number,
		CustomerID:   r.CustomerID,
		VehicleModel: r.VehicleModel,
		Status:       domain.BookingStatus(r.Status),
		StartsAt:     r.StartsAt,
		EndsAt:       r.EndsAt,
	}
}

type customerRecord struct {
	ID        string `json:"id"`
	Email     string `json:"email"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Phone     string `json:"phone"`
}

func (r customerRecord) toDomain() domain.Customer {
	return domain.Customer{
		ID:        r.ID,
		Email:     r.Email,
		FirstName: r.FirstName,
		LastName:  r.LastName,
		Phone:     r.Phone,
	}
}
