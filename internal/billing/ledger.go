package billing

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/avelar/docindex/internal/config"
	"github.com/avelar/docindex/internal/domain"
	"github.com/avelar/docindex/internal/logger"
)

// ErrInsufficientCredits is returned by Reserve when the project does
// not have enough credits to cover the requested amount.
var ErrInsufficientCredits = errors.New("insufficient credits")

// Reservation is a hold placed on a project's credit balance.
type Reservation struct {
	ID        string    `json:"id"`
	ProjectID string    `json:"project_id"`
	Amount    int64     `json:"amount"`
	CreatedAt time.Time `json:"created_at"`
}

// Ledger is the credit reservation protocol: reserve an estimated
// amount before work begins, then either consume the actual amount on
// success or release the hold on failure. Release is idempotent.
type Ledger interface {
	Reserve(ctx context.Context, projectID string, amount int64, operationID string) (*Reservation, error)
	Consume(ctx context.Context, reservationID string, actualAmount int64) error
	Release(ctx context.Context, reservationID string) error
}

// HTTPLedger implements Ledger against the credit ledger HTTP API.
type HTTPLedger struct {
	client  *resty.Client
	baseURL string
}

// NewHTTPLedger creates a ledger client from configuration.
// Parameters:
//   - cfg: billing configuration with ledger URL and API key.
// Returns:
//   - *HTTPLedger: configured client.
func NewHTTPLedger(cfg *config.BillingConfig) *HTTPLedger {
	client := resty.New()
	client.SetHeader("Content-Type", "application/json")
	if cfg.APIKey != "" {
		client.SetHeader("Authorization", "Bearer "+cfg.APIKey)
	}

	return &HTTPLedger{
		client:  client,
		baseURL: strings.TrimSuffix(cfg.LedgerURL, "/"),
	}
}

type reserveRequest struct {
	ProjectID   string `json:"project_id"`
	Amount      int64  `json:"amount"`
	OperationID string `json:"operation_id"`
}

type consumeRequest struct {
	Amount int64 `json:"amount"`
}

type ledgerError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Reserve places a hold of amount credits on the project's balance.
// The operationID deduplicates retried reservations on the ledger side.
// Parameters:
//   - ctx: request context.
//   - projectID: project whose balance is charged.
//   - amount: credits to hold.
//   - operationID: idempotency key for the reservation.
// Returns:
//   - *Reservation: the created hold.
//   - error: ErrInsufficientCredits when the balance is too low.
func (l *HTTPLedger) Reserve(ctx context.Context, projectID string, amount int64, operationID string) (*Reservation, error) {
	if amount <= 0 {
		return nil, domain.NewValidationError("reservation amount must be positive, got %d", amount)
	}

	var reservation Reservation
	var lerr ledgerError
	resp, err := l.client.R().
		SetContext(ctx).
		SetBody(reserveRequest{ProjectID: projectID, Amount: amount, OperationID: operationID}).
		SetResult(&reservation).
		SetError(&lerr).
		Post(l.baseURL + "/v1/reservations")

	if err != nil {
		return nil, fmt.Errorf("failed to call credit ledger: %w", err)
	}

	switch status := resp.StatusCode(); {
	case status == 200 || status == 201:
		return &reservation, nil
	case status == 402:
		return nil, fmt.Errorf("reserve %d credits for project %s: %w", amount, projectID, ErrInsufficientCredits)
	case status == 429 || status >= 500:
		return nil, &domain.TransientProviderError{
			Provider:   "ledger",
			StatusCode: status,
			Err:        fmt.Errorf("reserve returned status %d", status),
		}
	default:
		return nil, fmt.Errorf("credit reservation rejected: status %d: %s", status, lerr.Message)
	}
}

// Consume settles the reservation at the actual amount. Any difference
// between the held and actual amount is returned to the balance by the
// ledger.
func (l *HTTPLedger) Consume(ctx context.Context, reservationID string, actualAmount int64) error {
	var lerr ledgerError
	resp, err := l.client.R().
		SetContext(ctx).
		SetBody(consumeRequest{Amount: actualAmount}).
		SetError(&lerr).
		Post(fmt.Sprintf("%s/v1/reservations/%s/consume", l.baseURL, reservationID))

	if err != nil {
		return fmt.Errorf("failed to consume reservation %s: %w", reservationID, err)
	}

	switch status := resp.StatusCode(); {
	case status == 200 || status == 204:
		return nil
	case status == 404:
		return &domain.NotFoundError{Resource: "reservation", ID: reservationID}
	case status == 429 || status >= 500:
		return &domain.TransientProviderError{
			Provider:   "ledger",
			StatusCode: status,
			Err:        fmt.Errorf("consume returned status %d", status),
		}
	default:
		return fmt.Errorf("consume reservation %s: status %d: %s", reservationID, status, lerr.Message)
	}
}

// Release drops the hold without charging. It is safe to call on a
// reservation that was already released or consumed; the ledger treats
// that as a no-op and so does this client.
func (l *HTTPLedger) Release(ctx context.Context, reservationID string) error {
	resp, err := l.client.R().
		SetContext(ctx).
		Post(fmt.Sprintf("%s/v1/reservations/%s/release", l.baseURL, reservationID))

	if err != nil {
		return fmt.Errorf("failed to release reservation %s: %w", reservationID, err)
	}

	switch status := resp.StatusCode(); {
	case status == 200 || status == 204:
		return nil
	case status == 404 || status == 409:
		// Already gone or already settled.
		logger.FromContext(ctx).WithFields(logger.Fields{
			logger.FieldReservationID: reservationID,
			"status":                  status,
		}).Debug("Release on settled reservation, nothing to do")
		return nil
	case status == 429 || status >= 500:
		return &domain.TransientProviderError{
			Provider:   "ledger",
			StatusCode: status,
			Err:        fmt.Errorf("release returned status %d", status),
		}
	default:
		return fmt.Errorf("release reservation %s: status %d", reservationID, status)
	}
}
