package services

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"cash-kiosk/internal/status"
	"cash-kiosk/models"
	"cash-kiosk/utils"
)

const ordersPath = "/api/orders"

// OrderService creates orders on the remote order service. It never retries;
// callers fall back to their local draft.
type OrderService struct {
	baseURL string
	hc      *http.Client
	breaker *utils.CircuitBreaker
}

func NewOrderService(baseURL string, timeout time.Duration) *OrderService {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &OrderService{
		baseURL: strings.TrimRight(baseURL, "/"),
		hc:      &http.Client{Timeout: timeout},
		breaker: utils.NewCircuitBreaker("order-service", utils.WithOpenTimeout(30*time.Second)),
	}
}

func (s *OrderService) Breaker() *utils.CircuitBreaker { return s.breaker }

// CreateOrder posts the draft and returns the server assigned identifiers.
func (s *OrderService) CreateOrder(ctx context.Context, draft models.OrderDraft) (models.CreatedOrder, error) {
	result, err := s.breaker.Execute(ctx, func() (interface{}, error) {
		return s.createOrder(ctx, draft)
	})
	if err != nil {
		if errors.Is(err, utils.ErrOpenState) || errors.Is(err, utils.ErrTooManyRequests) {
			slog.Warn("order service circuit open, skipping call", "breaker", s.breaker.State().String())
		}
		var rse *status.RemoteServiceError
		if errors.As(err, &rse) {
			return models.CreatedOrder{}, err
		}
		return models.CreatedOrder{}, &status.RemoteServiceError{Op: "services.CreateOrder", Err: err}
	}
	return result.(models.CreatedOrder), nil
}

func (s *OrderService) createOrder(ctx context.Context, draft models.OrderDraft) (models.CreatedOrder, error) {
	body, err := json.Marshal(draft)
	if err != nil {
		return models.CreatedOrder{}, fmt.Errorf("createOrder: json.Marshal: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+ordersPath, bytes.NewReader(body))
	if err != nil {
		return models.CreatedOrder{}, fmt.Errorf("createOrder: http.NewReq: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := s.hc.Do(req)
	if err != nil {
		return models.CreatedOrder{}, &status.RemoteServiceError{Op: "services.CreateOrder", Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return models.CreatedOrder{}, &status.RemoteServiceError{
			Op:         "services.CreateOrder",
			StatusCode: resp.StatusCode,
			Err:        fmt.Errorf("unexpected response: %s", strings.TrimSpace(string(msg))),
		}
	}

	var reply struct {
		ID      json.RawMessage `json:"id"`
		OrderNo json.RawMessage `json:"orderNo"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&reply); err != nil {
		return models.CreatedOrder{}, &status.RemoteServiceError{
			Op:         "services.CreateOrder",
			StatusCode: resp.StatusCode,
			Err:        fmt.Errorf("json.Decode: %w", err),
		}
	}

	return models.CreatedOrder{
		ID:      rawScalar(reply.ID),
		OrderNo: rawScalar(reply.OrderNo),
		Draft:   draft,
	}, nil
}

// rawScalar renders a JSON string or number as plain text.
func rawScalar(raw json.RawMessage) string {
	s := strings.TrimSpace(string(raw))
	if s == "null" {
		return ""
	}
	return strings.Trim(s, `"`)
}
