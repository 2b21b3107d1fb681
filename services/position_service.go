package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"strings"
	"time"

	"cash-kiosk/internal/status"
)

const currentPositionPath = "/api/robot-positions/current"

var tablePattern = regexp.MustCompile(`table\s*([0-9]+)`)

// PositionService reads where the serving robot currently is.
type PositionService struct {
	baseURL string
	hc      *http.Client
}

func NewPositionService(baseURL string, timeout time.Duration) *PositionService {
	if timeout <= 0 {
		timeout = 3 * time.Second
	}
	return &PositionService{
		baseURL: strings.TrimRight(baseURL, "/"),
		hc:      &http.Client{Timeout: timeout},
	}
}

func (s *PositionService) CurrentPosition(ctx context.Context) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.baseURL+currentPositionPath, nil)
	if err != nil {
		return "", fmt.Errorf("currentPosition: http.NewReq: %w", err)
	}
	req.Header.Set("Accept", "text/plain")

	resp, err := s.hc.Do(req)
	if err != nil {
		return "", &status.RemoteServiceError{Op: "services.CurrentPosition", Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", &status.RemoteServiceError{
			Op:         "services.CurrentPosition",
			StatusCode: resp.StatusCode,
			Err:        errors.New("unexpected status"),
		}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1024))
	if err != nil {
		return "", &status.RemoteServiceError{Op: "services.CurrentPosition", Err: err}
	}
	return strings.TrimSpace(string(body)), nil
}

// CurrentTable is the table label of the current position, or "".
func (s *PositionService) CurrentTable(ctx context.Context) (string, error) {
	pos, err := s.CurrentPosition(ctx)
	if err != nil {
		return "", err
	}
	return TableFromPosition(pos), nil
}

// TableFromPosition extracts n from "table n". Start positions and anything
// unparseable have no table.
func TableFromPosition(pos string) string {
	key := strings.ToLower(strings.TrimSpace(pos))
	if key == "" || key == "start" || key == "starting" {
		return ""
	}
	m := tablePattern.FindStringSubmatch(key)
	if m == nil {
		return ""
	}
	return m[1]
}
