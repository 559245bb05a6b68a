package backend

import (
	"bytes"
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/jwalitptl/kiosk-api/internal/config"
	"github.com/jwalitptl/kiosk-api/pkg/circuitbreaker"
	"github.com/jwalitptl/kiosk-api/pkg/errors"
	"github.com/jwalitptl/kiosk-api/pkg/metrics"
	"github.com/rs/zerolog"
)

const maxDocumentSize = 20 << 20

// Client talks to the clinic backend. Every call is bounded by its own timeout;
// a timeout surfaces as ErrRequestAborted, a 404 as ErrNotFound and anything else as ErrServer.
type Client struct {
	baseURL    string
	timeout    time.Duration
	headers    map[string]string
	httpClient *http.Client
	breaker    *circuitbreaker.CircuitBreaker
	logger     zerolog.Logger
	metrics    *metrics.Metrics
}

func NewClient(cfg config.BackendConfig, logger zerolog.Logger, m *metrics.Metrics) *Client {
	c := &Client{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		timeout:    cfg.Timeout,
		headers:    cfg.Headers,
		httpClient: &http.Client{},
		logger:     logger.With().Str("component", "backend").Logger(),
		metrics:    m,
	}
	c.breaker = circuitbreaker.NewCircuitBreaker(circuitbreaker.Settings{
		Name:        "backend",
		MaxFailures: cfg.Breaker.MaxFailures,
		Timeout:     cfg.Breaker.Timeout,
		IsFailure:   countsAgainstBreaker,
		OnStateChange: func(name string, from, to circuitbreaker.State) {
			c.logger.Warn().Str("from", string(from)).Str("to", string(to)).Msg("Backend circuit changed state")
			if to == circuitbreaker.StateOpen {
				m.BreakerOpen.Set(1)
			} else {
				m.BreakerOpen.Set(0)
			}
		},
	})
	return c
}

// countsAgainstBreaker ignores definitive answers and caller cancellations.
func countsAgainstBreaker(err error) bool {
	if err == nil || errors.Is(err, errors.ErrNotFound) {
		return false
	}
	return !stderrors.Is(err, context.Canceled)
}

// Validate posts a code to /validate. A 404 is returned as ErrNotFound.
func (c *Client) Validate(ctx context.Context, code string) (*ValidateResponse, error) {
	var resp ValidateResponse
	if err := c.do(ctx, "validate", http.MethodPost, "/validate", ValidateRequest{Code: code}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// GetAppointment fetches an appointment by code or id.
func (c *Client) GetAppointment(ctx context.Context, codeOrID string) (*AppointmentEnvelope, error) {
	var env AppointmentEnvelope
	path := "/appointment/" + url.PathEscape(codeOrID)
	if err := c.do(ctx, "get_appointment", http.MethodGet, path, nil, &env); err != nil {
		return nil, err
	}
	return &env, nil
}

// CheckPersonalInfo searches an appointment by patient identity. birthDate is ISO (YYYY-MM-DD).
func (c *Client) CheckPersonalInfo(ctx context.Context, lastName, firstName, birthDate string) (*AppointmentEnvelope, error) {
	var env AppointmentEnvelope
	req := CheckRequest{Nom: lastName, Prenom: firstName, DateNaissance: birthDate}
	if err := c.do(ctx, "check", http.MethodPost, "/check", req, &env); err != nil {
		return nil, err
	}
	return &env, nil
}

func (c *Client) RoomProgramming(ctx context.Context, appointmentID int64) ([]RoomInfo, error) {
	var rooms []RoomInfo
	path := "/programmation-salle/appointment/" + strconv.FormatInt(appointmentID, 10)
	if err := c.do(ctx, "room_programming", http.MethodGet, path, nil, &rooms); err != nil {
		return nil, err
	}
	return rooms, nil
}

// SendWaitingRoom tells the agenda system the patient is in the waiting room.
func (c *Client) SendWaitingRoom(ctx context.Context, code string) error {
	return c.do(ctx, "send_waiting_room", http.MethodPut, "/send-salle-attente/"+url.PathEscape(code), nil, nil)
}

func (c *Client) ConfirmAppointment(ctx context.Context, ref string, at time.Time) (bool, error) {
	var resp ConfirmResponse
	req := ConfirmRequest{Code: ref, ConfirmationTime: at.UTC()}
	if err := c.do(ctx, "confirm", http.MethodPost, "/appointments/confirm", req, &resp); err != nil {
		return false, err
	}
	return resp.Success, nil
}

// Document downloads an invoice or prescription PDF.
func (c *Client) Document(ctx context.Context, kind DocumentKind, id string) (*Document, error) {
	if !kind.Valid() {
		return nil, errors.BadRequest(fmt.Sprintf("unknown document kind %q", kind), nil)
	}
	doc := &Document{}
	path := "/" + string(kind) + "/" + url.PathEscape(id) + "/pdf"
	if err := c.do(ctx, "document", http.MethodGet, path, nil, doc); err != nil {
		return nil, err
	}
	return doc, nil
}

func (c *Client) do(ctx context.Context, op, method, path string, body, out interface{}) error {
	start := time.Now()
	defer func() {
		c.metrics.BackendLatency.WithLabelValues(op).Observe(time.Since(start).Seconds())
	}()

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	err := c.breaker.Execute(func() error {
		return c.roundTrip(ctx, method, path, body, out)
	})
	if stderrors.Is(err, circuitbreaker.ErrOpen) {
		err = errors.Server(err)
	}

	c.metrics.BackendRequests.WithLabelValues(op, outcome(err)).Inc()
	if err != nil && !errors.Is(err, errors.ErrNotFound) {
		c.logger.Warn().Err(err).Str("operation", op).Str("path", path).Dur("elapsed", time.Since(start)).Msg("Backend request failed")
	}
	return err
}

func (c *Client) roundTrip(ctx context.Context, method, path string, body, out interface{}) error {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return errors.Internal(fmt.Errorf("encode request: %w", err))
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return errors.Internal(fmt.Errorf("build request: %w", err))
	}
	for k, v := range c.headers {
		req.Header.Set(k, v)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return transportError(ctx, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return errors.NotFound(path, nil)
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		return errors.Server(fmt.Errorf("backend returned %d %s", resp.StatusCode, http.StatusText(resp.StatusCode)))
	}

	if doc, ok := out.(*Document); ok {
		data, err := io.ReadAll(io.LimitReader(resp.Body, maxDocumentSize))
		if err != nil {
			return transportError(ctx, err)
		}
		doc.ContentType = resp.Header.Get("Content-Type")
		doc.Body = data
		return nil
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		if ctx.Err() != nil {
			return transportError(ctx, err)
		}
		if err == io.EOF {
			return nil
		}
		return errors.Server(fmt.Errorf("malformed response: %w", err))
	}
	return nil
}

func transportError(ctx context.Context, err error) error {
	if stderrors.Is(ctx.Err(), context.DeadlineExceeded) || stderrors.Is(err, context.DeadlineExceeded) {
		return errors.Aborted(err)
	}
	if stderrors.Is(ctx.Err(), context.Canceled) {
		return errors.Aborted(context.Canceled)
	}
	return errors.Server(err)
}

func outcome(err error) string {
	switch {
	case err == nil:
		return "success"
	case errors.Is(err, errors.ErrNotFound):
		return "not_found"
	case errors.IsAborted(err):
		return "timeout"
	default:
		return "error"
	}
}

// Ready fails while the breaker is open.
func (c *Client) Ready(ctx context.Context) error {
	if c.breaker.State() == circuitbreaker.StateOpen {
		return errors.Server(circuitbreaker.ErrOpen)
	}
	return nil
}
