package verification

import (
	"context"

	"github.com/jwalitptl/kiosk-api/internal/backend"
	"github.com/jwalitptl/kiosk-api/pkg/errors"
	"github.com/jwalitptl/kiosk-api/pkg/logger"
	"github.com/jwalitptl/kiosk-api/pkg/metrics"
)

type Validator interface {
	Validate(ctx context.Context, code string) (*backend.ValidateResponse, error)
}

// KnownCodes is the allow-list consulted when the backend cannot answer.
type KnownCodes interface {
	IsKnownCode(code string) bool
}

type Service struct {
	validator  Validator
	known      KnownCodes
	codeLength int
	logger     *logger.Logger
	metrics    *metrics.Metrics
}

// NewService builds a verifier. known may be nil to disable the offline allow-list.
func NewService(validator Validator, known KnownCodes, codeLength int, logger *logger.Logger, metrics *metrics.Metrics) *Service {
	return &Service{
		validator:  validator,
		known:      known,
		codeLength: codeLength,
		logger:     logger,
		metrics:    metrics,
	}
}

// ValidCode reports whether code is exactly length decimal digits.
func ValidCode(code string, length int) bool {
	if len(code) != length {
		return false
	}
	for i := 0; i < len(code); i++ {
		if code[i] < '0' || code[i] > '9' {
			return false
		}
	}
	return true
}

func (s *Service) CodeLength() int {
	return s.codeLength
}

// Verify reports whether code belongs to an appointment.
// A 404 is a definitive no. Any other failure falls back to the allow-list, or propagates.
func (s *Service) Verify(ctx context.Context, code string) (bool, error) {
	if !ValidCode(code, s.codeLength) {
		s.metrics.Verifications.WithLabelValues("incomplete").Inc()
		return false, errors.Incomplete(s.codeLength)
	}

	resp, err := s.validator.Validate(ctx, code)
	switch {
	case err == nil:
		ok := resp.Succeeded()
		s.metrics.Verifications.WithLabelValues(outcome(ok)).Inc()
		return ok, nil
	case errors.Is(err, errors.ErrNotFound):
		s.metrics.Verifications.WithLabelValues("invalid").Inc()
		return false, nil
	}

	if s.known != nil && s.known.IsKnownCode(code) {
		s.logger.Warn(err, "Backend unavailable, accepting code from fallback list", "code", code)
		s.metrics.Verifications.WithLabelValues("fallback").Inc()
		return true, nil
	}

	s.metrics.Verifications.WithLabelValues("error").Inc()
	return false, err
}

func outcome(ok bool) string {
	if ok {
		return "valid"
	}
	return "invalid"
}
