package verification

import (
	"context"
	"fmt"
	"testing"

	"github.com/jwalitptl/kiosk-api/internal/backend"
	"github.com/jwalitptl/kiosk-api/internal/repository/memory"
	"github.com/jwalitptl/kiosk-api/pkg/errors"
	"github.com/jwalitptl/kiosk-api/pkg/logger"
	"github.com/jwalitptl/kiosk-api/pkg/metrics"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeValidator struct {
	calls int
	resp  *backend.ValidateResponse
	err   error
}

func (f *fakeValidator) Validate(ctx context.Context, code string) (*backend.ValidateResponse, error) {
	f.calls++
	return f.resp, f.err
}

func newService(v Validator) *Service {
	return NewService(v, memory.NewFallbackRepository(), 6, logger.Nop(), metrics.New("test"))
}

func boolPtr(b bool) *bool { return &b }

func TestVerify_MalformedCodeNeverCallsBackend(t *testing.T) {
	for _, code := range []string{"", "12345", "1234567", "12a456", " 23456", "１２３４５６"} {
		t.Run(fmt.Sprintf("%q", code), func(t *testing.T) {
			v := &fakeValidator{}
			ok, err := newService(v).Verify(context.Background(), code)

			assert.False(t, ok)
			assert.True(t, errors.Is(err, errors.ErrIncomplete))
			assert.Zero(t, v.calls)
		})
	}
}

func TestVerify_NotFoundIsFalseWithoutError(t *testing.T) {
	for _, code := range []string{"123456", "000000"} {
		v := &fakeValidator{err: errors.NotFound("/validate", nil)}
		ok, err := newService(v).Verify(context.Background(), code)

		assert.NoError(t, err)
		assert.False(t, ok)
	}
}

func TestVerify_SuccessShapes(t *testing.T) {
	ok, err := newService(&fakeValidator{resp: &backend.ValidateResponse{Success: boolPtr(true)}}).Verify(context.Background(), "555555")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = newService(&fakeValidator{resp: &backend.ValidateResponse{Status: "success"}}).Verify(context.Background(), "555555")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = newService(&fakeValidator{resp: &backend.ValidateResponse{}}).Verify(context.Background(), "555555")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestVerify_ServerErrorFallsBackToKnownCodes(t *testing.T) {
	v := &fakeValidator{err: errors.Server(fmt.Errorf("connection refused"))}

	ok, err := newService(v).Verify(context.Background(), "123456")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = newService(v).Verify(context.Background(), "000000")
	assert.False(t, ok)
	assert.True(t, errors.IsServerError(err))
}

func TestVerify_TimeoutPropagatesAsAborted(t *testing.T) {
	v := &fakeValidator{err: errors.Aborted(context.DeadlineExceeded)}

	_, err := newService(v).Verify(context.Background(), "000000")
	assert.True(t, errors.IsAborted(err))

	ok, err := newService(v).Verify(context.Background(), "460163")
	assert.NoError(t, err)
	assert.True(t, ok)
}

func TestVerify_NoFallbackWhenDisabled(t *testing.T) {
	v := &fakeValidator{err: errors.Server(fmt.Errorf("down"))}
	svc := NewService(v, nil, 6, logger.Nop(), metrics.New("test"))

	_, err := svc.Verify(context.Background(), "123456")
	assert.True(t, errors.IsServerError(err))
}
