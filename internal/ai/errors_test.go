package ai

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/liushuangls/go-anthropic/v2"
	"github.com/sashabaranov/go-openai"
	"github.com/stretchr/testify/assert"
)

func TestClassifyStatus(t *testing.T) {
	tests := []struct {
		name      string
		apiErr    APIError
		wantType  ErrorType
		retryable bool
	}{
		{"unauthorized", APIError{StatusCode: 401}, ErrorTypeAuth, false},
		{"forbidden", APIError{StatusCode: 403}, ErrorTypeAuth, false},
		{"rate limited", APIError{StatusCode: 429}, ErrorTypeRateLimit, true},
		{"model missing", APIError{StatusCode: 404, Message: "The model `x` was not found"}, ErrorTypeModel, false},
		{"route missing", APIError{StatusCode: 404}, ErrorTypeUnreachable, false},
		{"gateway timeout", APIError{StatusCode: 504}, ErrorTypeTimeout, true},
		{"quota", APIError{StatusCode: 402, Message: "Billing hard limit reached"}, ErrorTypeQuota, false},
		{"server", APIError{StatusCode: 502}, ErrorTypeServer, true},
		{"bad request", APIError{StatusCode: 422}, ErrorTypeBadRequest, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := ClassifyStatus(&tt.apiErr, nil)
			assert.Equal(t, tt.wantType, e.Type)
			assert.Equal(t, tt.retryable, e.Retryable)
			assert.Equal(t, tt.apiErr.StatusCode, e.StatusCode)
		})
	}
}

func TestClassifyStatusRetryAfter(t *testing.T) {
	h := http.Header{}
	h.Set("Retry-After", "3")
	e := ClassifyStatus(&APIError{StatusCode: 429, RequestID: "req_1"}, h)
	assert.Equal(t, 3*time.Second, e.RetryAfter)
	assert.Contains(t, e.Error(), "retry after 3s")
	assert.Contains(t, e.Error(), "request_id=req_1")
}

func TestClassifyError(t *testing.T) {
	tests := []struct {
		name      string
		err       error
		wantType  ErrorType
		retryable bool
	}{
		{"openai api error", &openai.APIError{HTTPStatusCode: 429, Message: "slow down"}, ErrorTypeRateLimit, true},
		{"openai request error", &openai.RequestError{HTTPStatusCode: 500, Err: errors.New("boom")}, ErrorTypeServer, true},
		{"anthropic overloaded", &anthropic.APIError{Type: "overloaded_error", Message: "busy"}, ErrorTypeServer, true},
		{"anthropic auth", &anthropic.APIError{Type: "authentication_error", Message: "bad key"}, ErrorTypeAuth, false},
		{"deadline", context.DeadlineExceeded, ErrorTypeTimeout, true},
		{"canceled", context.Canceled, ErrorTypeTimeout, true},
		{"refused", errors.New("dial tcp: connection refused"), ErrorTypeUnreachable, true},
		{"status in text", errors.New("got 401 from upstream"), ErrorTypeAuth, false},
		{"unknown", errors.New("something odd"), ErrorTypeUnknown, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := ClassifyError(fmt.Errorf("wrapped: %w", tt.err))
			assert.Equal(t, tt.wantType, e.Type)
			assert.Equal(t, tt.retryable, e.Retryable)
			assert.ErrorIs(t, e, tt.err)
		})
	}
	assert.Nil(t, ClassifyError(nil))

	already := NewError(ErrorTypeQuota, "quota exceeded", false, nil)
	assert.Same(t, already, ClassifyError(already))
}

func TestErrorHelpers(t *testing.T) {
	err := fmt.Errorf("call: %w", NewError(ErrorTypeRateLimit, "rate limited", true, nil))
	assert.True(t, IsRetryable(err))
	assert.Equal(t, ErrorTypeRateLimit, TypeOf(err))
	assert.False(t, IsRetryable(errors.New("plain")))
	assert.Equal(t, ErrorTypeUnknown, TypeOf(errors.New("plain")))
}

func TestParseRetryAfterSeconds(t *testing.T) {
	s, err := parseRetryAfterSeconds("7")
	assert.NoError(t, err)
	assert.Equal(t, 7, s)

	_, err = parseRetryAfterSeconds("")
	assert.Error(t, err)
	_, err = parseRetryAfterSeconds("soon")
	assert.Error(t, err)

	past := time.Now().Add(-time.Hour).UTC().Format(http.TimeFormat)
	s, err = parseRetryAfterSeconds(past)
	assert.NoError(t, err)
	assert.Equal(t, 0, s)
}
