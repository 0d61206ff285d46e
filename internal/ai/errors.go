package ai

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/liushuangls/go-anthropic/v2"
	"github.com/sashabaranov/go-openai"
)

// ErrorType classifies a failed inference call.
type ErrorType string

const (
	ErrorTypeAuth        ErrorType = "auth"
	ErrorTypeRateLimit   ErrorType = "rate_limit"
	ErrorTypeQuota       ErrorType = "quota"
	ErrorTypeBadRequest  ErrorType = "bad_request"
	ErrorTypeModel       ErrorType = "model_not_found"
	ErrorTypeServer      ErrorType = "server"
	ErrorTypeTimeout     ErrorType = "timeout"
	ErrorTypeUnreachable ErrorType = "unreachable"
	ErrorTypeEmpty       ErrorType = "empty_response"
	ErrorTypeUnknown     ErrorType = "unknown"
)

// APIError is the raw error payload returned by a provider.
type APIError struct {
	StatusCode int            `json:"-"`
	Code       string         `json:"code,omitempty"`
	Message    string         `json:"message,omitempty"`
	Raw        map[string]any `json:"-"`
	RequestID  string         `json:"-"`
}

func (e *APIError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "api error: status=%d", e.StatusCode)
	if e.Code != "" {
		fmt.Fprintf(&b, " code=%s", e.Code)
	}
	if e.RequestID != "" {
		fmt.Fprintf(&b, " request_id=%s", e.RequestID)
	}
	if e.Message != "" {
		fmt.Fprintf(&b, " message=%s", e.Message)
	}
	return b.String()
}

// Error is a classified inference failure. Transient failures (rate limits,
// timeouts, 5xx, connection problems) are retryable; the rest surface immediately.
type Error struct {
	Type       ErrorType
	Message    string
	Retryable  bool
	StatusCode int
	RetryAfter time.Duration
	Cause      error
}

func (e *Error) Error() string {
	parts := []string{string(e.Type)}
	if e.StatusCode > 0 {
		parts = append(parts, fmt.Sprintf("HTTP %d", e.StatusCode))
	}
	parts = append(parts, e.Message)
	if e.RetryAfter > 0 {
		parts = append(parts, fmt.Sprintf("(retry after %ds)", int(e.RetryAfter.Seconds())))
	}
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", strings.Join(parts, " "), e.Cause)
	}
	return strings.Join(parts, " ")
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error { return e.Cause }

// IsRetryable lets the retry package decide without importing this package.
func (e *Error) IsRetryable() bool { return e.Retryable }

// NewError builds a classified error.
func NewError(t ErrorType, msg string, retryable bool, cause error) *Error {
	return &Error{Type: t, Message: msg, Retryable: retryable, Cause: cause}
}

// IsRetryable reports whether err was classified as transient.
func IsRetryable(err error) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Retryable
	}
	return false
}

// TypeOf returns the classification of err, or ErrorTypeUnknown.
func TypeOf(err error) ErrorType {
	var e *Error
	if errors.As(err, &e) {
		return e.Type
	}
	return ErrorTypeUnknown
}

// ClassifyStatus maps an HTTP status and provider payload to a classified error.
func ClassifyStatus(apiErr *APIError, header http.Header) *Error {
	sc := apiErr.StatusCode
	e := &Error{StatusCode: sc, Cause: apiErr}
	switch {
	case sc == http.StatusUnauthorized || sc == http.StatusForbidden:
		e.Type, e.Message = ErrorTypeAuth, "authentication failed"
	case sc == http.StatusTooManyRequests:
		e.Type, e.Message, e.Retryable = ErrorTypeRateLimit, "rate limited", true
		if header != nil {
			if secs, err := parseRetryAfterSeconds(header.Get("Retry-After")); err == nil && secs > 0 {
				e.RetryAfter = time.Duration(secs) * time.Second
			}
		}
	case sc == http.StatusNotFound:
		if apiErr.Code == "model_not_found" || containsAllFold(apiErr.Message, "model", "not", "found") {
			e.Type, e.Message = ErrorTypeModel, "model not found"
		} else {
			e.Type, e.Message = ErrorTypeUnreachable, "endpoint not found"
		}
	case sc == http.StatusRequestTimeout || sc == http.StatusGatewayTimeout:
		e.Type, e.Message, e.Retryable = ErrorTypeTimeout, "request timeout", true
	case apiErr.Code == "quota_exceeded" || containsAnyFold(apiErr.Message, "quota", "billing", "limit exceeded"):
		e.Type, e.Message = ErrorTypeQuota, "quota exceeded"
	case sc >= 500 && sc <= 599:
		e.Type, e.Message, e.Retryable = ErrorTypeServer, "provider error", true
	case sc >= 400 && sc <= 499:
		e.Type, e.Message = ErrorTypeBadRequest, "bad request"
	default:
		e.Type, e.Message = ErrorTypeUnknown, "unexpected status"
	}
	return e
}

// ClassifyError turns any error from a runtime into a classified *Error.
// Already classified errors pass through unchanged.
func ClassifyError(err error) *Error {
	if err == nil {
		return nil
	}
	var ce *Error
	if errors.As(err, &ce) {
		return ce
	}
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return ClassifyStatus(apiErr, nil)
	}

	var oaAPI *openai.APIError
	if errors.As(err, &oaAPI) && oaAPI.HTTPStatusCode > 0 {
		return wrapStatus(oaAPI.HTTPStatusCode, oaAPI.Message, err)
	}
	var oaReq *openai.RequestError
	if errors.As(err, &oaReq) && oaReq.HTTPStatusCode > 0 {
		return wrapStatus(oaReq.HTTPStatusCode, "", err)
	}
	var anReq *anthropic.RequestError
	if errors.As(err, &anReq) && anReq.StatusCode > 0 {
		return wrapStatus(anReq.StatusCode, "", err)
	}
	var anAPI *anthropic.APIError
	if errors.As(err, &anAPI) {
		if sc := anthropicStatus(string(anAPI.Type)); sc > 0 {
			return wrapStatus(sc, anAPI.Message, err)
		}
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return NewError(ErrorTypeTimeout, "request timeout", true, err)
	}
	if errors.Is(err, context.Canceled) {
		return NewError(ErrorTypeTimeout, "request canceled", true, err)
	}
	if isRetryableNetErr(err) {
		return NewError(ErrorTypeTimeout, "network timeout", true, err)
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return NewError(ErrorTypeUnreachable, "connection failed", true, err)
	}

	lower := strings.ToLower(err.Error())
	switch {
	case strings.Contains(lower, "connection refused") || strings.Contains(lower, "no such host"):
		return NewError(ErrorTypeUnreachable, "connection failed", true, err)
	case strings.Contains(lower, "timeout") || strings.Contains(lower, "deadline exceeded"):
		return NewError(ErrorTypeTimeout, "request timeout", true, err)
	}
	for _, code := range []int{429, 500, 502, 503, 504, 400, 401, 403, 404} {
		if strings.Contains(lower, strconv.Itoa(code)) {
			return wrapStatus(code, "", err)
		}
	}
	return NewError(ErrorTypeUnknown, "inference error", false, err)
}

func wrapStatus(status int, msg string, cause error) *Error {
	e := ClassifyStatus(&APIError{StatusCode: status, Message: msg}, nil)
	e.Cause = cause
	return e
}

// anthropicStatus maps Anthropic error type names onto their HTTP statuses.
func anthropicStatus(t string) int {
	switch t {
	case "invalid_request_error":
		return http.StatusBadRequest
	case "authentication_error":
		return http.StatusUnauthorized
	case "permission_error":
		return http.StatusForbidden
	case "not_found_error":
		return http.StatusNotFound
	case "rate_limit_error":
		return http.StatusTooManyRequests
	case "api_error":
		return http.StatusInternalServerError
	case "overloaded_error":
		return http.StatusServiceUnavailable
	}
	return 0
}

func isRetryableNetErr(err error) bool {
	var nerr net.Error
	if errors.As(err, &nerr) && nerr.Timeout() {
		return true
	}
	return errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF)
}

// parseRetryAfterSeconds interprets a Retry-After header as seconds or an HTTP date.
func parseRetryAfterSeconds(v string) (int, error) {
	if v == "" {
		return 0, errors.New("empty Retry-After")
	}
	if s, err := strconv.Atoi(v); err == nil {
		return s, nil
	}
	if t, err := http.ParseTime(v); err == nil {
		d := time.Until(t)
		if d < 0 {
			d = 0
		}
		return int(d.Seconds()), nil
	}
	return 0, fmt.Errorf("invalid Retry-After: %q", v)
}

// extractRequestID pulls a best-effort request ID from common headers.
func extractRequestID(h http.Header) string {
	for _, k := range []string{"X-Request-Id", "OpenAI-Request-ID", "Openrouter-Request-ID", "Request-Id", "X-Amzn-Requestid"} {
		if v := h.Get(k); v != "" {
			return v
		}
	}
	return ""
}

func containsAllFold(s string, subs ...string) bool {
	for _, sub := range subs {
		if !containsFold(s, sub) {
			return false
		}
	}
	return true
}

func containsAnyFold(s string, subs ...string) bool {
	for _, sub := range subs {
		if containsFold(s, sub) {
			return true
		}
	}
	return false
}

func containsFold(s, sub string) bool {
	if s == "" || sub == "" {
		return false
	}
	return strings.Contains(strings.ToLower(s), strings.ToLower(sub))
}
