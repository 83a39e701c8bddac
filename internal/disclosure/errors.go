package disclosure

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	// ErrInvalidPeriod is returned for look-back windows other than 3 or 5 years.
	ErrInvalidPeriod = errors.New("period must be 3 or 5 years")
	// ErrNotConfigured is returned when no API key is available.
	ErrNotConfigured = errors.New("DART API key not configured")
)

// DART status codes.
const (
	StatusOK              = "000"
	StatusUnregisteredKey = "010"
	StatusDisabledKey     = "011"
	StatusIPDenied        = "012"
	StatusNoData          = "013"
	StatusRateLimited     = "020"
	StatusTooManyCorps    = "021"
	StatusInvalidField    = "100"
	StatusInvalidAccess   = "101"
	StatusMaintenance     = "800"
	StatusUndefined       = "900"
	StatusExpiredKey      = "901"
)

// APIError is a non-success status returned by the DART API.
type APIError struct {
	Status  string
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("DART status %s: %s", e.Status, e.Message)
}

// HTTPStatus maps the DART status onto the HTTP status reported to clients.
func (e *APIError) HTTPStatus() int {
	switch e.Status {
	case StatusNoData:
		return http.StatusNotFound
	case StatusUnregisteredKey, StatusDisabledKey, StatusIPDenied, StatusExpiredKey:
		return http.StatusUnauthorized
	case StatusRateLimited, StatusTooManyCorps:
		return http.StatusTooManyRequests
	case StatusInvalidField, StatusInvalidAccess:
		return http.StatusBadRequest
	case StatusMaintenance:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// IsNoData reports whether err is DART's "no data" status.
func IsNoData(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Status == StatusNoData
}
