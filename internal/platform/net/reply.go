package net

import (
	"net/http"

	perr "devlog/internal/platform/errors"
)

// Wire is a common envelope used by transports
type Wire struct {
	StatusCode int            `json:"status_code"`
	Status     string         `json:"status"`
	Code       perr.ErrorCode `json:"code,omitempty"`
	Error      string         `json:"error,omitempty"`
	RequestID  string         `json:"request_id,omitempty"`
	Data       any            `json:"data,omitempty"`
}

// Error builds an error envelope for middleware that writes directly
func Error(err error, reqID string) (int, Wire) {
	if err == nil {
		return http.StatusOK, Wire{
			StatusCode: http.StatusOK,
			Status:     http.StatusText(http.StatusOK),
			RequestID:  reqID,
		}
	}
	status := perr.HTTPStatus(err)
	w := perr.WireFrom(err)
	return status, Wire{
		StatusCode: status,
		Status:     http.StatusText(status),
		Code:       w.Code,
		Error:      w.Message,
		RequestID:  reqID,
	}
}
