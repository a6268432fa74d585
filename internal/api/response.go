package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"

	apperrors "complaint-desk/internal/common/errors"
)

const maxBodyBytes = 1 << 20

type errorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details string `json:"details,omitempty"`
}

type errorBody struct {
	Error errorDetail `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func statusFor(code apperrors.ErrorCode) int {
	switch code {
	case apperrors.ErrCodeValidationFailed:
		return http.StatusBadRequest
	case apperrors.ErrCodeComplaintNotFound, apperrors.ErrCodeWorkerNotFound:
		return http.StatusNotFound
	case apperrors.ErrCodeInvalidTransition,
		apperrors.ErrCodeWorkerUnavailable,
		apperrors.ErrCodeWorkerAmbiguous,
		apperrors.ErrCodeWorkerBusy,
		apperrors.ErrCodeCategoryMismatch:
		return http.StatusConflict
	case apperrors.ErrCodeSearchFailed, apperrors.ErrCodeNotificationSendFailed:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// writeError renders err as a JSON error body. Server-side failures are
// logged and answered with a generic message.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	stdErr, ok := apperrors.AsStandardError(err)
	if !ok {
		stdErr = apperrors.NewInternalError(err)
	}

	status := statusFor(stdErr.Code)
	if status >= http.StatusInternalServerError {
		s.logger.Error("request failed", map[string]interface{}{
			"method":  r.Method,
			"path":    r.URL.Path,
			"code":    string(stdErr.Code),
			"error":   stdErr.Error(),
			"details": stdErr.Details,
		})
		writeJSON(w, status, errorBody{Error: errorDetail{
			Code:    string(stdErr.Code),
			Message: "internal error",
		}})
		return
	}

	writeJSON(w, status, errorBody{Error: errorDetail{
		Code:    string(stdErr.Code),
		Message: stdErr.Message,
		Details: stdErr.Details,
	}})
}

func decodeBody(r *http.Request, v interface{}) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	if err := dec.Decode(v); err != nil {
		if errors.Is(err, io.EOF) {
			return apperrors.NewValidationFailedError("request body is required")
		}
		return apperrors.NewValidationFailedError(fmt.Sprintf("malformed request body: %v", err))
	}
	return nil
}

// pathID reads a positive integer pat parameter.
func pathID(r *http.Request, name string) (int64, error) {
	raw := r.URL.Query().Get(":" + name)
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, apperrors.NewValidationFailedError(fmt.Sprintf("%s must be a positive integer, got %q", name, raw))
	}
	return id, nil
}
