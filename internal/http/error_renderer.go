package httpx

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	apperrors "github.com/om239903-ai/internship-project/internal/errors"
)

// errorStatus maps application error codes onto HTTP statuses and response error codes.
var errorStatus = map[apperrors.ErrorCode]struct { //nolint:gochecknoglobals // static lookup
	status  int
	errCode string
}{
	apperrors.ErrCodeValidation:  {http.StatusBadRequest, "validation_failed"},
	apperrors.ErrCodeNotFound:    {http.StatusNotFound, "not_found"},
	apperrors.ErrCodeConflict:    {http.StatusConflict, "conflict"},
	apperrors.ErrCodeAuth:        {http.StatusUnauthorized, "unauthorized"},
	apperrors.ErrCodeRateLimited: {http.StatusTooManyRequests, "rate_limited"},
	apperrors.ErrCodeTransient:   {http.StatusServiceUnavailable, "unavailable"},
	apperrors.ErrCodeTimeout:     {http.StatusGatewayTimeout, "timeout"},
}

// RenderError writes err as a JSON error response. Classified errors keep their message;
// anything else is logged and reported as a generic internal error.
func RenderError(w http.ResponseWriter, r *http.Request, err error, logger *slog.Logger) {
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		WriteError(w, ErrorParams{Code: http.StatusGatewayTimeout, ErrCode: "timeout", Err: errors.New("request timed out")})
		return
	case errors.Is(err, context.Canceled):
		// Client went away; nobody reads the body.
		w.WriteHeader(499)
		return
	}

	var appErr *apperrors.AppError
	if errors.As(err, &appErr) {
		if m, ok := errorStatus[appErr.Code]; ok {
			errCode := m.errCode
			if appErr.Reason != "" {
				errCode = appErr.Reason
			}
			WriteError(w, ErrorParams{
				Code:    m.status,
				ErrCode: errCode,
				Err:     errors.New(appErr.Message),
				Field:   appErr.Field,
			})
			return
		}
	}

	if logger != nil {
		logger.ErrorContext(r.Context(), "request failed",
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
			slog.Any("error", err),
		)
	}
	WriteError(w, ErrorParams{
		Code:    http.StatusInternalServerError,
		ErrCode: "internal_error",
		Err:     errors.New("internal server error"),
	})
}
