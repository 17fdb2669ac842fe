package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/sirupsen/logrus"

	"facequant/internal/adapter/encoder"
	"facequant/internal/domain"
)

// statusFor maps an error to an HTTP status and the kind reported to the
// client.
func statusFor(err error) (int, string) {
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		return http.StatusRequestEntityTooLarge, string(domain.KindInvalidInput)
	}
	if errors.Is(err, encoder.ErrEncoderUnavailable) {
		return http.StatusServiceUnavailable, "encoder_unavailable"
	}

	kind, ok := domain.KindOf(err)
	if !ok {
		return http.StatusInternalServerError, "internal"
	}
	switch kind {
	case domain.KindInvalidInput, domain.KindNoFaceDetected:
		return http.StatusBadRequest, string(kind)
	case domain.KindComputation:
		return http.StatusUnprocessableEntity, string(kind)
	default:
		return http.StatusInternalServerError, "internal"
	}
}

func writeError(w http.ResponseWriter, logger logrus.FieldLogger, err error) {
	status, kind := statusFor(err)
	detail := err.Error()
	if status == http.StatusInternalServerError {
		logger.WithError(err).Error("request failed")
		detail = "internal server error"
	} else {
		logger.WithError(err).WithField("status", status).Debug("request rejected")
	}
	writeJSON(w, status, errorResponse{Detail: detail, Kind: kind})
}

// writeJSON encodes v before writing the header, so an unencodable value
// becomes a 500 instead of an empty success.
func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	body, err := json.Marshal(v)
	if err != nil {
		status = http.StatusInternalServerError
		body, _ = json.Marshal(errorResponse{Detail: "failed to encode response", Kind: "internal"})
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(append(body, '\n'))
}
