package httpapi

import (
	"errors"
	"io"
	"net/http"

	"facequant/internal/domain"
)

func (s *Server) handleGetEmbedding(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.MaxUploadBytes)

	file, _, err := r.FormFile("file")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, s.logger, err)
			return
		}
		if errors.Is(err, http.ErrMissingFile) {
			writeError(w, s.logger, &domain.MissingFieldError{Field: "file"})
			return
		}
		writeError(w, s.logger, &domain.Error{
			Kind:    domain.KindInvalidInput,
			Op:      "read upload",
			Message: "expected multipart form with a file field",
			Err:     err,
		})
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		writeError(w, s.logger, &domain.Error{Kind: domain.KindInvalidInput, Op: "read upload", Message: "failed to read file", Err: err})
		return
	}

	result, err := s.embed.Embed(r.Context(), data)
	if err != nil {
		writeError(w, s.logger, err)
		return
	}

	if result.Representation == domain.RepresentationReduced {
		writeJSON(w, http.StatusOK, reducedResponse{ReducedEmb: result.Reduced})
		return
	}
	writeJSON(w, http.StatusOK, quantizedResponse{EmbeddingCompressed: result.Quantized})
}

func (s *Server) handleCompareEmbeddings(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.MaxUploadBytes)

	req, err := decodeCompareRequest(r.Body)
	if err != nil {
		writeError(w, s.logger, err)
		return
	}

	result, err := s.compare.Compare(r.Context(), req)
	if err != nil {
		writeError(w, s.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, compareResponse{Distance: result.Distance, Match: result.Match})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, healthResponse{
		Status:         "ok",
		Encoder:        s.embed.EncoderName(),
		Representation: string(s.embed.Representation()),
	})
}

func methodNotAllowed(allowed string) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Allow", allowed)
		writeJSON(w, http.StatusMethodNotAllowed, errorResponse{
			Detail: "method " + r.Method + " not allowed, use " + allowed,
			Kind:   "method_not_allowed",
		})
	})
}
