package httpapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/hashicorp/go-multierror"

	"facequant/internal/domain"
	"facequant/internal/usecase"
)

type compareRequest struct {
	FaceLogin      *[]float64 `json:"face_login"`
	FaceReg        *[]float64 `json:"face_reg"`
	Representation string     `json:"representation,omitempty"`
}

type compareResponse struct {
	Distance float64 `json:"distance"`
	Match    bool    `json:"match"`
}

type quantizedResponse struct {
	EmbeddingCompressed domain.QuantizedEmbedding `json:"embedding_compressed"`
}

type reducedResponse struct {
	ReducedEmb domain.ReducedEmbedding `json:"reduced_emb"`
}

type errorResponse struct {
	Detail string `json:"detail"`
	Kind   string `json:"kind"`
}

type healthResponse struct {
	Status         string `json:"status"`
	Encoder        string `json:"encoder"`
	Representation string `json:"representation"`
}

// decodeCompareRequest parses and validates a compare payload. Every
// missing field is reported, not just the first.
func decodeCompareRequest(r io.Reader) (usecase.CompareRequest, error) {
	var req compareRequest
	dec := json.NewDecoder(r)
	if err := dec.Decode(&req); err != nil {
		return usecase.CompareRequest{}, decodeError(err)
	}
	if dec.More() {
		return usecase.CompareRequest{}, domain.NewInvalidInput("decode request", "unexpected data after JSON object")
	}

	var result *multierror.Error
	if req.FaceLogin == nil {
		result = multierror.Append(result, &domain.MissingFieldError{Field: "face_login"})
	}
	if req.FaceReg == nil {
		result = multierror.Append(result, &domain.MissingFieldError{Field: "face_reg"})
	}

	var rep domain.Representation
	if req.Representation != "" {
		parsed, err := domain.ParseRepresentation(req.Representation)
		if err != nil {
			result = multierror.Append(result, err)
		}
		rep = parsed
	}

	if result != nil {
		result.ErrorFormat = joinErrors
		return usecase.CompareRequest{}, result.ErrorOrNil()
	}

	return usecase.CompareRequest{
		FaceLogin:      *req.FaceLogin,
		FaceReg:        *req.FaceReg,
		Representation: rep,
	}, nil
}

func decodeError(err error) error {
	var typeErr *json.UnmarshalTypeError
	var syntaxErr *json.SyntaxError

	switch {
	case errors.Is(err, io.EOF):
		return domain.NewInvalidInput("decode request", "request body is empty")
	case errors.As(err, &typeErr):
		field := typeErr.Field
		if field == "" {
			return domain.NewInvalidInput("decode request", "request body must be a JSON object")
		}
		return domain.NewInvalidInput("decode request",
			fmt.Sprintf("invalid type for field %s: expected %s", field, expectedType(field)))
	case errors.As(err, &syntaxErr), errors.Is(err, io.ErrUnexpectedEOF):
		return &domain.Error{Kind: domain.KindInvalidInput, Op: "decode request", Message: "malformed JSON", Err: err}
	default:
		return &domain.Error{Kind: domain.KindInvalidInput, Op: "decode request", Message: "invalid request body", Err: err}
	}
}

func expectedType(field string) string {
	if strings.HasPrefix(field, "representation") {
		return "string"
	}
	return "array of numbers"
}

func joinErrors(errs []error) string {
	msgs := make([]string, len(errs))
	for i, err := range errs {
		msgs[i] = err.Error()
	}
	return strings.Join(msgs, "; ")
}
