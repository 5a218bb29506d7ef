package errors

import "errors"

var (
	ErrNotFound                   = errors.New("not found")
	ErrInvalid                    = errors.New("invalid")
	ErrConflict                   = errors.New("conflict")
	ErrTooMany                    = errors.New("too many requests")
	ErrInternal                   = errors.New("internal")
	ErrUnavailable                = errors.New("provider not configured")
	ErrProvider                   = errors.New("provider error")
	ErrEmbeddingDimensionMismatch = errors.New("embedding dimension mismatch")
	ErrInvalidModelResponse       = errors.New("invalid model response")
	ErrUploadFailed               = errors.New("upload failed")
)

func IsProvider(err error) bool {
	return errors.Is(err, ErrProvider)
}
