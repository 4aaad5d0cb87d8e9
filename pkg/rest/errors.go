package rest

import (
	"fmt"

	errors "golang.org/x/xerrors"
)

var (
	ErrInvalidBaseURL   = errors.New("rest: base url must be an absolute http(s) url")
	ErrResponseTooLarge = errors.New("response body is too large")
)

// NotOkError is returned for every response with a non 2xx status code.
type NotOkError struct {
	Method     string
	Path       string
	StatusCode int
	Status     string
	Body       []byte
}

func (e *NotOkError) Error() string {
	return fmt.Sprintf("rest: %s %s returned %s", e.Method, e.Path, e.Status)
}

// DeserializeError is returned when a 2xx body could not be decoded. Body holds the raw response.
type DeserializeError struct {
	Path string
	Body []byte
	Err  error
}

func (e *DeserializeError) Error() string {
	return fmt.Sprintf("rest: could not deserialize response of %s: %v", e.Path, e.Err)
}

func (e *DeserializeError) Unwrap() error {
	return e.Err
}

type JobNotFoundError struct {
	ID int64
}

func (e *JobNotFoundError) Error() string {
	return fmt.Sprintf("rest: job %d not found", e.ID)
}
