// Package result is the Success | Error | Loading envelope returned by the
// control API.
package result

import (
	"encoding/json"
	"errors"
	"fmt"

	apperrors "weylus/pkg/errors"
)

type Kind int

const (
	KindSuccess Kind = iota
	KindError
	KindLoading
)

func (k Kind) String() string {
	switch k {
	case KindSuccess:
		return "success"
	case KindError:
		return "error"
	case KindLoading:
		return "loading"
	default:
		return "unknown"
	}
}

// Result holds exactly one of a value, an error or the loading marker. The
// zero value is Success with the zero T.
type Result[T any] struct {
	kind    Kind
	data    T
	err     error
	message string
}

func Success[T any](data T) Result[T] {
	return Result[T]{kind: KindSuccess, data: data}
}

// Error builds a failed result. message may be empty, in which case the
// error text is reported.
func Error[T any](err error, message string) Result[T] {
	if err == nil {
		err = errors.New(message)
	}
	return Result[T]{kind: KindError, err: err, message: message}
}

func Loading[T any]() Result[T] {
	return Result[T]{kind: KindLoading}
}

func (r Result[T]) Kind() Kind      { return r.kind }
func (r Result[T]) IsSuccess() bool { return r.kind == KindSuccess }
func (r Result[T]) IsError() bool   { return r.kind == KindError }
func (r Result[T]) IsLoading() bool { return r.kind == KindLoading }

// Get returns the value and whether the result is a Success.
func (r Result[T]) Get() (T, bool) {
	if r.kind != KindSuccess {
		var zero T
		return zero, false
	}
	return r.data, true
}

// Err returns the error of a failed result, nil otherwise.
func (r Result[T]) Err() error {
	if r.kind != KindError {
		return nil
	}
	return r.err
}

func (r Result[T]) Message() string {
	if r.kind != KindError {
		return ""
	}
	if r.message != "" {
		return r.message
	}
	return r.err.Error()
}

func (r Result[T]) OnSuccess(fn func(T)) Result[T] {
	if r.kind == KindSuccess {
		fn(r.data)
	}
	return r
}

func (r Result[T]) OnError(fn func(err error, message string)) Result[T] {
	if r.kind == KindError {
		fn(r.err, r.message)
	}
	return r
}

func (r Result[T]) OnLoading(fn func()) Result[T] {
	if r.kind == KindLoading {
		fn()
	}
	return r
}

func (r Result[T]) String() string {
	switch r.kind {
	case KindSuccess:
		return fmt.Sprintf("Success[data=%v]", r.data)
	case KindError:
		return fmt.Sprintf("Error[err=%v, message=%s]", r.err, r.message)
	default:
		return "Loading"
	}
}

// Map transforms the value of a Success and carries Error and Loading over
// unchanged.
func Map[T, R any](r Result[T], fn func(T) R) Result[R] {
	switch r.kind {
	case KindSuccess:
		return Success(fn(r.data))
	case KindError:
		return Error[R](r.err, r.message)
	default:
		return Loading[R]()
	}
}

type errorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type envelope[T any] struct {
	Status string     `json:"status"`
	Data   *T         `json:"data,omitempty"`
	Error  *errorBody `json:"error,omitempty"`
}

// MarshalJSON renders {"status": ..., "data"|"error": ...}. Error codes come
// from the AppError in the chain, INTERNAL_ERROR otherwise.
func (r Result[T]) MarshalJSON() ([]byte, error) {
	env := envelope[T]{Status: r.kind.String()}
	switch r.kind {
	case KindSuccess:
		data := r.data
		env.Data = &data
	case KindError:
		code := string(apperrors.ErrCodeInternal)
		if appErr := apperrors.GetAppError(r.err); appErr != nil {
			code = string(appErr.Code)
		}
		env.Error = &errorBody{Code: code, Message: r.Message()}
	}
	return json.Marshal(env)
}
