package database

type ResultStatus string

const (
	ResultOK       ResultStatus = "ok"
	ResultDenied   ResultStatus = "denied"
	ResultNotFound ResultStatus = "not_found"
)

// Result tells apart a denied operation from one that found nothing. A
// denied result always carries the zero value.
type Result[T any] struct {
	Status ResultStatus `json:"status"`
	Value  T            `json:"value"`
}

func (r Result[T]) OK() bool {
	return r.Status == ResultOK
}

func (r Result[T]) Denied() bool {
	return r.Status == ResultDenied
}

func (r Result[T]) NotFound() bool {
	return r.Status == ResultNotFound
}

func ok[T any](value T) Result[T] {
	return Result[T]{Status: ResultOK, Value: value}
}

func denied[T any]() Result[T] {
	return Result[T]{Status: ResultDenied}
}

func notFound[T any](value T) Result[T] {
	return Result[T]{Status: ResultNotFound, Value: value}
}
