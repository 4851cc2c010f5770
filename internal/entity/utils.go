package entity

type Option[T any] struct {
	Value T
	None  bool
}

func Some[T any](v T) Option[T] {
	return Option[T]{Value: v}
}

func None[T any]() Option[T] {
	return Option[T]{None: true}
}
