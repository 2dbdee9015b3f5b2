package gateway

// ValueState is the directive carried by a tri-state field.
type ValueState int

const (
	// Keep leaves the stored value unchanged. It is the zero value so an
	// unset field never overwrites anything.
	Keep ValueState = iota
	Use
	Clear
)

// Field is a value plus the directive saying what to do with it.
type Field[T any] struct {
	State ValueState
	Value T
}

// Set returns a field that replaces the stored value with v.
func Set[T any](v T) Field[T] {
	return Field[T]{State: Use, Value: v}
}

// Cleared returns a field that resets the stored value to zero.
func Cleared[T any]() Field[T] {
	return Field[T]{State: Clear}
}

// Apply merges the field into prev.
func (f Field[T]) Apply(prev T) T {
	switch f.State {
	case Clear:
		var zero T
		return zero
	case Use:
		return f.Value
	}
	return prev
}
