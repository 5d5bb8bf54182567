package generator

import (
	"fmt"
	"sync/atomic"

	"github.com/google/uuid"
)

// Generator produces a new value of type T on each call.
// The bot uses it for session, request and play record identifiers.
type Generator[T any] interface {
	Next() (T, error)
}

// UUIDV4Generator produces random UUIDv4 strings.
type UUIDV4Generator struct{}

func (g *UUIDV4Generator) Next() (string, error) {
	id, err := uuid.NewRandom()
	if err != nil {
		return "", err
	}
	return id.String(), nil
}

var _ Generator[string] = &UUIDV4Generator{}

// SequenceGenerator produces "<prefix>-1", "<prefix>-2", ... and is safe for
// concurrent use. Tests use it where identifiers must be predictable.
type SequenceGenerator struct {
	Prefix  string
	counter atomic.Uint64
}

func (g *SequenceGenerator) Next() (string, error) {
	return fmt.Sprintf("%s-%d", g.Prefix, g.counter.Add(1)), nil
}

var _ Generator[string] = &SequenceGenerator{}

// MustNext returns the next value or panics. Only use it with generators
// that cannot fail in practice.
func MustNext[T any](g Generator[T]) T {
	v, err := g.Next()
	if err != nil {
		panic(fmt.Sprintf("generator failed: %v", err))
	}
	return v
}
