package terminology

import (
	"context"
	"errors"
)

// ErrNotFound is returned by a repository when no entry exists for the
// requested (code, system, language) triple.
var ErrNotFound = errors.New("terminology: code not found")

// Repository is the backing terminology store. The system argument is always
// the normalized OID form. Implementations may perform I/O and must honor
// context cancellation.
type Repository interface {
	GetDisplay(ctx context.Context, code, system, language string) (string, error)
}
