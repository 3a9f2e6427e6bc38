package app

import (
	"context"
	"errors"

	"bleepy-challenge-service/internal/domain"
)

// retryOnce repeats op a single time when it fails with a transient
// persistence error. Domain errors are returned untouched.
func retryOnce(ctx context.Context, op func() error) error {
	err := op()
	if err == nil || !errors.Is(err, domain.ErrUnavailable) {
		return err
	}
	if ctx.Err() != nil {
		return err
	}
	return op()
}
