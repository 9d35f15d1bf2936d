package llmerr

import (
	"context"
	"errors"
	"fmt"

	"trade-app/internal/types"
)

// Wrap classifies a provider failure as ErrInferenceTimeout when the call ran
// out of time and as ErrInference otherwise.
func Wrap(ctx context.Context, provider string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return fmt.Errorf("%w: %s: %v", types.ErrInferenceTimeout, provider, err)
	}
	return fmt.Errorf("%w: %s: %v", types.ErrInference, provider, err)
}

// Empty reports a reply without any text.
func Empty(provider string) error {
	return fmt.Errorf("%w: %s: no text in reply", types.ErrInference, provider)
}
