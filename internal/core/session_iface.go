package core

import (
	"context"

	"github.com/dkeye/Hangout/internal/domain"
)

// IdentityVerifier turns a credential presented at connect time into a
// stable identity.
type IdentityVerifier interface {
	Verify(ctx context.Context, credential string) (domain.Identity, error)
}
