package client

import (
	"context"
)

// Repository is the read-only client directory contract consumed by the
// billing engine.
type Repository interface {
	Get(ctx context.Context, id string) (*Client, error)
}
