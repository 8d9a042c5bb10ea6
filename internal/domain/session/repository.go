package session

import "context"

// Repository persists the token pair across portal restarts.
// Load reports ok=false when either token is missing.
type Repository interface {
	Load(ctx context.Context) (TokenPair, bool, error)
	Save(ctx context.Context, pair TokenPair) error
	Clear(ctx context.Context) error
}

// Decoder derives an Identity from an access token without verifying it.
type Decoder interface {
	Decode(access string) (Identity, error)
}
