package health

import "context"

// PersistencePinger checks that the snapshot backend is reachable.
type PersistencePinger interface {
	Ping(ctx context.Context) error
}

// EncoderChecker checks encoder availability.
type EncoderChecker interface {
	HealthCheck(ctx context.Context) error
}
