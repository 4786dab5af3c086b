package repositories

import (
	"context"

	"github.com/satriahrh/tractrelay/domain/entities"
)

// Transport is the ordered channel to the remote controller
type Transport interface {
	// Send writes msgs in order, with no other writes interleaved.
	Send(ctx context.Context, msgs ...entities.WireMessage) error
}
