package service

import (
	"context"

	"github.com/dverney/marketsim/internal/domain"
)

// Archive mirrors created entities into durable storage. The in-memory
// stores remain the runtime source of truth; archive failures are
// logged by callers and never fail a request. The Postgres store
// implements this interface.
type Archive interface {
	SaveExchange(ctx context.Context, e *domain.Exchange) error
	SavePortfolio(ctx context.Context, p *domain.Portfolio) error
	SaveOrder(ctx context.Context, o *domain.Order) error
}
