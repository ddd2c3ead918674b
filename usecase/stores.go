package usecase

import (
	"math/big"
	"time"

	"rwadriver/domain"
	"rwadriver/interface/repository"
)

// QueueStore persists the batch ledger. Every Save method commits one ledger
// mutation and its journal event in a single transaction; an error means
// nothing was written and the in-memory state must not change.
type QueueStore interface {
	Load() ([]*domain.Batch, uint64, uint64, error)
	SaveBatch(batch *domain.Batch, head uint64, tail uint64, event *domain.Event) error
	SaveRequest(batchPending *big.Int, request *domain.RedemptionRequest, position int, event *domain.Event) error
	SaveCancel(batchPending *big.Int, request *domain.RedemptionRequest, cancelTime time.Time, event *domain.Event) error
	SaveFulfillment(batchID uint64, batchPending *big.Int, touched []repository.FulfilledRequest, head uint64, tail uint64, event *domain.Event) error
	SaveBounds(head uint64, tail uint64) error
}

// ValuationStore persists the per-token NAV record.
type ValuationStore interface {
	Find(tokenID string) (*domain.TokenValuation, error)
	Save(valuation *domain.TokenValuation, event *domain.Event) error
}

// EventStore journals events that carry no ledger mutation of their own.
type EventStore interface {
	Append(event *domain.Event) error
}
