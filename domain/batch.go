package domain

import (
	"math/big"
	"time"
)

// RedemptionRequest is one user's claim inside one batch. TokensPending only
// decreases after creation: by fulfillment shares, or to zero on cancel.
type RedemptionRequest struct {
	Address       string     `json:"address"`
	BatchID       uint64     `json:"batch_id"`
	RequestTokens *big.Int   `json:"request_tokens"`
	TokensPending *big.Int   `json:"tokens_pending"`
	CreateTime    time.Time  `json:"create_time"`
	CancelTime    *time.Time `json:"cancel_time"`
}

// Batch is one redemption epoch. Requests is keyed by user address for O(1)
// lookup; UserList keeps request-creation order for deterministic iteration
// during fulfillment. TokensPending always equals the sum of the per-user
// pending amounts.
type Batch struct {
	ID            uint64
	Requests      map[string]*RedemptionRequest
	UserList      []string
	TokensPending *big.Int
	CreateTime    time.Time
}

func NewBatch(id uint64) *Batch {
	return &Batch{
		ID:            id,
		Requests:      make(map[string]*RedemptionRequest),
		UserList:      make([]string, 0),
		TokensPending: big.NewInt(0),
		CreateTime:    time.Now(),
	}
}

// Request returns the user's request in this batch, or nil.
func (batch *Batch) Request(address string) *RedemptionRequest {
	return batch.Requests[address]
}

func (batch *Batch) Exhausted() bool {
	return batch.TokensPending.Sign() == 0
}
