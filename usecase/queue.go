package usecase

import (
	"fmt"
	"log"
	"math/big"
	"sync"
	"time"

	"rwadriver/domain"
	"rwadriver/interface/exporter"
)

// QueueInteractor owns the redemption batch ledger: the ordered batch array,
// the head/tail bounds and every request record inside the batches. Nothing
// else mutates these. Batches in [head, tail) are open; batches below head
// are settled and kept for historical lookup only.
//
// Every mutation is computed against the in-memory ledger, persisted in one
// transaction, and applied to memory only after the commit, so an error at
// any step leaves the ledger untouched.
type QueueInteractor struct {
	token       domain.Token
	store       QueueStore
	operators   *domain.OperatorSet
	poolAddress string

	mutex   sync.Mutex
	batches []*domain.Batch
	head    uint64
	tail    uint64
}

func NewQueueInteractor(token domain.Token,
	store QueueStore,
	operators *domain.OperatorSet,
	poolAddress string) *QueueInteractor {
	interactor := &QueueInteractor{
		token:       token,
		store:       store,
		operators:   operators,
		poolAddress: poolAddress,
	}

	return interactor
}

// Initialize rebuilds the ledger from the store.
func (interactor *QueueInteractor) Initialize() error {
	batches, head, tail, err := interactor.store.Load()
	if err != nil {
		log.Printf("🔴 loading batch ledger - %v\n", err.Error())
		return err
	}
	if uint64(len(batches)) != tail || head > tail {
		return fmt.Errorf("corrupt batch ledger: %v batches, head %v, tail %v", len(batches), head, tail)
	}

	interactor.mutex.Lock()
	interactor.batches = batches
	interactor.head = head
	interactor.tail = tail
	interactor.mutex.Unlock()
	return nil
}

// CreateBatch opens a new, empty redemption epoch at the tail.
func (interactor *QueueInteractor) CreateBatch(operator string) (*domain.Batch, error) {
	if !interactor.operators.Contains(operator) {
		return nil, domain.ErrorUnauthorized
	}

	interactor.mutex.Lock()
	defer interactor.mutex.Unlock()

	batch := domain.NewBatch(interactor.tail)
	event := domain.NewEvent(domain.EventBatchCreated, map[string]interface{}{
		"batch_id": batch.ID,
	})
	if err := interactor.store.SaveBatch(batch, interactor.head, interactor.tail+1, event); err != nil {
		log.Printf("🔴 saving batch %v - %v\n", batch.ID, err.Error())
		return nil, err
	}

	interactor.batches = append(interactor.batches, batch)
	interactor.tail++
	log.Printf("batch %v created\n", batch.ID)
	return batch, nil
}

// CreateRedeemRequest escrows the user's tokens into the pool and records the
// claim in the newest batch. A user holds at most one live request per batch;
// a request cancelled earlier in the same batch may be re-upped, adding to
// its original total.
func (interactor *QueueInteractor) CreateRedeemRequest(user string, tokens *big.Int) error {
	if tokens == nil || tokens.Sign() <= 0 {
		return domain.ErrorInvalidAmount
	}

	interactor.mutex.Lock()
	defer interactor.mutex.Unlock()

	if interactor.tail == 0 {
		return domain.ErrorBatchUnderflow
	}
	batch := interactor.batches[interactor.tail-1]

	existing := batch.Request(user)
	if existing != nil && existing.TokensPending.Sign() > 0 {
		return domain.ErrorInvalidAmount
	}

	balance, err := interactor.token.BalanceOf(user)
	if err != nil {
		return err
	}
	if balance.Cmp(tokens) < 0 {
		return domain.ErrorInsufficientTokens
	}

	if err = interactor.token.TransferFrom(user, interactor.poolAddress, tokens); err != nil {
		return fmt.Errorf("%w: escrowing tokens: %v", domain.ErrorTransferFailed, err)
	}

	staged := &domain.RedemptionRequest{
		Address:       user,
		BatchID:       batch.ID,
		RequestTokens: new(big.Int).Set(tokens),
		TokensPending: new(big.Int).Set(tokens),
		CreateTime:    time.Now(),
	}
	position := len(batch.UserList)
	if existing != nil {
		staged.RequestTokens.Add(staged.RequestTokens, existing.RequestTokens)
		staged.CreateTime = existing.CreateTime
	}
	batchPending := new(big.Int).Add(batch.TokensPending, tokens)

	event := domain.NewEvent(domain.EventRedeemCreated, map[string]interface{}{
		"batch_id": batch.ID,
		"user":     user,
		"tokens":   tokens.String(),
	})
	if err = interactor.store.SaveRequest(batchPending, staged, position, event); err != nil {
		log.Printf("🔴 saving redeem request [user: %v, batch: %v] - %v\n", user, batch.ID, err.Error())
		return err
	}

	batch.Requests[user] = staged
	if existing == nil {
		batch.UserList = append(batch.UserList, user)
	}
	batch.TokensPending = batchPending
	exporter.IncRedeemCount()
	log.Printf("redeem request [user: %v, batch: %v] %v tokens\n", user, batch.ID, tokens)
	return nil
}

// CancelRedeemRequest returns the escrowed tokens and zeroes the request. It
// works against any batch that has not been fulfilled yet, not only the
// newest one.
func (interactor *QueueInteractor) CancelRedeemRequest(user string, batchID uint64) error {
	interactor.mutex.Lock()
	defer interactor.mutex.Unlock()

	if batchID >= interactor.tail {
		return domain.ErrorNothingToCancel
	}
	batch := interactor.batches[batchID]

	request := batch.Request(user)
	if request == nil || request.TokensPending.Sign() == 0 {
		return domain.ErrorNothingToCancel
	}

	refund := new(big.Int).Set(request.TokensPending)
	if err := interactor.token.Transfer(user, refund); err != nil {
		return fmt.Errorf("%w: returning escrow: %v", domain.ErrorTransferFailed, err)
	}

	batchPending := new(big.Int).Sub(batch.TokensPending, refund)
	cancelTime := time.Now()

	event := domain.NewEvent(domain.EventRedeemCancelled, map[string]interface{}{
		"batch_id": batchID,
		"user":     user,
		"tokens":   refund.String(),
	})
	if err := interactor.store.SaveCancel(batchPending, request, cancelTime, event); err != nil {
		log.Printf("🔴 saving cancellation [user: %v, batch: %v] - %v\n", user, batchID, err.Error())
		return err
	}

	request.TokensPending = big.NewInt(0)
	request.CancelTime = &cancelTime
	batch.TokensPending = batchPending
	exporter.IncCancelCount()
	log.Printf("redeem cancelled [user: %v, batch: %v] %v tokens returned\n", user, batchID, refund)
	return nil
}

// CloseBatches advances head past any leading batches that hold no pending
// tokens anymore. Idempotent.
func (interactor *QueueInteractor) CloseBatches() error {
	interactor.mutex.Lock()
	defer interactor.mutex.Unlock()
	return interactor.closeBatchesLocked()
}

func (interactor *QueueInteractor) closeBatchesLocked() error {
	newHead := interactor.nextHeadLocked()
	if newHead == interactor.head {
		return nil
	}

	if err := interactor.store.SaveBounds(newHead, interactor.tail); err != nil {
		log.Printf("🔴 saving queue bounds - %v\n", err.Error())
		return err
	}

	interactor.head = newHead
	log.Printf("queue head advanced to %v\n", newHead)
	return nil
}

// nextHeadLocked computes where head lands once settled leading batches are
// skipped, without mutating anything.
func (interactor *QueueInteractor) nextHeadLocked() uint64 {
	newHead := interactor.head
	for newHead < interactor.tail && interactor.batches[newHead].Exhausted() {
		newHead++
	}
	return newHead
}

func (interactor *QueueInteractor) Head() uint64 {
	interactor.mutex.Lock()
	defer interactor.mutex.Unlock()
	return interactor.head
}

func (interactor *QueueInteractor) Tail() uint64 {
	interactor.mutex.Lock()
	defer interactor.mutex.Unlock()
	return interactor.tail
}

// BatchPending returns a copy of the batch's pending total, or nil for an
// unknown batch id.
func (interactor *QueueInteractor) BatchPending(batchID uint64) *big.Int {
	interactor.mutex.Lock()
	defer interactor.mutex.Unlock()
	if batchID >= interactor.tail {
		return nil
	}
	return new(big.Int).Set(interactor.batches[batchID].TokensPending)
}

// RequestPending returns a copy of one user's pending amount in one batch,
// or nil when no such request exists.
func (interactor *QueueInteractor) RequestPending(user string, batchID uint64) *big.Int {
	interactor.mutex.Lock()
	defer interactor.mutex.Unlock()
	if batchID >= interactor.tail {
		return nil
	}
	request := interactor.batches[batchID].Request(user)
	if request == nil {
		return nil
	}
	return new(big.Int).Set(request.TokensPending)
}

// PendingTokens sums the unredeemed tokens across all open batches.
func (interactor *QueueInteractor) PendingTokens() *big.Int {
	interactor.mutex.Lock()
	defer interactor.mutex.Unlock()
	total := big.NewInt(0)
	for id := interactor.head; id < interactor.tail; id++ {
		total.Add(total, interactor.batches[id].TokensPending)
	}
	return total
}
