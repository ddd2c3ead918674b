package usecase

import (
	"fmt"
	"log"
	"math/big"

	"rwadriver/domain"
	"rwadriver/domain/fixedpoint"
	"rwadriver/domain/util"
	"rwadriver/interface/exporter"
	"rwadriver/interface/repository"
)

// FulfillInteractor pays down redemption batches with stablecoin liquidity.
// It shares the queue's ledger (and its lock) so a fulfillment round is
// serialized against request creation and cancellation.
type FulfillInteractor struct {
	queue         *QueueInteractor
	navInteractor *NavInteractor
	token         domain.Token
	stablecoin    domain.Token
	oracle        domain.CurrencyOracle
	operators     *domain.OperatorSet
	poolAddress   string
	fiatSymbol    string
}

func NewFulfillInteractor(queue *QueueInteractor,
	navInteractor *NavInteractor,
	token domain.Token,
	stablecoin domain.Token,
	oracle domain.CurrencyOracle,
	operators *domain.OperatorSet,
	poolAddress string,
	fiatSymbol string) *FulfillInteractor {
	interactor := &FulfillInteractor{
		queue:         queue,
		navInteractor: navInteractor,
		token:         token,
		stablecoin:    stablecoin,
		oracle:        oracle,
		operators:     operators,
		poolAddress:   poolAddress,
		fiatSymbol:    fiatSymbol,
	}

	return interactor
}

type allocation struct {
	request    *domain.RedemptionRequest
	share      *big.Int
	payout     *big.Int
	newPending *big.Int
}

// FulfillBatch redeems up to stablecoinAmount worth of the batch's pending
// tokens at the current NAV. When the amount covers the whole batch, every
// user is settled in request-creation order, the batch closes and head
// advances; otherwise each user receives a floor-rounded pro-rata share and
// the batch stays open with the rounding dust still pending.
//
// Any per-user transfer failure aborts the whole round: no ledger state is
// committed, and the operator retries the batch after fixing the cause.
func (interactor *FulfillInteractor) FulfillBatch(operator string, batchID uint64, stablecoinAmount *big.Int) error {
	if !interactor.operators.Contains(operator) {
		return domain.ErrorUnauthorized
	}
	if stablecoinAmount == nil || stablecoinAmount.Sign() <= 0 {
		return domain.ErrorInvalidAmount
	}

	interactor.queue.mutex.Lock()
	defer interactor.queue.mutex.Unlock()

	if batchID >= interactor.queue.tail {
		return domain.ErrorBatchUnderflow
	}
	batch := interactor.queue.batches[batchID]

	// Stale-call tolerance: an already-settled batch only triggers a head
	// advance, never an error.
	if batch.Exhausted() {
		return interactor.queue.closeBatchesLocked()
	}

	nav := interactor.navInteractor.Nav()
	if nav.Sign() == 0 {
		return domain.ErrorZeroSupply
	}

	tokenDecimals, err := interactor.token.Decimals()
	if err != nil {
		return err
	}
	stablecoinDecimals, err := interactor.stablecoin.Decimals()
	if err != nil {
		return err
	}

	// The token quantity this stablecoin amount can redeem at current NAV.
	alignedAmount := fixedpoint.AlignDecimals(stablecoinAmount, stablecoinDecimals, tokenDecimals)
	refundTokens := fixedpoint.Convert(alignedAmount, nav, fixedpoint.FiatDecimals)

	if batchID < interactor.queue.head || batch.TokensPending.Cmp(refundTokens) < 0 {
		return domain.ErrorBatchUnderflow
	}
	if refundTokens.Sign() == 0 {
		return domain.ErrorInvalidAmount
	}

	rate, rateDecimals, err := interactor.oracle.GetFeedLatestPriceAndDecimals(
		interactor.stablecoin.Symbol(), interactor.fiatSymbol)
	if err != nil {
		return fmt.Errorf("price feed failed: %w", err)
	}

	// The fiat equivalent of the request, restated in refund coin units,
	// must be covered by the pool's actual balance.
	fiatEquivalent := fixedpoint.AlignDecimals(
		fixedpoint.Apply(stablecoinAmount, rate, rateDecimals),
		stablecoinDecimals, fixedpoint.FiatDecimals)
	needed := fixedpoint.Convert(
		fixedpoint.AlignDecimals(fiatEquivalent, fixedpoint.FiatDecimals, stablecoinDecimals),
		rate, rateDecimals)
	balance, err := interactor.stablecoin.BalanceOf(interactor.poolAddress)
	if err != nil {
		return err
	}
	if balance.Cmp(needed) < 0 {
		return domain.ErrorInsufficientLiquidity
	}

	full := refundTokens.Cmp(batch.TokensPending) == 0
	pendingBefore := new(big.Int).Set(batch.TokensPending)

	allocations := make([]allocation, 0, len(batch.UserList))
	redeemed := big.NewInt(0)
	for _, address := range batch.UserList {
		request := batch.Requests[address]
		if request.TokensPending.Sign() == 0 {
			continue
		}

		var share *big.Int
		if full {
			share = new(big.Int).Set(request.TokensPending)
		} else {
			share = fixedpoint.MulDiv(request.TokensPending, refundTokens, pendingBefore)
		}
		if share.Sign() == 0 {
			continue
		}

		// share -> fiat at NAV -> refund coin units at the feed rate.
		fiatShare := fixedpoint.AlignDecimals(
			fixedpoint.MulDiv(share, nav, fixedpoint.Pow10(fixedpoint.FiatDecimals)),
			tokenDecimals, stablecoinDecimals)
		payout := fixedpoint.Convert(fiatShare, rate, rateDecimals)

		allocations = append(allocations, allocation{
			request:    request,
			share:      share,
			payout:     payout,
			newPending: new(big.Int).Sub(request.TokensPending, share),
		})
		redeemed.Add(redeemed, share)
	}
	if redeemed.Sign() == 0 {
		// Too small to move any user's floor-rounded share.
		return domain.ErrorInvalidAmount
	}

	// External side effects, in insertion order. A failure here aborts with
	// nothing committed; already-executed transfers are surfaced for
	// operator reconciliation.
	for index, alloc := range allocations {
		if alloc.payout.Sign() == 0 {
			continue
		}
		if err = interactor.stablecoin.Transfer(alloc.request.Address, alloc.payout); err != nil {
			log.Printf("🔴 refund transfer failed mid-batch [batch: %v, user: %v, %v of %v payouts done] - %v\n",
				batchID, alloc.request.Address, index, len(allocations), err.Error())
			return fmt.Errorf("%w: refunding %v: %v", domain.ErrorTransferFailed, alloc.request.Address, err)
		}
	}
	if err = interactor.token.Burn(redeemed); err != nil {
		log.Printf("🔴 burning escrow failed [batch: %v, tokens: %v] - %v\n", batchID, redeemed, err.Error())
		return fmt.Errorf("%w: burning escrow: %v", domain.ErrorTransferFailed, err)
	}

	// Decrement by what was actually redeemed, so the batch total always
	// equals the sum of per-user pendings; floor-rounding dust stays queued.
	batchPending := new(big.Int).Sub(pendingBefore, redeemed)

	newHead := interactor.queue.head
	if batchPending.Sign() == 0 {
		newHead = interactor.headAfterSettling(batchID)
	}

	event := domain.NewEvent(domain.EventBatchFulfilled, map[string]interface{}{
		"batch_id":   batchID,
		"stablecoin": stablecoinAmount.String(),
		"tokens":     redeemed.String(),
		"nav":        nav.String(),
		"closed":     batchPending.Sign() == 0,
	})
	touched := make([]repository.FulfilledRequest, 0, len(allocations))
	for _, alloc := range allocations {
		touched = append(touched, repository.FulfilledRequest{
			Address:       alloc.request.Address,
			TokensPending: alloc.newPending,
		})
	}
	if err = interactor.queue.store.SaveFulfillment(batchID, batchPending, touched, newHead, interactor.queue.tail, event); err != nil {
		log.Printf("🔴 saving fulfillment [batch: %v] - %v\n", batchID, err.Error())
		return err
	}

	for _, alloc := range allocations {
		alloc.request.TokensPending = alloc.newPending
	}
	batch.TokensPending = batchPending
	interactor.queue.head = newHead

	exporter.IncFulfillmentCount()
	log.Printf("batch %v fulfilled [tokens: %v, paid: %v, closed: %v]\n",
		batchID, redeemed,
		util.AmountString(stablecoinAmount, stablecoinDecimals, interactor.stablecoin.Symbol()),
		batchPending.Sign() == 0)
	return nil
}

// headAfterSettling computes where head lands once batchID is emptied, while
// the in-memory ledger still holds the pre-commit values.
func (interactor *FulfillInteractor) headAfterSettling(batchID uint64) uint64 {
	newHead := interactor.queue.head
	for newHead < interactor.queue.tail {
		if newHead != batchID && !interactor.queue.batches[newHead].Exhausted() {
			break
		}
		newHead++
	}
	return newHead
}

// SweepOnce pays down the oldest open batch with whatever refund-coin
// liquidity the pool currently holds. Called periodically by the driver.
func (interactor *FulfillInteractor) SweepOnce(operator string) error {
	if err := interactor.queue.CloseBatches(); err != nil {
		return err
	}

	head := interactor.queue.Head()
	pending := interactor.queue.BatchPending(head)
	if pending == nil || pending.Sign() == 0 {
		return nil
	}

	nav := interactor.navInteractor.Nav()
	if nav.Sign() == 0 {
		return domain.ErrorZeroSupply
	}
	tokenDecimals, err := interactor.token.Decimals()
	if err != nil {
		return err
	}
	stablecoinDecimals, err := interactor.stablecoin.Decimals()
	if err != nil {
		return err
	}

	// Stablecoin cost of settling the whole batch, floored the same way the
	// engine floors, so the computed amount never overshoots the batch.
	needed := fixedpoint.AlignDecimals(
		fixedpoint.MulDiv(pending, nav, fixedpoint.Pow10(fixedpoint.FiatDecimals)),
		tokenDecimals, stablecoinDecimals)

	available, err := interactor.stablecoin.BalanceOf(interactor.poolAddress)
	if err != nil {
		return err
	}

	spend := needed
	if available.Cmp(needed) < 0 {
		spend = available
	}
	if spend.Sign() == 0 {
		return nil
	}

	// Below one floor-rounded share nothing can move; leave the dust queued
	// rather than spinning on it.
	refundTokens := fixedpoint.Convert(
		fixedpoint.AlignDecimals(spend, stablecoinDecimals, tokenDecimals),
		nav, fixedpoint.FiatDecimals)
	if refundTokens.Sign() == 0 {
		log.Printf("🔵 batch %v holds sub-unit dust (%v tokens), skipping sweep\n", head, pending)
		return nil
	}

	return interactor.FulfillBatch(operator, head, spend)
}
