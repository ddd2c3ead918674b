package usecase

import (
	"fmt"
	"math/big"
	"testing"

	"rwadriver/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateBatch(t *testing.T) {
	queue, _, store := newQueueFixture(t)

	batch, err := queue.CreateBatch(testOperator)
	require.NoError(t, err)
	assert.Equal(t, uint64(0), batch.ID)
	assert.Equal(t, uint64(0), queue.Head())
	assert.Equal(t, uint64(1), queue.Tail())
	require.NotNil(t, store.lastEvent())
	assert.Equal(t, domain.EventBatchCreated, store.lastEvent().Kind)

	second, err := queue.CreateBatch(testOperator)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), second.ID)
	assert.Equal(t, uint64(2), queue.Tail())
}

func TestCreateBatchRequiresOperator(t *testing.T) {
	queue, _, _ := newQueueFixture(t)

	_, err := queue.CreateBatch(alice)
	assert.ErrorIs(t, err, domain.ErrorUnauthorized)
	assert.Equal(t, uint64(0), queue.Tail())
}

func TestCreateRedeemRequestEscrowsTokens(t *testing.T) {
	queue, token, _ := newQueueFixture(t)
	_, err := queue.CreateBatch(testOperator)
	require.NoError(t, err)
	token.fund(alice, tokens(1000))

	err = queue.CreateRedeemRequest(alice, tokens(400))
	require.NoError(t, err)

	balance, _ := token.BalanceOf(alice)
	assert.Equal(t, tokens(600), balance)
	escrow, _ := token.BalanceOf(testPool)
	assert.Equal(t, tokens(400), escrow)
	assert.Equal(t, tokens(400), queue.BatchPending(0))
	assert.Equal(t, tokens(400), queue.RequestPending(alice, 0))
	requireConservation(t, queue)
}

func TestCreateRedeemRequestRejectsBadAmounts(t *testing.T) {
	queue, token, _ := newQueueFixture(t)
	_, err := queue.CreateBatch(testOperator)
	require.NoError(t, err)
	token.fund(alice, tokens(10))

	assert.ErrorIs(t, queue.CreateRedeemRequest(alice, nil), domain.ErrorInvalidAmount)
	assert.ErrorIs(t, queue.CreateRedeemRequest(alice, big.NewInt(0)), domain.ErrorInvalidAmount)
	assert.ErrorIs(t, queue.CreateRedeemRequest(alice, big.NewInt(-1)), domain.ErrorInvalidAmount)
}

func TestCreateRedeemRequestWithoutBatch(t *testing.T) {
	queue, token, _ := newQueueFixture(t)
	token.fund(alice, tokens(10))

	err := queue.CreateRedeemRequest(alice, tokens(10))
	assert.ErrorIs(t, err, domain.ErrorBatchUnderflow)
}

func TestCreateRedeemRequestInsufficientBalance(t *testing.T) {
	queue, token, _ := newQueueFixture(t)
	_, err := queue.CreateBatch(testOperator)
	require.NoError(t, err)
	token.fund(alice, tokens(5))

	err = queue.CreateRedeemRequest(alice, tokens(6))
	assert.ErrorIs(t, err, domain.ErrorInsufficientTokens)

	balance, _ := token.BalanceOf(alice)
	assert.Equal(t, tokens(5), balance)
}

func TestCreateRedeemRequestRejectsLiveDuplicate(t *testing.T) {
	queue, token, _ := newQueueFixture(t)
	_, err := queue.CreateBatch(testOperator)
	require.NoError(t, err)
	token.fund(alice, tokens(100))

	require.NoError(t, queue.CreateRedeemRequest(alice, tokens(30)))
	err = queue.CreateRedeemRequest(alice, tokens(10))
	assert.ErrorIs(t, err, domain.ErrorInvalidAmount)

	// The escrow from the rejected request must not have moved.
	balance, _ := token.BalanceOf(alice)
	assert.Equal(t, tokens(70), balance)
	requireConservation(t, queue)
}

func TestCancelRedeemRequestReturnsEscrow(t *testing.T) {
	queue, token, store := newQueueFixture(t)
	_, err := queue.CreateBatch(testOperator)
	require.NoError(t, err)
	token.fund(alice, tokens(100))
	require.NoError(t, queue.CreateRedeemRequest(alice, tokens(100)))

	err = queue.CancelRedeemRequest(alice, 0)
	require.NoError(t, err)

	balance, _ := token.BalanceOf(alice)
	assert.Equal(t, tokens(100), balance)
	escrow, _ := token.BalanceOf(testPool)
	assert.Equal(t, big.NewInt(0), escrow)
	assert.Equal(t, big.NewInt(0), queue.BatchPending(0))
	assert.Equal(t, domain.EventRedeemCancelled, store.lastEvent().Kind)
	requireConservation(t, queue)

	// A second cancel has nothing left to return.
	err = queue.CancelRedeemRequest(alice, 0)
	assert.ErrorIs(t, err, domain.ErrorNothingToCancel)
}

func TestCancelRedeemRequestUnknown(t *testing.T) {
	queue, _, _ := newQueueFixture(t)
	_, err := queue.CreateBatch(testOperator)
	require.NoError(t, err)

	assert.ErrorIs(t, queue.CancelRedeemRequest(alice, 0), domain.ErrorNothingToCancel)
	assert.ErrorIs(t, queue.CancelRedeemRequest(alice, 7), domain.ErrorNothingToCancel)
}

func TestCreateRedeemRequestReupAfterCancel(t *testing.T) {
	queue, token, _ := newQueueFixture(t)
	_, err := queue.CreateBatch(testOperator)
	require.NoError(t, err)
	token.fund(alice, tokens(100))

	require.NoError(t, queue.CreateRedeemRequest(alice, tokens(60)))
	require.NoError(t, queue.CancelRedeemRequest(alice, 0))
	require.NoError(t, queue.CreateRedeemRequest(alice, tokens(25)))

	request := queue.batches[0].Request(alice)
	require.NotNil(t, request)
	assert.Equal(t, tokens(85), request.RequestTokens, "re-up adds to the lifetime request total")
	assert.Equal(t, tokens(25), request.TokensPending)
	assert.Equal(t, []string{alice}, queue.batches[0].UserList, "re-up keeps the original position")
	requireConservation(t, queue)
}

func TestCreateRedeemRequestStoreFailure(t *testing.T) {
	queue, token, store := newQueueFixture(t)
	_, err := queue.CreateBatch(testOperator)
	require.NoError(t, err)
	token.fund(alice, tokens(100))

	store.saveErr = fmt.Errorf("connection lost")
	err = queue.CreateRedeemRequest(alice, tokens(40))
	require.Error(t, err)

	// Nothing committed, so the ledger must be untouched.
	assert.Equal(t, big.NewInt(0), queue.BatchPending(0))
	assert.Nil(t, queue.batches[0].Request(alice))
	requireConservation(t, queue)
}

func TestInitializeRejectsCorruptLedger(t *testing.T) {
	token := newFakeToken("RWAC", testPool)
	store := &fakeQueueStore{
		batches: []*domain.Batch{domain.NewBatch(0)},
		head:    0,
		tail:    3,
	}
	queue := NewQueueInteractor(token, store, domain.NewOperatorSet(testOperator), testPool)

	assert.Error(t, queue.Initialize())
}

func TestCloseBatches(t *testing.T) {
	queue, token, _ := newQueueFixture(t)
	_, err := queue.CreateBatch(testOperator)
	require.NoError(t, err)
	_, err = queue.CreateBatch(testOperator)
	require.NoError(t, err)
	token.fund(alice, tokens(10))
	require.NoError(t, queue.CreateRedeemRequest(alice, tokens(10)))

	// Batch 0 is empty, batch 1 holds the request: head skips only batch 0.
	require.NoError(t, queue.CloseBatches())
	assert.Equal(t, uint64(1), queue.Head())

	// Idempotent while batch 1 still has pending tokens.
	require.NoError(t, queue.CloseBatches())
	assert.Equal(t, uint64(1), queue.Head())

	require.NoError(t, queue.CancelRedeemRequest(alice, 1))
	require.NoError(t, queue.CloseBatches())
	assert.Equal(t, uint64(2), queue.Head())
}

func TestPendingTokensSumsOpenBatches(t *testing.T) {
	queue, token, _ := newQueueFixture(t)
	_, err := queue.CreateBatch(testOperator)
	require.NoError(t, err)
	token.fund(alice, tokens(10))
	token.fund(bob, tokens(20))
	require.NoError(t, queue.CreateRedeemRequest(alice, tokens(10)))

	_, err = queue.CreateBatch(testOperator)
	require.NoError(t, err)
	require.NoError(t, queue.CreateRedeemRequest(bob, tokens(20)))

	assert.Equal(t, tokens(30), queue.PendingTokens())
}
