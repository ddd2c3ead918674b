package usecase

import (
	"fmt"
	"math/big"
	"testing"

	"rwadriver/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type purchaseFixture struct {
	purchase   *PurchaseInteractor
	token      *fakeToken
	stablecoin *fakeToken
	oracle     *fakeOracle
	events     *fakeEventStore
}

func newPurchaseFixture(t *testing.T, nav *big.Int, supplyCeiling *big.Int) *purchaseFixture {
	t.Helper()
	token := newFakeToken("RWAC", testPool)
	stablecoin := newFakeToken("USDC", testPool)
	navInteractor, _, _ := newNavFixture(t, token, stablecoin, nav)
	oracle := &fakeOracle{rate: big.NewInt(1_000_000), decimals: 6}
	events := &fakeEventStore{}

	purchase := NewPurchaseInteractor(token, map[string]domain.Token{"USDC": stablecoin},
		oracle, navInteractor, events, testPool, "USD", supplyCeiling)
	return &purchaseFixture{
		purchase:   purchase,
		token:      token,
		stablecoin: stablecoin,
		oracle:     oracle,
		events:     events,
	}
}

func TestPurchaseMintsAtNav(t *testing.T) {
	fixture := newPurchaseFixture(t, big.NewInt(2_000_000), tokens(1_000_000))
	fixture.stablecoin.fund(alice, tokens(100))

	minted, err := fixture.purchase.Purchase(alice, tokens(100), "USDC")
	require.NoError(t, err)

	// 100 stablecoins at NAV 2.0 and a 1:1 feed buy 50 tokens.
	assert.Equal(t, tokens(50), minted)
	balance, _ := fixture.token.BalanceOf(alice)
	assert.Equal(t, tokens(50), balance)
	deposit, _ := fixture.stablecoin.BalanceOf(testPool)
	assert.Equal(t, tokens(100), deposit)
	remaining, _ := fixture.stablecoin.BalanceOf(alice)
	assert.Equal(t, 0, remaining.Sign())

	require.Len(t, fixture.events.events, 1)
	assert.Equal(t, domain.EventPurchase, fixture.events.events[0].Kind)
}

func TestPurchaseHonorsFeedRate(t *testing.T) {
	fixture := newPurchaseFixture(t, big.NewInt(1_000_000), tokens(1_000_000))

	// A stablecoin trading at 0.50 fiat halves the tokens a deposit buys.
	fixture.oracle.rate = big.NewInt(500_000)
	fixture.stablecoin.fund(alice, tokens(100))

	minted, err := fixture.purchase.Purchase(alice, tokens(100), "USDC")
	require.NoError(t, err)
	assert.Equal(t, tokens(50), minted)
}

func TestPurchaseRejectsBadInput(t *testing.T) {
	fixture := newPurchaseFixture(t, big.NewInt(1_000_000), tokens(1_000_000))
	fixture.stablecoin.fund(alice, tokens(100))

	_, err := fixture.purchase.Purchase(alice, nil, "USDC")
	assert.ErrorIs(t, err, domain.ErrorInvalidAmount)
	_, err = fixture.purchase.Purchase(alice, big.NewInt(0), "USDC")
	assert.ErrorIs(t, err, domain.ErrorInvalidAmount)
	_, err = fixture.purchase.Purchase(alice, tokens(10), "DOGE")
	assert.Error(t, err)
}

func TestPurchaseSupplyCeiling(t *testing.T) {
	fixture := newPurchaseFixture(t, big.NewInt(1_000_000), tokens(100))
	fixture.token.fund(bob, tokens(80))
	fixture.stablecoin.fund(alice, tokens(100))

	// 21 more tokens would break the 100-token ceiling with 80 outstanding.
	_, err := fixture.purchase.Purchase(alice, tokens(21), "USDC")
	assert.ErrorIs(t, err, domain.ErrorSupplyLimitExceeded)

	// The ceiling is checked before the deposit is pulled.
	balance, _ := fixture.stablecoin.BalanceOf(alice)
	assert.Equal(t, tokens(100), balance)

	minted, err := fixture.purchase.Purchase(alice, tokens(20), "USDC")
	require.NoError(t, err)
	assert.Equal(t, tokens(20), minted)
}

func TestPurchaseDepositPullFailure(t *testing.T) {
	fixture := newPurchaseFixture(t, big.NewInt(1_000_000), tokens(1_000_000))
	fixture.stablecoin.fund(alice, tokens(5))

	// The buyer cannot cover the deposit: no pull, no mint.
	_, err := fixture.purchase.Purchase(alice, tokens(10), "USDC")
	assert.ErrorIs(t, err, domain.ErrorTransferFailed)

	balance, _ := fixture.token.BalanceOf(alice)
	assert.Equal(t, 0, balance.Sign())
	supply, _ := fixture.token.TotalSupply()
	assert.Equal(t, 0, supply.Sign())
}

func TestPurchaseMintFailureAfterPull(t *testing.T) {
	fixture := newPurchaseFixture(t, big.NewInt(1_000_000), tokens(1_000_000))
	fixture.stablecoin.fund(alice, tokens(10))
	fixture.token.mintErr = fmt.Errorf("rpc timeout")

	_, err := fixture.purchase.Purchase(alice, tokens(10), "USDC")
	assert.ErrorIs(t, err, domain.ErrorTransferFailed)

	// The pull precedes the mint, so the deposit sits in the pool awaiting
	// operator reconciliation while no tokens were credited.
	deposit, _ := fixture.stablecoin.BalanceOf(testPool)
	assert.Equal(t, tokens(10), deposit)
	supply, _ := fixture.token.TotalSupply()
	assert.Equal(t, 0, supply.Sign())
}

func TestPurchaseZeroNav(t *testing.T) {
	fixture := newPurchaseFixture(t, big.NewInt(1_000_000), tokens(1_000_000))
	fixture.stablecoin.fund(alice, tokens(10))

	// Force a zero NAV through the shared valuation record.
	fixture.purchase.navInteractor.valuation.Nav = big.NewInt(0)

	_, err := fixture.purchase.Purchase(alice, tokens(10), "USDC")
	assert.ErrorIs(t, err, domain.ErrorZeroSupply)
}

func TestPurchaseTruncatesTokenAmount(t *testing.T) {
	fixture := newPurchaseFixture(t, big.NewInt(3_000_000), tokens(1_000_000))
	fixture.stablecoin.fund(alice, tokens(100))

	minted, err := fixture.purchase.Purchase(alice, tokens(100), "USDC")
	require.NoError(t, err)

	// 100 / 3 truncates to 33.333333 tokens.
	assert.Equal(t, big.NewInt(33_333_333), minted)
}
