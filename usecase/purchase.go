package usecase

import (
	"fmt"
	"log"
	"math/big"
	"strings"

	"rwadriver/domain"
	"rwadriver/domain/fixedpoint"
	"rwadriver/domain/util"
	"rwadriver/interface/exporter"
)

// PurchaseInteractor converts stablecoin deposits into freshly minted claim
// tokens at the current NAV.
type PurchaseInteractor struct {
	token         domain.Token
	stablecoins   map[string]domain.Token
	oracle        domain.CurrencyOracle
	navInteractor *NavInteractor
	events        EventStore
	poolAddress   string
	fiatSymbol    string
	supplyCeiling *big.Int
}

func NewPurchaseInteractor(token domain.Token,
	stablecoins map[string]domain.Token,
	oracle domain.CurrencyOracle,
	navInteractor *NavInteractor,
	events EventStore,
	poolAddress string,
	fiatSymbol string,
	supplyCeiling *big.Int) *PurchaseInteractor {
	byUpperSymbol := make(map[string]domain.Token, len(stablecoins))
	for symbol, stablecoin := range stablecoins {
		byUpperSymbol[strings.ToUpper(symbol)] = stablecoin
	}
	interactor := &PurchaseInteractor{
		token:         token,
		stablecoins:   byUpperSymbol,
		oracle:        oracle,
		navInteractor: navInteractor,
		events:        events,
		poolAddress:   poolAddress,
		fiatSymbol:    fiatSymbol,
		supplyCeiling: supplyCeiling,
	}

	return interactor
}

// Purchase prices the deposit at the current NAV and mints the resulting
// token amount to the buyer. The supply ceiling is checked before the
// deposit is pulled, and the pull completes before any mint, so tokens are
// never credited for a deposit that did not arrive.
func (interactor *PurchaseInteractor) Purchase(buyer string, depositAmount *big.Int, currency string) (*big.Int, error) {
	if depositAmount == nil || depositAmount.Sign() <= 0 {
		return nil, domain.ErrorInvalidAmount
	}

	depositCoin, exist := interactor.stablecoins[strings.ToUpper(currency)]
	if !exist {
		return nil, fmt.Errorf("unknown deposit currency %q", currency)
	}

	rate, rateDecimals, err := interactor.oracle.GetFeedLatestPriceAndDecimals(depositCoin.Symbol(), interactor.fiatSymbol)
	if err != nil {
		return nil, fmt.Errorf("price feed failed: %w", err)
	}

	nav := interactor.navInteractor.Nav()
	if nav.Sign() == 0 {
		return nil, domain.ErrorZeroSupply
	}

	// NAV is fiat per token; restate it in the deposit currency before
	// dividing the deposit by it.
	navInDepositCurrency := fixedpoint.Convert(nav, rate, rateDecimals)
	if navInDepositCurrency.Sign() == 0 {
		return nil, domain.ErrorInvalidAmount
	}

	tokenDecimals, err := interactor.token.Decimals()
	if err != nil {
		return nil, err
	}
	depositDecimals, err := depositCoin.Decimals()
	if err != nil {
		return nil, err
	}

	aligned := fixedpoint.AlignDecimals(depositAmount, depositDecimals, tokenDecimals)
	tokensToMint := fixedpoint.Convert(aligned, navInDepositCurrency, fixedpoint.FiatDecimals)
	if tokensToMint.Sign() == 0 {
		return nil, domain.ErrorInvalidAmount
	}

	// Outstanding supply already counts tokens escrowed by the pool itself,
	// since escrow transfers rather than burns.
	supply, err := interactor.token.TotalSupply()
	if err != nil {
		return nil, err
	}
	if new(big.Int).Add(supply, tokensToMint).Cmp(interactor.supplyCeiling) > 0 {
		return nil, domain.ErrorSupplyLimitExceeded
	}

	if err = depositCoin.TransferFrom(buyer, interactor.poolAddress, depositAmount); err != nil {
		return nil, fmt.Errorf("%w: pulling deposit: %v", domain.ErrorTransferFailed, err)
	}

	if err = interactor.token.Mint(buyer, tokensToMint); err != nil {
		// The deposit arrived but the mint did not; surface loudly, the
		// operator must reconcile before the order is retried.
		log.Printf("🔴 mint failed after deposit pull [buyer: %v, deposit: %v %v] - %v\n",
			buyer, depositAmount, currency, err.Error())
		return nil, fmt.Errorf("%w: minting: %v", domain.ErrorTransferFailed, err)
	}

	event := domain.NewEvent(domain.EventPurchase, map[string]interface{}{
		"buyer":    buyer,
		"deposit":  depositAmount.String(),
		"currency": depositCoin.Symbol(),
		"tokens":   tokensToMint.String(),
		"nav":      nav.String(),
	})
	if err = interactor.events.Append(event); err != nil {
		log.Printf("🔴 journaling purchase - %v\n", err.Error())
	}

	exporter.IncPurchaseCount()
	log.Printf("purchase [buyer: %v] %v -> %v tokens\n",
		buyer, util.AmountString(depositAmount, depositDecimals, depositCoin.Symbol()), tokensToMint)
	return tokensToMint, nil
}
