package usecase

import (
	"fmt"
	"log"
	"math/big"
	"sync"
	"time"

	"rwadriver/domain"
	"rwadriver/domain/fixedpoint"
	"rwadriver/domain/util"
	"rwadriver/interface/exporter"
)

// NavInteractor owns the TokenValuation record: the current NAV, the pipe
// fiat stash and the backing asset value. Purchase and fulfillment read NAV
// through it; only operators mutate it.
type NavInteractor struct {
	token           domain.Token
	stablecoin      domain.Token
	valuationSource domain.AssetValuation
	store           ValuationStore
	operators       *domain.OperatorSet
	poolAddress     string
	tokenID         string
	fiatSymbol      string

	mutex     sync.RWMutex
	valuation *domain.TokenValuation
}

func NewNavInteractor(token domain.Token,
	stablecoin domain.Token,
	valuationSource domain.AssetValuation,
	store ValuationStore,
	operators *domain.OperatorSet,
	poolAddress string,
	tokenID string,
	fiatSymbol string) *NavInteractor {
	interactor := &NavInteractor{
		token:           token,
		stablecoin:      stablecoin,
		valuationSource: valuationSource,
		store:           store,
		operators:       operators,
		poolAddress:     poolAddress,
		tokenID:         tokenID,
		fiatSymbol:      fiatSymbol,
	}

	return interactor
}

// Initialize loads the persisted valuation, or seeds a fresh record at the
// configured initial NAV when the token has never been valued before.
func (interactor *NavInteractor) Initialize(initialNav *big.Int) error {
	valuation, err := interactor.store.Find(interactor.tokenID)
	if err != nil {
		log.Printf("🔴 loading valuation - %v\n", err.Error())
		return err
	}

	if valuation == nil || valuation.Nav == nil {
		valuation = domain.NewTokenValuation(interactor.tokenID, initialNav)
		log.Printf("🔵 no persisted valuation for %v, starting at NAV %v\n",
			interactor.tokenID, util.FiatString(initialNav, interactor.fiatSymbol))
	}

	interactor.mutex.Lock()
	interactor.valuation = valuation
	interactor.mutex.Unlock()
	return nil
}

// UpdateNav recomputes NAV from the pool's stablecoin balance, the pipe fiat
// stash and the custodian's asset valuation as of the stash date:
//
//	nav = (stablecoinBalance + pipeFiatStash + assetValue) * 10^tokenDecimals / totalSupply
//
// truncated, with every term aligned to 6-decimal fiat first.
func (interactor *NavInteractor) UpdateNav(operator string) error {
	if !interactor.operators.Contains(operator) {
		return domain.ErrorUnauthorized
	}

	supply, err := interactor.token.TotalSupply()
	if err != nil {
		return err
	}
	if supply.Sign() == 0 {
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

	interactor.mutex.Lock()
	defer interactor.mutex.Unlock()

	assetValue, err := interactor.valuationSource.GetValueByTokenId(
		interactor.tokenID, interactor.fiatSymbol, interactor.valuation.StashDate)
	if err != nil {
		return fmt.Errorf("asset valuation failed: %w", err)
	}

	balance, err := interactor.stablecoin.BalanceOf(interactor.poolAddress)
	if err != nil {
		return err
	}

	total := fixedpoint.AlignDecimals(balance, stablecoinDecimals, fixedpoint.FiatDecimals)
	total.Add(total, interactor.valuation.PipeFiatStash)
	total.Add(total, assetValue)

	nav := fixedpoint.MulDiv(total, fixedpoint.Pow10(tokenDecimals), supply)

	staged := &domain.TokenValuation{
		TokenID:       interactor.valuation.TokenID,
		Nav:           nav,
		PipeFiatStash: new(big.Int).Set(interactor.valuation.PipeFiatStash),
		StashDate:     interactor.valuation.StashDate,
		AssetValue:    assetValue,
		UpdateTime:    time.Now(),
	}

	event := domain.NewEvent(domain.EventNavUpdated, map[string]interface{}{
		"token_id":   staged.TokenID,
		"nav":        nav.String(),
		"stash_date": staged.StashDate.Format("2006-01-02"),
	})
	if err = interactor.store.Save(staged, event); err != nil {
		log.Printf("🔴 saving valuation - %v\n", err.Error())
		return err
	}

	interactor.valuation = staged
	exporter.IncNavUpdateCount()
	exporter.SetGauge(exporter.METRIC_NAV, nav)
	log.Printf("nav updated [token: %v] - %v\n",
		staged.TokenID, util.FiatString(nav, interactor.fiatSymbol))
	return nil
}

// CreditPipeFiat records fiat leaving the stablecoin pool toward the RWA
// custodian, and the date the next UpdateNav values assets as of.
func (interactor *NavInteractor) CreditPipeFiat(operator string, amount *big.Int, asOfDate time.Time) error {
	return interactor.adjustStash(operator, amount, asOfDate, false)
}

// DebitPipeFiat records fiat returning from the custodian. Fails with
// Underflow when the debit exceeds the stash; the stash is unsigned.
func (interactor *NavInteractor) DebitPipeFiat(operator string, amount *big.Int, asOfDate time.Time) error {
	return interactor.adjustStash(operator, amount, asOfDate, true)
}

func (interactor *NavInteractor) adjustStash(operator string, amount *big.Int, asOfDate time.Time, debit bool) error {
	if !interactor.operators.Contains(operator) {
		return domain.ErrorUnauthorized
	}
	if amount == nil || amount.Sign() <= 0 {
		return domain.ErrorInvalidAmount
	}

	interactor.mutex.Lock()
	defer interactor.mutex.Unlock()

	stash := new(big.Int).Set(interactor.valuation.PipeFiatStash)
	kind := domain.EventFiatCredited
	if debit {
		if stash.Cmp(amount) < 0 {
			return domain.ErrorUnderflow
		}
		stash.Sub(stash, amount)
		kind = domain.EventFiatDebited
	} else {
		stash.Add(stash, amount)
	}

	staged := &domain.TokenValuation{
		TokenID:       interactor.valuation.TokenID,
		Nav:           new(big.Int).Set(interactor.valuation.Nav),
		PipeFiatStash: stash,
		StashDate:     asOfDate,
		AssetValue:    new(big.Int).Set(interactor.valuation.AssetValue),
		UpdateTime:    time.Now(),
	}

	event := domain.NewEvent(kind, map[string]interface{}{
		"token_id":   staged.TokenID,
		"amount":     amount.String(),
		"stash":      stash.String(),
		"as_of_date": asOfDate.Format("2006-01-02"),
	})
	if err := interactor.store.Save(staged, event); err != nil {
		log.Printf("🔴 saving stash adjustment - %v\n", err.Error())
		return err
	}

	interactor.valuation = staged
	exporter.SetGauge(exporter.METRIC_PIPE_STASH, stash)
	return nil
}

// Nav returns the current NAV, fiat per token with 6 implied decimals.
func (interactor *NavInteractor) Nav() *big.Int {
	interactor.mutex.RLock()
	defer interactor.mutex.RUnlock()
	return new(big.Int).Set(interactor.valuation.Nav)
}

func (interactor *NavInteractor) PipeFiatStash() *big.Int {
	interactor.mutex.RLock()
	defer interactor.mutex.RUnlock()
	return new(big.Int).Set(interactor.valuation.PipeFiatStash)
}

func (interactor *NavInteractor) AssetValue() *big.Int {
	interactor.mutex.RLock()
	defer interactor.mutex.RUnlock()
	return new(big.Int).Set(interactor.valuation.AssetValue)
}

func (interactor *NavInteractor) StashDate() time.Time {
	interactor.mutex.RLock()
	defer interactor.mutex.RUnlock()
	return interactor.valuation.StashDate
}
