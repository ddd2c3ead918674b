package domain

import (
	"math/big"
	"time"
)

// Token is the fungible-token collaborator. Both the claim token and the
// refund stablecoins are accessed through this interface; mint/burn only
// succeed for tokens the driver's operator key is authorized on. All calls
// are synchronous and either complete or return an error.
type Token interface {
	Symbol() string
	Decimals() (uint8, error)
	TotalSupply() (*big.Int, error)
	BalanceOf(address string) (*big.Int, error)
	Transfer(to string, amount *big.Int) error
	TransferFrom(from string, to string, amount *big.Int) error
	Mint(to string, amount *big.Int) error
	Burn(amount *big.Int) error
}

// CurrencyOracle reports the latest conversion rate between two currency
// symbols. The rate is the number of quote units per one base unit, shifted
// left by the returned decimal count. Fails for unknown or stale feeds.
type CurrencyOracle interface {
	GetFeedLatestPriceAndDecimals(base string, quote string) (*big.Int, uint8, error)
}

// AssetValuation reports the fiat value of all real-world assets backing a
// token id as of a given date, fixed point with 6 implied decimals.
type AssetValuation interface {
	GetValueByTokenId(tokenID string, fiatCurrency string, asOfDate time.Time) (*big.Int, error)
}
