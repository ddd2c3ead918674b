package domain

import (
	"math/big"
	"time"
)

// TokenValuation is the NAV record of one claim token. Nav is fiat per one
// whole token, fixed point with 6 implied decimals. PipeFiatStash is fiat in
// transit between the stablecoin pool and the RWA custodian; it counts toward
// NAV even while not held as stablecoins. AssetValue is the fiat value of the
// backing real-world assets as of StashDate.
type TokenValuation struct {
	TokenID       string    `json:"token_id"`
	Nav           *big.Int  `json:"nav"`
	PipeFiatStash *big.Int  `json:"pipe_fiat_stash"`
	StashDate     time.Time `json:"stash_date"`
	AssetValue    *big.Int  `json:"asset_value"`
	UpdateTime    time.Time `json:"update_time"`
}

func NewTokenValuation(tokenID string, initialNav *big.Int) *TokenValuation {
	return &TokenValuation{
		TokenID:       tokenID,
		Nav:           new(big.Int).Set(initialNav),
		PipeFiatStash: big.NewInt(0),
		StashDate:     time.Now(),
		AssetValue:    big.NewInt(0),
		UpdateTime:    time.Now(),
	}
}
