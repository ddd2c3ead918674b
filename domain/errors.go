package domain

import "fmt"

var (
	ErrorInvalidAmount         = fmt.Errorf("invalid amount")
	ErrorInsufficientTokens    = fmt.Errorf("insufficient token balance")
	ErrorTransferFailed        = fmt.Errorf("transfer failed")
	ErrorNothingToCancel       = fmt.Errorf("nothing to cancel")
	ErrorBatchUnderflow        = fmt.Errorf("batch underflow")
	ErrorInsufficientLiquidity = fmt.Errorf("insufficient liquidity")
	ErrorZeroSupply            = fmt.Errorf("zero token supply")
	ErrorUnderflow             = fmt.Errorf("stash underflow")
	ErrorSupplyLimitExceeded   = fmt.Errorf("supply limit exceeded")
	ErrorUnauthorized          = fmt.Errorf("unauthorized")
)
