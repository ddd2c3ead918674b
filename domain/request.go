package domain

import (
	"math/big"
	"time"
)

const (
	RequestStateNew        = "new"
	RequestStateInProgress = "inprogress"
	RequestStateDone       = "done"
	RequestStateSkipped    = "skipped"
	RequestStateError      = "error"
)

// PurchaseOrder is a subscription intent extracted from the chain: a user
// approved a stablecoin allowance toward the pool. The driver pulls the
// deposit and mints claim tokens when it processes the order.
type PurchaseOrder struct {
	Address     string           `json:"address"`
	Amount      *big.Int         `json:"amount"`
	Currency    string           `json:"currency"`
	Hash        string           `json:"hash"`
	State       string           `json:"state"`
	Retried     int              `json:"retried"`
	Info        OrderRelatedInfo `json:"info"`
	CreateTime  time.Time        `json:"create_time"`
	RetryTime   *time.Time       `json:"retry_time"`
	SuccessTime *time.Time       `json:"success_time"`
}

// RedeemIntent is a redemption intent extracted from the chain: a user
// approved a claim-token allowance toward the pool. The driver escrows the
// tokens into the open batch when it processes the intent.
type RedeemIntent struct {
	Address     string           `json:"address"`
	Tokens      *big.Int         `json:"tokens"`
	Hash        string           `json:"hash"`
	State       string           `json:"state"`
	Retried     int              `json:"retried"`
	Info        OrderRelatedInfo `json:"info"`
	CreateTime  time.Time        `json:"create_time"`
	RetryTime   *time.Time       `json:"retry_time"`
	SuccessTime *time.Time       `json:"success_time"`
}

type OrderRelatedInfo struct {
	BlockNumber uint64 `json:"block_number"`
	TxHash      string `json:"tx_hash"`
	LogIndex    uint   `json:"log_index"`
}

type ExtractionResult struct {
	PurchaseOrders []PurchaseOrder
	RedeemIntents  []RedeemIntent
}
