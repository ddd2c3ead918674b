// Package chain implements the collaborator contracts over an EVM chain:
// the ERC20 claim token and stablecoins, the price feed registry, and the
// operator wallet that signs driver transactions.
package chain

import (
	"context"
	"crypto/ecdsa"
	"fmt"
	"log"
	"math/big"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"
)

const callTimeout = 30 * time.Second
const minedTimeout = 2 * time.Minute

var ErrorTransactionReverted = fmt.Errorf("transaction reverted")

// Sender owns the operator key and serializes outgoing transactions, so two
// driver loops never race on the account nonce. Every Transact waits for the
// receipt; a call returns only once its state change is final on chain.
type Sender struct {
	client  *ethclient.Client
	key     *ecdsa.PrivateKey
	from    common.Address
	chainID *big.Int
	mutex   sync.Mutex
}

func NewSender(client *ethclient.Client, key *ecdsa.PrivateKey) (*Sender, error) {
	ctx, cancel := context.WithTimeout(context.Background(), callTimeout)
	defer cancel()

	chainID, err := client.ChainID(ctx)
	if err != nil {
		return nil, err
	}

	return &Sender{
		client:  client,
		key:     key,
		from:    crypto.PubkeyToAddress(key.PublicKey),
		chainID: chainID,
	}, nil
}

func (sender *Sender) From() common.Address {
	return sender.from
}

func (sender *Sender) Client() *ethclient.Client {
	return sender.client
}

// Call executes a read-only contract call against the latest block.
func (sender *Sender) Call(to common.Address, data []byte) ([]byte, error) {
	ctx, cancel := context.WithTimeout(context.Background(), callTimeout)
	defer cancel()

	return sender.client.CallContract(ctx, ethereum.CallMsg{
		From: sender.from,
		To:   &to,
		Data: data,
	}, nil)
}

// Transact signs, sends and waits for one contract transaction. Returns an
// error when the transaction cannot be mined or reverts.
func (sender *Sender) Transact(to common.Address, data []byte) error {
	sender.mutex.Lock()
	defer sender.mutex.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), callTimeout)
	defer cancel()

	nonce, err := sender.client.PendingNonceAt(ctx, sender.from)
	if err != nil {
		return err
	}

	gasPrice, err := sender.client.SuggestGasPrice(ctx)
	if err != nil {
		return err
	}

	gasLimit, err := sender.client.EstimateGas(ctx, ethereum.CallMsg{
		From:     sender.from,
		To:       &to,
		GasPrice: gasPrice,
		Data:     data,
	})
	if err != nil {
		return err
	}

	tx := types.NewTransaction(nonce, to, big.NewInt(0), gasLimit, gasPrice, data)
	signed, err := types.SignTx(tx, types.LatestSignerForChainID(sender.chainID), sender.key)
	if err != nil {
		return err
	}

	if err = sender.client.SendTransaction(ctx, signed); err != nil {
		return err
	}

	minedCtx, minedCancel := context.WithTimeout(context.Background(), minedTimeout)
	defer minedCancel()

	receipt, err := bind.WaitMined(minedCtx, sender.client, signed)
	if err != nil {
		log.Printf("🔴 waiting for transaction %v - %v\n", signed.Hash(), err.Error())
		return err
	}
	if receipt.Status != types.ReceiptStatusSuccessful {
		return fmt.Errorf("%w: %v", ErrorTransactionReverted, signed.Hash())
	}

	return nil
}
