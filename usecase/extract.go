package usecase

import (
	"context"
	"fmt"
	"log"
	"math/big"
	"strings"
	"time"

	"rwadriver/domain"
	"rwadriver/interface/repository"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
)

// Users signal intent on chain by approving an allowance toward the pool:
// a stablecoin approval is a subscription, a claim-token approval is a
// redemption. The driver later pulls the allowance when it processes the
// order, so the pull-before-mint and escrow-on-request orderings hold.
var approvalTopic = crypto.Keccak256Hash([]byte("Approval(address,address,uint256)"))

// Scanning in bounded windows keeps a cold start from requesting the whole
// chain in one filter call.
const maxScanWindow = 5000

// LogSource is the slice of the ethclient surface extraction needs.
type LogSource interface {
	BlockNumber(ctx context.Context) (uint64, error)
	FilterLogs(ctx context.Context, query ethereum.FilterQuery) ([]types.Log, error)
}

type ExtractInteractor struct {
	client             LogSource
	memoInteractor     *MemoInteractor
	purchaseRepository *repository.PurchaseOrderRepository
	redeemRepository   *repository.RedeemIntentRepository

	tokenAddress      common.Address
	stablecoinSymbols map[common.Address]string
	poolAddress       common.Address
	startBlock        uint64
}

func NewExtractInteractor(client LogSource,
	memoInteractor *MemoInteractor,
	purchaseRepository *repository.PurchaseOrderRepository,
	redeemRepository *repository.RedeemIntentRepository,
	tokenAddress common.Address,
	stablecoins map[string]common.Address,
	poolAddress common.Address,
	startBlock uint64) *ExtractInteractor {
	symbols := make(map[common.Address]string, len(stablecoins))
	for symbol, address := range stablecoins {
		symbols[address] = strings.ToUpper(symbol)
	}
	interactor := &ExtractInteractor{
		client:             client,
		memoInteractor:     memoInteractor,
		purchaseRepository: purchaseRepository,
		redeemRepository:   redeemRepository,
		tokenAddress:       tokenAddress,
		stablecoinSymbols:  symbols,
		poolAddress:        poolAddress,
		startBlock:         startBlock,
	}

	return interactor
}

// Extract scans the next block window for approvals toward the pool and
// turns them into purchase orders and redeem intents.
func (interactor *ExtractInteractor) Extract() (*domain.ExtractionResult, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	latest, err := interactor.client.BlockNumber(ctx)
	if err != nil {
		return nil, err
	}

	from, err := interactor.memoInteractor.GetLatestScannedBlock()
	if err != nil {
		return nil, err
	}
	if from == 0 {
		from = interactor.startBlock
	} else {
		from++
	}
	if from > latest {
		return &domain.ExtractionResult{}, nil
	}

	to := latest
	if to-from >= maxScanWindow {
		to = from + maxScanWindow - 1
	}

	addresses := make([]common.Address, 0, len(interactor.stablecoinSymbols)+1)
	addresses = append(addresses, interactor.tokenAddress)
	for address := range interactor.stablecoinSymbols {
		addresses = append(addresses, address)
	}

	logs, err := interactor.client.FilterLogs(ctx, ethereum.FilterQuery{
		FromBlock: new(big.Int).SetUint64(from),
		ToBlock:   new(big.Int).SetUint64(to),
		Addresses: addresses,
		Topics: [][]common.Hash{
			{approvalTopic},
			nil,
			{common.BytesToHash(interactor.poolAddress.Bytes())},
		},
	})
	if err != nil {
		return nil, err
	}

	result := interactor.makeRequests(logs)
	if err = interactor.Store(result); err != nil {
		return nil, err
	}
	if err = interactor.memoInteractor.SetLatestScannedBlock(to); err != nil {
		log.Printf("🔴 saving extraction memo - %v\n", err.Error())
		return nil, err
	}

	return result, nil
}

func (interactor *ExtractInteractor) makeRequests(logs []types.Log) *domain.ExtractionResult {
	result := &domain.ExtractionResult{
		PurchaseOrders: make([]domain.PurchaseOrder, 0),
		RedeemIntents:  make([]domain.RedeemIntent, 0),
	}

	for _, entry := range logs {
		if len(entry.Topics) != 3 || len(entry.Data) == 0 {
			continue
		}

		owner := common.BytesToAddress(entry.Topics[1].Bytes())
		amount := new(big.Int).SetBytes(entry.Data)
		if amount.Sign() <= 0 {
			continue
		}

		hash := fmt.Sprintf("%v-%v", entry.TxHash.Hex(), entry.Index)
		info := domain.OrderRelatedInfo{
			BlockNumber: entry.BlockNumber,
			TxHash:      entry.TxHash.Hex(),
			LogIndex:    entry.Index,
		}

		if entry.Address == interactor.tokenAddress {
			result.RedeemIntents = append(result.RedeemIntents, domain.RedeemIntent{
				Address:    owner.Hex(),
				Tokens:     amount,
				Hash:       hash,
				Info:       info,
				CreateTime: time.Now(),
			})
		} else if symbol, exist := interactor.stablecoinSymbols[entry.Address]; exist {
			result.PurchaseOrders = append(result.PurchaseOrders, domain.PurchaseOrder{
				Address:    owner.Hex(),
				Amount:     amount,
				Currency:   symbol,
				Hash:       hash,
				Info:       info,
				CreateTime: time.Now(),
			})
		}
	}

	return result
}

// Store persists extracted intents idempotently; a rescan of the same window
// only refreshes the info column.
func (interactor *ExtractInteractor) Store(result *domain.ExtractionResult) error {
	for _, order := range result.PurchaseOrders {
		_, err := interactor.purchaseRepository.InsertIfNotExists(
			order.Address, order.Amount, order.Currency, order.Hash, order.Info)
		if err != nil {
			log.Printf("🔴 inserting purchase order - %v\n", err.Error())
			return err
		}
	}
	for _, intent := range result.RedeemIntents {
		_, err := interactor.redeemRepository.InsertIfNotExists(
			intent.Address, intent.Tokens, intent.Hash, intent.Info)
		if err != nil {
			log.Printf("🔴 inserting redeem intent - %v\n", err.Error())
			return err
		}
	}
	return nil
}
