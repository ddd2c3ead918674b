package repository

import (
	"math/big"
	"time"

	"rwadriver/domain"

	"github.com/behrang/sqlbatch"
)

const (
	sqlBatchInsert = `
	insert into batches (
			id, tokens_pending, create_time
		)
		values (
			$1, $2::numeric, $3
		)
`

	sqlBatchSetPending = `
	update batches
		set tokens_pending = $2::numeric
	where id = $1
`

	sqlBatchFindAll = `
	select
		id, tokens_pending, create_time
	from batches
	order by id
`

	sqlRedemptionUpsert = `
	insert into redemptions as r (
			batch_id, address, position, request_tokens, tokens_pending, create_time, cancel_time
		)
		values (
			$1, $2, $3, $4::numeric, $5::numeric, $6, null
		)
	on conflict (batch_id, address) do
		update set
			request_tokens = $4::numeric, tokens_pending = $5::numeric, cancel_time = null
`

	sqlRedemptionSetPending = `
	update redemptions
		set tokens_pending = $3::numeric
	where batch_id = $1 and address = $2
`

	sqlRedemptionSetCancelled = `
	update redemptions
		set tokens_pending = 0, cancel_time = $3
	where batch_id = $1 and address = $2
`

	sqlRedemptionFindAll = `
	select
		batch_id, address, request_tokens, tokens_pending, create_time, cancel_time
	from redemptions
	order by batch_id, position
`

	sqlBoundsUpsert = `
	insert into queue_bounds as b (
			id, head, tail
		)
		values (
			1, $1, $2
		)
	on conflict (id) do
		update set
			head = $1, tail = $2
`

	sqlBoundsFind = `
	select
		head, tail
	from queue_bounds
	where id = 1
`
)

type QueueRepository struct {
	batchHandler BatchHandler
}

func NewQueueRepository(db BatchHandler) *QueueRepository {
	return &QueueRepository{batchHandler: db}
}

type boundsRow struct {
	head uint64
	tail uint64
}

func readBounds(scan func(...interface{}) error) (interface{}, error) {
	r := boundsRow{}
	err := scan(&r.head, &r.tail)
	return &r, err
}

func readAllBatches(memo interface{}, scan func(...interface{}) error) (interface{}, error) {
	batch := &domain.Batch{
		Requests: make(map[string]*domain.RedemptionRequest),
		UserList: make([]string, 0),
	}
	var pending string
	err := scan(&batch.ID, &pending, &batch.CreateTime)
	if err == nil {
		batch.TokensPending, _ = new(big.Int).SetString(pending, 10)
	}

	list := memo.([]*domain.Batch)
	list = append(list, batch)
	return list, err
}

func readAllRedemptions(memo interface{}, scan func(...interface{}) error) (interface{}, error) {
	request := &domain.RedemptionRequest{}
	var requestTokens, tokensPending string
	err := scan(
		&request.BatchID, &request.Address, &requestTokens, &tokensPending,
		&request.CreateTime, &request.CancelTime,
	)
	if err == nil {
		request.RequestTokens, _ = new(big.Int).SetString(requestTokens, 10)
		request.TokensPending, _ = new(big.Int).SetString(tokensPending, 10)
	}

	list := memo.([]*domain.RedemptionRequest)
	list = append(list, request)
	return list, err
}

// Load rebuilds the whole batch ledger. Batches come back in id order and
// requests in insertion order, so the in-memory user lists match the order
// fulfillment iterated in previous runs.
func (repo *QueueRepository) Load() ([]*domain.Batch, uint64, uint64, error) {
	results, err := repo.batchHandler.Batch(&BatchOptionNormalReadOnly, []sqlbatch.Command{
		{
			Query:   sqlBoundsFind,
			ReadOne: readBounds,
		},
		{
			Query:   sqlBatchFindAll,
			Init:    make([]*domain.Batch, 0),
			ReadAll: readAllBatches,
		},
		{
			Query:   sqlRedemptionFindAll,
			Init:    make([]*domain.RedemptionRequest, 0),
			ReadAll: readAllRedemptions,
		},
	})
	if err != nil {
		return nil, 0, 0, err
	}

	var head, tail uint64
	if bounds, ok := results[0].(*boundsRow); ok && bounds != nil {
		head, tail = bounds.head, bounds.tail
	}

	batches, _ := results[1].([]*domain.Batch)
	requests, _ := results[2].([]*domain.RedemptionRequest)

	byID := make(map[uint64]*domain.Batch, len(batches))
	for _, batch := range batches {
		byID[batch.ID] = batch
	}
	for _, request := range requests {
		batch := byID[request.BatchID]
		if batch == nil {
			continue
		}
		batch.Requests[request.Address] = request
		batch.UserList = append(batch.UserList, request.Address)
	}

	return batches, head, tail, nil
}

// SaveBatch persists a freshly opened batch together with the advanced tail
// and the batch-created event, in one transaction.
func (repo *QueueRepository) SaveBatch(batch *domain.Batch, head uint64, tail uint64, event *domain.Event) error {
	_, err := repo.batchHandler.Batch(&BatchOptionSerializable, []sqlbatch.Command{
		{
			Query:  sqlBatchInsert,
			Args:   []interface{}{batch.ID, batch.TokensPending.String(), batch.CreateTime},
			Affect: 1,
		},
		{
			Query:  sqlBoundsUpsert,
			Args:   []interface{}{head, tail},
			Affect: 1,
		},
		eventInsertCommand(event),
	})
	return err
}

// SaveRequest persists one created (or additively re-created) redemption
// request and the batch total it changed.
func (repo *QueueRepository) SaveRequest(batchPending *big.Int, request *domain.RedemptionRequest, position int, event *domain.Event) error {
	_, err := repo.batchHandler.Batch(&BatchOptionSerializable, []sqlbatch.Command{
		{
			Query: sqlRedemptionUpsert,
			Args: []interface{}{
				request.BatchID, request.Address, position,
				request.RequestTokens.String(), request.TokensPending.String(), request.CreateTime,
			},
			Affect: 1,
		},
		{
			Query:  sqlBatchSetPending,
			Args:   []interface{}{request.BatchID, batchPending.String()},
			Affect: 1,
		},
		eventInsertCommand(event),
	})
	return err
}

// SaveCancel zeroes one request and the share it removed from the batch
// total.
func (repo *QueueRepository) SaveCancel(batchPending *big.Int, request *domain.RedemptionRequest, cancelTime time.Time, event *domain.Event) error {
	_, err := repo.batchHandler.Batch(&BatchOptionSerializable, []sqlbatch.Command{
		{
			Query:  sqlRedemptionSetCancelled,
			Args:   []interface{}{request.BatchID, request.Address, cancelTime},
			Affect: 1,
		},
		{
			Query:  sqlBatchSetPending,
			Args:   []interface{}{request.BatchID, batchPending.String()},
			Affect: 1,
		},
		eventInsertCommand(event),
	})
	return err
}

type FulfilledRequest struct {
	Address       string
	TokensPending *big.Int
}

// SaveFulfillment persists one fulfillment round: every touched request, the
// new batch total, the possibly advanced head, and the batch-fulfilled event.
// The whole round is one transaction, matching the all-or-nothing semantics
// of the fulfillment engine.
func (repo *QueueRepository) SaveFulfillment(batchID uint64, batchPending *big.Int, touched []FulfilledRequest, head uint64, tail uint64, event *domain.Event) error {
	commands := make([]sqlbatch.Command, 0, len(touched)+3)
	for _, request := range touched {
		commands = append(commands, sqlbatch.Command{
			Query:  sqlRedemptionSetPending,
			Args:   []interface{}{batchID, request.Address, request.TokensPending.String()},
			Affect: 1,
		})
	}
	commands = append(commands,
		sqlbatch.Command{
			Query:  sqlBatchSetPending,
			Args:   []interface{}{batchID, batchPending.String()},
			Affect: 1,
		},
		sqlbatch.Command{
			Query:  sqlBoundsUpsert,
			Args:   []interface{}{head, tail},
			Affect: 1,
		},
		eventInsertCommand(event),
	)

	_, err := repo.batchHandler.Batch(&BatchOptionSerializable, commands)
	return err
}

// SaveBounds persists a head advance with no other ledger change.
func (repo *QueueRepository) SaveBounds(head uint64, tail uint64) error {
	_, err := repo.batchHandler.Batch(&BatchOptionSerializable, []sqlbatch.Command{
		{
			Query:  sqlBoundsUpsert,
			Args:   []interface{}{head, tail},
			Affect: 1,
		},
	})
	return err
}
