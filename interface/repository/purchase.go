package repository

import (
	"encoding/json"
	"math/big"
	"time"

	"rwadriver/domain"

	"github.com/behrang/sqlbatch"
)

const (
	sqlPurchaseInsertIfNotExists = `
	insert into purchase_orders as p (
			address, amount, currency, hash, state, retried, info, create_time, retry_time, success_time
		)
		values (
			$1, $2::numeric, $3, $4, 'new', 0, $5::jsonb, now(), null, null
		)
	on conflict (hash) do
		update set
			info = $5::jsonb
`

	sqlPurchaseFind = `
	select
		address, amount, currency, hash, state, retried, info, create_time, retry_time, success_time
	from purchase_orders
	where hash = $1
`

	sqlPurchaseFindAllTriable = `
	select
		address, amount, currency, hash, state, retried, info, create_time, retry_time, success_time
	from purchase_orders
	where state in ('new', 'error') and retried < $1
`

	sqlPurchaseSetState = `
	update purchase_orders
		set state = $2
	where hash = $1
`

	sqlPurchaseSetRetrying = `
	update purchase_orders
		set retried = retried + 1, retry_time = $2, state = 'inprogress'
	where hash = $1
`

	sqlPurchaseSetSuccess = `
	update purchase_orders
		set success_time = $2, state = 'done'
	where hash = $1
`
)

type PurchaseOrderRepository struct {
	batchHandler BatchHandler
}

func NewPurchaseOrderRepository(db BatchHandler) *PurchaseOrderRepository {
	return &PurchaseOrderRepository{batchHandler: db}
}

func readPurchaseOrder(scan func(...interface{}) error) (interface{}, error) {
	r := domain.PurchaseOrder{}
	var amount string
	var infoJson []byte
	err := scan(
		&r.Address, &amount, &r.Currency, &r.Hash, &r.State, &r.Retried, &infoJson,
		&r.CreateTime, &r.RetryTime, &r.SuccessTime,
	)
	if err != nil {
		return &r, err
	}
	r.Amount, _ = new(big.Int).SetString(amount, 10)
	err = json.Unmarshal(infoJson, &r.Info)
	return &r, err
}

func readAllPurchaseOrders(memo interface{}, scan func(...interface{}) error) (interface{}, error) {
	r := domain.PurchaseOrder{}
	var amount string
	var infoJson []byte
	err := scan(
		&r.Address, &amount, &r.Currency, &r.Hash, &r.State, &r.Retried, &infoJson,
		&r.CreateTime, &r.RetryTime, &r.SuccessTime,
	)
	if err == nil {
		r.Amount, _ = new(big.Int).SetString(amount, 10)
		err = json.Unmarshal(infoJson, &r.Info)
	}

	list := memo.([]domain.PurchaseOrder)
	list = append(list, r)
	return list, err
}

func (repo *PurchaseOrderRepository) InsertIfNotExists(address string, amount *big.Int, currency string, hash string, info domain.OrderRelatedInfo) (*domain.PurchaseOrder, error) {

	infoJson, _ := json.Marshal(info)
	results, err := repo.batchHandler.Batch(&BatchOptionNormal, []sqlbatch.Command{
		{
			Query: sqlPurchaseInsertIfNotExists,
			Args: []interface{}{
				address, amount.String(), currency, hash, infoJson,
			},
			Affect: 1,
		},
		{
			Query:   sqlPurchaseFind,
			Args:    []interface{}{hash},
			ReadOne: readPurchaseOrder,
		},
	})

	result, _ := results[1].(*domain.PurchaseOrder)
	return result, err
}

func (repo *PurchaseOrderRepository) Find(hash string) (*domain.PurchaseOrder, error) {
	results, err := repo.batchHandler.Batch(&BatchOptionNormal, []sqlbatch.Command{
		{
			Query:   sqlPurchaseFind,
			Args:    []interface{}{hash},
			ReadOne: readPurchaseOrder,
		},
	})
	result, _ := results[0].(*domain.PurchaseOrder)
	return result, err
}

func (repo *PurchaseOrderRepository) FindAllTriable(maxRetry int) ([]domain.PurchaseOrder, error) {
	results, err := repo.batchHandler.Batch(&BatchOptionNormal, []sqlbatch.Command{
		{
			Query:   sqlPurchaseFindAllTriable,
			Args:    []interface{}{maxRetry},
			Init:    make([]domain.PurchaseOrder, 0),
			ReadAll: readAllPurchaseOrders,
		},
	})
	result, _ := results[0].([]domain.PurchaseOrder)
	return result, err
}

func (repo *PurchaseOrderRepository) SetState(hash string, state string) error {
	_, err := repo.batchHandler.Batch(&BatchOptionNormal, []sqlbatch.Command{
		{
			Query:  sqlPurchaseSetState,
			Args:   []interface{}{hash, state},
			Affect: 1,
		},
	})
	return err
}

func (repo *PurchaseOrderRepository) SetRetrying(hash string, timestamp time.Time) error {
	_, err := repo.batchHandler.Batch(&BatchOptionNormal, []sqlbatch.Command{
		{
			Query:  sqlPurchaseSetRetrying,
			Args:   []interface{}{hash, timestamp},
			Affect: 1,
		},
	})
	return err
}

func (repo *PurchaseOrderRepository) SetSuccess(hash string, timestamp time.Time) error {
	_, err := repo.batchHandler.Batch(&BatchOptionNormal, []sqlbatch.Command{
		{
			Query:  sqlPurchaseSetSuccess,
			Args:   []interface{}{hash, timestamp},
			Affect: 1,
		},
	})
	return err
}
