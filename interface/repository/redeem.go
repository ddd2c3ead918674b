package repository

import (
	"encoding/json"
	"math/big"
	"time"

	"rwadriver/domain"

	"github.com/behrang/sqlbatch"
)

const (
	sqlRedeemInsertIfNotExists = `
	insert into redeem_intents as r (
			address, tokens, hash, state, retried, info, create_time, retry_time, success_time
		)
		values (
			$1, $2::numeric, $3, 'new', 0, $4::jsonb, now(), null, null
		)
	on conflict (hash) do
		update set
			info = $4::jsonb
`

	sqlRedeemFind = `
	select
		address, tokens, hash, state, retried, info, create_time, retry_time, success_time
	from redeem_intents
	where hash = $1
`

	sqlRedeemFindAllTriable = `
	select
		address, tokens, hash, state, retried, info, create_time, retry_time, success_time
	from redeem_intents
	where state in ('new', 'error') and retried < $1
`

	sqlRedeemSetState = `
	update redeem_intents
		set state = $2
	where hash = $1
`

	sqlRedeemSetRetrying = `
	update redeem_intents
		set retried = retried + 1, retry_time = $2, state = 'inprogress'
	where hash = $1
`

	sqlRedeemSetSuccess = `
	update redeem_intents
		set success_time = $2, state = 'done'
	where hash = $1
`
)

type RedeemIntentRepository struct {
	batchHandler BatchHandler
}

func NewRedeemIntentRepository(db BatchHandler) *RedeemIntentRepository {
	return &RedeemIntentRepository{batchHandler: db}
}

func readRedeemIntent(scan func(...interface{}) error) (interface{}, error) {
	r := domain.RedeemIntent{}
	var tokens string
	var infoJson []byte
	err := scan(
		&r.Address, &tokens, &r.Hash, &r.State, &r.Retried, &infoJson,
		&r.CreateTime, &r.RetryTime, &r.SuccessTime,
	)
	if err != nil {
		return &r, err
	}
	r.Tokens, _ = new(big.Int).SetString(tokens, 10)
	err = json.Unmarshal(infoJson, &r.Info)
	return &r, err
}

func readAllRedeemIntents(memo interface{}, scan func(...interface{}) error) (interface{}, error) {
	r := domain.RedeemIntent{}
	var tokens string
	var infoJson []byte
	err := scan(
		&r.Address, &tokens, &r.Hash, &r.State, &r.Retried, &infoJson,
		&r.CreateTime, &r.RetryTime, &r.SuccessTime,
	)
	if err == nil {
		r.Tokens, _ = new(big.Int).SetString(tokens, 10)
		err = json.Unmarshal(infoJson, &r.Info)
	}

	list := memo.([]domain.RedeemIntent)
	list = append(list, r)
	return list, err
}

func (repo *RedeemIntentRepository) InsertIfNotExists(address string, tokens *big.Int, hash string, info domain.OrderRelatedInfo) (*domain.RedeemIntent, error) {

	infoJson, _ := json.Marshal(info)
	results, err := repo.batchHandler.Batch(&BatchOptionNormal, []sqlbatch.Command{
		{
			Query: sqlRedeemInsertIfNotExists,
			Args: []interface{}{
				address, tokens.String(), hash, infoJson,
			},
			Affect: 1,
		},
		{
			Query:   sqlRedeemFind,
			Args:    []interface{}{hash},
			ReadOne: readRedeemIntent,
		},
	})

	result, _ := results[1].(*domain.RedeemIntent)
	return result, err
}

func (repo *RedeemIntentRepository) Find(hash string) (*domain.RedeemIntent, error) {
	results, err := repo.batchHandler.Batch(&BatchOptionNormal, []sqlbatch.Command{
		{
			Query:   sqlRedeemFind,
			Args:    []interface{}{hash},
			ReadOne: readRedeemIntent,
		},
	})
	result, _ := results[0].(*domain.RedeemIntent)
	return result, err
}

func (repo *RedeemIntentRepository) FindAllTriable(maxRetry int) ([]domain.RedeemIntent, error) {
	results, err := repo.batchHandler.Batch(&BatchOptionNormal, []sqlbatch.Command{
		{
			Query:   sqlRedeemFindAllTriable,
			Args:    []interface{}{maxRetry},
			Init:    make([]domain.RedeemIntent, 0),
			ReadAll: readAllRedeemIntents,
		},
	})
	result, _ := results[0].([]domain.RedeemIntent)
	return result, err
}

func (repo *RedeemIntentRepository) SetState(hash string, state string) error {
	_, err := repo.batchHandler.Batch(&BatchOptionNormal, []sqlbatch.Command{
		{
			Query:  sqlRedeemSetState,
			Args:   []interface{}{hash, state},
			Affect: 1,
		},
	})
	return err
}

func (repo *RedeemIntentRepository) SetRetrying(hash string, timestamp time.Time) error {
	_, err := repo.batchHandler.Batch(&BatchOptionNormal, []sqlbatch.Command{
		{
			Query:  sqlRedeemSetRetrying,
			Args:   []interface{}{hash, timestamp},
			Affect: 1,
		},
	})
	return err
}

func (repo *RedeemIntentRepository) SetSuccess(hash string, timestamp time.Time) error {
	_, err := repo.batchHandler.Batch(&BatchOptionNormal, []sqlbatch.Command{
		{
			Query:  sqlRedeemSetSuccess,
			Args:   []interface{}{hash, timestamp},
			Affect: 1,
		},
	})
	return err
}
