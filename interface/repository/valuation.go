package repository

import (
	"math/big"

	"rwadriver/domain"

	"github.com/behrang/sqlbatch"
)

const (
	sqlValuationUpsert = `
	insert into valuations as v (
			token_id, nav, pipe_fiat_stash, stash_date, asset_value, update_time
		)
		values (
			$1, $2::numeric, $3::numeric, $4, $5::numeric, $6
		)
	on conflict (token_id) do
		update set
			nav = $2::numeric, pipe_fiat_stash = $3::numeric, stash_date = $4,
			asset_value = $5::numeric, update_time = $6
`

	sqlValuationFind = `
	select
		token_id, nav, pipe_fiat_stash, stash_date, asset_value, update_time
	from valuations
	where token_id = $1
`
)

type ValuationRepository struct {
	batchHandler BatchHandler
}

func NewValuationRepository(db BatchHandler) *ValuationRepository {
	return &ValuationRepository{batchHandler: db}
}

func readValuation(scan func(...interface{}) error) (interface{}, error) {
	v := domain.TokenValuation{}
	var nav, stash, assetValue string
	err := scan(&v.TokenID, &nav, &stash, &v.StashDate, &assetValue, &v.UpdateTime)
	if err != nil {
		return &v, err
	}
	v.Nav, _ = new(big.Int).SetString(nav, 10)
	v.PipeFiatStash, _ = new(big.Int).SetString(stash, 10)
	v.AssetValue, _ = new(big.Int).SetString(assetValue, 10)
	return &v, nil
}

func (repo *ValuationRepository) Find(tokenID string) (*domain.TokenValuation, error) {
	results, err := repo.batchHandler.Batch(&BatchOptionNormalReadOnly, []sqlbatch.Command{
		{
			Query:   sqlValuationFind,
			Args:    []interface{}{tokenID},
			ReadOne: readValuation,
		},
	})
	result, _ := results[0].(*domain.TokenValuation)
	return result, err
}

// Save persists the valuation and its journal event in one transaction.
func (repo *ValuationRepository) Save(valuation *domain.TokenValuation, event *domain.Event) error {
	_, err := repo.batchHandler.Batch(&BatchOptionSerializable, []sqlbatch.Command{
		{
			Query: sqlValuationUpsert,
			Args: []interface{}{
				valuation.TokenID, valuation.Nav.String(), valuation.PipeFiatStash.String(),
				valuation.StashDate, valuation.AssetValue.String(), valuation.UpdateTime,
			},
			Affect: 1,
		},
		eventInsertCommand(event),
	})
	return err
}
