package repository

import (
	"encoding/json"

	"rwadriver/domain"

	"github.com/behrang/sqlbatch"
)

const (
	sqlEventInsert = `
	insert into events (
			kind, payload, create_time
		)
		values (
			$1, $2::jsonb, $3
		)
`
)

type EventRepository struct {
	batchHandler BatchHandler
}

func NewEventRepository(db BatchHandler) *EventRepository {
	return &EventRepository{batchHandler: db}
}

// eventInsertCommand lets other repositories journal an event inside the same
// transaction as the ledger mutation it describes.
func eventInsertCommand(event *domain.Event) sqlbatch.Command {
	payload, _ := json.Marshal(event.Payload)
	return sqlbatch.Command{
		Query:  sqlEventInsert,
		Args:   []interface{}{event.Kind, payload, event.CreateTime},
		Affect: 1,
	}
}

func (repo *EventRepository) Append(event *domain.Event) error {
	_, err := repo.batchHandler.Batch(&BatchOptionNormal, []sqlbatch.Command{
		eventInsertCommand(event),
	})
	return err
}
