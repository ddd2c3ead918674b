package dbhandler

import (
	"context"
	"log"
	"time"

	"database/sql"

	"github.com/behrang/sqlbatch"
	"github.com/lib/pq"
)

// Ledger mutations run at serializable isolation; postgres may abort one of
// two overlapping transactions with a serialization failure, which is safe
// to retry.
const maxSerializationRetries = 10

// DBHandler contains a connection to database.
type DBHandler struct {
	DB *sql.DB
}

// Batch creates a transaction and executes the batch of commands in that
// transaction. The whole batch commits or none of it does. If a retryable
// error is received, the batch is retried.
func (handler DBHandler) Batch(opts *sql.TxOptions, commands []sqlbatch.Command) ([]interface{}, error) {

	retried := 0
	for {
		results, err := handler.tryBatch(opts, commands)
		if pqErr, ok := err.(*pq.Error); ok && pqErr.Code == "40001" && retried < maxSerializationRetries {
			retried++
			log.Printf("🟡 Retryable Postgres error, retrying: %v", err)
			time.Sleep(time.Duration(retried) * 10 * time.Millisecond)
			continue
		}
		return results, err
	}
}

func (handler DBHandler) tryBatch(opts *sql.TxOptions, commands []sqlbatch.Command) (results []interface{}, err error) {

	results = make([]interface{}, len(commands))

	tx, err := handler.DB.BeginTx(context.Background(), opts)
	if err != nil {
		return
	}
	defer tx.Rollback()

	results, err = sqlbatch.Batch(tx, commands)

	if err == nil {
		err = tx.Commit()
	}

	return
}
