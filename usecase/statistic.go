package usecase

import (
	"log"

	"rwadriver/domain"
	"rwadriver/interface/exporter"
)

// StatisticInteractor refreshes the exported gauges from the ledger and the
// chain. Read-only; safe to run on any schedule.
type StatisticInteractor struct {
	token         domain.Token
	stablecoin    domain.Token
	queue         *QueueInteractor
	navInteractor *NavInteractor
	poolAddress   string
}

func NewStatisticInteractor(token domain.Token,
	stablecoin domain.Token,
	queue *QueueInteractor,
	navInteractor *NavInteractor,
	poolAddress string) *StatisticInteractor {
	interactor := &StatisticInteractor{
		token:         token,
		stablecoin:    stablecoin,
		queue:         queue,
		navInteractor: navInteractor,
		poolAddress:   poolAddress,
	}

	return interactor
}

func (interactor *StatisticInteractor) Refresh() error {
	supply, err := interactor.token.TotalSupply()
	if err != nil {
		log.Printf("🔴 reading total supply - %v\n", err.Error())
		return err
	}
	balance, err := interactor.stablecoin.BalanceOf(interactor.poolAddress)
	if err != nil {
		log.Printf("🔴 reading pool balance - %v\n", err.Error())
		return err
	}

	exporter.SetGauge(exporter.METRIC_TOTAL_SUPPLY, supply)
	exporter.SetGauge(exporter.METRIC_POOL_BALANCE, balance)
	exporter.SetGauge(exporter.METRIC_NAV, interactor.navInteractor.Nav())
	exporter.SetGauge(exporter.METRIC_PIPE_STASH, interactor.navInteractor.PipeFiatStash())
	exporter.SetGauge(exporter.METRIC_PENDING_TOKENS, interactor.queue.PendingTokens())
	exporter.SetGaugeCount(exporter.METRIC_OPEN_BATCHES, interactor.queue.Tail()-interactor.queue.Head())
	return nil
}
