/*
Copyright © 2023 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"rwadriver/domain"
	"rwadriver/domain/config"
	"rwadriver/interface/exporter"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
)

var quit = make(chan bool)

// startCmd represents the start command
var startCmd = &cobra.Command{
	Use:   "start",
	Short: "Starts driver's tasks",
	Long:  `Starts driver's tasks. To stop it, run 'stop' command.`,
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println("start called.")

		exporter.Init()
		defaultDependencyInject()
		serveMetrics()

		extractTicker := schedule(extract, config.GetExtractInterval(), quit)
		purchaseTicker := schedule(purchase, config.GetPurchaseInterval(), quit)
		redeemTicker := schedule(redeem, config.GetRedeemInterval(), quit)
		navTicker := schedule(nav, config.GetNavInterval(), quit)
		rolloverTicker := schedule(rollover, config.GetRolloverInterval(), quit)
		fulfillTicker := schedule(fulfill, config.GetFulfillInterval(), quit)
		statisticTicker := schedule(statistic, config.GetStatisticInterval(), quit)

		signal.Ignore()
		stop := make(chan os.Signal, 1)
		signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
		s := <-stop
		log.Printf("Got signal '%v', stopping", s)

		extractTicker.Stop()
		purchaseTicker.Stop()
		redeemTicker.Stop()
		navTicker.Stop()
		rolloverTicker.Stop()
		fulfillTicker.Stop()
		statisticTicker.Stop()
	},
}

func schedule(task func(), interval time.Duration, done chan bool) *time.Ticker {
	ticker := time.NewTicker(interval)
	go func() {
		for {
			select {

			case <-ticker.C:
				ticker.Stop()
				task()
				ticker.Reset(interval)

			case <-done:
				return
			}
		}
	}()
	return ticker
}

func serveMetrics() {
	http.Handle("/metrics", promhttp.Handler())
	go func() {
		err := http.ListenAndServe(fmt.Sprintf(":%v", config.GetMetricsPort()), nil)
		if err != nil {
			log.Printf("🔴 metrics server stopped - %v\n", err.Error())
		}
	}()
}

func extract() {
	result, err := extractInteractor.Extract()
	if err != nil {
		fmt.Printf("❌ No intent is extracted due to error: %v\n", err.Error())
		exporter.IncErrorCount()
		return
	}

	if len(result.PurchaseOrders)+len(result.RedeemIntents) > 0 {
		fmt.Printf("Extracted %v purchase order(s) and %v redeem intent(s)\n",
			len(result.PurchaseOrders), len(result.RedeemIntents))
	}
}

func purchase() {
	orders, err := purchaseOrderRepository.FindAllTriable(config.GetMaxRetry())
	if err != nil {
		fmt.Printf("❌ Failed to load purchase orders - %v\n", err.Error())
		exporter.IncErrorCount()
		return
	}

	for _, order := range orders {
		if err = purchaseOrderRepository.SetRetrying(order.Hash, time.Now()); err != nil {
			fmt.Printf("❌ Failed to mark purchase order [%v] - %v\n", order.Hash, err.Error())
			exporter.IncErrorCount()
			continue
		}

		minted, err := purchaseInteractor.Purchase(order.Address, order.Amount, order.Currency)
		switch {
		case err == nil:
			fmt.Printf("✅ Purchase [%v] minted %v %v\n",
				order.Hash, minted, config.GetTokenSymbol())
			err = purchaseOrderRepository.SetSuccess(order.Hash, time.Now())

		case errors.Is(err, domain.ErrorInvalidAmount) || errors.Is(err, domain.ErrorSupplyLimitExceeded):
			fmt.Printf("⚠️ Purchase [%v] skipped - %v\n", order.Hash, err.Error())
			err = purchaseOrderRepository.SetState(order.Hash, domain.RequestStateSkipped)

		default:
			fmt.Printf("❌ Purchase [%v] failed - %v\n", order.Hash, err.Error())
			exporter.IncErrorCount()
			err = purchaseOrderRepository.SetState(order.Hash, domain.RequestStateError)
		}
		if err != nil {
			fmt.Printf("❌ Failed to update purchase order [%v] - %v\n", order.Hash, err.Error())
			exporter.IncErrorCount()
		}
	}
}

func redeem() {
	intents, err := redeemIntentRepository.FindAllTriable(config.GetMaxRetry())
	if err != nil {
		fmt.Printf("❌ Failed to load redeem intents - %v\n", err.Error())
		exporter.IncErrorCount()
		return
	}

	for _, intent := range intents {
		if err = redeemIntentRepository.SetRetrying(intent.Hash, time.Now()); err != nil {
			fmt.Printf("❌ Failed to mark redeem intent [%v] - %v\n", intent.Hash, err.Error())
			exporter.IncErrorCount()
			continue
		}

		err = queueInteractor.CreateRedeemRequest(intent.Address, intent.Tokens)
		switch {
		case err == nil:
			fmt.Printf("✅ Redeem intent [%v] queued\n", intent.Hash)
			err = redeemIntentRepository.SetSuccess(intent.Hash, time.Now())

		case errors.Is(err, domain.ErrorInvalidAmount) || errors.Is(err, domain.ErrorInsufficientTokens):
			fmt.Printf("⚠️ Redeem intent [%v] skipped - %v\n", intent.Hash, err.Error())
			err = redeemIntentRepository.SetState(intent.Hash, domain.RequestStateSkipped)

		default:
			fmt.Printf("❌ Redeem intent [%v] failed - %v\n", intent.Hash, err.Error())
			exporter.IncErrorCount()
			err = redeemIntentRepository.SetState(intent.Hash, domain.RequestStateError)
		}
		if err != nil {
			fmt.Printf("❌ Failed to update redeem intent [%v] - %v\n", intent.Hash, err.Error())
			exporter.IncErrorCount()
		}
	}
}

func nav() {
	err := navInteractor.UpdateNav(operatorAddress)
	if err != nil {
		fmt.Printf("❌ NAV update failed - %v\n", err.Error())
		exporter.IncErrorCount()
	}
}

// rollover opens a fresh batch at the tail so new redemption requests queue
// behind the ones already waiting. The newest batch is reused while empty.
func rollover() {
	tail := queueInteractor.Tail()
	if tail > 0 {
		pending := queueInteractor.BatchPending(tail - 1)
		if pending == nil || pending.Sign() == 0 {
			return
		}
	}

	_, err := queueInteractor.CreateBatch(operatorAddress)
	if err != nil {
		fmt.Printf("❌ Batch rollover failed - %v\n", err.Error())
		exporter.IncErrorCount()
	}
}

func fulfill() {
	err := fulfillInteractor.SweepOnce(operatorAddress)
	if err != nil {
		fmt.Printf("❌ Fulfillment sweep failed - %v\n", err.Error())
		exporter.IncErrorCount()
	}
}

func statistic() {
	err := statisticInteractor.Refresh()
	if err != nil {
		exporter.IncErrorCount()
	}
}

func init() {
	rootCmd.AddCommand(startCmd)

	// Here you will define your flags and configuration settings.

	// Cobra supports Persistent Flags which will work for this command
	// and all subcommands, e.g.:
	// startCmd.PersistentFlags().String("foo", "", "A help for foo")

	// Cobra supports local flags which will only run when this command
	// is called directly, e.g.:
	// startCmd.Flags().BoolP("toggle", "t", false, "Help message for toggle")
}
