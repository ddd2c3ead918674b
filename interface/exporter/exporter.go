package exporter

import (
	"math/big"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	METRIC_ERROR_COUNT       = "error_count"
	METRIC_PURCHASE_COUNT    = "purchase_count"
	METRIC_REDEEM_COUNT      = "redeem_request_count"
	METRIC_CANCEL_COUNT      = "redeem_cancel_count"
	METRIC_FULFILLMENT_COUNT = "fulfillment_count"
	METRIC_NAV_UPDATE_COUNT  = "nav_update_count"

	METRIC_NAV            = "nav"
	METRIC_TOTAL_SUPPLY   = "token_total_supply"
	METRIC_POOL_BALANCE   = "pool_stablecoin_balance"
	METRIC_OPEN_BATCHES   = "open_batch_count"
	METRIC_PENDING_TOKENS = "pending_tokens"
	METRIC_PIPE_STASH     = "pipe_fiat_stash"
)

var (
	counters map[string]prometheus.Counter
	gauges   map[string]prometheus.Gauge
)

func Init() {

	// --- Static Metrics: the metrics which are not depended on running configuration

	// Create metric spaces
	counters = make(map[string]prometheus.Counter)
	gauges = make(map[string]prometheus.Gauge)

	// Register metrics
	counterHelp := map[string]string{
		METRIC_ERROR_COUNT:       "Counts the number of failed operations",
		METRIC_PURCHASE_COUNT:    "Counts processed purchases",
		METRIC_REDEEM_COUNT:      "Counts created redemption requests",
		METRIC_CANCEL_COUNT:      "Counts cancelled redemption requests",
		METRIC_FULFILLMENT_COUNT: "Counts fulfillment rounds",
		METRIC_NAV_UPDATE_COUNT:  "Counts NAV recomputations",
	}
	for name, help := range counterHelp {
		counter := prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "rwa",
			Subsystem: "driver",
			Name:      name,
			Help:      help,
		})
		prometheus.MustRegister(counter)
		counters[name] = counter
	}

	gaugeHelp := map[string]string{
		METRIC_NAV:            "Current NAV, 6-decimal fixed point",
		METRIC_TOTAL_SUPPLY:   "Claim token total supply in raw units",
		METRIC_POOL_BALANCE:   "Refund stablecoin balance of the pool in raw units",
		METRIC_OPEN_BATCHES:   "Number of batches between head and tail",
		METRIC_PENDING_TOKENS: "Sum of unredeemed tokens across open batches",
		METRIC_PIPE_STASH:     "Fiat in transit to/from the RWA custodian, 6-decimal fixed point",
	}
	for name, help := range gaugeHelp {
		gauge := prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "rwa",
			Subsystem: "driver",
			Name:      name,
			Help:      help,
		})
		prometheus.MustRegister(gauge)
		gauges[name] = gauge
	}
}

func GetCounter(name string) prometheus.Counter {
	return counters[name]
}

func IncErrorCount() {
	counters[METRIC_ERROR_COUNT].Inc()
}

func IncPurchaseCount() {
	counters[METRIC_PURCHASE_COUNT].Inc()
}

func IncRedeemCount() {
	counters[METRIC_REDEEM_COUNT].Inc()
}

func IncCancelCount() {
	counters[METRIC_CANCEL_COUNT].Inc()
}

func IncFulfillmentCount() {
	counters[METRIC_FULFILLMENT_COUNT].Inc()
}

func IncNavUpdateCount() {
	counters[METRIC_NAV_UPDATE_COUNT].Inc()
}

func SetGauge(name string, value *big.Int) {
	if gauge, exist := gauges[name]; exist && value != nil {
		approx, _ := new(big.Float).SetInt(value).Float64()
		gauge.Set(approx)
	}
}

func SetGaugeCount(name string, value uint64) {
	if gauge, exist := gauges[name]; exist {
		gauge.Set(float64(value))
	}
}
