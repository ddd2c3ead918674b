package config

import (
	"crypto/ecdsa"
	"fmt"
	"log"
	"math/big"
	"os"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/spf13/viper"
)

var (
	ErrorNoPrivateKey          = fmt.Errorf("no operator private key is defined")
	ErrorPrivateKeyConflict    = fmt.Errorf("only one of private_key or private_key_url must be defined")
	ErrorReadingPrivateKeyFile = fmt.Errorf("error in reading private key file")
	ErrorInvalidPrivateKey     = fmt.Errorf("invalid operator private key")

	ErrorInvalidTokenAddress      = fmt.Errorf("invalid claim-token address")
	ErrorNoStablecoins            = fmt.Errorf("no stablecoin is configured")
	ErrorInvalidStablecoinAddress = fmt.Errorf("invalid stablecoin address")
	ErrorUnknownRefundStablecoin  = fmt.Errorf("refund_stablecoin is not among the configured stablecoins")
	ErrorInvalidFeedAddress       = fmt.Errorf("invalid price feed address")
	ErrorInvalidSupplyCeiling     = fmt.Errorf("invalid supply ceiling")
	ErrorInvalidInitialNav        = fmt.Errorf("invalid initial nav")

	ErrorInvalidExtractInterval   = fmt.Errorf("invalid time interval for extract process")
	ErrorInvalidPurchaseInterval  = fmt.Errorf("invalid time interval for purchase process")
	ErrorInvalidRedeemInterval    = fmt.Errorf("invalid time interval for redeem process")
	ErrorInvalidNavInterval       = fmt.Errorf("invalid time interval for nav process")
	ErrorInvalidFulfillInterval   = fmt.Errorf("invalid time interval for fulfill process")
	ErrorInvalidRolloverInterval  = fmt.Errorf("invalid time interval for batch rollover")
	ErrorInvalidStatisticInterval = fmt.Errorf("invalid time interval for statistic process")
)

var (
	dbUri       string
	chainRpcUrl string

	operatorPrivateKey *ecdsa.PrivateKey
	operatorAddress    common.Address
	operators          []string

	tokenAddress common.Address
	tokenSymbol  string
	tokenID      string

	stablecoinAddresses map[string]common.Address
	refundStablecoin    string
	fiatSymbol          string
	feedAddresses       map[string]common.Address

	valuationUrl  string
	supplyCeiling *big.Int
	initialNav    *big.Int
	startBlock    uint64
	maxRetry      int
	metricsPort   int

	extractInterval   time.Duration
	purchaseInterval  time.Duration
	redeemInterval    time.Duration
	navInterval       time.Duration
	fulfillInterval   time.Duration
	rolloverInterval  time.Duration
	statisticInterval time.Duration
)

func ReadConfig(filePath string) {
	viper.SetConfigFile(filePath)

	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		log.Printf("⚠️ Failed reading config file: %v\n", err.Error())
	}

	err := initializeVariables()
	if err != nil {
		log.Fatalf("Configuration error - %v\n", err.Error())
	}
}

// This method processes the configuration parameters and keeps the processed
// values in some variables for later accesses rapidly.
func initializeVariables() error {
	var err error

	// Database stuff
	dbUri = strings.TrimSpace(viper.GetString("service_db_uri"))

	// Chain stuff
	chainRpcUrl = strings.TrimSpace(viper.GetString("chain_rpc_url"))
	startBlock = viper.GetUint64("start_block")

	// Operator key stuff
	privateKey := strings.TrimSpace(viper.GetString("private_key"))
	privateKeyUrl := strings.TrimSpace(viper.GetString("private_key_url"))
	if privateKey == "" && privateKeyUrl == "" {
		return ErrorNoPrivateKey
	}
	if privateKey != "" && privateKeyUrl != "" {
		return ErrorPrivateKeyConflict
	}

	keyHex := privateKey
	if privateKeyUrl != "" {
		keyHex, err = readKeyFile(privateKeyUrl)
		if err != nil {
			return ErrorReadingPrivateKeyFile
		}
	}

	operatorPrivateKey, err = crypto.HexToECDSA(strings.TrimPrefix(strings.TrimSpace(keyHex), "0x"))
	if err != nil {
		return ErrorInvalidPrivateKey
	}
	operatorAddress = crypto.PubkeyToAddress(operatorPrivateKey.PublicKey)

	operators = viper.GetStringSlice("operators")

	// Claim token stuff
	address := strings.TrimSpace(viper.GetString("token_address"))
	if !common.IsHexAddress(address) {
		return ErrorInvalidTokenAddress
	}
	tokenAddress = common.HexToAddress(address)
	tokenSymbol = strings.TrimSpace(viper.GetString("token_symbol"))
	tokenID = strings.TrimSpace(viper.GetString("token_id"))

	// Stablecoin stuff
	stablecoinAddresses = make(map[string]common.Address)
	for symbol, addr := range viper.GetStringMapString("stablecoins") {
		if !common.IsHexAddress(addr) {
			return ErrorInvalidStablecoinAddress
		}
		stablecoinAddresses[strings.ToUpper(symbol)] = common.HexToAddress(addr)
	}
	if len(stablecoinAddresses) == 0 {
		return ErrorNoStablecoins
	}

	refundStablecoin = strings.ToUpper(strings.TrimSpace(viper.GetString("refund_stablecoin")))
	if _, exist := stablecoinAddresses[refundStablecoin]; !exist {
		return ErrorUnknownRefundStablecoin
	}

	fiatSymbol = strings.ToUpper(strings.TrimSpace(viper.GetString("fiat_symbol")))
	if fiatSymbol == "" {
		fiatSymbol = "USD"
	}

	// Price feed stuff
	feedAddresses = make(map[string]common.Address)
	for pair, addr := range viper.GetStringMapString("feeds") {
		if !common.IsHexAddress(addr) {
			return ErrorInvalidFeedAddress
		}
		feedAddresses[strings.ToUpper(pair)] = common.HexToAddress(addr)
	}

	// Valuation stuff
	valuationUrl = strings.TrimRight(strings.TrimSpace(viper.GetString("valuation_url")), "/")

	ceiling := strings.TrimSpace(viper.GetString("supply_ceiling"))
	supplyCeiling = new(big.Int)
	if _, ok := supplyCeiling.SetString(ceiling, 10); !ok || supplyCeiling.Sign() <= 0 {
		return ErrorInvalidSupplyCeiling
	}

	nav := strings.TrimSpace(viper.GetString("initial_nav"))
	if nav == "" {
		nav = "1000000"
	}
	initialNav = new(big.Int)
	if _, ok := initialNav.SetString(nav, 10); !ok || initialNav.Sign() <= 0 {
		return ErrorInvalidInitialNav
	}

	maxRetry = viper.GetInt("max_retry")
	if maxRetry == 0 {
		maxRetry = 3
	}

	metricsPort = viper.GetInt("metrics_port")
	if metricsPort == 0 {
		metricsPort = 2112
	}

	//---------------------------------------------------------------
	// process intervals
	intervals := []struct {
		key    string
		target *time.Duration
		err    error
	}{
		{"extract_interval", &extractInterval, ErrorInvalidExtractInterval},
		{"purchase_interval", &purchaseInterval, ErrorInvalidPurchaseInterval},
		{"redeem_interval", &redeemInterval, ErrorInvalidRedeemInterval},
		{"nav_interval", &navInterval, ErrorInvalidNavInterval},
		{"fulfill_interval", &fulfillInterval, ErrorInvalidFulfillInterval},
		{"rollover_interval", &rolloverInterval, ErrorInvalidRolloverInterval},
		{"statistic_interval", &statisticInterval, ErrorInvalidStatisticInterval},
	}
	for _, interval := range intervals {
		strValue := viper.GetString(interval.key)
		*interval.target, err = time.ParseDuration(strValue)
		if err != nil {
			return interval.err
		}
	}

	return nil
}

func readKeyFile(filePath string) (string, error) {
	fileContent, err := os.ReadFile(filePath)
	if err != nil {
		log.Printf("Failed to read private key file - %v\n", err.Error())
		return "", err
	}
	return string(fileContent), nil
}

//-------------------------------------------------------------------
// Processed values

func GetDbUri() string {
	return dbUri
}

func GetChainRpcUrl() string {
	return chainRpcUrl
}

func GetOperatorPrivateKey() *ecdsa.PrivateKey {
	return operatorPrivateKey
}

// GetOperatorAddress returns the driver wallet's own address. It doubles as
// the pool address: deposits are pulled into it and escrowed claim tokens are
// held by it until burn.
func GetOperatorAddress() common.Address {
	return operatorAddress
}

// GetOperators returns every configured operator identity, always including
// the driver wallet itself.
func GetOperators() []string {
	all := make([]string, 0, len(operators)+1)
	all = append(all, operatorAddress.Hex())
	all = append(all, operators...)
	return all
}

func GetTokenAddress() common.Address {
	return tokenAddress
}

func GetTokenSymbol() string {
	return tokenSymbol
}

func GetTokenID() string {
	return tokenID
}

func GetStablecoinAddresses() map[string]common.Address {
	return stablecoinAddresses
}

func GetRefundStablecoin() string {
	return refundStablecoin
}

func GetFiatSymbol() string {
	return fiatSymbol
}

func GetFeedAddresses() map[string]common.Address {
	return feedAddresses
}

func GetValuationUrl() string {
	return valuationUrl
}

func GetSupplyCeiling() *big.Int {
	return supplyCeiling
}

func GetInitialNav() *big.Int {
	return initialNav
}

func GetStartBlock() uint64 {
	return startBlock
}

func GetMaxRetry() int {
	return maxRetry
}

func GetMetricsPort() int {
	return metricsPort
}

func GetExtractInterval() time.Duration {
	return extractInterval
}

func GetPurchaseInterval() time.Duration {
	return purchaseInterval
}

func GetRedeemInterval() time.Duration {
	return redeemInterval
}

func GetNavInterval() time.Duration {
	return navInterval
}

func GetFulfillInterval() time.Duration {
	return fulfillInterval
}

func GetRolloverInterval() time.Duration {
	return rolloverInterval
}

func GetStatisticInterval() time.Duration {
	return statisticInterval
}
