package cmd

import (
	"database/sql"
	"log"
	"time"

	"rwadriver/domain"
	"rwadriver/domain/config"
	"rwadriver/infrastructure/chain"
	"rwadriver/infrastructure/dbhandler"
	"rwadriver/interface/repository"
	"rwadriver/usecase"

	"github.com/ethereum/go-ethereum/ethclient"
	_ "github.com/lib/pq"
)

func defaultDependencyInject() {
	var err error
	dbURI := config.GetDbUri()
	dbPool, err = sql.Open("postgres", dbURI)
	if err != nil {
		log.Fatal(err)
	}
	dbPool.SetMaxOpenConns(20)
	dbPool.SetMaxIdleConns(5)
	dbPool.SetConnMaxIdleTime(1 * time.Minute)
	dbPool.SetConnMaxLifetime(4 * time.Hour)

	dbHandler := dbhandler.DBHandler{DB: dbPool}

	ethClient, err = ethclient.Dial(config.GetChainRpcUrl())
	if err != nil {
		log.Fatal("Unable to connect to chain rpc: ", err)
	}

	sender, err := chain.NewSender(ethClient, config.GetOperatorPrivateKey())
	if err != nil {
		log.Fatalf("Unable to create transaction sender - %v\n", err.Error())
	}
	operatorAddress = sender.From().Hex()

	claimToken := chain.NewERC20Token(sender, config.GetTokenAddress(), config.GetTokenSymbol())
	stablecoins := make(map[string]domain.Token)
	for symbol, address := range config.GetStablecoinAddresses() {
		stablecoins[symbol] = chain.NewERC20Token(sender, address, symbol)
	}
	refundCoin := stablecoins[config.GetRefundStablecoin()]

	oracle := chain.NewFeedOracle(sender, config.GetFeedAddresses())
	valuationClient := chain.NewValuationClient(config.GetValuationUrl())
	operators := domain.NewOperatorSet(config.GetOperators()...)

	queueRepository := repository.NewQueueRepository(dbHandler)
	valuationRepository := repository.NewValuationRepository(dbHandler)
	eventRepository := repository.NewEventRepository(dbHandler)
	memoRepository := repository.NewMemoRepository(dbHandler)
	purchaseOrderRepository = repository.NewPurchaseOrderRepository(dbHandler)
	redeemIntentRepository = repository.NewRedeemIntentRepository(dbHandler)

	memoInteractor = usecase.NewMemoInteractor(memoRepository)
	navInteractor = usecase.NewNavInteractor(claimToken, refundCoin, valuationClient, valuationRepository,
		operators, operatorAddress, config.GetTokenID(), config.GetFiatSymbol())
	queueInteractor = usecase.NewQueueInteractor(claimToken, queueRepository, operators, operatorAddress)
	purchaseInteractor = usecase.NewPurchaseInteractor(claimToken, stablecoins, oracle, navInteractor,
		eventRepository, operatorAddress, config.GetFiatSymbol(), config.GetSupplyCeiling())
	fulfillInteractor = usecase.NewFulfillInteractor(queueInteractor, navInteractor, claimToken, refundCoin,
		oracle, operators, operatorAddress, config.GetFiatSymbol())
	extractInteractor = usecase.NewExtractInteractor(ethClient, memoInteractor,
		purchaseOrderRepository, redeemIntentRepository,
		config.GetTokenAddress(), config.GetStablecoinAddresses(), sender.From(), config.GetStartBlock())
	statisticInteractor = usecase.NewStatisticInteractor(claimToken, refundCoin, queueInteractor,
		navInteractor, operatorAddress)

	if err = navInteractor.Initialize(config.GetInitialNav()); err != nil {
		log.Fatalf("Unable to initialize valuation - %v\n", err.Error())
	}
	if err = queueInteractor.Initialize(); err != nil {
		log.Fatalf("Unable to initialize batch ledger - %v\n", err.Error())
	}
}

var dbPool *sql.DB
var ethClient *ethclient.Client
var operatorAddress string
var purchaseOrderRepository *repository.PurchaseOrderRepository
var redeemIntentRepository *repository.RedeemIntentRepository
var memoInteractor *usecase.MemoInteractor
var navInteractor *usecase.NavInteractor
var queueInteractor *usecase.QueueInteractor
var purchaseInteractor *usecase.PurchaseInteractor
var fulfillInteractor *usecase.FulfillInteractor
var extractInteractor *usecase.ExtractInteractor
var statisticInteractor *usecase.StatisticInteractor
