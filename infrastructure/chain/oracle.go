package chain

import (
	"fmt"
	"math/big"
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
)

var (
	ErrorUnknownFeed       = fmt.Errorf("unknown price feed")
	ErrorNonPositiveAnswer = fmt.Errorf("price feed returned a non-positive answer")
)

const aggregatorABIJson = `[
	{"inputs":[],"name":"decimals","outputs":[{"name":"","type":"uint8"}],"stateMutability":"view","type":"function"},
	{"inputs":[],"name":"latestRoundData","outputs":[
		{"name":"roundId","type":"uint80"},
		{"name":"answer","type":"int256"},
		{"name":"startedAt","type":"uint256"},
		{"name":"updatedAt","type":"uint256"},
		{"name":"answeredInRound","type":"uint80"}
	],"stateMutability":"view","type":"function"}
]`

var (
	aggregatorABI     abi.ABI
	aggregatorABIOnce sync.Once
)

func parsedAggregatorABI() abi.ABI {
	aggregatorABIOnce.Do(func() {
		parsed, err := abi.JSON(strings.NewReader(aggregatorABIJson))
		if err != nil {
			panic(err)
		}
		aggregatorABI = parsed
	})
	return aggregatorABI
}

// FeedOracle resolves BASE/QUOTE symbol pairs to Chainlink-style aggregator
// contracts and reads their latest answer. The answer means "quote units per
// one base unit", shifted by the feed's decimals.
type FeedOracle struct {
	sender *Sender
	feeds  map[string]common.Address

	decimalsMutex sync.Mutex
	decimalsCache map[string]uint8
}

func NewFeedOracle(sender *Sender, feeds map[string]common.Address) *FeedOracle {
	normalized := make(map[string]common.Address, len(feeds))
	for pair, address := range feeds {
		normalized[strings.ToUpper(pair)] = address
	}
	return &FeedOracle{
		sender:        sender,
		feeds:         normalized,
		decimalsCache: make(map[string]uint8),
	}
}

func (oracle *FeedOracle) GetFeedLatestPriceAndDecimals(base string, quote string) (*big.Int, uint8, error) {
	pair := strings.ToUpper(base) + "/" + strings.ToUpper(quote)
	aggregator, exist := oracle.feeds[pair]
	if !exist {
		return nil, 0, fmt.Errorf("%w: %v", ErrorUnknownFeed, pair)
	}

	decimals, err := oracle.feedDecimals(pair, aggregator)
	if err != nil {
		return nil, 0, err
	}

	data, err := parsedAggregatorABI().Pack("latestRoundData")
	if err != nil {
		return nil, 0, err
	}
	output, err := oracle.sender.Call(aggregator, data)
	if err != nil {
		return nil, 0, err
	}
	results, err := parsedAggregatorABI().Unpack("latestRoundData", output)
	if err != nil {
		return nil, 0, err
	}

	answer := results[1].(*big.Int)
	if answer.Sign() <= 0 {
		return nil, 0, fmt.Errorf("%w: %v", ErrorNonPositiveAnswer, pair)
	}

	return answer, decimals, nil
}

func (oracle *FeedOracle) feedDecimals(pair string, aggregator common.Address) (uint8, error) {
	oracle.decimalsMutex.Lock()
	defer oracle.decimalsMutex.Unlock()

	if decimals, exist := oracle.decimalsCache[pair]; exist {
		return decimals, nil
	}

	data, err := parsedAggregatorABI().Pack("decimals")
	if err != nil {
		return 0, err
	}
	output, err := oracle.sender.Call(aggregator, data)
	if err != nil {
		return 0, err
	}
	results, err := parsedAggregatorABI().Unpack("decimals", output)
	if err != nil {
		return 0, err
	}

	decimals := results[0].(uint8)
	oracle.decimalsCache[pair] = decimals
	return decimals, nil
}
