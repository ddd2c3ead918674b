package chain

import (
	"fmt"
	"math/big"
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
)

// Enough of the ERC20 surface for the driver: the standard read/transfer
// set plus the mint/burn extension the claim token exposes to its operator.
const erc20ABIJson = `[
	{"constant":true,"inputs":[],"name":"decimals","outputs":[{"name":"","type":"uint8"}],"type":"function"},
	{"constant":true,"inputs":[],"name":"totalSupply","outputs":[{"name":"","type":"uint256"}],"type":"function"},
	{"constant":true,"inputs":[{"name":"owner","type":"address"}],"name":"balanceOf","outputs":[{"name":"","type":"uint256"}],"type":"function"},
	{"constant":false,"inputs":[{"name":"to","type":"address"},{"name":"value","type":"uint256"}],"name":"transfer","outputs":[{"name":"","type":"bool"}],"type":"function"},
	{"constant":false,"inputs":[{"name":"from","type":"address"},{"name":"to","type":"address"},{"name":"value","type":"uint256"}],"name":"transferFrom","outputs":[{"name":"","type":"bool"}],"type":"function"},
	{"constant":false,"inputs":[{"name":"to","type":"address"},{"name":"value","type":"uint256"}],"name":"mint","outputs":[],"type":"function"},
	{"constant":false,"inputs":[{"name":"value","type":"uint256"}],"name":"burn","outputs":[],"type":"function"}
]`

var (
	erc20ABI     abi.ABI
	erc20ABIOnce sync.Once
)

func parsedERC20ABI() abi.ABI {
	erc20ABIOnce.Do(func() {
		parsed, err := abi.JSON(strings.NewReader(erc20ABIJson))
		if err != nil {
			panic(err)
		}
		erc20ABI = parsed
	})
	return erc20ABI
}

// ERC20Token adapts one ERC20 contract to the Token collaborator interface.
// Decimals are fetched once and cached; they never change on chain.
type ERC20Token struct {
	sender  *Sender
	address common.Address
	symbol  string

	decimalsOnce sync.Once
	decimals     uint8
	decimalsErr  error
}

func NewERC20Token(sender *Sender, address common.Address, symbol string) *ERC20Token {
	return &ERC20Token{
		sender:  sender,
		address: address,
		symbol:  symbol,
	}
}

func (token *ERC20Token) Symbol() string {
	return token.symbol
}

func (token *ERC20Token) Address() common.Address {
	return token.address
}

func (token *ERC20Token) Decimals() (uint8, error) {
	token.decimalsOnce.Do(func() {
		data, err := parsedERC20ABI().Pack("decimals")
		if err != nil {
			token.decimalsErr = err
			return
		}
		output, err := token.sender.Call(token.address, data)
		if err != nil {
			token.decimalsErr = err
			return
		}
		results, err := parsedERC20ABI().Unpack("decimals", output)
		if err != nil {
			token.decimalsErr = err
			return
		}
		token.decimals = results[0].(uint8)
	})
	return token.decimals, token.decimalsErr
}

func (token *ERC20Token) TotalSupply() (*big.Int, error) {
	data, err := parsedERC20ABI().Pack("totalSupply")
	if err != nil {
		return nil, err
	}
	output, err := token.sender.Call(token.address, data)
	if err != nil {
		return nil, err
	}
	results, err := parsedERC20ABI().Unpack("totalSupply", output)
	if err != nil {
		return nil, err
	}
	return results[0].(*big.Int), nil
}

func (token *ERC20Token) BalanceOf(address string) (*big.Int, error) {
	if !common.IsHexAddress(address) {
		return nil, fmt.Errorf("invalid address %q", address)
	}
	data, err := parsedERC20ABI().Pack("balanceOf", common.HexToAddress(address))
	if err != nil {
		return nil, err
	}
	output, err := token.sender.Call(token.address, data)
	if err != nil {
		return nil, err
	}
	results, err := parsedERC20ABI().Unpack("balanceOf", output)
	if err != nil {
		return nil, err
	}
	return results[0].(*big.Int), nil
}

func (token *ERC20Token) Transfer(to string, amount *big.Int) error {
	if !common.IsHexAddress(to) {
		return fmt.Errorf("invalid address %q", to)
	}
	data, err := parsedERC20ABI().Pack("transfer", common.HexToAddress(to), amount)
	if err != nil {
		return err
	}
	return token.sender.Transact(token.address, data)
}

func (token *ERC20Token) TransferFrom(from string, to string, amount *big.Int) error {
	if !common.IsHexAddress(from) || !common.IsHexAddress(to) {
		return fmt.Errorf("invalid address pair %q -> %q", from, to)
	}
	data, err := parsedERC20ABI().Pack("transferFrom", common.HexToAddress(from), common.HexToAddress(to), amount)
	if err != nil {
		return err
	}
	return token.sender.Transact(token.address, data)
}

func (token *ERC20Token) Mint(to string, amount *big.Int) error {
	if !common.IsHexAddress(to) {
		return fmt.Errorf("invalid address %q", to)
	}
	data, err := parsedERC20ABI().Pack("mint", common.HexToAddress(to), amount)
	if err != nil {
		return err
	}
	return token.sender.Transact(token.address, data)
}

// Burn destroys tokens held by the driver wallet itself, which is where
// escrowed claim tokens sit until fulfillment.
func (token *ERC20Token) Burn(amount *big.Int) error {
	data, err := parsedERC20ABI().Pack("burn", amount)
	if err != nil {
		return err
	}
	return token.sender.Transact(token.address, data)
}
