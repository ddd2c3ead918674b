package chain

import (
	"encoding/json"
	"fmt"
	"math/big"
	"net/http"
	"net/url"
	"time"
)

var ErrorInvalidValuation = fmt.Errorf("invalid valuation response")

// ValuationClient reads the custodian's asset-valuation service. The service
// reports the fiat value of all real assets backing a token id as of a date,
// fixed point with 6 implied decimals, serialized as a decimal string.
type ValuationClient struct {
	baseUrl string
	client  *http.Client
}

func NewValuationClient(baseUrl string) *ValuationClient {
	return &ValuationClient{
		baseUrl: baseUrl,
		client:  &http.Client{Timeout: 15 * time.Second},
	}
}

type valuationResponse struct {
	TokenID  string `json:"token_id"`
	Currency string `json:"currency"`
	AsOfDate string `json:"as_of_date"`
	Value    string `json:"value"`
}

func (client *ValuationClient) GetValueByTokenId(tokenID string, fiatCurrency string, asOfDate time.Time) (*big.Int, error) {
	endpoint := fmt.Sprintf("%v/v1/valuations/%v?currency=%v&as_of=%v",
		client.baseUrl,
		url.PathEscape(tokenID),
		url.QueryEscape(fiatCurrency),
		asOfDate.Format("2006-01-02"),
	)

	resp, err := client.client.Get(endpoint)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("valuation service returned status %v", resp.StatusCode)
	}

	var body valuationResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, err
	}

	value, ok := new(big.Int).SetString(body.Value, 10)
	if !ok || value.Sign() < 0 {
		return nil, fmt.Errorf("%w: %q", ErrorInvalidValuation, body.Value)
	}

	return value, nil
}
