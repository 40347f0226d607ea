package provider

import (
	"bytes"
	"context"
	"encoding/hex"
	"encoding/json"
	"io"
	"math/big"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"

	"github.com/btcsuite/btcd/wire"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github/chapool/go-wallet-engine/internal/wallet/chain"
	"github/chapool/go-wallet-engine/internal/wallet/werrors"
)

const maxResponseBytes = 4 << 20

type esploraClient struct {
	baseURL         string
	http            *http.Client
	caller          *caller
	fallbackFeeRate decimal.Decimal
}

type esploraStats struct {
	FundedTxoSum int64 `json:"funded_txo_sum"`
	SpentTxoSum  int64 `json:"spent_txo_sum"`
}

type esploraAddress struct {
	ChainStats   esploraStats `json:"chain_stats"`
	MempoolStats esploraStats `json:"mempool_stats"`
}

type esploraTxStatus struct {
	Confirmed   bool   `json:"confirmed"`
	BlockHeight uint64 `json:"block_height"`
}

type esploraUTXO struct {
	TxID   string          `json:"txid"`
	Vout   uint32          `json:"vout"`
	Value  int64           `json:"value"`
	Status esploraTxStatus `json:"status"`
}

// NewEsploraClient creates a Bitcoin provider for an Esplora REST API
// (e.g. https://blockstream.info/testnet/api). fallbackFeeRate (sat/vB) is used when
// the node returns no estimate for the requested target.
//
//nolint:ireturn // Returning interface is intentional for dependency injection
func NewEsploraClient(baseURL string, httpClient *http.Client, fallbackFeeRate decimal.Decimal, opts Options) (Bitcoin, error) {
	if _, err := url.ParseRequestURI(baseURL); err != nil {
		return nil, errors.Wrap(err, "invalid esplora url")
	}
	c, err := newCaller(chain.Bitcoin, opts)
	if err != nil {
		return nil, err
	}
	if httpClient == nil {
		httpClient = http.DefaultClient
	}

	return &esploraClient{
		baseURL:         strings.TrimRight(baseURL, "/"),
		http:            httpClient,
		caller:          c,
		fallbackFeeRate: fallbackFeeRate,
	}, nil
}

func (c *esploraClient) Chain() chain.Kind {
	return chain.Bitcoin
}

// GetBalance returns confirmed plus mempool balance in satoshi.
func (c *esploraClient) GetBalance(ctx context.Context, address string) (*big.Int, error) {
	var info esploraAddress
	err := c.caller.do(ctx, OpGetBalance, func(ctx context.Context, _ int) error {
		return c.getJSON(ctx, "/address/"+url.PathEscape(address), &info)
	})
	if err != nil {
		return nil, err
	}

	sats := info.ChainStats.FundedTxoSum - info.ChainStats.SpentTxoSum +
		info.MempoolStats.FundedTxoSum - info.MempoolStats.SpentTxoSum

	return big.NewInt(sats), nil
}

func (c *esploraClient) GetUTXOs(ctx context.Context, address string) ([]UTXO, error) {
	var raw []esploraUTXO
	err := c.caller.do(ctx, OpGetUTXOs, func(ctx context.Context, _ int) error {
		return c.getJSON(ctx, "/address/"+url.PathEscape(address)+"/utxo", &raw)
	})
	if err != nil {
		return nil, err
	}

	out := make([]UTXO, 0, len(raw))
	for _, u := range raw {
		out = append(out, UTXO{TxID: u.TxID, Vout: u.Vout, Value: u.Value, Confirmed: u.Status.Confirmed})
	}

	return out, nil
}

// EstimateFeeRate picks the estimate of the largest target not above targetBlocks.
func (c *esploraClient) EstimateFeeRate(ctx context.Context, targetBlocks int) (decimal.Decimal, error) {
	var estimates map[string]float64
	err := c.caller.do(ctx, OpEstimateFeeRate, func(ctx context.Context, _ int) error {
		return c.getJSON(ctx, "/fee-estimates", &estimates)
	})
	if err != nil {
		return decimal.Zero, err
	}

	targets := make([]int, 0, len(estimates))
	for k := range estimates {
		if n, err := strconv.Atoi(k); err == nil {
			targets = append(targets, n)
		}
	}
	sort.Sort(sort.Reverse(sort.IntSlice(targets)))

	for _, n := range targets {
		if n <= targetBlocks {
			if rate := estimates[strconv.Itoa(n)]; rate > 0 {
				return decimal.NewFromFloat(rate), nil
			}
		}
	}

	if c.fallbackFeeRate.IsPositive() {
		return c.fallbackFeeRate, nil
	}

	return decimal.Zero, werrors.Newf(werrors.KindProviderUnavailable, "no fee estimate for %d blocks", targetBlocks)
}

// BroadcastRaw posts the hex transaction; the txid is computed locally.
func (c *esploraClient) BroadcastRaw(ctx context.Context, raw []byte) (string, error) {
	var tx wire.MsgTx
	if err := tx.Deserialize(bytes.NewReader(raw)); err != nil {
		return "", werrors.Wrap(werrors.KindInvalidRequest, err, "failed to decode signed transaction")
	}
	txID := tx.TxHash().String()
	body := hex.EncodeToString(raw)

	err := c.caller.do(ctx, OpBroadcast, func(ctx context.Context, attempt int) error {
		_, err := c.do(ctx, http.MethodPost, "/tx", strings.NewReader(body))
		if err != nil && attempt > 1 && IsAlreadyKnown(err) {
			return nil
		}
		return err
	})
	if err != nil {
		return "", err
	}

	return txID, nil
}

func (c *esploraClient) GetTransactionStatus(ctx context.Context, txID string) (*Status, error) {
	if !isHexHash(txID) {
		return nil, werrors.Newf(werrors.KindInvalidRequest, "invalid transaction id %q", txID)
	}

	var status *Status
	err := c.caller.do(ctx, OpGetStatus, func(ctx context.Context, _ int) error {
		var st esploraTxStatus
		err := c.getJSON(ctx, "/tx/"+txID+"/status", &st)

		var statusErr *StatusError
		if errors.As(err, &statusErr) && statusErr.Code == http.StatusNotFound {
			status = &Status{State: StatePending, Reason: "unknown to provider"}
			return nil
		}
		if err != nil {
			return err
		}

		if !st.Confirmed {
			status = &Status{State: StatePending, Reason: "in mempool"}
			return nil
		}

		tipBody, err := c.do(ctx, http.MethodGet, "/blocks/tip/height", nil)
		if err != nil {
			return err
		}
		tip, err := strconv.ParseUint(strings.TrimSpace(string(tipBody)), 10, 64)
		if err != nil {
			return errors.Wrap(err, "failed to parse tip height")
		}

		var confirmations uint64
		if tip >= st.BlockHeight {
			confirmations = tip - st.BlockHeight + 1
		}
		status = &Status{State: StateConfirmed, Confirmations: confirmations}
		return nil
	})

	return status, err
}

func (c *esploraClient) getJSON(ctx context.Context, path string, out interface{}) error {
	body, err := c.do(ctx, http.MethodGet, path, nil)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(body, out); err != nil {
		return werrors.Wrapf(werrors.KindProviderUnavailable, err, "failed to decode %s", path)
	}
	return nil
}

func (c *esploraClient) do(ctx context.Context, method, path string, body io.Reader) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create request")
	}
	if body != nil {
		req.Header.Set("Content-Type", "text/plain")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to call %s", path)
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, errors.Wrap(err, "failed to read response")
	}

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return nil, &StatusError{Code: resp.StatusCode, Body: strings.TrimSpace(string(payload))}
	}

	return payload, nil
}
