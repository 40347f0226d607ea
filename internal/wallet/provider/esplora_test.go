package provider_test

import (
	"bytes"
	"context"
	"encoding/hex"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/wire"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github/chapool/go-wallet-engine/internal/metrics"
	"github/chapool/go-wallet-engine/internal/wallet/provider"
	"github/chapool/go-wallet-engine/internal/wallet/werrors"
)

const testTxID = "4a5e1e4baab89f3a32518a88c31bc87f618f76673e2cc77ab2127b7afdeda33b"

func newEsplora(t *testing.T, handler http.Handler, opts provider.Options) provider.Bitcoin {
	t.Helper()

	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	client, err := provider.NewEsploraClient(srv.URL, srv.Client(), decimal.NewFromInt(3), opts)
	require.NoError(t, err)

	return client
}

func sampleRawTx(t *testing.T) ([]byte, string) {
	t.Helper()

	tx := wire.NewMsgTx(wire.TxVersion)
	prev, err := chainhash.NewHashFromStr(testTxID)
	require.NoError(t, err)
	tx.AddTxIn(wire.NewTxIn(wire.NewOutPoint(prev, 0), []byte{0x51}, nil))
	tx.AddTxOut(wire.NewTxOut(1000, []byte{0x51}))

	var buf bytes.Buffer
	require.NoError(t, tx.Serialize(&buf))

	return buf.Bytes(), tx.TxHash().String()
}

func TestEsploraBalanceAndUTXOs(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/address/tb1qxyz", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = io.WriteString(w, `{"chain_stats":{"funded_txo_sum":150000,"spent_txo_sum":50000},"mempool_stats":{"funded_txo_sum":2000,"spent_txo_sum":0}}`)
	})
	mux.HandleFunc("/address/tb1qxyz/utxo", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = io.WriteString(w, `[{"txid":"`+testTxID+`","vout":1,"value":70000,"status":{"confirmed":true,"block_height":100}},
			{"txid":"`+testTxID+`","vout":2,"value":32000,"status":{"confirmed":false}}]`)
	})

	client := newEsplora(t, mux, fastOptions())

	balance, err := client.GetBalance(context.Background(), "tb1qxyz")
	require.NoError(t, err)
	assert.Equal(t, int64(102000), balance.Int64())

	utxos, err := client.GetUTXOs(context.Background(), "tb1qxyz")
	require.NoError(t, err)
	require.Len(t, utxos, 2)
	assert.Equal(t, provider.UTXO{TxID: testTxID, Vout: 1, Value: 70000, Confirmed: true}, utxos[0])
	assert.Equal(t, testTxID+":2", utxos[1].Outpoint())
}

func TestEsploraRetriesTransientFailures(t *testing.T) {
	var calls int32
	handler := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if atomic.AddInt32(&calls, 1) < 3 {
			http.Error(w, "upstream busy", http.StatusServiceUnavailable)
			return
		}
		_, _ = io.WriteString(w, `{"chain_stats":{"funded_txo_sum":10,"spent_txo_sum":0},"mempool_stats":{}}`)
	})

	reg := prometheus.NewRegistry()
	opts := fastOptions()
	opts.Metrics = metrics.NewProvider(reg)
	client := newEsplora(t, handler, opts)

	balance, err := client.GetBalance(context.Background(), "addr")
	require.NoError(t, err)
	assert.Equal(t, int64(10), balance.Int64())
	assert.Equal(t, int32(3), atomic.LoadInt32(&calls))
	assert.InDelta(t, 2, testutil.ToFloat64(opts.Metrics.Calls.WithLabelValues("bitcoin", provider.OpGetBalance, metrics.OutcomeRetryable)), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(opts.Metrics.Calls.WithLabelValues("bitcoin", provider.OpGetBalance, metrics.OutcomeSuccess)), 0)
}

func TestEsploraRetriesExhausted(t *testing.T) {
	var calls int32
	handler := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		atomic.AddInt32(&calls, 1)
		http.Error(w, "down", http.StatusBadGateway)
	})

	client := newEsplora(t, handler, fastOptions())

	_, err := client.GetUTXOs(context.Background(), "addr")
	require.Error(t, err)
	assert.True(t, werrors.Is(err, werrors.KindProviderUnavailable))
	assert.True(t, werrors.IsRetryable(err))
	assert.Equal(t, int32(3), atomic.LoadInt32(&calls))
}

func TestEsploraBroadcast(t *testing.T) {
	raw, txID := sampleRawTx(t)

	var got string
	mux := http.NewServeMux()
	mux.HandleFunc("/tx", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		body, _ := io.ReadAll(r.Body)
		got = string(body)
		_, _ = io.WriteString(w, txID)
	})

	id, err := newEsplora(t, mux, fastOptions()).BroadcastRaw(context.Background(), raw)
	require.NoError(t, err)
	assert.Equal(t, txID, id)
	assert.Equal(t, hex.EncodeToString(raw), got)
}

func TestEsploraBroadcastRejectedIsTerminal(t *testing.T) {
	raw, _ := sampleRawTx(t)

	var calls int32
	handler := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		atomic.AddInt32(&calls, 1)
		http.Error(w, `sendrawtransaction RPC error: {"code":-25,"message":"bad-txns-inputs-missingorspent"}`, http.StatusBadRequest)
	})

	_, err := newEsplora(t, handler, fastOptions()).BroadcastRaw(context.Background(), raw)
	require.Error(t, err)
	assert.True(t, werrors.Is(err, werrors.KindBroadcastRejected))
	assert.Equal(t, "bad-txns", werrors.Reason(err))
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestEsploraBroadcastAlreadyKnownAfterRetry(t *testing.T) {
	raw, txID := sampleRawTx(t)

	var calls int32
	handler := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if atomic.AddInt32(&calls, 1) == 1 {
			http.Error(w, "timeout upstream", http.StatusGatewayTimeout)
			return
		}
		http.Error(w, `sendrawtransaction RPC error: {"code":-27,"message":"txn-already-in-mempool"}`, http.StatusBadRequest)
	})

	id, err := newEsplora(t, handler, fastOptions()).BroadcastRaw(context.Background(), raw)
	require.NoError(t, err)
	assert.Equal(t, txID, id)
}

func TestEsploraBroadcastRejectsGarbage(t *testing.T) {
	client := newEsplora(t, http.NotFoundHandler(), fastOptions())

	_, err := client.BroadcastRaw(context.Background(), []byte{0x01, 0x02})
	require.Error(t, err)
	assert.True(t, werrors.Is(err, werrors.KindInvalidRequest))
}

func TestEsploraTransactionStatus(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/tx/"+testTxID+"/status", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = io.WriteString(w, `{"confirmed":true,"block_height":100,"block_hash":"00"}`)
	})
	mux.HandleFunc("/blocks/tip/height", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = io.WriteString(w, "105")
	})
	client := newEsplora(t, mux, fastOptions())

	st, err := client.GetTransactionStatus(context.Background(), testTxID)
	require.NoError(t, err)
	assert.Equal(t, provider.StateConfirmed, st.State)
	assert.Equal(t, uint64(6), st.Confirmations)

	unknown := "00000000000000000000000000000000000000000000000000000000000000aa"
	st, err = client.GetTransactionStatus(context.Background(), unknown)
	require.NoError(t, err)
	assert.Equal(t, provider.StatePending, st.State)

	_, err = client.GetTransactionStatus(context.Background(), "nope")
	require.Error(t, err)
	assert.True(t, werrors.Is(err, werrors.KindInvalidRequest))
}

func TestEsploraFeeRate(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/fee-estimates", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = io.WriteString(w, `{"1":25.5,"3":12.25,"6":8.1,"144":1.0}`)
	})
	client := newEsplora(t, mux, fastOptions())

	rate, err := client.EstimateFeeRate(context.Background(), 6)
	require.NoError(t, err)
	assert.Equal(t, "8.1", rate.String())

	rate, err = client.EstimateFeeRate(context.Background(), 4)
	require.NoError(t, err)
	assert.Equal(t, "12.25", rate.String())

	// below every target: fallback
	empty := newEsplora(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = io.WriteString(w, `{}`)
	}), fastOptions())
	rate, err = empty.EstimateFeeRate(context.Background(), 2)
	require.NoError(t, err)
	assert.Equal(t, "3", rate.String())
}

func TestEsploraCallTimeout(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(time.Second):
		}
	})
	opts := fastOptions()
	opts.CallTimeout = 20 * time.Millisecond
	opts.Retry.MaxAttempts = 2

	_, err := newEsplora(t, handler, opts).GetBalance(context.Background(), "addr")
	require.Error(t, err)
	assert.True(t, werrors.Is(err, werrors.KindTimeout))
}

func TestEsploraCallerCancellation(t *testing.T) {
	var calls int32
	handler := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		atomic.AddInt32(&calls, 1)
	})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := newEsplora(t, handler, fastOptions()).GetBalance(ctx, "addr")
	require.Error(t, err)
	assert.True(t, werrors.Is(err, werrors.KindTimeout))
	assert.Equal(t, int32(0), atomic.LoadInt32(&calls))
}
