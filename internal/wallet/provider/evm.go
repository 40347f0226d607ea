package provider

import (
	"context"
	"math/big"
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"github/chapool/go-wallet-engine/internal/wallet/chain"
	"github/chapool/go-wallet-engine/internal/wallet/werrors"
)

var balanceOfMethodID = common.Hex2Bytes("70a08231")

const baseFeeMultiplier = 2

// evmClient 封装以太坊 RPC 客户端，支持多个 URL 和故障转移
type evmClient struct {
	urls    []string
	clients []*ethclient.Client
	mu      sync.RWMutex
	current int // 当前使用的客户端索引

	caller *caller

	chainIDMu sync.Mutex
	chainID   *big.Int
}

// NewEVMClient creates an EVM provider over one or more JSON-RPC endpoints.
// A retryable failure moves the next attempt to the next endpoint.
//
//nolint:ireturn // Returning interface is intentional for dependency injection
func NewEVMClient(urls []string, opts Options) (EVM, error) {
	if len(urls) == 0 {
		return nil, errors.New("at least one RPC URL is required")
	}

	c, err := newCaller(chain.EVM, opts)
	if err != nil {
		return nil, err
	}

	clients := make([]*ethclient.Client, 0, len(urls))
	for _, url := range urls {
		client, err := ethclient.Dial(url)
		if err != nil {
			log.Warn().
				Str("url", url).
				Err(err).
				Msg("Failed to connect to RPC node, will retry on use")
			// 继续尝试其他 URL，不立即失败
			clients = append(clients, nil)
			continue
		}
		clients = append(clients, client)
	}

	if allClientsNil(clients) {
		return nil, errors.New("failed to connect to any RPC node")
	}

	return &evmClient{
		urls:    urls,
		clients: clients,
		caller:  c,
	}, nil
}

// allClientsNil 检查所有客户端是否都是 nil
func allClientsNil(clients []*ethclient.Client) bool {
	for _, client := range clients {
		if client != nil {
			return false
		}
	}
	return true
}

// Close 关闭所有客户端连接
func (c *evmClient) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, client := range c.clients {
		if client != nil {
			client.Close()
		}
	}
}

func (c *evmClient) Chain() chain.Kind {
	return chain.EVM
}

// GetBalance returns the balance of an address at the latest known block.
func (c *evmClient) GetBalance(ctx context.Context, address string) (*big.Int, error) {
	account, err := hexAddress(address)
	if err != nil {
		return nil, err
	}

	var balance *big.Int
	err = c.call(ctx, OpGetBalance, func(ctx context.Context, client *ethclient.Client, _ int) error {
		var err error
		balance, err = client.BalanceAt(ctx, account, nil)
		return errors.Wrap(err, "failed to get balance")
	})

	return balance, err
}

// GetTokenBalance returns the ERC20 token balance for the given account.
func (c *evmClient) GetTokenBalance(ctx context.Context, token string, account string) (*big.Int, error) {
	tokenAddress, err := hexAddress(token)
	if err != nil {
		return nil, err
	}
	holder, err := hexAddress(account)
	if err != nil {
		return nil, err
	}

	const abiPaddedAddressLength = 32
	data := make([]byte, 0, len(balanceOfMethodID)+abiPaddedAddressLength)
	data = append(data, balanceOfMethodID...)
	data = append(data, common.LeftPadBytes(holder.Bytes(), abiPaddedAddressLength)...)

	callMsg := ethereum.CallMsg{
		To:   &tokenAddress,
		Data: data,
	}

	var balance *big.Int
	err = c.call(ctx, OpGetTokenBalance, func(ctx context.Context, client *ethclient.Client, _ int) error {
		resp, err := client.CallContract(ctx, callMsg, nil)
		if err != nil {
			return errors.Wrap(err, "failed to call balanceOf")
		}
		balance = new(big.Int).SetBytes(resp)
		return nil
	})

	return balance, err
}

// GetNonce returns the pending nonce for the given address.
func (c *evmClient) GetNonce(ctx context.Context, address string) (uint64, error) {
	account, err := hexAddress(address)
	if err != nil {
		return 0, err
	}

	var nonce uint64
	err = c.call(ctx, OpGetNonce, func(ctx context.Context, client *ethclient.Client, _ int) error {
		var err error
		nonce, err = client.PendingNonceAt(ctx, account)
		return errors.Wrap(err, "failed to get pending nonce")
	})

	return nonce, err
}

// SuggestFees 建议 Gas 价格；支持 EIP-1559 时计算 maxFee = 2*baseFee + tip
func (c *evmClient) SuggestFees(ctx context.Context) (*Fees, error) {
	var fees *Fees
	err := c.call(ctx, OpSuggestFees, func(ctx context.Context, client *ethclient.Client, _ int) error {
		gasPrice, err := client.SuggestGasPrice(ctx)
		if err != nil {
			return errors.Wrap(err, "failed to suggest gas price")
		}

		header, err := client.HeaderByNumber(ctx, nil)
		if err != nil {
			return errors.Wrap(err, "failed to get latest header")
		}

		out := &Fees{GasPrice: gasPrice}
		if header.BaseFee != nil {
			tipCap, err := client.SuggestGasTipCap(ctx)
			if err != nil {
				return errors.Wrap(err, "failed to suggest gas tip cap")
			}
			out.BaseFee = new(big.Int).Set(header.BaseFee)
			out.MaxPriorityFeePerGas = tipCap
			out.MaxFeePerGas = new(big.Int).Add(new(big.Int).Mul(header.BaseFee, big.NewInt(baseFeeMultiplier)), tipCap)
		}
		fees = out
		return nil
	})

	return fees, err
}

// EstimateGas 估算 Gas 用量
func (c *evmClient) EstimateGas(ctx context.Context, msg ethereum.CallMsg) (uint64, error) {
	var gas uint64
	err := c.call(ctx, OpEstimateGas, func(ctx context.Context, client *ethclient.Client, _ int) error {
		var err error
		gas, err = client.EstimateGas(ctx, msg)
		return errors.Wrap(err, "failed to estimate gas")
	})

	return gas, err
}

// ChainID 获取链 ID，首次成功后缓存
func (c *evmClient) ChainID(ctx context.Context) (*big.Int, error) {
	c.chainIDMu.Lock()
	defer c.chainIDMu.Unlock()

	if c.chainID != nil {
		return new(big.Int).Set(c.chainID), nil
	}

	err := c.call(ctx, OpChainID, func(ctx context.Context, client *ethclient.Client, _ int) error {
		id, err := client.ChainID(ctx)
		if err != nil {
			return errors.Wrap(err, "failed to get chain ID")
		}
		c.chainID = id
		return nil
	})
	if err != nil {
		return nil, err
	}

	return new(big.Int).Set(c.chainID), nil
}

// BroadcastRaw 发送已签名的交易 (RLP / typed envelope)
func (c *evmClient) BroadcastRaw(ctx context.Context, raw []byte) (string, error) {
	tx := new(types.Transaction)
	if err := tx.UnmarshalBinary(raw); err != nil {
		return "", werrors.Wrap(werrors.KindInvalidRequest, err, "failed to decode signed transaction")
	}

	err := c.call(ctx, OpBroadcast, func(ctx context.Context, client *ethclient.Client, attempt int) error {
		err := client.SendTransaction(ctx, tx)
		if err != nil && attempt > 1 && IsAlreadyKnown(err) {
			// an earlier attempt reached the node
			return nil
		}
		return errors.Wrap(err, "failed to send transaction")
	})
	if err != nil {
		return "", err
	}

	return tx.Hash().Hex(), nil
}

// GetTransactionStatus maps the receipt: none -> pending, status 0 -> failed, else confirmed.
func (c *evmClient) GetTransactionStatus(ctx context.Context, txID string) (*Status, error) {
	if !isHexHash(txID) {
		return nil, werrors.Newf(werrors.KindInvalidRequest, "invalid transaction hash %q", txID)
	}
	hash := common.HexToHash(txID)

	var status *Status
	err := c.call(ctx, OpGetStatus, func(ctx context.Context, client *ethclient.Client, _ int) error {
		receipt, err := client.TransactionReceipt(ctx, hash)
		if errors.Is(err, ethereum.NotFound) {
			status = &Status{State: StatePending, Reason: "not yet mined"}
			return nil
		}
		if err != nil {
			return errors.Wrap(err, "failed to get transaction receipt")
		}

		if receipt.Status == types.ReceiptStatusFailed {
			status = &Status{State: StateFailed, Reason: "execution reverted"}
			return nil
		}

		head, err := client.BlockNumber(ctx)
		if err != nil {
			return errors.Wrap(err, "failed to get latest block number")
		}

		var confirmations uint64
		if receipt.BlockNumber != nil && receipt.BlockNumber.IsUint64() && head >= receipt.BlockNumber.Uint64() {
			confirmations = head - receipt.BlockNumber.Uint64() + 1
		}
		status = &Status{State: StateConfirmed, Confirmations: confirmations}
		return nil
	})

	return status, err
}

// call runs fn against the current endpoint and rotates to the next one on retryable failures.
func (c *evmClient) call(ctx context.Context, op string, fn func(ctx context.Context, client *ethclient.Client, attempt int) error) error {
	return c.caller.do(ctx, op, func(ctx context.Context, attempt int) error {
		client, idx, err := c.getClient()
		if err != nil {
			return err
		}

		if err := fn(ctx, client, attempt); err != nil {
			if werrors.IsRetryable(Classify(op, err)) {
				c.rotate(idx)
			}
			return err
		}
		return nil
	})
}

// getClient 获取当前可用的客户端，如果未连接则尝试重新连接
func (c *evmClient) getClient() (*ethclient.Client, int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for i := 0; i < len(c.clients); i++ {
		idx := (c.current + i) % len(c.clients)
		if c.clients[idx] != nil {
			c.current = idx
			return c.clients[idx], idx, nil
		}

		// 尝试重新连接
		client, err := ethclient.Dial(c.urls[idx])
		if err != nil {
			log.Warn().Str("url", c.urls[idx]).Err(err).Msg("RPC reconnect failed")
			continue
		}
		c.clients[idx] = client
		c.current = idx
		return client, idx, nil
	}

	return nil, 0, errors.New("all RPC clients are unavailable")
}

// rotate 将下一次调用切换到下一个节点
func (c *evmClient) rotate(failed int) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.current == failed && len(c.clients) > 1 {
		c.current = (failed + 1) % len(c.clients)
		log.Warn().Str("url", c.urls[failed]).Str("next", c.urls[c.current]).Msg("RPC node failed, switching endpoint")
	}
}

func hexAddress(s string) (common.Address, error) {
	if !common.IsHexAddress(s) {
		return common.Address{}, werrors.Newf(werrors.KindInvalidAddress, "invalid evm address %q", s)
	}
	return common.HexToAddress(s), nil
}

func isHexHash(s string) bool {
	s = strings.TrimPrefix(strings.TrimPrefix(s, "0x"), "0X")
	if len(s) != 2*common.HashLength {
		return false
	}
	for _, c := range s {
		if !strings.ContainsRune("0123456789abcdefABCDEF", c) {
			return false
		}
	}
	return true
}
