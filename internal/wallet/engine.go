package wallet

import (
	"net/http"

	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/shopspring/decimal"
	"github/chapool/go-wallet-engine/internal/config"
	"github/chapool/go-wallet-engine/internal/metrics"
	"github/chapool/go-wallet-engine/internal/wallet/address"
	"github/chapool/go-wallet-engine/internal/wallet/balance"
	"github/chapool/go-wallet-engine/internal/wallet/chain"
	"github/chapool/go-wallet-engine/internal/wallet/defi"
	"github/chapool/go-wallet-engine/internal/wallet/keystore"
	"github/chapool/go-wallet-engine/internal/wallet/provider"
	"github/chapool/go-wallet-engine/internal/wallet/txbuilder"
)

const mainnetChainID = 1

// Engine bundles the components of one wallet engine process.
type Engine struct {
	Config    config.Engine
	Codec     address.Codec
	Providers txbuilder.Providers
	Builder   txbuilder.Builder
	DeFi      defi.Builder
	Wallets   Service
	Balances  balance.Service
	Metrics   *metrics.Provider
}

func newEngine(
	cfg config.Engine,
	codec address.Codec,
	providers txbuilder.Providers,
	builder txbuilder.Builder,
	defiBuilder defi.Builder,
	wallets Service,
	balances balance.Service,
	m *metrics.Provider,
) *Engine {
	return &Engine{
		Config:    cfg,
		Codec:     codec,
		Providers: providers,
		Builder:   builder,
		DeFi:      defiBuilder,
		Wallets:   wallets,
		Balances:  balances,
		Metrics:   m,
	}
}

// NewCodec creates the address codec for the configured Bitcoin network.
//
//nolint:ireturn // Returning interface is intentional for dependency injection
func NewCodec(cfg config.Engine) (address.Codec, error) {
	network, err := chain.ParseBitcoinNetwork(cfg.Bitcoin.Network)
	if err != nil {
		return nil, err
	}
	addrType, err := chain.ParseBitcoinAddressType(cfg.Bitcoin.AddressType)
	if err != nil {
		return nil, err
	}

	return address.NewCodec(address.Options{
		BitcoinNetwork:     network,
		BitcoinAddressType: addrType,
		AllowTaproot:       cfg.Bitcoin.AllowTaproot,
	})
}

func NewMetrics(registry prometheus.Registerer) *metrics.Provider {
	return metrics.NewProvider(registry)
}

func NewProviderOptions(cfg config.Engine, m *metrics.Provider) provider.Options {
	return provider.Options{
		Retry: provider.RetryPolicy{
			MaxAttempts: cfg.Retry.MaxAttempts,
			BaseDelay:   cfg.Retry.BaseDelay,
			MaxDelay:    cfg.Retry.MaxDelay,
			Multiplier:  cfg.Retry.Multiplier,
			Jitter:      cfg.Retry.Jitter,
		},
		CallTimeout: cfg.CallTimeout,
		Metrics:     m,
	}
}

// NewProviders connects every chain with a configured endpoint. A chain without one stays nil
// and its operations fail with UnsupportedChain.
func NewProviders(cfg config.Engine, opts provider.Options) (txbuilder.Providers, error) {
	var (
		providers txbuilder.Providers
		err       error
	)

	if urls := chain.ParseRPCURLs(cfg.EVM.RPCURL); len(urls) > 0 {
		if providers.EVM, err = provider.NewEVMClient(urls, opts); err != nil {
			return providers, errors.Wrap(err, "failed to create evm provider")
		}
	}

	if cfg.Bitcoin.EsploraURL != "" {
		httpClient := &http.Client{Timeout: cfg.CallTimeout}
		fallback := decimal.NewFromFloat(cfg.Bitcoin.FallbackFeeRate)
		if providers.Bitcoin, err = provider.NewEsploraClient(cfg.Bitcoin.EsploraURL, httpClient, fallback, opts); err != nil {
			return providers, errors.Wrap(err, "failed to create bitcoin provider")
		}
	}

	if cfg.Solana.RPCURL != "" {
		if providers.Solana, err = provider.NewSolanaClient(cfg.Solana.RPCURL, cfg.Solana.Commitment, opts); err != nil {
			return providers, errors.Wrap(err, "failed to create solana provider")
		}
	}

	return providers, nil
}

//nolint:ireturn // Returning interface is intentional for dependency injection
func NewTxBuilder(cfg config.Engine, codec address.Codec, providers txbuilder.Providers) txbuilder.Builder {
	return txbuilder.NewBuilder(codec, providers, txbuilder.Options{
		LegacyFees:      cfg.EVM.FeeMode == config.FeeModeLegacy,
		FeeTargetBlocks: cfg.Bitcoin.FeeTargetBlocks,
		ReservationTTL:  cfg.Bitcoin.ReservationTTL,
	})
}

// NewDeFiBuilder uses the Ethereum mainnet deployments when the EVM chain is mainnet. Other
// chains get no contracts, so their protocol operations fail until addresses are supplied.
//
//nolint:ireturn // Returning interface is intentional for dependency injection
func NewDeFiBuilder(cfg config.Engine, codec address.Codec) defi.Builder {
	var contracts defi.Contracts
	if cfg.EVM.ChainID == mainnetChainID {
		contracts = defi.MainnetContracts()
	}
	return defi.NewBuilder(codec, defi.Options{Contracts: contracts})
}

// NewFileStore keeps wallets under the configured keystore directory.
//
//nolint:ireturn // Returning interface is intentional for dependency injection
func NewFileStore(cfg config.Engine) (Store, error) {
	return keystore.NewFileStore(cfg.Keystore.Dir)
}

//nolint:ireturn // Returning interface is intentional for dependency injection
func NewKeystore(cfg config.Engine, store Store) (keystore.Service, error) {
	params := keystore.DefaultScryptParams()
	params.N = cfg.Keystore.ScryptN
	params.P = cfg.Keystore.ScryptP
	return keystore.NewService(store, params)
}

func NewOptions(cfg config.Engine) Options {
	return Options{
		EntropyBits:       cfg.Wallet.EntropyBits,
		MinPasswordLength: cfg.Wallet.MinPasswordLength,
	}
}
