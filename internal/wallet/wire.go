//go:build wireinject

package wallet

import (
	"github.com/google/wire"
	"github.com/prometheus/client_golang/prometheus"
	"github/chapool/go-wallet-engine/internal/config"
	"github/chapool/go-wallet-engine/internal/wallet/balance"
	"github/chapool/go-wallet-engine/internal/wallet/seed"
	"github/chapool/go-wallet-engine/internal/wallet/signer"
)

// INJECTORS - https://github.com/google/wire/blob/main/docs/guide.md#injectors

// engineSet groups the providers required for initing an engine
var engineSet = wire.NewSet(
	newEngine,
	NewCodec,
	NewMetrics,
	NewProviderOptions,
	NewProviders,
	NewTxBuilder,
	NewDeFiBuilder,
	NewKeystore,
	NewOptions,
	NewService,
	balance.NewService,
	seed.NewManager,
	signer.NewService,
)

// InitEngine returns a new Engine keeping wallets in the configured keystore directory.
func InitEngine(
	_ config.Engine,
	_ prometheus.Registerer,
) (*Engine, error) {
	wire.Build(engineSet, NewFileStore)
	return new(Engine), nil
}

// InitEngineWithStore returns a new Engine on top of the given Store.
// All the other components are initialized via go wire according to the configuration.
func InitEngineWithStore(
	_ config.Engine,
	_ prometheus.Registerer,
	_ Store,
) (*Engine, error) {
	wire.Build(engineSet)
	return new(Engine), nil
}
