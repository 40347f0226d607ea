package config

import (
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github/chapool/go-wallet-engine/internal/util"
	"github/chapool/go-wallet-engine/internal/wallet/chain"
)

const (
	FeeModeEIP1559 = "eip1559"
	FeeModeLegacy  = "legacy"
)

type Logger struct {
	Level              zerolog.Level
	RequestLevel       zerolog.Level
	PrettyPrintConsole bool
	Caller             bool
}

// Retry is the provider retry policy.
type Retry struct {
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
	Multiplier  float64
	Jitter      float64
}

type EVM struct {
	// RPCURL may list several endpoints separated by commas for failover.
	RPCURL  string
	ChainID int64
	FeeMode string
}

type Bitcoin struct {
	EsploraURL      string
	Network         string
	AddressType     string
	AllowTaproot    bool
	FallbackFeeRate float64 // sat/vB used when the provider has no estimate
	FeeTargetBlocks int
	// ReservationTTL frees inputs of a broadcast transaction that are still unspent after it.
	ReservationTTL time.Duration
}

type Solana struct {
	RPCURL     string
	Commitment string
}

type Wallet struct {
	EntropyBits       int
	MinPasswordLength int
}

type Keystore struct {
	Dir     string
	ScryptN int
	ScryptP int
}

// Engine holds every setting of a wallet engine process.
type Engine struct {
	Logger      Logger
	Retry       Retry
	CallTimeout time.Duration
	EVM         EVM
	Bitcoin     Bitcoin
	Solana      Solana
	Keystore    Keystore
	Wallet      Wallet
}

// DefaultServiceConfigFromEnv returns the engine config with every value
// overridable through WALLET_* environment variables.
func DefaultServiceConfigFromEnv() Engine {
	return Engine{
		Logger: Logger{
			Level:              parseLevel(util.GetEnv("WALLET_LOGGER_LEVEL", zerolog.InfoLevel.String()), zerolog.InfoLevel),
			RequestLevel:       parseLevel(util.GetEnv("WALLET_LOGGER_REQUEST_LEVEL", zerolog.DebugLevel.String()), zerolog.DebugLevel),
			PrettyPrintConsole: util.GetEnvAsBool("WALLET_LOGGER_PRETTY_PRINT_CONSOLE", false),
			Caller:             util.GetEnvAsBool("WALLET_LOGGER_CALLER", false),
		},
		Retry: Retry{
			MaxAttempts: util.GetEnvAsInt("WALLET_RETRY_MAX_ATTEMPTS", 4),
			BaseDelay:   util.GetEnvAsDuration("WALLET_RETRY_BASE_DELAY", 200*time.Millisecond),
			MaxDelay:    util.GetEnvAsDuration("WALLET_RETRY_MAX_DELAY", 5*time.Second),
			Multiplier:  util.GetEnvAsFloat("WALLET_RETRY_MULTIPLIER", 2),
			Jitter:      util.GetEnvAsFloat("WALLET_RETRY_JITTER", 0.2),
		},
		CallTimeout: util.GetEnvAsDuration("WALLET_CALL_TIMEOUT", 10*time.Second),
		EVM: EVM{
			RPCURL:  util.GetEnv("WALLET_EVM_RPC_URL", "http://127.0.0.1:8545"),
			ChainID: util.GetEnvAsInt64("WALLET_EVM_CHAIN_ID", 1),
			FeeMode: util.GetEnvEnum("WALLET_EVM_FEE_MODE", FeeModeEIP1559, []string{FeeModeEIP1559, FeeModeLegacy}),
		},
		Bitcoin: Bitcoin{
			EsploraURL:      util.GetEnv("WALLET_BITCOIN_ESPLORA_URL", "https://blockstream.info/testnet/api"),
			Network:         util.GetEnv("WALLET_BITCOIN_NETWORK", string(chain.BitcoinTestnet3)),
			AddressType:     util.GetEnv("WALLET_BITCOIN_ADDRESS_TYPE", string(chain.P2WPKH)),
			AllowTaproot:    util.GetEnvAsBool("WALLET_BITCOIN_ALLOW_TAPROOT", false),
			FallbackFeeRate: util.GetEnvAsFloat("WALLET_BITCOIN_FALLBACK_FEE_RATE", 5),
			FeeTargetBlocks: util.GetEnvAsInt("WALLET_BITCOIN_FEE_TARGET_BLOCKS", 6),
			ReservationTTL:  util.GetEnvAsDuration("WALLET_BITCOIN_RESERVATION_TTL", 30*time.Minute),
		},
		Solana: Solana{
			RPCURL:     util.GetEnv("WALLET_SOLANA_RPC_URL", "https://api.devnet.solana.com"),
			Commitment: util.GetEnvEnum("WALLET_SOLANA_COMMITMENT", "confirmed", []string{"processed", "confirmed", "finalized"}),
		},
		Keystore: Keystore{
			Dir:     util.GetEnv("WALLET_KEYSTORE_DIR", ".wallets"),
			ScryptN: util.GetEnvAsInt("WALLET_KEYSTORE_SCRYPT_N", 1<<18),
			ScryptP: util.GetEnvAsInt("WALLET_KEYSTORE_SCRYPT_P", 1),
		},
		Wallet: Wallet{
			EntropyBits:       util.GetEnvAsInt("WALLET_WALLET_ENTROPY_BITS", 256),
			MinPasswordLength: util.GetEnvAsInt("WALLET_WALLET_MIN_PASSWORD_LENGTH", 8),
		},
	}
}

// Validate checks values that cannot be defaulted safely.
func (e Engine) Validate() error {
	if _, err := chain.ParseBitcoinNetwork(e.Bitcoin.Network); err != nil {
		return errors.Wrap(err, "invalid bitcoin network")
	}
	if _, err := chain.ParseBitcoinAddressType(e.Bitcoin.AddressType); err != nil {
		return errors.Wrap(err, "invalid bitcoin address type")
	}
	if e.EVM.FeeMode != FeeModeEIP1559 && e.EVM.FeeMode != FeeModeLegacy {
		return errors.Errorf("invalid evm fee mode %q", e.EVM.FeeMode)
	}
	if e.Retry.MaxAttempts < 1 {
		return errors.Errorf("retry max attempts must be >= 1, got %d", e.Retry.MaxAttempts)
	}
	if e.Retry.Multiplier < 1 {
		return errors.Errorf("retry multiplier must be >= 1, got %v", e.Retry.Multiplier)
	}
	if e.Retry.Jitter < 0 || e.Retry.Jitter > 1 {
		return errors.Errorf("retry jitter must be within [0,1], got %v", e.Retry.Jitter)
	}
	if e.CallTimeout <= 0 {
		return errors.New("call timeout must be positive")
	}
	if e.Bitcoin.ReservationTTL <= 0 {
		return errors.New("bitcoin reservation ttl must be positive")
	}
	if e.Keystore.ScryptN <= 1 || e.Keystore.ScryptN&(e.Keystore.ScryptN-1) != 0 {
		return errors.Errorf("keystore scrypt N must be a power of two > 1, got %d", e.Keystore.ScryptN)
	}

	switch e.Wallet.EntropyBits {
	case 128, 160, 192, 224, 256:
	default:
		return errors.Errorf("wallet entropy bits must be one of 128, 160, 192, 224, 256, got %d", e.Wallet.EntropyBits)
	}
	if e.Wallet.MinPasswordLength < 1 {
		return errors.Errorf("wallet min password length must be >= 1, got %d", e.Wallet.MinPasswordLength)
	}

	return nil
}

func parseLevel(s string, fallback zerolog.Level) zerolog.Level {
	level, err := zerolog.ParseLevel(s)
	if err != nil {
		return fallback
	}
	return level
}
