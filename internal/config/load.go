package config

import (
	"os"
	"strings"

	"github.com/pkg/errors"
	"github.com/spf13/viper"
	"github.com/subosito/gotenv"
)

const envPrefix = "WALLET"

// LoadDotEnv loads .env style files into the process environment without
// overriding variables that are already set. Missing files are skipped.
func LoadDotEnv(paths ...string) error {
	for _, p := range paths {
		if _, err := os.Stat(p); os.IsNotExist(err) {
			continue
		}
		if err := gotenv.Load(p); err != nil {
			return errors.Wrapf(err, "failed to load env file %s", p)
		}
	}

	return nil
}

// Load builds the engine config. Precedence: WALLET_* env > config file > defaults.
// An empty path skips the file layer. TOML, YAML and JSON are accepted.
func Load(path string) (Engine, error) {
	cfg := DefaultServiceConfigFromEnv()

	v := viper.New()
	setDefaults(v, cfg)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Engine{}, errors.Wrapf(err, "failed to read config file %s", path)
		}
	}

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	cfg.Logger.Level = parseLevel(v.GetString("logger.level"), cfg.Logger.Level)
	cfg.Logger.RequestLevel = parseLevel(v.GetString("logger.request_level"), cfg.Logger.RequestLevel)
	cfg.Logger.PrettyPrintConsole = v.GetBool("logger.pretty_print_console")
	cfg.Logger.Caller = v.GetBool("logger.caller")

	cfg.Retry.MaxAttempts = v.GetInt("retry.max_attempts")
	cfg.Retry.BaseDelay = v.GetDuration("retry.base_delay")
	cfg.Retry.MaxDelay = v.GetDuration("retry.max_delay")
	cfg.Retry.Multiplier = v.GetFloat64("retry.multiplier")
	cfg.Retry.Jitter = v.GetFloat64("retry.jitter")
	cfg.CallTimeout = v.GetDuration("call_timeout")

	cfg.EVM.RPCURL = v.GetString("evm.rpc_url")
	cfg.EVM.ChainID = v.GetInt64("evm.chain_id")
	cfg.EVM.FeeMode = v.GetString("evm.fee_mode")

	cfg.Bitcoin.EsploraURL = v.GetString("bitcoin.esplora_url")
	cfg.Bitcoin.Network = v.GetString("bitcoin.network")
	cfg.Bitcoin.AddressType = v.GetString("bitcoin.address_type")
	cfg.Bitcoin.AllowTaproot = v.GetBool("bitcoin.allow_taproot")
	cfg.Bitcoin.FallbackFeeRate = v.GetFloat64("bitcoin.fallback_fee_rate")
	cfg.Bitcoin.FeeTargetBlocks = v.GetInt("bitcoin.fee_target_blocks")
	cfg.Bitcoin.ReservationTTL = v.GetDuration("bitcoin.reservation_ttl")

	cfg.Solana.RPCURL = v.GetString("solana.rpc_url")
	cfg.Solana.Commitment = v.GetString("solana.commitment")

	cfg.Keystore.Dir = v.GetString("keystore.dir")
	cfg.Keystore.ScryptN = v.GetInt("keystore.scrypt_n")
	cfg.Keystore.ScryptP = v.GetInt("keystore.scrypt_p")

	cfg.Wallet.EntropyBits = v.GetInt("wallet.entropy_bits")
	cfg.Wallet.MinPasswordLength = v.GetInt("wallet.min_password_length")

	if err := cfg.Validate(); err != nil {
		return Engine{}, err
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper, cfg Engine) {
	v.SetDefault("logger.level", cfg.Logger.Level.String())
	v.SetDefault("logger.request_level", cfg.Logger.RequestLevel.String())
	v.SetDefault("logger.pretty_print_console", cfg.Logger.PrettyPrintConsole)
	v.SetDefault("logger.caller", cfg.Logger.Caller)

	v.SetDefault("retry.max_attempts", cfg.Retry.MaxAttempts)
	v.SetDefault("retry.base_delay", cfg.Retry.BaseDelay)
	v.SetDefault("retry.max_delay", cfg.Retry.MaxDelay)
	v.SetDefault("retry.multiplier", cfg.Retry.Multiplier)
	v.SetDefault("retry.jitter", cfg.Retry.Jitter)
	v.SetDefault("call_timeout", cfg.CallTimeout)

	v.SetDefault("evm.rpc_url", cfg.EVM.RPCURL)
	v.SetDefault("evm.chain_id", cfg.EVM.ChainID)
	v.SetDefault("evm.fee_mode", cfg.EVM.FeeMode)

	v.SetDefault("bitcoin.esplora_url", cfg.Bitcoin.EsploraURL)
	v.SetDefault("bitcoin.network", cfg.Bitcoin.Network)
	v.SetDefault("bitcoin.address_type", cfg.Bitcoin.AddressType)
	v.SetDefault("bitcoin.allow_taproot", cfg.Bitcoin.AllowTaproot)
	v.SetDefault("bitcoin.fallback_fee_rate", cfg.Bitcoin.FallbackFeeRate)
	v.SetDefault("bitcoin.fee_target_blocks", cfg.Bitcoin.FeeTargetBlocks)
	v.SetDefault("bitcoin.reservation_ttl", cfg.Bitcoin.ReservationTTL)

	v.SetDefault("solana.rpc_url", cfg.Solana.RPCURL)
	v.SetDefault("solana.commitment", cfg.Solana.Commitment)

	v.SetDefault("keystore.dir", cfg.Keystore.Dir)
	v.SetDefault("keystore.scrypt_n", cfg.Keystore.ScryptN)
	v.SetDefault("keystore.scrypt_p", cfg.Keystore.ScryptP)

	v.SetDefault("wallet.entropy_bits", cfg.Wallet.EntropyBits)
	v.SetDefault("wallet.min_password_length", cfg.Wallet.MinPasswordLength)
}
