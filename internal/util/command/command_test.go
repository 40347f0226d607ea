package command_test

import (
	"bytes"
	"context"
	"errors"
	"math/big"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github/chapool/go-wallet-engine/internal/config"
	"github/chapool/go-wallet-engine/internal/util/command"
	"github/chapool/go-wallet-engine/internal/wallet"
	"github/chapool/go-wallet-engine/internal/wallet/chain"
	"github/chapool/go-wallet-engine/internal/wallet/werrors"
)

func offlineConfig(t *testing.T) config.Engine {
	t.Helper()

	cfg := config.DefaultServiceConfigFromEnv()
	cfg.EVM.RPCURL = ""
	cfg.Bitcoin.EsploraURL = ""
	cfg.Solana.RPCURL = ""
	cfg.Keystore.Dir = t.TempDir()
	cfg.Keystore.ScryptN = 1 << 8
	cfg.Logger.PrettyPrintConsole = false

	return cfg
}

func TestWithEngine(t *testing.T) {
	ctx := t.Context()

	var testError = errors.New("test error")

	resultErr := command.WithEngine(ctx, offlineConfig(t), func(ctx context.Context, e *wallet.Engine) error {
		require.NotNil(t, e.Wallets)
		assert.Nil(t, e.Providers.EVM)

		id, mnemonic, err := e.Wallets.CreateWallet(ctx, "cli", "correct horse")
		require.NoError(t, err)
		assert.NotEmpty(t, id)
		assert.NotEmpty(t, mnemonic)

		return testError
	})

	assert.Equal(t, testError, resultErr)
}

func TestWithEngineInvalidConfig(t *testing.T) {
	cfg := offlineConfig(t)
	cfg.Bitcoin.Network = "moonnet"

	called := false
	err := command.WithEngine(t.Context(), cfg, func(context.Context, *wallet.Engine) error {
		called = true
		return nil
	})

	require.Error(t, err)
	assert.False(t, called)
}

func TestNewSubcommandGroup(t *testing.T) {
	child := &cobra.Command{Use: "child", Run: func(*cobra.Command, []string) {}}
	group := command.NewSubcommandGroup("group", child)

	assert.Equal(t, "group <subcommand>", group.Use)
	assert.True(t, group.HasSubCommands())

	var out bytes.Buffer
	group.SetOut(&out)
	group.SetArgs([]string{})
	require.NoError(t, group.Execute())
	assert.Contains(t, out.String(), "child")
}

func TestPrintJSON(t *testing.T) {
	cmd := &cobra.Command{}
	var out bytes.Buffer
	cmd.SetOut(&out)

	require.NoError(t, command.PrintJSON(cmd, &wallet.StatusItem{TxID: "abc", State: "pending"}))
	assert.JSONEq(t, `{"txId":"abc","state":"pending","confirmations":0}`, out.String())
}

func TestParseAmount(t *testing.T) {
	v, err := command.ParseAmount("1.5", chain.EVM.Decimals())
	require.NoError(t, err)
	assert.Equal(t, 0, v.Cmp(big.NewInt(1_500_000_000_000_000_000)))

	v, err = command.ParseAmount(" 0.00000001 ", chain.Bitcoin.Decimals())
	require.NoError(t, err)
	assert.Equal(t, int64(1), v.Int64())

	v, err = command.ParseAmount("250", 0)
	require.NoError(t, err)
	assert.Equal(t, int64(250), v.Int64())

	for _, in := range []string{"", "abc", "0", "-1", "0.000000001"} {
		_, err := command.ParseAmount(in, chain.Bitcoin.Decimals())
		assert.True(t, werrors.Is(err, werrors.KindInvalidRequest), in)
	}
}

func TestChainFromFlag(t *testing.T) {
	cmd := &cobra.Command{}
	command.AddChainFlag(cmd, chain.EVM)

	kind, err := command.ChainFromFlag(cmd)
	require.NoError(t, err)
	assert.Equal(t, chain.EVM, kind)

	require.NoError(t, cmd.Flags().Set(command.ChainFlag, "btc"))
	kind, err = command.ChainFromFlag(cmd)
	require.NoError(t, err)
	assert.Equal(t, chain.Bitcoin, kind)

	require.NoError(t, cmd.Flags().Set(command.ChainFlag, "tron"))
	_, err = command.ChainFromFlag(cmd)
	assert.True(t, werrors.Is(err, werrors.KindUnsupportedChain))
}
