package wallet

import (
	"context"
	"math/big"
	"strings"

	"github.com/pkg/errors"
	"github/chapool/go-wallet-engine/internal/util"
	"github/chapool/go-wallet-engine/internal/wallet/address"
	"github/chapool/go-wallet-engine/internal/wallet/chain"
	"github/chapool/go-wallet-engine/internal/wallet/keys"
	"github/chapool/go-wallet-engine/internal/wallet/keystore"
	"github/chapool/go-wallet-engine/internal/wallet/provider"
	"github/chapool/go-wallet-engine/internal/wallet/seed"
	"github/chapool/go-wallet-engine/internal/wallet/signer"
	"github/chapool/go-wallet-engine/internal/wallet/txbuilder"
	"github/chapool/go-wallet-engine/internal/wallet/werrors"
)

type service struct {
	seeds     seed.Manager
	keystore  keystore.Service
	codec     address.Codec
	builder   txbuilder.Builder
	signer    signer.Service
	providers txbuilder.Providers
	opts      Options
}

// NewService creates a new wallet Service
//
//nolint:ireturn // Returning interface is intentional for dependency injection
func NewService(
	seeds seed.Manager,
	keystoreService keystore.Service,
	codec address.Codec,
	builder txbuilder.Builder,
	signerService signer.Service,
	providers txbuilder.Providers,
	opts Options,
) Service {
	if opts.EntropyBits == 0 {
		opts.EntropyBits = defaultEntropyBits
	}
	if opts.MinPasswordLength == 0 {
		opts.MinPasswordLength = defaultMinPasswordLength
	}

	return &service{
		seeds:     seeds,
		keystore:  keystoreService,
		codec:     codec,
		builder:   builder,
		signer:    signerService,
		providers: providers,
		opts:      opts,
	}
}

func (s *service) CreateWallet(ctx context.Context, name string, password string) (string, string, error) {
	if err := s.checkPassword(password); err != nil {
		return "", "", err
	}

	mnemonic, err := s.seeds.Generate(s.opts.EntropyBits)
	if err != nil {
		return "", "", err
	}

	record, err := s.keystore.Create(ctx, name, mnemonic, password)
	if err != nil {
		return "", "", err
	}

	util.LogFromContext(ctx).Info().
		Str("component", "wallet").
		Str("wallet_id", record.ID).
		Msg("Wallet created")

	return record.ID, mnemonic, nil
}

func (s *service) ImportWallet(ctx context.Context, name string, mnemonic string, password string) (string, error) {
	if err := s.checkPassword(password); err != nil {
		return "", err
	}

	normalized := seed.Normalize(mnemonic)
	if !s.seeds.Validate(normalized) {
		return "", werrors.New(werrors.KindInvalidMnemonic, "mnemonic checksum or wordlist mismatch")
	}

	record, err := s.keystore.Create(ctx, name, normalized, password)
	if err != nil {
		return "", err
	}

	util.LogFromContext(ctx).Info().
		Str("component", "wallet").
		Str("wallet_id", record.ID).
		Msg("Wallet imported")

	return record.ID, nil
}

func (s *service) GetWallet(ctx context.Context, id string) (*Wallet, error) {
	record, err := s.keystore.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	return fromRecord(record), nil
}

func (s *service) ListWallets(ctx context.Context) ([]*Wallet, error) {
	records, err := s.keystore.List(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "failed to list wallets")
	}

	wallets := make([]*Wallet, 0, len(records))
	for _, r := range records {
		wallets = append(wallets, fromRecord(r))
	}
	return wallets, nil
}

func (s *service) DeriveAddress(ctx context.Context, id string, password string, kind chain.Kind, account uint32) (*address.Address, error) {
	if err := kind.Validate(); err != nil {
		return nil, err
	}
	path, err := s.codec.DefaultPath(kind, account)
	if err != nil {
		return nil, err
	}

	var addr *address.Address
	err = s.withSeed(ctx, id, password, func(seedBytes []byte) error {
		addr, err = s.codec.Derive(seedBytes, kind, path)
		return err
	})
	if err != nil {
		return nil, err
	}

	return addr, nil
}

func (s *service) GetBalance(ctx context.Context, addr string, kind chain.Kind) (*big.Int, error) {
	p, err := s.provider(kind)
	if err != nil {
		return nil, err
	}
	decoded, err := s.codec.Decode(addr, kind)
	if err != nil {
		return nil, err
	}
	return p.GetBalance(ctx, decoded.Canonical)
}

func (s *service) BuildAndSignTransaction(ctx context.Context, id string, password string, account uint32, req *txbuilder.Request) (*signer.Signed, error) {
	if req == nil {
		return nil, werrors.New(werrors.KindInvalidRequest, "nil request")
	}
	if err := req.Chain.Validate(); err != nil {
		return nil, err
	}
	curve, err := req.Chain.Curve()
	if err != nil {
		return nil, err
	}
	path, err := s.codec.DefaultPath(req.Chain, account)
	if err != nil {
		return nil, err
	}

	log := util.LogFromContext(ctx).With().
		Str("component", "wallet").
		Str("wallet_id", id).
		Str("chain", req.Chain.String()).
		Uint32("account", account).
		Logger()

	var signed *signer.Signed
	err = s.withSeed(ctx, id, password, func(seedBytes []byte) error {
		// 先构建（网络请求期间不持有私钥），再派生私钥签名
		owned, err := s.codec.Derive(seedBytes, req.Chain, path)
		if err != nil {
			return err
		}
		built, err := s.ownedRequest(req, owned.Value)
		if err != nil {
			return err
		}

		unsigned, err := s.builder.Build(ctx, built)
		if err != nil {
			return err
		}

		err = keys.WithKeyPair(seedBytes, curve, path, func(pair *keys.KeyPair) error {
			signed, err = s.signer.Sign(ctx, unsigned, pair)
			return err
		})
		if err == nil {
			err = verifySigned(signed)
		}
		if err != nil {
			s.builder.Release(unsigned)
			return err
		}
		return nil
	})
	if err != nil {
		log.Warn().Str("kind", string(werrors.KindOf(err))).Err(err).Msg("Failed to build and sign transaction")
		return nil, err
	}

	log.Info().Str("tx_id", signed.TxID).Msg("Transaction signed")

	return signed, nil
}

func (s *service) Broadcast(ctx context.Context, signed *signer.Signed) (*BroadcastResult, error) {
	if signed == nil || len(signed.Raw) == 0 {
		return nil, werrors.New(werrors.KindInvalidRequest, "nothing to broadcast")
	}
	state, err := signed.State.Advance(txbuilder.StateBroadcast)
	if err != nil {
		return nil, err
	}
	p, err := s.provider(signed.Chain)
	if err != nil {
		return nil, err
	}

	log := util.LogFromContext(ctx).With().
		Str("component", "wallet").
		Str("chain", signed.Chain.String()).
		Str("tx_id", signed.TxID).
		Logger()

	// 未提交，交易保持 signed，可重试或 Discard
	if err := ctx.Err(); err != nil {
		return nil, werrors.Wrap(werrors.KindTimeout, err, "broadcast cancelled before submission")
	}

	txID, err := p.BroadcastRaw(ctx, signed.Raw)
	if err != nil {
		if werrors.IsRetryable(err) || werrors.KindOf(err) == werrors.KindUnknown {
			// the node may already hold the transaction, so its inputs and nonce stay taken
			log.Warn().Str("kind", string(werrors.KindOf(err))).Err(err).Msg("Broadcast outcome unknown, transaction kept for retry")
			return nil, err
		}
		s.fail(signed)
		log.Warn().Str("kind", string(werrors.KindOf(err))).Err(err).Msg("Broadcast rejected")
		return nil, err
	}
	if txID == "" {
		txID = signed.TxID
	}

	s.builder.MarkBroadcast(signed.Unsigned, txID)

	signed.State = state
	if state, err = state.Advance(txbuilder.StatePending); err == nil {
		signed.State = state
	}

	log.Info().Str("network_tx_id", txID).Msg("Transaction broadcast")

	return &BroadcastResult{TxID: txID, State: signed.State}, nil
}

func (s *service) Discard(signed *signer.Signed) error {
	if signed == nil {
		return werrors.New(werrors.KindInvalidRequest, "nothing to discard")
	}
	if signed.State != txbuilder.StateSigned {
		return werrors.Newf(werrors.KindInvalidState, "cannot discard a %s transaction", signed.State)
	}
	s.fail(signed)
	return nil
}

func (s *service) TransactionStatus(ctx context.Context, kind chain.Kind, txID string) (*provider.Status, error) {
	p, err := s.provider(kind)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(txID) == "" {
		return nil, werrors.New(werrors.KindInvalidRequest, "transaction id is required")
	}

	status, err := p.GetTransactionStatus(ctx, txID)
	if err != nil {
		return nil, err
	}
	if txbuilder.FromNetwork(status.State).Terminal() {
		s.builder.Settle(txID)
	}
	return status, nil
}

// withSeed decrypts the mnemonic of wallet id and hands the BIP39 seed to fn, wiping it afterwards.
func (s *service) withSeed(ctx context.Context, id string, password string, fn func(seedBytes []byte) error) error {
	mnemonic, err := s.keystore.Open(ctx, id, password)
	if err != nil {
		return err
	}

	bip39Seed, err := s.seeds.ToSeed(mnemonic, "")
	if err != nil {
		return err
	}
	defer bip39Seed.Zero()

	return fn(bip39Seed.Bytes())
}

// ownedRequest copies req with From set to the account address, rejecting a foreign sender.
func (s *service) ownedRequest(req *txbuilder.Request, owned string) (*txbuilder.Request, error) {
	built := *req
	if built.From == "" {
		built.From = owned
		return &built, nil
	}

	from, err := s.codec.Decode(built.From, built.Chain)
	if err != nil {
		return nil, err
	}
	if from.Canonical != owned {
		return nil, werrors.Newf(werrors.KindInvalidRequest, "sender %s is not the wallet account address %s", from.Canonical, owned)
	}
	built.From = from.Canonical
	return &built, nil
}

// fail marks signed as Failed and gives back what its build reserved. A failed transaction is
// never broadcast again; the request has to be rebuilt.
func (s *service) fail(signed *signer.Signed) {
	signed.State = txbuilder.StateFailed
	if signed.Unsigned != nil {
		s.builder.Release(signed.Unsigned)
	}
}

func (s *service) checkPassword(password string) error {
	if len(password) < s.opts.MinPasswordLength {
		return werrors.Newf(werrors.KindInvalidRequest, "password must be at least %d characters", s.opts.MinPasswordLength)
	}
	return nil
}

//nolint:ireturn // provider interfaces are the abstraction here
func (s *service) provider(kind chain.Kind) (provider.Provider, error) {
	return s.providers.For(kind)
}
