package defi

import (
	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/programs/stake"
	"github.com/gagliardetto/solana-go/programs/system"
	"github/chapool/go-wallet-engine/internal/wallet/chain"
	"github/chapool/go-wallet-engine/internal/wallet/txbuilder"
	"github/chapool/go-wallet-engine/internal/wallet/werrors"
)

const (
	// StakeAccountSpace is the data size of a stake account.
	StakeAccountSpace uint64 = 200
	// StakeAccountRent is the rent-exempt reserve of a StakeAccountSpace account.
	StakeAccountRent uint64 = 2_282_880
	// DefaultStakeSeed names the stake account derived from the authority when no seed is given.
	DefaultStakeSeed = "stake:0"
)

// StakeAccountWithSeed returns the stake account CreateAccountWithSeed derives for authority and seed.
func StakeAccountWithSeed(authority solana.PublicKey, seed string) (solana.PublicKey, error) {
	if seed == "" {
		seed = DefaultStakeSeed
	}
	account, err := solana.CreateWithSeed(authority, seed, solana.StakeProgramID)
	if err != nil {
		return solana.PublicKey{}, werrors.Wrapf(werrors.KindInvalidRequest, err, "invalid stake seed %q", seed)
	}
	return account, nil
}

// delegateStake points a stake account at a validator. From is the stake authority.
// With an amount the stake account is created from (From, Seed), funded and initialized first,
// otherwise StakeAccount must already be initialized.
func (s *service) delegateStake(p StakeParams) (*Operation, error) {
	authority, err := s.solanaAddress(p.From, "stake authority")
	if err != nil {
		return nil, err
	}
	vote, err := s.solanaAddress(p.VoteAccount, "vote account")
	if err != nil {
		return nil, err
	}

	if p.Amount == nil || p.Amount.Sign() == 0 {
		account, err := s.solanaAddress(p.StakeAccount, "stake account")
		if err != nil {
			return nil, err
		}
		return stakeOperation(authority, account, delegateInstruction(vote, authority, account)), nil
	}

	if p.Amount.Sign() < 0 || !p.Amount.IsUint64() || p.Amount.Uint64() > ^uint64(0)-StakeAccountRent {
		return nil, werrors.New(werrors.KindInvalidRequest, "amount must be a positive lamport value")
	}

	seed := p.Seed
	if seed == "" {
		seed = DefaultStakeSeed
	}
	account, err := StakeAccountWithSeed(authority, seed)
	if err != nil {
		return nil, err
	}
	if p.StakeAccount != "" {
		given, err := s.solanaAddress(p.StakeAccount, "stake account")
		if err != nil {
			return nil, err
		}
		if !given.Equals(account) {
			return nil, werrors.Newf(werrors.KindInvalidRequest, "stake account %s is not derived from seed %q", given, seed)
		}
	}

	create := system.NewCreateAccountWithSeedInstruction(
		authority, seed, p.Amount.Uint64()+StakeAccountRent, StakeAccountSpace, solana.StakeProgramID,
		authority, account, authority,
	).Build()

	// the seeded account has no key of its own, authority signs for it
	initialize := stake.NewInitializeInstruction(authority, authority, account)
	initialize.AccountMetaSlice[0] = solana.Meta(account).WRITE()

	return stakeOperation(authority, account,
		create,
		initialize.Build(),
		delegateInstruction(vote, authority, account),
	), nil
}

// deactivateStake starts the cooldown of a delegated stake account.
func (s *service) deactivateStake(p StakeParams) (*Operation, error) {
	if p.Amount != nil && p.Amount.Sign() != 0 {
		return nil, werrors.New(werrors.KindInvalidRequest, "solana deactivation covers the whole stake account, amount must be empty")
	}
	authority, err := s.solanaAddress(p.From, "stake authority")
	if err != nil {
		return nil, err
	}
	account, err := s.solanaAddress(p.StakeAccount, "stake account")
	if err != nil {
		return nil, err
	}

	return stakeOperation(authority, account, stake.NewDeactivateInstruction(account, authority).Build()), nil
}

// delegateInstruction only needs the authority signature; the stake account is writable.
func delegateInstruction(vote, authority, account solana.PublicKey) solana.Instruction {
	delegate := stake.NewDelegateStakeInstruction(vote, authority, account)
	delegate.AccountMetaSlice[0] = solana.Meta(account).WRITE()
	return delegate.Build()
}

func (s *service) solanaAddress(addr, field string) (solana.PublicKey, error) {
	if addr == "" {
		return solana.PublicKey{}, werrors.Newf(werrors.KindInvalidRequest, "%s is required", field)
	}
	decoded, err := s.codec.Decode(addr, chain.Solana)
	if err != nil {
		return solana.PublicKey{}, werrors.Wrapf(werrors.KindInvalidAddress, err, "invalid %s", field)
	}
	return solana.PublicKeyFromBytes(decoded.Bytes), nil
}

func stakeOperation(authority, account solana.PublicKey, instructions ...solana.Instruction) *Operation {
	return &Operation{
		Protocol:     NativeStake,
		StakeAccount: account.String(),
		Request: &txbuilder.Request{
			Chain: chain.Solana,
			From:  authority.String(),
			Solana: &txbuilder.SolanaFields{
				Instructions: instructions,
			},
		},
	}
}
