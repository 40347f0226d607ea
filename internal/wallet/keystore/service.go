package keystore

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github/chapool/go-wallet-engine/internal/util"
)

// Service provides keystore encryption and decryption functionality
type Service interface {
	// Create encrypts mnemonic under password and stores it as a new wallet
	Create(ctx context.Context, name string, mnemonic string, password string) (*Record, error)

	// Open decrypts the mnemonic of wallet id
	Open(ctx context.Context, id string, password string) (string, error)

	// Get returns the stored record of wallet id
	Get(ctx context.Context, id string) (*Record, error)

	// List returns every stored wallet
	List(ctx context.Context) ([]*Record, error)

	// Exists checks if wallet id is stored
	Exists(ctx context.Context, id string) (bool, error)
}

type service struct {
	store  Store
	params ScryptParams
	now    func() time.Time
}

// NewService creates a new keystore Service on top of store
//
//nolint:ireturn // Returning interface is intentional for dependency injection
func NewService(store Store, params ScryptParams) (Service, error) {
	if store == nil {
		return nil, errors.New("keystore store is required")
	}
	if err := params.validate(); err != nil {
		return nil, err
	}

	return &service{
		store:  store,
		params: params,
		now:    time.Now,
	}, nil
}

func (s *service) Create(ctx context.Context, name string, mnemonic string, password string) (*Record, error) {
	log := util.LogFromContext(ctx).With().Str("component", "keystore").Logger()

	if strings.TrimSpace(name) == "" {
		return nil, errors.New("wallet name is required")
	}

	blob, err := Encrypt(mnemonic, password, s.params)
	if err != nil {
		log.Error().Err(err).Msg("Failed to encrypt mnemonic")
		return nil, errors.Wrap(err, "failed to encrypt mnemonic")
	}

	record := &Record{
		ID:        uuid.New().String(),
		Name:      name,
		Blob:      blob,
		CreatedAt: s.now().UTC(),
	}

	if err := s.store.Save(ctx, record); err != nil {
		log.Error().Err(err).Msg("Failed to save wallet")
		return nil, errors.Wrap(err, "failed to save wallet")
	}

	log.Debug().Str("wallet_id", record.ID).Msg("Wallet stored")

	return record, nil
}

func (s *service) Open(ctx context.Context, id string, password string) (string, error) {
	record, err := s.store.Get(ctx, id)
	if err != nil {
		return "", err
	}

	mnemonic, err := Decrypt(record.Blob, password)
	if err != nil {
		if errors.Is(err, ErrInvalidPassword) {
			return "", err
		}
		util.LogFromContext(ctx).Error().Err(err).Str("wallet_id", id).Msg("Failed to decrypt mnemonic")
		return "", errors.Wrap(err, "failed to decrypt mnemonic")
	}

	return mnemonic, nil
}

func (s *service) Get(ctx context.Context, id string) (*Record, error) {
	return s.store.Get(ctx, id)
}

func (s *service) List(ctx context.Context) ([]*Record, error) {
	return s.store.List(ctx)
}

func (s *service) Exists(ctx context.Context, id string) (bool, error) {
	_, err := s.store.Get(ctx, id)
	if errors.Is(err, ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, errors.Wrap(err, "failed to look up wallet")
	}
	return true, nil
}
