package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mteam-client/internal/credentials"
	"mteam-client/internal/domain"
	"mteam-client/internal/tracker"
)

type probeFunc func(ctx context.Context, query domain.SearchQuery) (*domain.ResultPage, error)

func (f probeFunc) Search(ctx context.Context, query domain.SearchQuery) (*domain.ResultPage, error) {
	return f(ctx, query)
}

const validKey = "0123456789abcdef0123456789abcdef"

func TestValidateAndStoreAcceptsWorkingKey(t *testing.T) {
	store := &credentials.MemoryStore{}
	var probed int
	svc := NewCredentialService(store, probeFunc(func(ctx context.Context, q domain.SearchQuery) (*domain.ResultPage, error) {
		probed++
		assert.Equal(t, 1, q.PageSize)
		return &domain.ResultPage{}, nil
	}))

	require.NoError(t, svc.ValidateAndStore(context.Background(), "  "+validKey+"\n"))
	assert.Equal(t, 1, probed)

	key, err := store.Get()
	require.NoError(t, err)
	assert.Equal(t, validKey, key)
	assert.True(t, svc.HasKey())
}

func TestValidateAndStoreStripsInnerWhitespace(t *testing.T) {
	store := &credentials.MemoryStore{}
	svc := NewCredentialService(store, probeFunc(func(ctx context.Context, q domain.SearchQuery) (*domain.ResultPage, error) {
		return &domain.ResultPage{}, nil
	}))

	mangled := validKey[:10] + " \t" + validKey[10:]
	require.NoError(t, svc.ValidateAndStore(context.Background(), mangled))

	key, _ := store.Get()
	assert.Equal(t, validKey, key)
}

func TestValidateAndStoreRejectsShortKey(t *testing.T) {
	store := &credentials.MemoryStore{}
	svc := NewCredentialService(store, probeFunc(func(ctx context.Context, q domain.SearchQuery) (*domain.ResultPage, error) {
		t.Fatal("short keys must not be probed")
		return nil, nil
	}))

	err := svc.ValidateAndStore(context.Background(), "tooshort")
	assert.Equal(t, tracker.KindInvalidCredential, tracker.KindOf(err))
	assert.False(t, svc.HasKey())
}

func TestValidateAndStoreRestoresPreviousKeyOnFailure(t *testing.T) {
	store := &credentials.MemoryStore{}
	previous := "ffffffffffffffffffffffffffffffff"
	require.NoError(t, store.Set(previous))

	svc := NewCredentialService(store, probeFunc(func(ctx context.Context, q domain.SearchQuery) (*domain.ResultPage, error) {
		return nil, tracker.NewError(tracker.KindInvalidCredential, "API key rejected", nil)
	}))

	err := svc.ValidateAndStore(context.Background(), validKey)
	require.Error(t, err)

	key, _ := store.Get()
	assert.Equal(t, previous, key)
}

func TestValidateAndStoreClearsKeyWhenNoPrevious(t *testing.T) {
	store := &credentials.MemoryStore{}
	svc := NewCredentialService(store, probeFunc(func(ctx context.Context, q domain.SearchQuery) (*domain.ResultPage, error) {
		return nil, tracker.NewError(tracker.KindNetwork, "request failed", nil)
	}))

	err := svc.ValidateAndStore(context.Background(), validKey)
	require.Error(t, err)
	assert.False(t, svc.HasKey())
}
