package service

import (
	"context"
	"fmt"
	"strings"
	"unicode"

	"mteam-client/internal/credentials"
	"mteam-client/internal/domain"
	"mteam-client/internal/tracker"
)

// minAPIKeyLength rejects obviously truncated keys before hitting the tracker.
const minAPIKeyLength = 32

type searchProbe interface {
	Search(ctx context.Context, query domain.SearchQuery) (*domain.ResultPage, error)
}

// CredentialService validates and installs the tracker API key.
type CredentialService interface {
	// ValidateAndStore cleans the candidate key, installs it, probes the
	// tracker with a minimal search, and restores the previous key when the
	// probe fails. The stored key only changes on success.
	ValidateAndStore(ctx context.Context, candidate string) error
	HasKey() bool
	ClearKey() error
}

type credentialService struct {
	store  credentials.Store
	client searchProbe
}

func NewCredentialService(store credentials.Store, client searchProbe) CredentialService {
	return &credentialService{store: store, client: client}
}

func (s *credentialService) ValidateAndStore(ctx context.Context, candidate string) error {
	key := cleanAPIKey(candidate)
	if len(key) < minAPIKeyLength {
		return tracker.NewError(tracker.KindInvalidCredential, "API key is too short", nil)
	}

	previous, err := s.store.Get()
	if err != nil {
		return fmt.Errorf("read current key: %w", err)
	}

	if err := s.store.Set(key); err != nil {
		return fmt.Errorf("store key: %w", err)
	}

	probe := domain.NewSearchQuery("test", domain.CategoryAll, 1, 1)
	if _, err := s.client.Search(ctx, probe); err != nil {
		if previous == "" {
			_ = s.store.Delete()
		} else {
			_ = s.store.Set(previous)
		}
		return err
	}
	return nil
}

func (s *credentialService) HasKey() bool {
	key, err := s.store.Get()
	return err == nil && key != ""
}

func (s *credentialService) ClearKey() error {
	return s.store.Delete()
}

// cleanAPIKey strips surrounding and embedded whitespace, which keys picked
// up from chat or email often carry.
func cleanAPIKey(raw string) string {
	return strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return -1
		}
		return r
	}, strings.TrimSpace(raw))
}
