package usecase

import (
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/Makarios44/xuxu-AIBOT/internal/domain"
	"github.com/Makarios44/xuxu-AIBOT/internal/infra/config"
)

// memCredStore is an in-memory CredentialStore for service tests.
type memCredStore struct {
	m map[string]*domain.Credential
}

func newMemCredStore() *memCredStore {
	return &memCredStore{m: make(map[string]*domain.Credential)}
}

func credKey(userID string, p domain.Provider) string { return userID + "/" + string(p) }

func (s *memCredStore) Get(_ context.Context, userID string, p domain.Provider) (*domain.Credential, error) {
	c, ok := s.m[credKey(userID, p)]
	if !ok {
		return nil, domain.NewDomainError("memCredStore.Get", domain.ErrCredentialNotFound, "")
	}
	cp := *c
	return &cp, nil
}

func (s *memCredStore) Upsert(_ context.Context, c *domain.Credential) error {
	cp := *c
	s.m[credKey(c.UserID, c.Provider)] = &cp
	return nil
}

func (s *memCredStore) Update(ctx context.Context, c *domain.Credential) error {
	if _, ok := s.m[credKey(c.UserID, c.Provider)]; !ok {
		return domain.NewDomainError("memCredStore.Update", domain.ErrCredentialNotFound, "")
	}
	return s.Upsert(ctx, c)
}

func (s *memCredStore) Delete(_ context.Context, userID string, p domain.Provider) error {
	delete(s.m, credKey(userID, p))
	return nil
}

func (s *memCredStore) ListByUser(_ context.Context, userID string) ([]domain.Credential, error) {
	var out []domain.Credential
	for _, c := range s.m {
		if c.UserID == userID {
			out = append(out, *c)
		}
	}
	return out, nil
}

func (s *memCredStore) ListExpiring(_ context.Context, cutoff time.Time) ([]domain.Credential, error) {
	var out []domain.Credential
	for _, c := range s.m {
		if c.ExpiresAt.Before(cutoff) {
			out = append(out, *c)
		}
	}
	return out, nil
}

// fakeRefresher counts calls and returns a scripted grant.
type fakeRefresher struct {
	grant *domain.TokenGrant
	err   error
	calls int
}

func (f *fakeRefresher) Refresh(_ context.Context, _ domain.Provider, _ string) (*domain.TokenGrant, error) {
	f.calls++
	return f.grant, f.err
}

func newCredService(store *memCredStore, refresher *fakeRefresher, now time.Time) *CredentialService {
	svc := NewCredentialService(store, refresher, slog.Default())
	svc.now = func() time.Time { return now }
	return svc
}

func TestGetValidTokenFreshTokenNoRefresh(t *testing.T) {
	now := time.Now()
	store := newMemCredStore()
	store.Upsert(context.Background(), &domain.Credential{
		UserID: "ana", Provider: domain.ProviderGoogle,
		AccessToken: "fresh", ExpiresAt: now.Add(time.Hour),
	})
	refresher := &fakeRefresher{}
	svc := newCredService(store, refresher, now)

	token, err := svc.GetValidToken(context.Background(), "ana", domain.ProviderGoogle)
	if err != nil {
		t.Fatalf("GetValidToken() error = %v", err)
	}
	if token != "fresh" || refresher.calls != 0 {
		t.Errorf("token = %q, refresher calls = %d", token, refresher.calls)
	}
}

func TestGetValidTokenRefreshesWithinSkew(t *testing.T) {
	now := time.Now()
	store := newMemCredStore()
	store.Upsert(context.Background(), &domain.Credential{
		UserID: "ana", Provider: domain.ProviderGoogle,
		AccessToken: "stale", RefreshToken: "refresh-1",
		ExpiresAt: now.Add(10 * time.Second), // inside the 30s skew
	})
	refresher := &fakeRefresher{grant: &domain.TokenGrant{
		AccessToken: "renewed", RefreshToken: "refresh-2", ExpiresIn: 3600,
	}}
	svc := newCredService(store, refresher, now)

	token, err := svc.GetValidToken(context.Background(), "ana", domain.ProviderGoogle)
	if err != nil {
		t.Fatalf("GetValidToken() error = %v", err)
	}
	if token != "renewed" {
		t.Errorf("token = %q, want renewed", token)
	}

	stored, _ := store.Get(context.Background(), "ana", domain.ProviderGoogle)
	if stored.AccessToken != "renewed" || stored.RefreshToken != "refresh-2" {
		t.Errorf("persisted = %+v", stored)
	}
	if !stored.ExpiresAt.After(now.Add(time.Hour - time.Minute)) {
		t.Errorf("ExpiresAt = %v not extended", stored.ExpiresAt)
	}
}

func TestGetValidTokenKeepsOldRefreshToken(t *testing.T) {
	now := time.Now()
	store := newMemCredStore()
	store.Upsert(context.Background(), &domain.Credential{
		UserID: "ana", Provider: domain.ProviderMicrosoft,
		AccessToken: "stale", RefreshToken: "keep-me",
		ExpiresAt: now.Add(-time.Minute),
	})
	// Grant without a rotated refresh token.
	refresher := &fakeRefresher{grant: &domain.TokenGrant{AccessToken: "renewed"}}
	svc := newCredService(store, refresher, now)

	if _, err := svc.GetValidToken(context.Background(), "ana", domain.ProviderMicrosoft); err != nil {
		t.Fatalf("GetValidToken() error = %v", err)
	}
	stored, _ := store.Get(context.Background(), "ana", domain.ProviderMicrosoft)
	if stored.RefreshToken != "keep-me" {
		t.Errorf("RefreshToken = %q, want keep-me", stored.RefreshToken)
	}
}

func TestGetValidTokenMissingCredential(t *testing.T) {
	svc := newCredService(newMemCredStore(), &fakeRefresher{}, time.Now())

	_, err := svc.GetValidToken(context.Background(), "nobody", domain.ProviderGoogle)
	if !errors.Is(err, domain.ErrCredentialNotFound) {
		t.Errorf("err = %v, want ErrCredentialNotFound", err)
	}
}

func TestGetValidTokenRefreshFailure(t *testing.T) {
	now := time.Now()
	store := newMemCredStore()
	store.Upsert(context.Background(), &domain.Credential{
		UserID: "ana", Provider: domain.ProviderGoogle,
		ExpiresAt: now.Add(-time.Minute),
	})
	refresher := &fakeRefresher{err: domain.ErrTokenRefreshFailed}
	svc := newCredService(store, refresher, now)

	_, err := svc.GetValidToken(context.Background(), "ana", domain.ProviderGoogle)
	if !errors.Is(err, domain.ErrTokenRefreshFailed) {
		t.Errorf("err = %v, want ErrTokenRefreshFailed", err)
	}
}

func TestRefreshSweepRefreshesExpiring(t *testing.T) {
	now := time.Now()
	store := newMemCredStore()
	store.Upsert(context.Background(), &domain.Credential{
		UserID: "ana", Provider: domain.ProviderGoogle,
		AccessToken: "old", RefreshToken: "r", ExpiresAt: now.Add(5 * time.Minute),
	})
	store.Upsert(context.Background(), &domain.Credential{
		UserID: "bia", Provider: domain.ProviderMicrosoft,
		AccessToken: "ok", RefreshToken: "r", ExpiresAt: now.Add(2 * time.Hour),
	})
	refresher := &fakeRefresher{grant: &domain.TokenGrant{AccessToken: "new", ExpiresIn: 3600}}
	svc := newCredService(store, refresher, now)

	sweep := NewRefreshSweep(store, svc, config.SweepConfig{
		Enabled: true, Margin: 15 * time.Minute,
	}, slog.Default())
	sweep.Sweep(context.Background())

	if refresher.calls != 1 {
		t.Errorf("refresher calls = %d, want 1", refresher.calls)
	}
	ana, _ := store.Get(context.Background(), "ana", domain.ProviderGoogle)
	if ana.AccessToken != "new" {
		t.Errorf("ana token = %q, want new", ana.AccessToken)
	}
	bia, _ := store.Get(context.Background(), "bia", domain.ProviderMicrosoft)
	if bia.AccessToken != "ok" {
		t.Errorf("bia token = %q, should be untouched", bia.AccessToken)
	}
}

func TestRefreshSweepSkipsFailures(t *testing.T) {
	now := time.Now()
	store := newMemCredStore()
	store.Upsert(context.Background(), &domain.Credential{
		UserID: "ana", Provider: domain.ProviderGoogle,
		RefreshToken: "revoked", ExpiresAt: now.Add(-time.Minute),
	})
	refresher := &fakeRefresher{err: domain.ErrTokenRefreshFailed}
	svc := newCredService(store, refresher, now)

	sweep := NewRefreshSweep(store, svc, config.SweepConfig{
		Enabled: true, Margin: 15 * time.Minute,
	}, slog.Default())
	// Must not panic or return; failures are logged and skipped.
	sweep.Sweep(context.Background())

	if refresher.calls != 1 {
		t.Errorf("refresher calls = %d, want 1", refresher.calls)
	}
}
