package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/reconhub/auth-service/internal/observability"
	"github.com/reconhub/auth-service/internal/password"
	"github.com/reconhub/auth-service/internal/repository"

	"golang.org/x/sync/singleflight"
)

// CredentialState is the expiry projection attached to issued sessions.
// It is advisory: an expired password never blocks authentication, the
// client decides how to prompt for rotation. Both fields stay absent
// from the wire shape until the password has expired.
type CredentialState struct {
	PasswordExpired   bool       `json:"password_expired,omitempty"`
	PasswordExpiresAt *time.Time `json:"password_expires_at,omitempty"`
}

type CredentialStateCacheStore interface {
	Get(ctx context.Context, userID uint) (CredentialState, bool, error)
	Set(ctx context.Context, userID uint, state CredentialState, ttl time.Duration) error
	Invalidate(ctx context.Context, userID uint) error
}

// CachedCredentialStateResolver answers "is this user's password
// expired" on the hot login/refresh path. Lookups collapse through
// singleflight so a stampede of requests for one user costs one query.
type CachedCredentialStateResolver struct {
	cacheStore CredentialStateCacheStore
	credRepo   repository.CredentialRepository
	ttl        time.Duration
	sf         singleflight.Group
}

func NewCachedCredentialStateResolver(cacheStore CredentialStateCacheStore, credRepo repository.CredentialRepository, ttl time.Duration) *CachedCredentialStateResolver {
	return &CachedCredentialStateResolver{
		cacheStore: cacheStore,
		credRepo:   credRepo,
		ttl:        ttl,
	}
}

func (r *CachedCredentialStateResolver) Resolve(ctx context.Context, userID uint) (CredentialState, error) {
	if r.cacheStore != nil && r.ttl > 0 {
		cached, ok, err := r.cacheStore.Get(ctx, userID)
		if err == nil && ok {
			observability.RecordCredentialStateCacheEvent(ctx, "hit")
			return cached, nil
		}
		observability.RecordCredentialStateCacheEvent(ctx, "miss")
	}

	sfKey := fmt.Sprintf("credstate:user:%d", userID)
	result, err, shared := r.sf.Do(sfKey, func() (interface{}, error) {
		if r.cacheStore != nil && r.ttl > 0 {
			cached, ok, err := r.cacheStore.Get(ctx, userID)
			if err == nil && ok {
				return cached, nil
			}
		}
		state, err := r.lookup(ctx, userID)
		if err != nil {
			return CredentialState{}, err
		}
		if r.cacheStore != nil && r.ttl > 0 {
			_ = r.cacheStore.Set(ctx, userID, state, r.ttl)
		}
		return state, nil
	})
	if shared {
		observability.RecordCredentialStateCacheEvent(ctx, "singleflight_shared")
	} else {
		observability.RecordCredentialStateCacheEvent(ctx, "singleflight_leader")
	}
	if err != nil {
		return CredentialState{}, err
	}
	state, ok := result.(CredentialState)
	if !ok {
		return CredentialState{}, fmt.Errorf("invalid credential state result type")
	}
	return state, nil
}

// InvalidateUser drops the cached state; callers invoke it right after a
// password rotation so the next issued session sees the fresh expiry.
func (r *CachedCredentialStateResolver) InvalidateUser(ctx context.Context, userID uint) error {
	if r.cacheStore == nil {
		return nil
	}
	return r.cacheStore.Invalidate(ctx, userID)
}

func (r *CachedCredentialStateResolver) lookup(ctx context.Context, userID uint) (CredentialState, error) {
	cred, err := r.credRepo.FindByUserID(userID)
	if err != nil {
		// OAuth-only accounts have no local credential and no expiry.
		if errors.Is(err, repository.ErrCredentialNotFound) {
			return CredentialState{}, nil
		}
		return CredentialState{}, err
	}
	state := CredentialState{
		PasswordExpired: password.IsExpired(cred.ExpiresAt, time.Now().UTC()),
	}
	if state.PasswordExpired {
		expiresAt := cred.ExpiresAt
		state.PasswordExpiresAt = &expiresAt
	}
	return state, nil
}
