// Package redisrepo stores refresh tokens in Redis so they survive restarts and
// are shared between API replicas.
package redisrepo

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"time"

	"github.com/jrsteele09/go-clinic-auth/token/refresh"
	goredis "github.com/redis/go-redis/v9"
)

const (
	refreshPrefix     = "refresh:"
	userRefreshPrefix = "user_refresh:"
	defaultOpTimeout  = 3 * time.Second
)

var _ refresh.Repo = (*Repo)(nil)

type Repo struct {
	client    *goredis.Client
	namespace string
	timeout   time.Duration
}

func New(client *goredis.Client, namespace string) *Repo {
	return &Repo{client: client, namespace: namespace, timeout: defaultOpTimeout}
}

func (r *Repo) Upsert(rt *refresh.StoredRefreshToken) error {
	ctx, cancel := r.ctx()
	defer cancel()

	ttl := time.Until(rt.ExpiresAt)
	if ttl <= 0 {
		ttl = time.Second
	}

	pipe := r.client.TxPipeline()
	pipe.HSet(ctx, r.refreshKey(rt.Token), map[string]interface{}{
		"user_id":    rt.UserID,
		"iat":        rt.Iat.UnixMilli(),
		"expires_at": rt.ExpiresAt.UnixMilli(),
	})
	pipe.Expire(ctx, r.refreshKey(rt.Token), ttl)
	pipe.SAdd(ctx, r.userKey(rt.UserID), rt.Token)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("upsert refresh token: %w", err)
	}
	return nil
}

func (r *Repo) Delete(token string) error {
	ctx, cancel := r.ctx()
	defer cancel()

	rt, err := r.get(ctx, token)
	if err != nil {
		return err
	}
	pipe := r.client.TxPipeline()
	pipe.Del(ctx, r.refreshKey(token))
	pipe.SRem(ctx, r.userKey(rt.UserID), token)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("delete refresh token: %w", err)
	}
	return nil
}

func (r *Repo) Get(token string) (*refresh.StoredRefreshToken, error) {
	ctx, cancel := r.ctx()
	defer cancel()
	return r.get(ctx, token)
}

func (r *Repo) ListByUserID(userID string) ([]*refresh.StoredRefreshToken, error) {
	ctx, cancel := r.ctx()
	defer cancel()

	members, err := r.client.SMembers(ctx, r.userKey(userID)).Result()
	if err != nil {
		return nil, fmt.Errorf("list user refresh tokens: %w", err)
	}
	tokens := make([]*refresh.StoredRefreshToken, 0, len(members))
	for _, token := range members {
		rt, err := r.get(ctx, token)
		if errors.Is(err, refresh.ErrNotFound) {
			// expired by TTL, drop the dangling index entry
			_ = r.client.SRem(ctx, r.userKey(userID), token).Err()
			continue
		}
		if err != nil {
			return nil, err
		}
		tokens = append(tokens, rt)
	}
	sort.Slice(tokens, func(i, j int) bool {
		return tokens[i].Iat.Before(tokens[j].Iat)
	})
	return tokens, nil
}

func (r *Repo) DeleteAllForUser(userID string) (int, error) {
	ctx, cancel := r.ctx()
	defer cancel()

	members, err := r.client.SMembers(ctx, r.userKey(userID)).Result()
	if err != nil {
		return 0, fmt.Errorf("list user refresh tokens: %w", err)
	}
	if len(members) == 0 {
		return 0, nil
	}
	keys := make([]string, 0, len(members))
	for _, token := range members {
		keys = append(keys, r.refreshKey(token))
	}

	pipe := r.client.TxPipeline()
	deleted := pipe.Del(ctx, keys...)
	pipe.Del(ctx, r.userKey(userID))
	if _, err := pipe.Exec(ctx); err != nil {
		return 0, fmt.Errorf("delete user refresh tokens: %w", err)
	}
	return int(deleted.Val()), nil
}

func (r *Repo) get(ctx context.Context, token string) (*refresh.StoredRefreshToken, error) {
	values, err := r.client.HGetAll(ctx, r.refreshKey(token)).Result()
	if err != nil {
		return nil, fmt.Errorf("get refresh token: %w", err)
	}
	if len(values) == 0 {
		return nil, refresh.ErrNotFound
	}
	iat, err := strconv.ParseInt(values["iat"], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("parse refresh token iat: %w", err)
	}
	exp, err := strconv.ParseInt(values["expires_at"], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("parse refresh token expiry: %w", err)
	}
	return &refresh.StoredRefreshToken{
		Token:     token,
		UserID:    values["user_id"],
		Iat:       time.UnixMilli(iat),
		ExpiresAt: time.UnixMilli(exp),
	}, nil
}

func (r *Repo) ctx() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), r.timeout)
}

func (r *Repo) refreshKey(token string) string {
	return r.namespace + ":" + refreshPrefix + token
}

func (r *Repo) userKey(userID string) string {
	return r.namespace + ":" + userRefreshPrefix + userID
}
