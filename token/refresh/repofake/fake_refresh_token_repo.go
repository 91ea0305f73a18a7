package refreshrepofake

import (
	"sort"
	"sync"

	"github.com/jrsteele09/go-clinic-auth/token/refresh"
)

var _ refresh.Repo = (*FakeRefreshTokenRepo)(nil)

type FakeRefreshTokenRepo struct {
	tokens  map[string]*refresh.StoredRefreshToken
	userIDs map[string]map[string]struct{} // user ID to its tokens
	lock    sync.RWMutex
}

func NewFakeRefreshTokenRepo() refresh.Repo {
	return &FakeRefreshTokenRepo{
		tokens:  make(map[string]*refresh.StoredRefreshToken),
		userIDs: make(map[string]map[string]struct{}),
	}
}

func (tr *FakeRefreshTokenRepo) Upsert(refreshToken *refresh.StoredRefreshToken) error {
	tr.lock.Lock()
	defer tr.lock.Unlock()

	stored := *refreshToken
	tr.tokens[stored.Token] = &stored
	if tr.userIDs[stored.UserID] == nil {
		tr.userIDs[stored.UserID] = make(map[string]struct{})
	}
	tr.userIDs[stored.UserID][stored.Token] = struct{}{}
	return nil
}

func (tr *FakeRefreshTokenRepo) Delete(token string) error {
	tr.lock.Lock()
	defer tr.lock.Unlock()

	rt, ok := tr.tokens[token]
	if !ok {
		return refresh.ErrNotFound
	}
	delete(tr.tokens, token)
	delete(tr.userIDs[rt.UserID], token)
	if len(tr.userIDs[rt.UserID]) == 0 {
		delete(tr.userIDs, rt.UserID)
	}
	return nil
}

func (tr *FakeRefreshTokenRepo) Get(token string) (*refresh.StoredRefreshToken, error) {
	tr.lock.RLock()
	defer tr.lock.RUnlock()
	rt, ok := tr.tokens[token]
	if !ok {
		return nil, refresh.ErrNotFound
	}
	stored := *rt
	return &stored, nil
}

func (tr *FakeRefreshTokenRepo) ListByUserID(userID string) ([]*refresh.StoredRefreshToken, error) {
	tr.lock.RLock()
	defer tr.lock.RUnlock()

	tokens := make([]*refresh.StoredRefreshToken, 0, len(tr.userIDs[userID]))
	for token := range tr.userIDs[userID] {
		stored := *tr.tokens[token]
		tokens = append(tokens, &stored)
	}
	sort.Slice(tokens, func(i, j int) bool {
		return tokens[i].Iat.Before(tokens[j].Iat)
	})
	return tokens, nil
}

func (tr *FakeRefreshTokenRepo) DeleteAllForUser(userID string) (int, error) {
	tr.lock.Lock()
	defer tr.lock.Unlock()

	n := len(tr.userIDs[userID])
	for token := range tr.userIDs[userID] {
		delete(tr.tokens, token)
	}
	delete(tr.userIDs, userID)
	return n, nil
}
