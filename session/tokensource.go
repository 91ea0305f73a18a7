package session

import (
	"context"

	"golang.org/x/oauth2"
)

type tokenSource struct {
	ctx     context.Context
	manager *Manager
}

// TokenSource exposes the session to oauth2-aware HTTP clients. Tokens are
// reused until shortly before their stored expiry.
func (m *Manager) TokenSource(ctx context.Context) oauth2.TokenSource {
	return oauth2.ReuseTokenSource(nil, &tokenSource{ctx: ctx, manager: m})
}

func (s *tokenSource) Token() (*oauth2.Token, error) {
	access, err := s.manager.GetValidToken(s.ctx)
	if err != nil {
		return nil, err
	}
	tok := &oauth2.Token{AccessToken: access, TokenType: "Bearer"}
	if raw := s.manager.store.LoadRaw(s.ctx); raw.ExpiresAt != nil {
		tok.Expiry = *raw.ExpiresAt
	}
	return tok, nil
}
