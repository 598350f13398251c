package resolver

import (
	"context"
	"fmt"

	"golang.org/x/oauth2"
)

// TokenSource adapts the resolver for golang.org/x/oauth2 consumers. Every
// Token call goes through GetClientToken, so ClearClientToken takes effect
// immediately.
func (r *CachedResolver) TokenSource(ctx context.Context, clientName string) oauth2.TokenSource {
	return &tokenSource{ctx: ctx, resolver: r, clientName: clientName}
}

type tokenSource struct {
	ctx        context.Context
	resolver   *CachedResolver
	clientName string
}

func (s *tokenSource) Token() (*oauth2.Token, error) {
	token, err := s.resolver.GetClientToken(s.ctx, s.clientName, nil)
	if err != nil {
		return nil, err
	}
	if token == "" {
		return nil, fmt.Errorf("%w for client %s", ErrNoToken, s.clientName)
	}

	if cached, ok := s.resolver.cache.Get(s.clientName); ok && cached.AccessToken == token {
		return cached.ToOAuth2Token(), nil
	}
	return &oauth2.Token{AccessToken: token, TokenType: "Bearer"}, nil
}
