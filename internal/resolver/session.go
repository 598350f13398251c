package resolver

import (
	"context"
	"log/slog"
	"net/url"
	"time"

	"github.com/giantswarm/tokenresolver/internal/session"
	"github.com/giantswarm/tokenresolver/pkg/logging"
	"github.com/giantswarm/tokenresolver/pkg/oauth"
)

// SessionResolver is the session-bound form: the token set lives in the
// current sign-in session and is renewed with the refresh_token grant.
type SessionResolver struct {
	*Resolver
}

// NewSessionResolver creates a session-bound resolver.
func NewSessionResolver(store session.Store, clients ClientResolver, opts ...Option) *SessionResolver {
	s := newSettings("Resolver", opts)

	strategy := &sessionStrategy{
		store:   store,
		clients: clients,
		logger:  s.logger,
	}

	return &SessionResolver{Resolver: newResolver(strategy, s)}
}

type sessionStrategy struct {
	store   session.Store
	clients ClientResolver
	logger  *slog.Logger
}

func (s *sessionStrategy) CurrentTokens(ctx context.Context, clientName string) (TokenSet, bool, error) {
	sess, ok := s.store.Current(ctx)
	if !ok {
		s.logger.Info("No active session", "client", clientName)
		return TokenSet{}, false, nil
	}
	if !sess.Principal.Authenticated {
		s.logger.Info("Session principal is not authenticated",
			"client", clientName,
			"session", logging.TruncateID(sess.ID))
		return TokenSet{}, false, nil
	}

	return TokenSet{
		AccessToken:  sess.Tokens.AccessToken,
		RefreshToken: sess.Tokens.RefreshToken,
		ExpiresAt:    sess.Tokens.ExpiresAt,
	}, true, nil
}

func (s *sessionStrategy) RequiresRefreshToken() bool {
	return true
}

func (s *sessionStrategy) ClientConfig(ctx context.Context, _ string, explicit *oauth.ClientConfig) (*oauth.ClientConfig, error) {
	if explicit != nil {
		cfg := *explicit
		return &cfg, nil
	}

	cfg, scheme, err := s.clients.Resolve(ctx)
	if err != nil {
		return nil, err
	}
	cfg.Scheme = scheme
	return &cfg, nil
}

func (s *sessionStrategy) Validate(cfg oauth.ClientConfig) error {
	return requireFields(
		[2]string{"client id", cfg.ClientID},
		[2]string{"authority", cfg.Authority},
	)
}

func (s *sessionStrategy) Grant(cfg oauth.ClientConfig, current TokenSet) url.Values {
	form := url.Values{
		"grant_type":    {oauth.GrantTypeRefreshToken},
		"client_id":     {cfg.ClientID},
		"refresh_token": {current.RefreshToken},
	}
	// client_secret_post for confidential clients; public clients send none.
	if cfg.ClientSecret != "" {
		form.Set("client_secret", cfg.ClientSecret)
	}
	if cfg.Scope != "" {
		form.Set("scope", cfg.Scope)
	}
	return form
}

func (s *sessionStrategy) Store(ctx context.Context, _ string, current TokenSet, resp oauth.TokenResponse, expiresAt time.Time) error {
	sess, ok := s.store.Current(ctx)
	if !ok {
		return session.ErrNoSession
	}

	tokens := sess.Tokens
	tokens.AccessToken = resp.AccessToken
	tokens.ExpiresAt = expiresAt
	tokens.RefreshToken = current.RefreshToken
	if resp.RefreshToken != "" {
		tokens.RefreshToken = resp.RefreshToken
	}
	if resp.IDToken != "" {
		tokens.IDToken = resp.IDToken
	}

	// A nil IssuedAt keeps the session's original sign-in time.
	props := session.Properties{ExpiresAt: sess.Properties.ExpiresAt}

	return s.store.Reissue(ctx, sess.Principal, tokens, props)
}
