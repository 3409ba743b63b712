// Package auth resolves the authenticated principal for a request. It is a
// pure lookup against the session store (with an optional HMAC JWT
// fallback); it holds no state of its own and caches nothing across
// requests.
package auth

import (
	"context"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/invoiceworks/billing-core/internal/config"
	"github.com/invoiceworks/billing-core/internal/monitoring"
	"github.com/invoiceworks/billing-core/internal/tenant"
	"github.com/invoiceworks/billing-core/pkg/cache"
	"github.com/invoiceworks/billing-core/pkg/logger"
)

// Resolver turns a credential token into a Principal.
type Resolver struct {
	cache      cache.Cache
	jwtSecret  string
	sessionTTL time.Duration
	log        logger.Logger
}

func NewResolver(c cache.Cache, cfg config.AuthConfig, log logger.Logger) *Resolver {
	if log == nil {
		log = logger.NewNop()
	}
	return &Resolver{
		cache:      c,
		jwtSecret:  cfg.JWTSecret,
		sessionTTL: time.Duration(cfg.SessionTTLMinutes) * time.Minute,
		log:        log,
	}
}

// Resolve validates the token and returns the request principal. Every
// failure mode (missing, malformed, expired, revoked) collapses into
// tenant.ErrUnauthenticated; callers never learn which.
func (r *Resolver) Resolve(ctx context.Context, token string) (*tenant.Principal, error) {
	if token == "" {
		return nil, tenant.ErrUnauthenticated
	}

	if p, err := r.resolveSession(ctx, token); err == nil {
		monitoring.RecordAuthAttempt("session", "success")
		return p, nil
	}

	if r.jwtSecret != "" {
		if p, err := r.resolveJWT(token); err == nil {
			monitoring.RecordAuthAttempt("jwt", "success")
			return p, nil
		}
	}

	monitoring.RecordAuthAttempt("token", "failure")
	return nil, tenant.ErrUnauthenticated
}

func (r *Resolver) resolveSession(ctx context.Context, token string) (*tenant.Principal, error) {
	session, err := r.cache.GetSession(ctx, token)
	if err != nil {
		return nil, err
	}

	if time.Since(session.LastActivity) > r.sessionTTL {
		// Expired sessions are removed eagerly so the token is revoked, not
		// merely idle.
		_ = r.cache.InvalidateSession(ctx, token)
		return nil, fmt.Errorf("session expired: %w", tenant.ErrUnauthenticated)
	}

	role, err := tenant.ParseRole(session.Role)
	if err != nil {
		r.log.Warn("session carries unknown role", "session_id", session.ID, "role", session.Role)
		return nil, fmt.Errorf("invalid session role: %w", tenant.ErrUnauthenticated)
	}

	// Sliding expiry; a failed refresh only shortens the session.
	if err := r.cache.SetSession(ctx, session); err != nil {
		r.log.Debug("session refresh failed", "error", err)
	}

	return &tenant.Principal{
		UserID:         session.UserID,
		OrganizationID: session.OrganizationID,
		Role:           role,
	}, nil
}

func (r *Resolver) resolveJWT(tokenString string) (*tenant.Principal, error) {
	token, err := jwt.Parse(tokenString, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return []byte(r.jwtSecret), nil
	})
	if err != nil || !token.Valid {
		return nil, fmt.Errorf("invalid JWT: %w", tenant.ErrUnauthenticated)
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return nil, fmt.Errorf("invalid JWT claims: %w", tenant.ErrUnauthenticated)
	}

	userID, _ := claims["sub"].(string)
	if userID == "" {
		return nil, fmt.Errorf("JWT missing subject: %w", tenant.ErrUnauthenticated)
	}
	roleClaim, _ := claims["role"].(string)
	role, err := tenant.ParseRole(roleClaim)
	if err != nil {
		return nil, fmt.Errorf("JWT role: %w", tenant.ErrUnauthenticated)
	}
	orgID, _ := claims["org"].(string)

	return &tenant.Principal{
		UserID:         userID,
		OrganizationID: orgID,
		Role:           role,
	}, nil
}
