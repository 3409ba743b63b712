package services

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/invoiceworks/billing-core/internal/models"
	"github.com/invoiceworks/billing-core/internal/monitoring"
	"github.com/invoiceworks/billing-core/internal/repo"
	"github.com/invoiceworks/billing-core/internal/tenant"
	"github.com/invoiceworks/billing-core/pkg/cache"
	"github.com/invoiceworks/billing-core/pkg/logger"
)

// AuthService handles credential login and session lifecycle. Password
// hashing itself is bcrypt via golang.org/x/crypto; the service only
// compares and never stores plaintext.
type AuthService struct {
	gateway *repo.Gateway
	cache   cache.Cache
	log     logger.Logger
}

func NewAuthService(gateway *repo.Gateway, c cache.Cache, log logger.Logger) *AuthService {
	if log == nil {
		log = logger.NewNop()
	}
	return &AuthService{gateway: gateway, cache: c, log: log}
}

// Login verifies the credentials and opens a session. The returned token is
// the opaque session id handed to the client. Wrong email and wrong
// password are indistinguishable to the caller.
func (s *AuthService) Login(ctx context.Context, email, password, ipAddress, userAgent string) (*models.User, string, error) {
	user, err := s.gateway.FindUserByEmail(ctx, email)
	if err != nil {
		monitoring.RecordAuthAttempt("password", "failure")
		return nil, "", fmt.Errorf("invalid credentials: %w", tenant.ErrUnauthenticated)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		monitoring.RecordAuthAttempt("password", "failure")
		return nil, "", fmt.Errorf("invalid credentials: %w", tenant.ErrUnauthenticated)
	}

	session := &models.UserSession{
		ID:             uuid.NewString(),
		UserID:         user.ID,
		OrganizationID: user.OrganizationID,
		Role:           user.Role.String(),
		IPAddress:      ipAddress,
		UserAgent:      userAgent,
		CreatedAt:      time.Now().UTC(),
	}
	if err := s.cache.SetSession(ctx, session); err != nil {
		monitoring.RecordAuthAttempt("password", "error")
		return nil, "", fmt.Errorf("store session: %w", err)
	}

	monitoring.RecordAuthAttempt("password", "success")
	s.log.Info("user logged in", "user_id", user.ID, "organization_id", user.OrganizationID)
	return user, session.ID, nil
}

// Logout revokes the session behind the token. Unknown tokens are already
// logged out.
func (s *AuthService) Logout(ctx context.Context, token string) error {
	if token == "" {
		return nil
	}
	return s.cache.InvalidateSession(ctx, token)
}

// CurrentUser loads the principal's own user record together with its
// organization, through the gateway under the principal's own scope.
func (s *AuthService) CurrentUser(ctx context.Context, p *tenant.Principal) (*models.User, *models.Organization, error) {
	scope, err := tenant.ResolveScope(p)
	if err != nil {
		return nil, nil, err
	}

	user, err := s.gateway.Users().Get(ctx, p.UserID, scope)
	if err != nil {
		return nil, nil, err
	}

	var org *models.Organization
	if user.OrganizationID != "" {
		org, err = s.gateway.Organizations().Get(ctx, user.OrganizationID, scope)
		if err != nil {
			return nil, nil, err
		}
	}
	return user, org, nil
}
