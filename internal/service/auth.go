package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/msomdec/quill/internal/domain"
)

// SessionTTL is how long an issued session token stays valid.
const SessionTTL = 24 * time.Hour

// AuthService is the credential store and session manager: it registers
// and authenticates users, and issues and resolves session tokens.
type AuthService struct {
	users      domain.UserRepository
	tx         domain.Transactor
	jwtSecret  []byte
	bcryptCost int
	adminEmail string
	dummyHash  []byte
}

// NewAuthService creates a new AuthService. When adminEmail is empty the
// first account registered on an empty store is made admin.
func NewAuthService(users domain.UserRepository, tx domain.Transactor, jwtSecret string, bcryptCost int, adminEmail string) *AuthService {
	// Compared against when the email is unknown so both failure paths cost
	// one bcrypt comparison.
	dummy, err := bcrypt.GenerateFromPassword([]byte("quill-dummy-password"), bcryptCost)
	if err != nil {
		panic(fmt.Sprintf("generate dummy hash: %v", err))
	}
	return &AuthService{
		users:      users,
		tx:         tx,
		jwtSecret:  []byte(jwtSecret),
		bcryptCost: bcryptCost,
		adminEmail: NormalizeEmail(adminEmail),
		dummyHash:  dummy,
	}
}

// NormalizeEmail trims and lower-cases an email address. Emails are compared
// in this form everywhere.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// Register creates a new account after validating inputs.
func (s *AuthService) Register(ctx context.Context, name, email, password string) (*domain.User, error) {
	name = strings.TrimSpace(name)
	email = NormalizeEmail(email)
	if name == "" || email == "" || password == "" {
		return nil, fmt.Errorf("%w: name, email, and password are required", domain.ErrInvalidInput)
	}
	if !strings.Contains(email, "@") {
		return nil, fmt.Errorf("%w: email address is not valid", domain.ErrInvalidInput)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.bcryptCost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	user := &domain.User{
		Name:         name,
		Email:        email,
		PasswordHash: string(hash),
		Role:         domain.RoleMember,
	}

	err = s.tx.InTx(ctx, func(ctx context.Context) error {
		admin, err := s.grantsAdmin(ctx, email)
		if err != nil {
			return err
		}
		if admin {
			user.Role = domain.RoleAdmin
		}
		return s.users.Create(ctx, user)
	})
	if err != nil {
		if errors.Is(err, domain.ErrDuplicateEmail) {
			return nil, err
		}
		return nil, fmt.Errorf("create user: %w", err)
	}

	if user.IsAdmin() {
		slog.Info("admin account registered", "user_id", user.ID)
	}
	return user, nil
}

func (s *AuthService) grantsAdmin(ctx context.Context, email string) (bool, error) {
	if s.adminEmail != "" {
		return email == s.adminEmail, nil
	}
	n, err := s.users.Count(ctx)
	if err != nil {
		return false, err
	}
	return n == 0, nil
}

// Authenticate verifies credentials. An unknown email and a wrong password
// both return ErrInvalidCredentials.
func (s *AuthService) Authenticate(ctx context.Context, email, password string) (*domain.User, error) {
	user, err := s.users.GetByEmail(ctx, NormalizeEmail(email))
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			_ = bcrypt.CompareHashAndPassword(s.dummyHash, []byte(password))
			return nil, domain.ErrInvalidCredentials
		}
		return nil, fmt.Errorf("get user: %w", err)
	}

	ok, legacy := checkPassword(user.PasswordHash, password)
	if !ok {
		return nil, domain.ErrInvalidCredentials
	}

	if legacy {
		s.upgradeHash(ctx, user, password)
	}
	return user, nil
}

// upgradeHash rewrites a legacy PBKDF2 hash as bcrypt. Failure is logged and
// does not fail the login.
func (s *AuthService) upgradeHash(ctx context.Context, user *domain.User, password string) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.bcryptCost)
	if err != nil {
		slog.Warn("rehash legacy password", "user_id", user.ID, "error", err)
		return
	}
	if err := s.users.UpdatePasswordHash(ctx, user.ID, string(hash)); err != nil {
		slog.Warn("store upgraded password hash", "user_id", user.ID, "error", err)
		return
	}
	user.PasswordHash = string(hash)
	slog.Info("legacy password hash upgraded", "user_id", user.ID)
}

// IssueToken returns a signed session token for the user.
func (s *AuthService) IssueToken(user *domain.User) (string, error) {
	now := time.Now()
	claims := jwt.RegisteredClaims{
		Subject:   strconv.FormatInt(user.ID, 10),
		ID:        uuid.NewString(),
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(SessionTTL)),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(s.jwtSecret)
}

// ValidateToken parses and validates a session token and returns the user
// ID from its subject.
func (s *AuthService) ValidateToken(tokenString string) (int64, error) {
	var claims jwt.RegisteredClaims
	token, err := jwt.ParseWithClaims(tokenString, &claims, func(token *jwt.Token) (any, error) {
		return s.jwtSecret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithExpirationRequired())
	if err != nil || !token.Valid {
		return 0, domain.ErrUnauthorized
	}

	userID, err := strconv.ParseInt(claims.Subject, 10, 64)
	if err != nil {
		return 0, domain.ErrUnauthorized
	}
	return userID, nil
}

// ResolveIdentity maps a session token to the caller's identity, re-reading
// the user from the store. A missing, invalid or expired token, or a user
// that no longer exists, yields Anonymous. Only store failures are returned.
func (s *AuthService) ResolveIdentity(ctx context.Context, tokenString string) (domain.Identity, error) {
	if tokenString == "" {
		return domain.Anonymous, nil
	}
	userID, err := s.ValidateToken(tokenString)
	if err != nil {
		return domain.Anonymous, nil
	}

	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return domain.Anonymous, nil
		}
		return domain.Anonymous, fmt.Errorf("load session user: %w", err)
	}
	return domain.Identity{User: user}, nil
}

// GetUserByID retrieves a user by their ID.
func (s *AuthService) GetUserByID(ctx context.Context, id int64) (*domain.User, error) {
	return s.users.GetByID(ctx, id)
}

// RequireAdmin authorizes admin-only operations. Every identity that does
// not hold the admin role, anonymous included, gets ErrAdminRequired.
func RequireAdmin(identity domain.Identity) error {
	if !identity.User.IsAdmin() {
		return domain.ErrAdminRequired
	}
	return nil
}
