package service_test

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/msomdec/quill/internal/domain"
	"github.com/msomdec/quill/internal/repository/sqlite"
	"github.com/msomdec/quill/internal/service"
)

const testJWTSecret = "test-secret-key-for-unit-tests-0123456789"

func newTestDB(t *testing.T) *sqlite.DB {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "test.db")
	db, err := sqlite.New(dbPath)
	if err != nil {
		t.Fatalf("New DB: %v", err)
	}
	if err := db.Migrate(context.Background()); err != nil {
		t.Fatalf("Migrate: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func newTestAuthService(t *testing.T, adminEmail string) (*service.AuthService, *sqlite.DB) {
	t.Helper()
	db := newTestDB(t)
	// Use cost 4 for fast tests.
	return service.NewAuthService(db.Users(), db, testJWTSecret, 4, adminEmail), db
}

func TestAuthService_Register_Success(t *testing.T) {
	auth, _ := newTestAuthService(t, "")
	ctx := context.Background()

	user, err := auth.Register(ctx, "New User", " New@Example.com ", "pw123")
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	if user.ID == 0 {
		t.Fatal("expected user ID to be set")
	}
	if user.Email != "new@example.com" {
		t.Fatalf("expected normalized email new@example.com, got %s", user.Email)
	}
	if user.PasswordHash == "pw123" || user.PasswordHash == "" {
		t.Fatal("password must be stored hashed")
	}
}

func TestAuthService_Register_DuplicateEmail(t *testing.T) {
	auth, _ := newTestAuthService(t, "")
	ctx := context.Background()

	if _, err := auth.Register(ctx, "User 1", "dup@example.com", "password123"); err != nil {
		t.Fatalf("first register: %v", err)
	}

	_, err := auth.Register(ctx, "User 2", "DUP@example.com", "password456")
	if !errors.Is(err, domain.ErrDuplicateEmail) {
		t.Fatalf("expected ErrDuplicateEmail, got %v", err)
	}
}

func TestAuthService_Register_InvalidInput(t *testing.T) {
	auth, _ := newTestAuthService(t, "")
	ctx := context.Background()

	tests := []struct {
		name     string
		display  string
		email    string
		password string
	}{
		{"empty name", "", "a@b.com", "pw123"},
		{"blank name", "   ", "a@b.com", "pw123"},
		{"empty email", "Name", "", "pw123"},
		{"email without at", "Name", "not-an-email", "pw123"},
		{"empty password", "Name", "a@b.com", ""},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := auth.Register(ctx, tc.display, tc.email, tc.password)
			if !errors.Is(err, domain.ErrInvalidInput) {
				t.Fatalf("expected ErrInvalidInput, got %v", err)
			}
		})
	}
}

func TestAuthService_Register_FirstUserIsAdmin(t *testing.T) {
	auth, _ := newTestAuthService(t, "")
	ctx := context.Background()

	first, err := auth.Register(ctx, "Admin", "admin@example.com", "pw123")
	if err != nil {
		t.Fatalf("Register admin: %v", err)
	}
	second, err := auth.Register(ctx, "Ann", "ann@x.com", "pw123")
	if err != nil {
		t.Fatalf("Register ann: %v", err)
	}

	if !first.IsAdmin() {
		t.Fatal("first account on an empty store should be admin")
	}
	if second.IsAdmin() {
		t.Fatal("second account should be a member")
	}
}

func TestAuthService_Register_AdminEmail(t *testing.T) {
	auth, _ := newTestAuthService(t, "Boss@Example.com")
	ctx := context.Background()

	ann, err := auth.Register(ctx, "Ann", "ann@x.com", "pw123")
	if err != nil {
		t.Fatalf("Register ann: %v", err)
	}
	boss, err := auth.Register(ctx, "Boss", "boss@example.com", "pw123")
	if err != nil {
		t.Fatalf("Register boss: %v", err)
	}

	if ann.IsAdmin() {
		t.Fatal("first user must not be admin when ADMIN_EMAIL is configured")
	}
	if !boss.IsAdmin() {
		t.Fatal("user with the admin email should be admin")
	}
}

func TestAuthService_Authenticate_Success(t *testing.T) {
	auth, _ := newTestAuthService(t, "")
	ctx := context.Background()

	registered, err := auth.Register(ctx, "Login User", "login@example.com", "pw123")
	if err != nil {
		t.Fatalf("Register: %v", err)
	}

	user, err := auth.Authenticate(ctx, "LOGIN@example.com", "pw123")
	if err != nil {
		t.Fatalf("Authenticate: %v", err)
	}
	if user.ID != registered.ID {
		t.Fatalf("expected user ID %d, got %d", registered.ID, user.ID)
	}
}

func TestAuthService_Authenticate_FailuresAreIndistinguishable(t *testing.T) {
	auth, _ := newTestAuthService(t, "")
	ctx := context.Background()

	if _, err := auth.Register(ctx, "User", "wrongpw@example.com", "password123"); err != nil {
		t.Fatalf("Register: %v", err)
	}

	_, wrongPassword := auth.Authenticate(ctx, "wrongpw@example.com", "wrongpassword")
	_, unknownEmail := auth.Authenticate(ctx, "nobody@example.com", "password123")

	if !errors.Is(wrongPassword, domain.ErrInvalidCredentials) {
		t.Fatalf("wrong password: expected ErrInvalidCredentials, got %v", wrongPassword)
	}
	if !errors.Is(unknownEmail, domain.ErrInvalidCredentials) {
		t.Fatalf("unknown email: expected ErrInvalidCredentials, got %v", unknownEmail)
	}
	if wrongPassword.Error() != unknownEmail.Error() {
		t.Fatalf("failure messages differ: %q vs %q", wrongPassword, unknownEmail)
	}
}

func TestAuthService_Authenticate_UpgradesLegacyHash(t *testing.T) {
	auth, db := newTestAuthService(t, "")
	ctx := context.Background()

	legacy := &domain.User{
		Name:         "Old Timer",
		Email:        "old@example.com",
		PasswordHash: "pbkdf2:sha256:1000$Ab3dE6gH$b5d521136a788cbfdb39c756249a5aaebee54c4d5a9126d18ae7f3344a0c7744",
	}
	if err := db.Users().Create(ctx, legacy); err != nil {
		t.Fatalf("Create: %v", err)
	}

	if _, err := auth.Authenticate(ctx, "old@example.com", "pw123"); err != nil {
		t.Fatalf("Authenticate with legacy hash: %v", err)
	}

	stored, err := db.Users().GetByID(ctx, legacy.ID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if stored.PasswordHash == legacy.PasswordHash {
		t.Fatal("expected legacy hash to be replaced")
	}

	// The upgraded bcrypt hash still accepts the same password.
	if _, err := auth.Authenticate(ctx, "old@example.com", "pw123"); err != nil {
		t.Fatalf("Authenticate after upgrade: %v", err)
	}
}

func TestAuthService_Token_IssueAndValidate(t *testing.T) {
	auth, _ := newTestAuthService(t, "")
	ctx := context.Background()

	user, err := auth.Register(ctx, "JWT User", "jwt@example.com", "pw123")
	if err != nil {
		t.Fatalf("Register: %v", err)
	}

	token, err := auth.IssueToken(user)
	if err != nil {
		t.Fatalf("IssueToken: %v", err)
	}

	userID, err := auth.ValidateToken(token)
	if err != nil {
		t.Fatalf("ValidateToken: %v", err)
	}
	if userID != user.ID {
		t.Fatalf("expected user ID %d, got %d", user.ID, userID)
	}
}

func TestAuthService_Token_Invalid(t *testing.T) {
	auth, _ := newTestAuthService(t, "")

	if _, err := auth.ValidateToken("not-a-valid-jwt"); !errors.Is(err, domain.ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized, got %v", err)
	}
}

func TestAuthService_Token_Tampered(t *testing.T) {
	auth, _ := newTestAuthService(t, "")
	ctx := context.Background()

	user, err := auth.Register(ctx, "Tamper", "tamper@example.com", "pw123")
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	token, err := auth.IssueToken(user)
	if err != nil {
		t.Fatalf("IssueToken: %v", err)
	}

	tampered := token[:len(token)-5] + "XXXXX"
	if _, err := auth.ValidateToken(tampered); !errors.Is(err, domain.ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized for tampered token, got %v", err)
	}
}

func TestAuthService_Token_WrongSecret(t *testing.T) {
	auth1, db := newTestAuthService(t, "")
	ctx := context.Background()

	user, err := auth1.Register(ctx, "Secret", "secret@example.com", "pw123")
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	token, err := auth1.IssueToken(user)
	if err != nil {
		t.Fatalf("IssueToken: %v", err)
	}

	auth2 := service.NewAuthService(db.Users(), db, "a-completely-different-secret-value!!", 4, "")
	if _, err := auth2.ValidateToken(token); !errors.Is(err, domain.ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized for wrong secret, got %v", err)
	}
}

func TestAuthService_ResolveIdentity(t *testing.T) {
	auth, _ := newTestAuthService(t, "")
	ctx := context.Background()

	user, err := auth.Register(ctx, "Ann", "ann@x.com", "pw123")
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	token, err := auth.IssueToken(user)
	if err != nil {
		t.Fatalf("IssueToken: %v", err)
	}

	id, err := auth.ResolveIdentity(ctx, token)
	if err != nil {
		t.Fatalf("ResolveIdentity: %v", err)
	}
	if !id.IsAuthenticated() || id.User.ID != user.ID {
		t.Fatalf("expected authenticated identity for user %d, got %+v", user.ID, id)
	}

	for _, tok := range []string{"", "garbage"} {
		id, err := auth.ResolveIdentity(ctx, tok)
		if err != nil {
			t.Fatalf("ResolveIdentity(%q): %v", tok, err)
		}
		if id.IsAuthenticated() {
			t.Fatalf("ResolveIdentity(%q): expected anonymous", tok)
		}
	}
}

func TestAuthService_ResolveIdentity_DeletedUser(t *testing.T) {
	auth, _ := newTestAuthService(t, "")
	ctx := context.Background()

	token, err := auth.IssueToken(&domain.User{ID: 4242})
	if err != nil {
		t.Fatalf("IssueToken: %v", err)
	}

	id, err := auth.ResolveIdentity(ctx, token)
	if err != nil {
		t.Fatalf("ResolveIdentity: %v", err)
	}
	if id.IsAuthenticated() {
		t.Fatal("token for a missing user must resolve to anonymous")
	}
}

func TestRequireAdmin(t *testing.T) {
	tests := []struct {
		name     string
		identity domain.Identity
		wantErr  bool
	}{
		{"anonymous", domain.Anonymous, true},
		{"member", domain.Identity{User: &domain.User{ID: 1, Role: domain.RoleMember}}, true},
		{"admin", domain.Identity{User: &domain.User{ID: 7, Role: domain.RoleAdmin}}, false},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			err := service.RequireAdmin(tc.identity)
			if tc.wantErr && !errors.Is(err, domain.ErrAdminRequired) {
				t.Fatalf("expected ErrAdminRequired, got %v", err)
			}
			if !tc.wantErr && err != nil {
				t.Fatalf("expected nil, got %v", err)
			}
		})
	}
}
