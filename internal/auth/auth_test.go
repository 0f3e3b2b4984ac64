package auth

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/patooworld/omni/internal/log"
	"github.com/patooworld/omni/internal/storage"
)

const testSecret = "test-secret-key-at-least-32-chars-long"

func newTestService(t *testing.T) *Service {
	t.Helper()
	svc, err := New(Config{
		Store:     storage.NewMemory(),
		Logger:    log.NewNop(),
		JWTSecret: testSecret,
	})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return svc
}

func TestSignUpAndSignIn(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	user, token, err := svc.SignUp(ctx, "Alice@Example.com", "correct-horse", "Alice")
	if err != nil {
		t.Fatalf("SignUp() error = %v", err)
	}
	if user.Email != "alice@example.com" {
		t.Errorf("email = %q, want normalized %q", user.Email, "alice@example.com")
	}
	if user.DisplayName != "Alice" {
		t.Errorf("displayName = %q, want %q", user.DisplayName, "Alice")
	}
	if token == "" {
		t.Error("SignUp() returned empty token")
	}

	// Sign-in accepts the original casing.
	signedIn, token2, err := svc.SignIn(ctx, "ALICE@example.COM", "correct-horse")
	if err != nil {
		t.Fatalf("SignIn() error = %v", err)
	}
	if signedIn.ID != user.ID {
		t.Errorf("SignIn() id = %v, want %v", signedIn.ID, user.ID)
	}
	if token2 == "" {
		t.Error("SignIn() returned empty token")
	}
}

func TestSignUpValidation(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	tests := []struct {
		name     string
		email    string
		password string
		wantErr  error
	}{
		{"invalid email", "not-an-email", "long-enough-pw", ErrInvalidCredentials},
		{"short password", "bob@example.com", "short", ErrInvalidCredentials},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := svc.SignUp(ctx, tt.email, tt.password, "")
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("SignUp() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestSignUpDuplicate(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	if _, _, err := svc.SignUp(ctx, "alice@example.com", "correct-horse", ""); err != nil {
		t.Fatalf("SignUp() error = %v", err)
	}
	_, _, err := svc.SignUp(ctx, "Alice@Example.com", "another-password", "")
	if !errors.Is(err, ErrUserExists) {
		t.Errorf("SignUp(duplicate) error = %v, want ErrUserExists", err)
	}
}

func TestSignUpDefaultDisplayName(t *testing.T) {
	svc := newTestService(t)

	user, _, err := svc.SignUp(context.Background(), "carol@example.com", "correct-horse", "  ")
	if err != nil {
		t.Fatalf("SignUp() error = %v", err)
	}
	if user.DisplayName != "carol" {
		t.Errorf("displayName = %q, want email local part %q", user.DisplayName, "carol")
	}
}

func TestSignInFailures(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	if _, _, err := svc.SignUp(ctx, "alice@example.com", "correct-horse", ""); err != nil {
		t.Fatalf("SignUp() error = %v", err)
	}

	t.Run("wrong password", func(t *testing.T) {
		_, _, err := svc.SignIn(ctx, "alice@example.com", "wrong-password")
		if !errors.Is(err, ErrInvalidCredentials) {
			t.Errorf("SignIn() error = %v, want ErrInvalidCredentials", err)
		}
	})

	t.Run("unknown account", func(t *testing.T) {
		_, _, err := svc.SignIn(ctx, "nobody@example.com", "correct-horse")
		if !errors.Is(err, ErrInvalidCredentials) {
			t.Errorf("SignIn() error = %v, want ErrInvalidCredentials", err)
		}
	})
}

func TestVerifyToken(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	user, token, err := svc.SignUp(ctx, "alice@example.com", "correct-horse", "Alice")
	if err != nil {
		t.Fatalf("SignUp() error = %v", err)
	}

	verified, err := svc.VerifyToken(token)
	if err != nil {
		t.Fatalf("VerifyToken() error = %v", err)
	}
	if verified.ID != user.ID {
		t.Errorf("verified id = %v, want %v", verified.ID, user.ID)
	}
	if verified.Email != "alice@example.com" || verified.DisplayName != "Alice" {
		t.Errorf("verified identity = (%q, %q), want (%q, %q)",
			verified.Email, verified.DisplayName, "alice@example.com", "Alice")
	}
	if verified.PasswordHash != "" {
		t.Error("verified identity carries a password hash")
	}
}

func TestVerifyTokenFailures(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	_, token, err := svc.SignUp(ctx, "alice@example.com", "correct-horse", "")
	if err != nil {
		t.Fatalf("SignUp() error = %v", err)
	}

	t.Run("garbage token", func(t *testing.T) {
		if _, err := svc.VerifyToken("not.a.token"); !errors.Is(err, ErrAuthFailed) {
			t.Errorf("VerifyToken() error = %v, want ErrAuthFailed", err)
		}
	})

	t.Run("wrong secret", func(t *testing.T) {
		other, err := New(Config{
			Store:     storage.NewMemory(),
			Logger:    log.NewNop(),
			JWTSecret: "a-completely-different-32-char-secret",
		})
		if err != nil {
			t.Fatalf("New() error = %v", err)
		}
		if _, err := other.VerifyToken(token); !errors.Is(err, ErrAuthFailed) {
			t.Errorf("VerifyToken() error = %v, want ErrAuthFailed", err)
		}
	})

	t.Run("expired token", func(t *testing.T) {
		short, err := New(Config{
			Store:     storage.NewMemory(),
			Logger:    log.NewNop(),
			JWTSecret: testSecret,
			TokenTTL:  time.Nanosecond,
		})
		if err != nil {
			t.Fatalf("New() error = %v", err)
		}
		_, expired, err := short.SignUp(ctx, "bob@example.com", "correct-horse", "")
		if err != nil {
			t.Fatalf("SignUp() error = %v", err)
		}
		time.Sleep(10 * time.Millisecond)
		if _, err := short.VerifyToken(expired); !errors.Is(err, ErrAuthFailed) {
			t.Errorf("VerifyToken(expired) error = %v, want ErrAuthFailed", err)
		}
	})
}

func TestSignUpPlusAddressedEmail(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	user, _, err := svc.SignUp(ctx, "alice+work@example.com", "correct-horse", "Alice")
	if err != nil {
		t.Fatalf("SignUp() error = %v", err)
	}
	if user.Email != "alice+work@example.com" {
		t.Errorf("email = %q, want %q", user.Email, "alice+work@example.com")
	}

	signedIn, _, err := svc.SignIn(ctx, "Alice+Work@example.com", "correct-horse")
	if err != nil {
		t.Fatalf("SignIn() error = %v", err)
	}
	if signedIn.ID != user.ID {
		t.Errorf("SignIn() id = %v, want %v", signedIn.ID, user.ID)
	}

	// The plus address and the bare address are distinct accounts.
	if _, _, err := svc.SignUp(ctx, "alice@example.com", "correct-horse", ""); err != nil {
		t.Errorf("SignUp(bare address) error = %v", err)
	}
}

func TestUserKey(t *testing.T) {
	tests := []struct {
		name  string
		email string
		want  string
	}{
		{
			name:  "normalized before encoding",
			email: " Alice@Example.COM ",
			want:  "user_YWxpY2VAZXhhbXBsZS5jb20",
		},
		{
			name:  "plus addressing",
			email: "alice+work@example.com",
			want:  "user_YWxpY2Urd29ya0BleGFtcGxlLmNvbQ",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := UserKey(tt.email)
			if got != tt.want {
				t.Errorf("UserKey() = %q, want %q", got, tt.want)
			}
			if err := storage.ValidateKey(got); err != nil {
				t.Errorf("ValidateKey(%q) error = %v", got, err)
			}
		})
	}
}
