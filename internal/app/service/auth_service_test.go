package service

import (
	"context"
	"errors"
	"os"
	"testing"

	"codeclash/internal/common"
	"codeclash/internal/common/security"
	"codeclash/internal/platform/config"
)

func TestMain(m *testing.M) {
	config.Load()
	security.InitJWT()
	os.Exit(m.Run())
}

func TestSignupAndLogin(t *testing.T) {
	svc := NewAuthService(newMemUserRepo())
	ctx := context.Background()

	signedUp, err := svc.Signup(ctx, SignupRequest{Username: "alice", Email: "alice@example.com", Password: "s3cret"})
	if err != nil {
		t.Fatalf("Signup: %v", err)
	}
	if signedUp.Token == "" {
		t.Error("signup must issue a token")
	}
	if signedUp.User.HashedPassword != "" {
		t.Error("hashed password must not leak in the response")
	}

	// Login works with either username or email.
	for _, loginField := range []string{"alice", "alice@example.com"} {
		resp, err := svc.Login(ctx, LoginRequest{LoginField: loginField, Password: "s3cret"})
		if err != nil {
			t.Fatalf("Login(%s): %v", loginField, err)
		}
		if resp.User.ID != signedUp.User.ID {
			t.Errorf("Login(%s) returned user %s, want %s", loginField, resp.User.ID, signedUp.User.ID)
		}
	}
}

func TestLoginWrongPassword(t *testing.T) {
	svc := NewAuthService(newMemUserRepo())
	ctx := context.Background()

	if _, err := svc.Signup(ctx, SignupRequest{Username: "alice", Email: "alice@example.com", Password: "s3cret"}); err != nil {
		t.Fatalf("Signup: %v", err)
	}

	_, err := svc.Login(ctx, LoginRequest{LoginField: "alice", Password: "wrong"})
	if !errors.Is(err, common.ErrUnauthorized) {
		t.Fatalf("err = %v, want unauthorized", err)
	}
}

func TestLoginUnknownUserIsGenericUnauthorized(t *testing.T) {
	svc := NewAuthService(newMemUserRepo())

	_, err := svc.Login(context.Background(), LoginRequest{LoginField: "ghost", Password: "whatever"})
	if !errors.Is(err, common.ErrUnauthorized) {
		t.Fatalf("err = %v, want unauthorized (no user enumeration)", err)
	}
}

func TestSignupDuplicateUsername(t *testing.T) {
	svc := NewAuthService(newMemUserRepo())
	ctx := context.Background()

	if _, err := svc.Signup(ctx, SignupRequest{Username: "alice", Email: "alice@example.com", Password: "pw"}); err != nil {
		t.Fatalf("Signup: %v", err)
	}
	_, err := svc.Signup(ctx, SignupRequest{Username: "alice", Email: "other@example.com", Password: "pw"})
	if !errors.Is(err, common.ErrConflict) {
		t.Fatalf("err = %v, want conflict", err)
	}
}
