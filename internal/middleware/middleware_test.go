package middleware

import (
	"context"
	"errors"
	"testing"
	"time"

	"connectrpc.com/connect"

	"github.com/mmynk/roomledger/internal/auth"
	"github.com/mmynk/roomledger/internal/models"
)

type ping struct{}

func capture(got *context.Context) connect.UnaryFunc {
	return func(ctx context.Context, _ connect.AnyRequest) (connect.AnyResponse, error) {
		*got = ctx
		return connect.NewResponse(&ping{}), nil
	}
}

func request(header string) *connect.Request[ping] {
	req := connect.NewRequest(&ping{})
	if header != "" {
		req.Header().Set("Authorization", header)
	}
	return req
}

func TestRequireAuth(t *testing.T) {
	jwtManager := auth.NewJWTManager("test-secret", time.Hour)
	token, err := jwtManager.Generate(&models.User{ID: "u1", Email: "ops@example.com", Role: models.RoleAppAdmin})
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}
	interceptor := RequireAuth(jwtManager)

	t.Run("valid token", func(t *testing.T) {
		var ctx context.Context
		if _, err := interceptor(capture(&ctx))(context.Background(), request("Bearer "+token)); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if GetUserID(ctx) != "u1" || GetEmail(ctx) != "ops@example.com" || GetRole(ctx) != models.RoleAppAdmin {
			t.Errorf("identity = %s %s %s", GetUserID(ctx), GetEmail(ctx), GetRole(ctx))
		}
	})

	tests := []struct {
		name   string
		header string
	}{
		{"missing header", ""},
		{"wrong scheme", "Basic " + token},
		{"empty token", "Bearer "},
		{"bad token", "Bearer nope"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var ctx context.Context
			_, err := interceptor(capture(&ctx))(context.Background(), request(tt.header))
			var connectErr *connect.Error
			if !errors.As(err, &connectErr) || connectErr.Code() != connect.CodeUnauthenticated {
				t.Fatalf("err = %v, want unauthenticated", err)
			}
			if ctx != nil {
				t.Error("handler must not run")
			}
		})
	}
}

func TestOptionalAuth(t *testing.T) {
	jwtManager := auth.NewJWTManager("test-secret", time.Hour)
	token, err := jwtManager.Generate(&models.User{ID: "u2", Email: "bob@example.com", Role: models.RoleUser})
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}
	interceptor := OptionalAuth(jwtManager)

	var ctx context.Context
	if _, err := interceptor(capture(&ctx))(context.Background(), request("Bearer "+token)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if GetUserID(ctx) != "u2" {
		t.Errorf("user id = %q, want u2", GetUserID(ctx))
	}

	if _, err := interceptor(capture(&ctx))(context.Background(), request("Bearer junk")); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if GetUserID(ctx) != "" {
		t.Error("invalid token must not set identity")
	}
}

func TestGetRoleDefault(t *testing.T) {
	if got := GetRole(context.Background()); got != models.RoleUser {
		t.Errorf("role = %s, want USER", got)
	}
}

func TestLoggingInterceptorPassesThrough(t *testing.T) {
	want := connect.NewError(connect.CodeFailedPrecondition, errors.New("threshold crossed, close cycle first"))
	next := func(context.Context, connect.AnyRequest) (connect.AnyResponse, error) { return nil, want }

	_, err := LoggingInterceptor(nil)(next)(context.Background(), request(""))
	if !errors.Is(err, want) {
		t.Errorf("err = %v, want the handler's error", err)
	}
}
