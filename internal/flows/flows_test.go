package flows

import (
	"context"
	"errors"
	"testing"
)

var errRejected = errors.New("rejected")

func refreshDeps(stored string, exchange func(string) (string, string, error)) (RefreshDeps, *[][2]string) {
	var saved [][2]string
	return RefreshDeps{
		LoadRefreshToken: func(context.Context) (string, error) { return stored, nil },
		Exchange: func(_ context.Context, rt string) (string, string, error) {
			return exchange(rt)
		},
		IsRejected: func(err error) bool { return errors.Is(err, errRejected) },
		IsExpired:  func(token string) bool { return token == "" || token == "expired" },
		SavePair: func(_ context.Context, a, r string) error {
			saved = append(saved, [2]string{a, r})
			return nil
		},
	}, &saved
}

func TestRunRefreshSuccessWritesBothTokens(t *testing.T) {
	deps, saved := refreshDeps("rt-1", func(rt string) (string, string, error) {
		if rt != "rt-1" {
			t.Fatalf("unexpected refresh token %q", rt)
		}
		return "at-2", "rt-2", nil
	})

	res := RunRefresh(context.Background(), deps)
	if res.Failure != RefreshFailureNone || res.Err != nil {
		t.Fatalf("unexpected failure %v: %v", res.Failure, res.Err)
	}
	if res.AccessToken != "at-2" || res.RefreshToken != "rt-2" || res.KeptRefreshToken {
		t.Fatalf("unexpected result %+v", res)
	}
	if len(*saved) != 1 || (*saved)[0] != [2]string{"at-2", "rt-2"} {
		t.Fatalf("expected one atomic save, got %v", *saved)
	}
}

func TestRunRefreshKeepsRefreshTokenWhenOmitted(t *testing.T) {
	warned := false
	deps, saved := refreshDeps("rt-1", func(string) (string, string, error) {
		return "at-2", "", nil
	})
	deps.Warn = func(string, ...any) { warned = true }

	res := RunRefresh(context.Background(), deps)
	if res.Err != nil {
		t.Fatalf("unexpected error: %v", res.Err)
	}
	if !res.KeptRefreshToken || res.RefreshToken != "rt-1" {
		t.Fatalf("expected previous refresh token to be kept, got %+v", res)
	}
	if (*saved)[0] != [2]string{"at-2", "rt-1"} {
		t.Fatalf("expected pair written together, got %v", *saved)
	}
	if !warned {
		t.Fatal("expected a warning for the fallback path")
	}
}

func TestRunRefreshFailureKinds(t *testing.T) {
	cases := []struct {
		name   string
		stored string
		ex     func(string) (string, string, error)
		want   RefreshFailureKind
	}{
		{
			name:   "missing",
			stored: "  ",
			ex:     func(string) (string, string, error) { t.Fatal("exchange must not run"); return "", "", nil },
			want:   RefreshFailureMissingToken,
		},
		{
			name:   "rejected",
			stored: "rt",
			ex:     func(string) (string, string, error) { return "", "", errRejected },
			want:   RefreshFailureRejected,
		},
		{
			name:   "transport",
			stored: "rt",
			ex:     func(string) (string, string, error) { return "", "", errors.New("dial tcp: refused") },
			want:   RefreshFailureExchange,
		},
		{
			name:   "expired access",
			stored: "rt",
			ex:     func(string) (string, string, error) { return "expired", "rt-2", nil },
			want:   RefreshFailureMalformed,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			deps, saved := refreshDeps(tc.stored, tc.ex)
			res := RunRefresh(context.Background(), deps)
			if res.Failure != tc.want {
				t.Fatalf("failure = %v, want %v", res.Failure, tc.want)
			}
			if res.Err == nil {
				t.Fatal("expected error")
			}
			if len(*saved) != 0 {
				t.Fatalf("failed refresh must not write, got %v", *saved)
			}
		})
	}
}

func TestRunRefreshPersistFailure(t *testing.T) {
	deps, _ := refreshDeps("rt", func(string) (string, string, error) { return "at", "rt2", nil })
	deps.SavePair = func(context.Context, string, string) error { return errors.New("disk full") }

	res := RunRefresh(context.Background(), deps)
	if res.Failure != RefreshFailurePersist {
		t.Fatalf("expected persist failure, got %v", res.Failure)
	}
}

func TestRunLogin(t *testing.T) {
	established := 0
	deps := LoginDeps{
		Validate: func() error { return nil },
		Call: func(context.Context) (LoginPayload, error) {
			return LoginPayload{AccessToken: "at", RefreshToken: "rt", UserID: "u1"}, nil
		},
		IsExpired: func(token string) bool { return token == "expired" },
		Establish: func(_ context.Context, p LoginPayload) error {
			established++
			if p.UserID != "u1" {
				t.Fatalf("unexpected payload %+v", p)
			}
			return nil
		},
	}

	res := RunLogin(context.Background(), deps)
	if res.Failure != LoginFailureNone || established != 1 {
		t.Fatalf("expected success, got %v (%v)", res.Failure, res.Err)
	}

	invalid := errors.New("password too short")
	deps.Validate = func() error { return invalid }
	deps.Call = func(context.Context) (LoginPayload, error) {
		t.Fatal("call must not run when validation fails")
		return LoginPayload{}, nil
	}
	res = RunLogin(context.Background(), deps)
	if res.Failure != LoginFailureValidation || !errors.Is(res.Err, invalid) {
		t.Fatalf("expected validation failure, got %v", res.Failure)
	}
}

func TestRunLoginRejectsIncompletePayload(t *testing.T) {
	deps := LoginDeps{
		Call: func(context.Context) (LoginPayload, error) {
			return LoginPayload{AccessToken: "at"}, nil
		},
		IsExpired: func(string) bool { return false },
		Establish: func(context.Context, LoginPayload) error {
			t.Fatal("establish must not run")
			return nil
		},
	}
	res := RunLogin(context.Background(), deps)
	if res.Failure != LoginFailureMissingTokens {
		t.Fatalf("expected missing tokens, got %v", res.Failure)
	}

	deps.Call = func(context.Context) (LoginPayload, error) {
		return LoginPayload{AccessToken: "expired", RefreshToken: "rt"}, nil
	}
	deps.IsExpired = func(token string) bool { return token == "expired" }
	res = RunLogin(context.Background(), deps)
	if res.Failure != LoginFailureMalformedToken {
		t.Fatalf("expected malformed token, got %v", res.Failure)
	}
}
