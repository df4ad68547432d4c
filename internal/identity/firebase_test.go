package identity

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"firebase.google.com/go/v4/auth"
	identitytoolkit "google.golang.org/api/identitytoolkit/v3"
)

// mockFirebaseAuth はfirebaseAuthClientのモック。
type mockFirebaseAuth struct {
	createUserFn     func(ctx context.Context, user *auth.UserToCreate) (*auth.UserRecord, error)
	getUserByEmailFn func(ctx context.Context, email string) (*auth.UserRecord, error)
	sessionCookieFn  func(ctx context.Context, idToken string, expiresIn time.Duration) (string, error)
	verifyFn         func(ctx context.Context, cookie string) (*auth.Token, error)
	verifyRevokedFn  func(ctx context.Context, cookie string) (*auth.Token, error)
	revokeRefreshFn  func(ctx context.Context, uid string) error
}

func (m *mockFirebaseAuth) CreateUser(ctx context.Context, user *auth.UserToCreate) (*auth.UserRecord, error) {
	return m.createUserFn(ctx, user)
}

func (m *mockFirebaseAuth) GetUserByEmail(ctx context.Context, email string) (*auth.UserRecord, error) {
	return m.getUserByEmailFn(ctx, email)
}

func (m *mockFirebaseAuth) SessionCookie(ctx context.Context, idToken string, expiresIn time.Duration) (string, error) {
	return m.sessionCookieFn(ctx, idToken, expiresIn)
}

func (m *mockFirebaseAuth) VerifySessionCookie(ctx context.Context, cookie string) (*auth.Token, error) {
	return m.verifyFn(ctx, cookie)
}

func (m *mockFirebaseAuth) VerifySessionCookieAndCheckRevoked(ctx context.Context, cookie string) (*auth.Token, error) {
	return m.verifyRevokedFn(ctx, cookie)
}

func (m *mockFirebaseAuth) RevokeRefreshTokens(ctx context.Context, uid string) error {
	return m.revokeRefreshFn(ctx, uid)
}

func TestFirebaseProvider_VerifySessionToken_UsesRevocationCheck(t *testing.T) {
	var calledRevoked, calledPlain bool
	mock := &mockFirebaseAuth{
		verifyRevokedFn: func(_ context.Context, cookie string) (*auth.Token, error) {
			calledRevoked = true
			return &auth.Token{UID: "uid-1", IssuedAt: 100, Expires: 200, Claims: map[string]interface{}{"email": "a@example.com"}}, nil
		},
		verifyFn: func(_ context.Context, cookie string) (*auth.Token, error) {
			calledPlain = true
			return &auth.Token{UID: "uid-1"}, nil
		},
	}
	p := newFirebaseProvider(mock, nil)

	claims, err := p.VerifySessionToken(context.Background(), "cookie", true)
	if err != nil {
		t.Fatalf("VerifySessionToken returned error: %v", err)
	}
	if !calledRevoked || calledPlain {
		t.Errorf("calledRevoked=%v calledPlain=%v, want true/false", calledRevoked, calledPlain)
	}
	if claims.UID != "uid-1" || claims.Email != "a@example.com" {
		t.Errorf("claims = %+v", claims)
	}
	if !claims.ExpiresAt.Equal(time.Unix(200, 0)) {
		t.Errorf("ExpiresAt = %v", claims.ExpiresAt)
	}

	if _, err := p.VerifySessionToken(context.Background(), "cookie", false); err != nil {
		t.Fatalf("VerifySessionToken(checkRevoked=false) returned error: %v", err)
	}
	if !calledPlain {
		t.Error("checkRevoked=falseでVerifySessionCookieが呼ばれていない")
	}
}

func TestFirebaseProvider_CreateSessionToken_PassesExpiry(t *testing.T) {
	var gotExpiry time.Duration
	mock := &mockFirebaseAuth{
		sessionCookieFn: func(_ context.Context, idToken string, expiresIn time.Duration) (string, error) {
			gotExpiry = expiresIn
			return "session-" + idToken, nil
		},
	}
	p := newFirebaseProvider(mock, nil)

	got, err := p.CreateSessionToken(context.Background(), "id-1", 7*24*time.Hour)
	if err != nil {
		t.Fatalf("CreateSessionToken returned error: %v", err)
	}
	if got != "session-id-1" {
		t.Errorf("token = %q", got)
	}
	if gotExpiry != 7*24*time.Hour {
		t.Errorf("expiresIn = %v, want 168h", gotExpiry)
	}
}

func TestFirebaseProvider_CreateSessionToken_Failure(t *testing.T) {
	mock := &mockFirebaseAuth{
		sessionCookieFn: func(context.Context, string, time.Duration) (string, error) {
			return "", errors.New("bad token")
		},
	}
	p := newFirebaseProvider(mock, nil)

	_, err := p.CreateSessionToken(context.Background(), "id", time.Hour)
	if CodeOf(err) != CodeInvalidToken {
		t.Errorf("CodeOf(err) = %q, want %q", CodeOf(err), CodeInvalidToken)
	}
}

func TestFirebaseProvider_GetUserByEmail(t *testing.T) {
	mock := &mockFirebaseAuth{
		getUserByEmailFn: func(_ context.Context, email string) (*auth.UserRecord, error) {
			return &auth.UserRecord{UserInfo: &auth.UserInfo{UID: "uid-1", Email: email, DisplayName: "Alice"}}, nil
		},
	}
	p := newFirebaseProvider(mock, nil)

	rec, err := p.GetUserByEmail(context.Background(), "a@example.com")
	if err != nil {
		t.Fatalf("GetUserByEmail returned error: %v", err)
	}
	if rec.UID != "uid-1" || rec.DisplayName != "Alice" || rec.Email != "a@example.com" {
		t.Errorf("rec = %+v", rec)
	}
}

// 分類できないSDKエラーはinternal-errorになる
func TestFirebaseProvider_UnknownError(t *testing.T) {
	mock := &mockFirebaseAuth{
		revokeRefreshFn: func(context.Context, string) error { return errors.New("boom") },
	}
	p := newFirebaseProvider(mock, nil)

	err := p.RevokeSessions(context.Background(), "uid")
	if CodeOf(err) != CodeInternal {
		t.Errorf("CodeOf(err) = %q, want %q", CodeOf(err), CodeInternal)
	}
}

// newTestToolkit はsrvに向けたIdentity Toolkitクライアントを返す。
func newTestToolkit(t *testing.T, srv *httptest.Server, apiKey string) *identitytoolkit.Service {
	t.Helper()
	svc, err := newToolkitService(context.Background(), FirebaseConfig{
		APIKey:          apiKey,
		ToolkitEndpoint: srv.URL + "/",
	})
	if err != nil {
		t.Fatalf("newToolkitService: %v", err)
	}
	return svc
}

func TestFirebaseProvider_SignInWithPassword_Success(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/verifyPassword" {
			t.Errorf("request = %s %s", r.Method, r.URL.Path)
		}
		if r.URL.Query().Get("key") != "api-key" {
			t.Errorf("key = %q", r.URL.Query().Get("key"))
		}
		var req struct {
			Email             string `json:"email"`
			Password          string `json:"password"`
			ReturnSecureToken bool   `json:"returnSecureToken"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		if req.Email != "a@example.com" || req.Password != "pw" || !req.ReturnSecureToken {
			t.Errorf("request = %+v", req)
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]string{"idToken": "id-token-1"})
	}))
	defer srv.Close()

	p := newFirebaseProvider(&mockFirebaseAuth{}, newTestToolkit(t, srv, "api-key"))

	got, err := p.SignInWithPassword(context.Background(), "a@example.com", "pw")
	if err != nil {
		t.Fatalf("SignInWithPassword returned error: %v", err)
	}
	if got != "id-token-1" {
		t.Errorf("idToken = %q", got)
	}
}

func TestFirebaseProvider_SignInWithPassword_MissingIDToken(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"email": "a@example.com"}`))
	}))
	defer srv.Close()

	p := newFirebaseProvider(&mockFirebaseAuth{}, newTestToolkit(t, srv, "k"))
	if _, err := p.SignInWithPassword(context.Background(), "a@example.com", "pw"); err == nil {
		t.Error("idTokenがない応答でエラーにならない")
	}
}

func TestFirebaseProvider_SignInWithPassword_Errors(t *testing.T) {
	tests := []struct {
		message  string
		wantCode string
	}{
		{"EMAIL_NOT_FOUND", CodeUserNotFound},
		{"INVALID_PASSWORD", CodeWrongPassword},
		{"INVALID_LOGIN_CREDENTIALS", CodeWrongPassword},
		{"TOO_MANY_ATTEMPTS_TRY_LATER : Access disabled", CodeInternal},
	}

	for _, tt := range tests {
		t.Run(tt.message, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusBadRequest)
				json.NewEncoder(w).Encode(map[string]any{
					"error": map[string]any{"code": 400, "message": tt.message},
				})
			}))
			defer srv.Close()

			p := newFirebaseProvider(&mockFirebaseAuth{}, newTestToolkit(t, srv, "k"))
			_, err := p.SignInWithPassword(context.Background(), "a@example.com", "pw")
			if CodeOf(err) != tt.wantCode {
				t.Errorf("CodeOf(err) = %q, want %q", CodeOf(err), tt.wantCode)
			}
		})
	}
}
