package api

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeCreds records token reads and wipes.
type fakeCreds struct {
	mu     sync.Mutex
	token  string
	clears int
}

func (f *fakeCreds) Token() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.token
}

func (f *fakeCreds) Clear() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.token = ""
	f.clears++
	return nil
}

func (f *fakeCreds) clearCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.clears
}

func TestClientSendsBearerToken(t *testing.T) {
	var gotAuth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		w.Write([]byte(`{"id":"u1","email":"a@b.c"}`))
	}))
	defer srv.Close()

	client := NewClient(srv.URL, &fakeCreds{token: "tok-123"})
	_, err := client.Me(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "Bearer tok-123", gotAuth)
}

func TestClientOmitsAuthHeaderWithoutToken(t *testing.T) {
	var gotAuth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		w.Write([]byte(`{"id":"u1","email":"a@b.c"}`))
	}))
	defer srv.Close()

	client := NewClient(srv.URL, &fakeCreds{})
	_, err := client.Me(context.Background())
	require.NoError(t, err)
	assert.Empty(t, gotAuth)
}

func TestClientUnauthorizedWipesCredentialsOnce(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	creds := &fakeCreds{token: "stale"}
	var handlerCalls int
	client := NewClient(srv.URL, creds, WithUnauthorizedHandler(func() {
		handlerCalls++
	}))

	_, err := client.Accounts(context.Background())
	require.ErrorIs(t, err, ErrUnauthorized)

	assert.Equal(t, 1, creds.clearCount(), "credentials wiped exactly once")
	assert.Equal(t, 1, handlerCalls, "unauthorized handler fired exactly once")
	assert.Empty(t, creds.Token())
}

func TestClientStatusError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		w.Write([]byte("no such account"))
	}))
	defer srv.Close()

	client := NewClient(srv.URL, nil)
	_, err := client.Audience(context.Background(), "acc-1")
	require.Error(t, err)

	var se *StatusError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, http.StatusNotFound, se.Status)
	assert.Equal(t, "no such account", se.Body)
	assert.True(t, IsClientError(err))
}

func TestIsClientErrorIgnoresServerErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	client := NewClient(srv.URL, nil)
	_, err := client.Accounts(context.Background())
	require.Error(t, err)
	assert.False(t, IsClientError(err))
}

func TestLoginDecodesSession(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/auth/login", r.URL.Path)
		w.Write([]byte(`{"token":"jwt-1","user":{"id":"u7","email":"me@example.com"}}`))
	}))
	defer srv.Close()

	client := NewClient(srv.URL, nil)
	sess, err := client.Login(context.Background(), "me@example.com", "hunter2")
	require.NoError(t, err)

	want := Session{Token: "jwt-1", User: User{ID: "u7", Email: "me@example.com"}}
	if diff := cmp.Diff(want, sess); diff != "" {
		t.Errorf("session mismatch (-want +got):\n%s", diff)
	}
}

func TestAudienceRejectsInvalidPayload(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"gender":{"male":140.0}}`))
	}))
	defer srv.Close()

	client := NewClient(srv.URL, nil)
	_, err := client.Audience(context.Background(), "acc-1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid audience payload")
}

func TestAudienceStampsFetchTime(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/insights/acc-9/audience", r.URL.Path)
		w.Write([]byte(`{"gender":{"male":58.2,"female":41.8}}`))
	}))
	defer srv.Close()

	client := NewClient(srv.URL, nil)
	rec, err := client.Audience(context.Background(), "acc-9")
	require.NoError(t, err)
	assert.Equal(t, "acc-9", rec.AccountID)
	assert.False(t, rec.FetchedAt.IsZero())
	assert.InDelta(t, 58.2, rec.Demographics.Gender["male"], 0.001)
}
