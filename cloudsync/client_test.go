package cloudsync

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/luuthuy2k1-code/finance-app/localstore"
)

type roundTripFunc func(*http.Request) (*http.Response, error)

func (f roundTripFunc) RoundTrip(r *http.Request) (*http.Response, error) { return f(r) }

func jsonResponse(status int, body any) *http.Response {
	data, _ := json.Marshal(body)
	return &http.Response{
		StatusCode: status,
		Body:       io.NopCloser(bytes.NewReader(data)),
		Header:     http.Header{"Content-Type": {"application/json"}},
	}
}

func newCapturingRemote(t *testing.T, respond func(*http.Request) (*http.Response, error)) *HTTPRemote {
	t.Helper()
	remote := NewHTTPRemote("http://store.example.com", func(ctx context.Context) (string, error) {
		return "token-abc", nil
	})
	remote.HTTP = &http.Client{Transport: roundTripFunc(respond)}
	return remote
}

func TestHTTPRemoteInsert(t *testing.T) {
	var captured *http.Request
	var body localstore.Record
	remote := newCapturingRemote(t, func(r *http.Request) (*http.Response, error) {
		captured = r
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		return jsonResponse(http.StatusCreated, localstore.Record{"id": "uuid-1", "name": "Cash"}), nil
	})

	created, err := remote.Insert(context.Background(), "wallets", localstore.Record{"name": "Cash"})
	require.NoError(t, err)
	require.Equal(t, "uuid-1", created["id"])

	require.Equal(t, http.MethodPost, captured.Method)
	require.Equal(t, "/v1/wallets", captured.URL.Path)
	require.Equal(t, "Bearer token-abc", captured.Header.Get("Authorization"))
	require.Equal(t, "application/json", captured.Header.Get("Content-Type"))
	require.Equal(t, "Cash", body["name"])
}

func TestHTTPRemoteUpdateAndDelete(t *testing.T) {
	var paths []string
	var methods []string
	remote := newCapturingRemote(t, func(r *http.Request) (*http.Response, error) {
		paths = append(paths, r.URL.Path)
		methods = append(methods, r.Method)
		return jsonResponse(http.StatusNoContent, nil), nil
	})

	ctx := context.Background()
	require.NoError(t, remote.Update(ctx, "goals", "uuid-7", localstore.Record{"name": "Trip"}))
	require.NoError(t, remote.Delete(ctx, "goals", "uuid-7"))

	require.Equal(t, []string{"/v1/goals/uuid-7", "/v1/goals/uuid-7"}, paths)
	require.Equal(t, []string{http.MethodPatch, http.MethodDelete}, methods)
}

func TestHTTPRemoteSelect(t *testing.T) {
	remote := newCapturingRemote(t, func(r *http.Request) (*http.Response, error) {
		require.Equal(t, http.MethodGet, r.Method)
		require.Equal(t, "/v1/debts", r.URL.Path)
		return jsonResponse(http.StatusOK, []localstore.Record{
			{"id": "uuid-1", "name": "Loan"},
			{"id": "uuid-2", "name": "Mortgage"},
		}), nil
	})

	rows, err := remote.Select(context.Background(), "debts")
	require.NoError(t, err)
	require.Len(t, rows, 2)
	require.Equal(t, "Loan", rows[0]["name"])
}

func TestHTTPRemoteSurfacesErrorStatus(t *testing.T) {
	remote := newCapturingRemote(t, func(r *http.Request) (*http.Response, error) {
		return jsonResponse(http.StatusUnauthorized, map[string]string{
			"error": "authentication_failed", "message": "Invalid token",
		}), nil
	})

	_, err := remote.Select(context.Background(), "wallets")
	require.Error(t, err)
	require.Contains(t, err.Error(), "401")
}
