package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/cartsync/internal/cart"
	"github.com/roach88/cartsync/internal/cartserver"
	"github.com/roach88/cartsync/internal/engine"
	"github.com/roach88/cartsync/internal/gateway"
)

type cartBackend struct {
	url   string
	store *cartserver.Store
	db    string
}

func newCartBackend(t *testing.T) *cartBackend {
	t.Helper()
	store := cartserver.NewStore(
		cart.FoodItem{ID: "burger", Name: "Burger", Price: decimal.NewFromInt(250)},
		cart.FoodItem{ID: "fries", Name: "Fries", Price: decimal.NewFromInt(120)},
	)
	store.SetDeliveryCharges(decimal.NewFromInt(40))
	srv := httptest.NewServer(cartserver.NewRouter(store, slog.New(slog.NewTextHandler(io.Discard, nil))))
	t.Cleanup(srv.Close)
	return &cartBackend{
		url:   srv.URL,
		store: store,
		db:    filepath.Join(t.TempDir(), "session.db"),
	}
}

// run executes a cart command against the backend with a persisted session.
func (b *cartBackend) run(t *testing.T, args ...string) (cartView, string, error) {
	t.Helper()
	full := append([]string{"--format", "json", "--base-url", b.url, "--session-store", "sqlite", "--db", b.db}, args...)
	out, _, err := execute(t, full...)

	var resp struct {
		Status string   `json:"status"`
		Data   cartView `json:"data"`
	}
	if out != "" {
		require.NoError(t, json.Unmarshal([]byte(out), &resp), out)
	}
	return resp.Data, out, err
}

func (b *cartBackend) serverQuantity(t *testing.T, sid, itemID string) int {
	t.Helper()
	snap, err := b.store.Get(context.Background(), sid)
	require.NoError(t, err)
	return snap.Quantity(itemID)
}

func TestCart_AddSetRemove(t *testing.T) {
	b := newCartBackend(t)

	view, _, err := b.run(t, "add", "burger", "Burger", "250", "2")
	require.NoError(t, err)
	sid := view.SessionID
	require.NotEmpty(t, sid)
	require.Len(t, view.Lines, 1)
	assert.Equal(t, "burger", view.Lines[0].FoodItemID)
	assert.NotEmpty(t, view.Lines[0].LineID, "reconciled line carries the server id")
	assert.Equal(t, 2, view.ItemCount)
	assert.Equal(t, "500", view.Subtotal)
	assert.Equal(t, "540", view.Total)
	assert.Equal(t, 2, b.serverQuantity(t, sid, "burger"))

	view, _, err = b.run(t, "add", "burger", "Burger", "250")
	require.NoError(t, err)
	assert.Equal(t, sid, view.SessionID, "session id persists across invocations")
	assert.Equal(t, 3, view.ItemCount)
	assert.Equal(t, 3, b.serverQuantity(t, sid, "burger"))

	view, _, err = b.run(t, "set", "burger", "5")
	require.NoError(t, err)
	assert.Equal(t, 5, view.ItemCount)
	assert.Equal(t, 5, b.serverQuantity(t, sid, "burger"))

	_, _, err = b.run(t, "add", "fries", "Fries", "120")
	require.NoError(t, err)

	view, _, err = b.run(t, "remove", "burger")
	require.NoError(t, err)
	require.Len(t, view.Lines, 1)
	assert.Equal(t, "fries", view.Lines[0].FoodItemID)
	assert.Equal(t, 0, b.serverQuantity(t, sid, "burger"))

	view, _, err = b.run(t, "show")
	require.NoError(t, err)
	assert.Equal(t, 1, view.ItemCount)
	assert.Equal(t, "160", view.Total)
}

func TestCart_Clear(t *testing.T) {
	b := newCartBackend(t)

	_, _, err := b.run(t, "add", "burger", "Burger", "250", "2")
	require.NoError(t, err)
	_, _, err = b.run(t, "add", "fries", "Fries", "120")
	require.NoError(t, err)

	view, _, err := b.run(t, "clear")
	require.NoError(t, err)
	assert.Empty(t, view.Lines)
	assert.Equal(t, 0, view.ItemCount)

	snap, err := b.store.Get(context.Background(), view.SessionID)
	require.NoError(t, err)
	assert.True(t, snap.IsEmpty())
}

func TestCart_SetUnknownItem(t *testing.T) {
	b := newCartBackend(t)

	_, _, err := b.run(t, "set", "burger", "2")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.ErrorIs(t, err, engine.ErrUnknownItem)
}

func TestCart_RejectedChange(t *testing.T) {
	b := newCartBackend(t)

	// The server menu has no pizza, so the add is refused.
	view, out, err := b.run(t, "add", "pizza", "Pizza", "300")
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	require.NotEmpty(t, out, "the reconciled cart is still printed")
	assert.Equal(t, int64(1), view.Rejected)
	assert.Empty(t, view.Lines, "server truth replaces the optimistic line")
}

func TestCart_InvalidArguments(t *testing.T) {
	b := newCartBackend(t)

	tests := []struct {
		name string
		args []string
		want string
	}{
		{"negative_quantity", []string{"set", "burger", "-1"}, "invalid quantity"},
		{"text_quantity", []string{"set", "burger", "two"}, "invalid quantity"},
		{"bad_price", []string{"add", "burger", "Burger", "cheap"}, "invalid price"},
		{"zero_add", []string{"add", "burger", "Burger", "250", "0"}, "invalid change"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := b.run(t, tt.args...)
			require.Error(t, err)
			assert.Equal(t, ExitCommandError, GetExitCode(err))
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestCart_ServerUnavailable(t *testing.T) {
	srv := httptest.NewServer(nil)
	url := srv.URL
	srv.Close()

	_, _, err := execute(t, "--base-url", url, "--session-store", "memory", "show")
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, err.Error(), "failed to read cart")
}

func TestCart_TextOutput(t *testing.T) {
	b := newCartBackend(t)

	out, _, err := execute(t, "--base-url", b.url, "--session-store", "sqlite", "--db", b.db,
		"add", "burger", "Burger", "250", "4")
	require.NoError(t, err)
	assert.Contains(t, out, "Burger")
	assert.Contains(t, out, "subtotal  1,000.00")
	assert.Contains(t, out, "total     1,040.00")
}

func TestSessionCommand(t *testing.T) {
	db := filepath.Join(t.TempDir(), "session.db")

	first, _, err := execute(t, "--session-store", "sqlite", "--db", db, "session")
	require.NoError(t, err)
	second, _, err := execute(t, "--session-store", "sqlite", "--db", db, "session")
	require.NoError(t, err)
	assert.NotEmpty(t, first)
	assert.Equal(t, first, second)

	out, _, err := execute(t, "--format", "json", "--session-store", "memory", "session")
	require.NoError(t, err)
	var resp struct {
		Data sessionView `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "memory", resp.Data.Store)
	assert.NotEmpty(t, resp.Data.SessionID)
}

func TestSessionCommand_StorageUnavailable(t *testing.T) {
	// A directory cannot be opened as the session database.
	out, _, err := execute(t, "--format", "json", "--session-store", "sqlite", "--db", t.TempDir(), "session")
	require.NoError(t, err)

	var resp struct {
		Data sessionView `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.NotEmpty(t, resp.Data.SessionID)
	assert.True(t, resp.Data.Ephemeral)
}

func TestCart_StorageUnavailableUsesEphemeralSession(t *testing.T) {
	b := newCartBackend(t)
	b.db = filepath.Join(t.TempDir(), "missing", "dir", "session.db")

	view, _, err := b.run(t, "add", "burger", "Burger", "250", "2")
	require.NoError(t, err)
	assert.Equal(t, ExitSuccess, GetExitCode(err))
	assert.True(t, view.Ephemeral)
	require.NotEmpty(t, view.SessionID)
	assert.Equal(t, 2, view.ItemCount)
	assert.Equal(t, 2, b.serverQuantity(t, view.SessionID, "burger"))
}

func TestSyncError_ClassifiesTransient(t *testing.T) {
	tests := []struct {
		name      string
		err       error
		transient bool
	}{
		{"server_error", &gateway.StatusError{Op: "fetch", StatusCode: http.StatusServiceUnavailable}, true},
		{"rate_limited", &gateway.StatusError{Op: "add", StatusCode: http.StatusTooManyRequests}, true},
		{"not_found", &gateway.StatusError{Op: "update", StatusCode: http.StatusNotFound}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			buf := &bytes.Buffer{}
			err := syncError(&OutputFormatter{Format: "json", Writer: buf}, "change failed", tt.err)
			assert.Equal(t, ExitFailure, GetExitCode(err))

			var resp struct {
				Error struct {
					Code    string      `json:"code"`
					Details syncDetails `json:"details"`
				} `json:"error"`
			}
			require.NoError(t, json.Unmarshal(buf.Bytes(), &resp))
			assert.Equal(t, CodeSync, resp.Error.Code)
			assert.Equal(t, tt.transient, resp.Error.Details.Transient)
			assert.Equal(t, tt.err.Error(), resp.Error.Details.Error)
		})
	}
}

func TestStartError(t *testing.T) {
	buf := &bytes.Buffer{}
	err := startError(&OutputFormatter{Format: "json", Writer: buf}, errors.New("tracing: bad endpoint"))
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, err.Error(), "failed to start client")

	var resp CLIResponse
	require.NoError(t, json.Unmarshal(buf.Bytes(), &resp))
	require.NotNil(t, resp.Error)
	assert.Equal(t, CodeSession, resp.Error.Code)
	assert.Equal(t, "tracing: bad endpoint", resp.Error.Details)
}

func TestClient_CloseLoggedReportsError(t *testing.T) {
	var logs bytes.Buffer
	c := &client{closers: []func() error{
		func() error { return errors.New("database is locked") },
	}}

	c.closeLogged(context.Background(), slog.New(slog.NewTextHandler(&logs, nil)))
	assert.Contains(t, logs.String(), `msg="error closing client"`)
	assert.Contains(t, logs.String(), "database is locked")
	assert.Empty(t, c.closers)
}
