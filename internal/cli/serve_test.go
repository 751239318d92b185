package cli

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// syncBuffer is a bytes.Buffer safe for a writer and a polling reader.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func TestServeCommand_StopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	out := &syncBuffer{}
	cmd := NewRootCommand()
	cmd.SetOut(out)
	cmd.SetErr(&syncBuffer{})
	cmd.SetArgs([]string{"serve", "--addr", "127.0.0.1:0"})

	done := make(chan error, 1)
	go func() { done <- cmd.ExecuteContext(ctx) }()

	require.Eventually(t, func() bool {
		return strings.Contains(out.String(), "Cart server listening on 127.0.0.1:")
	}, 5*time.Second, 10*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not stop")
	}
}

func TestServeCommand_BadMenu(t *testing.T) {
	dir := t.TempDir()
	empty := filepath.Join(dir, "empty.yaml")
	require.NoError(t, os.WriteFile(empty, []byte("items: []\n"), 0644))

	tests := []struct {
		name string
		path string
		want string
	}{
		{"missing", filepath.Join(dir, "nope.yaml"), "failed to load menu"},
		{"empty", empty, "menu has no items"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := execute(t, "serve", "--addr", "127.0.0.1:0", "--menu", tt.path)
			require.Error(t, err)
			assert.Equal(t, ExitCommandError, GetExitCode(err))
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestNewMenuStore(t *testing.T) {
	path := filepath.Join(t.TempDir(), "menu.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`delivery_charges: "25"
items:
  - { id: pizza, name: Margherita, price: "9.50" }
  - { id: soda, name: Cola, price: "2" }
`), 0644))

	m, err := loadMenu(path)
	require.NoError(t, err)
	store, err := newMenuStore(m)
	require.NoError(t, err)

	ctx := context.Background()
	_, err = store.Add(ctx, "s1", "pizza", 2)
	require.NoError(t, err)
	snap, err := store.Get(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, "19", snap.Subtotal().String())
	assert.Equal(t, "44", snap.Total().String())

	_, err = newMenuStore(menuFile{Items: []menuItem{{ID: "x", Price: "free"}}})
	assert.ErrorContains(t, err, "invalid price")
	_, err = newMenuStore(menuFile{Items: []menuItem{{Name: "nameless", Price: "1"}}})
	assert.ErrorContains(t, err, "missing id")
}

func TestDefaultMenu_IsValid(t *testing.T) {
	store, err := newMenuStore(defaultMenu)
	require.NoError(t, err)
	_, err = store.Add(context.Background(), "s1", "burger", 1)
	assert.NoError(t, err)
}
