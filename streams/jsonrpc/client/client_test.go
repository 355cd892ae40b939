package client

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"

	"github.com/Iwinswap/lockable-token-registry-go/pkg/chain"
	"github.com/Iwinswap/lockable-token-registry-go/protocols/lockable"
	"github.com/Iwinswap/lockable-token-registry-go/protocols/tokenref"
	"github.com/Iwinswap/lockable-token-registry-go/streams/jsonrpc/server"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/rpc"
	"github.com/holiman/uint256"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	regA  = common.HexToAddress("0xaa01")
	regB  = common.HexToAddress("0xbb02")
	admin = common.HexToAddress("0xad")
	alice = common.HexToAddress("0xa11c")
	bob   = common.HexToAddress("0xb0b")
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestServer(t *testing.T) *rpc.Server {
	t.Helper()
	logger := discardLogger()
	reg := prometheus.NewRegistry()
	host, err := chain.NewHost(chain.Config{Logger: logger, Registry: reg})
	require.NoError(t, err)
	dir := lockable.NewDirectory()

	var registries []*lockable.Registry
	for _, addr := range []common.Address{regA, regB} {
		r, err := lockable.New(lockable.Config{Address: addr, Controller: admin, Directory: dir, Logger: logger, Registry: reg})
		require.NoError(t, err)
		registries = append(registries, r)
	}
	api, err := server.NewAPI(server.Config{Host: host, Registries: registries, Logger: logger, BufferSize: 16})
	require.NoError(t, err)
	srv, err := server.NewServer(api)
	require.NoError(t, err)
	t.Cleanup(srv.Stop)
	return srv
}

func TestConfig_Validate(t *testing.T) {
	valid := Config{URL: "ws://localhost:8546", Logger: discardLogger(), BufferSize: 1}
	require.NoError(t, valid.validate())

	for name, mutate := range map[string]func(*Config){
		"URL":        func(c *Config) { c.URL = "" },
		"Logger":     func(c *Config) { c.Logger = nil },
		"BufferSize": func(c *Config) { c.BufferSize = 0 },
	} {
		t.Run(name, func(t *testing.T) {
			cfg := valid
			mutate(&cfg)
			assert.Error(t, cfg.validate())
		})
	}
}

func TestRegistry_Queries(t *testing.T) {
	srv := newTestServer(t)
	reg := NewRegistry(rpc.DialInProc(srv))
	defer reg.Close()
	ctx := context.Background()
	one, two := uint256.NewInt(1), uint256.NewInt(2)

	registries, err := reg.Registries(ctx)
	require.NoError(t, err)
	assert.Equal(t, []common.Address{regA, regB}, registries)

	_, err = reg.Mint(ctx, admin, regA, alice, one)
	require.NoError(t, err)
	_, err = reg.Mint(ctx, admin, regA, alice, two)
	require.NoError(t, err)
	_, err = reg.Mint(ctx, admin, regB, alice, one)
	require.NoError(t, err)

	_, err = reg.AddDependency(ctx, alice, regA, one, tokenref.New(regB, one))
	require.NoError(t, err)
	_, err = reg.SetTransferable(ctx, admin, regB, one, false)
	require.NoError(t, err)

	ok, err := reg.IsTokenTransferable(ctx, regA, one)
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = reg.TransferFrom(ctx, alice, regA, alice, bob, one)
	require.Error(t, err)
	assert.Equal(t, lockable.KindPolicy, KindOf(err))

	receipt, err := reg.Lock(ctx, alice, regA, two, tokenref.New(regB, one))
	require.NoError(t, err)
	assert.NotZero(t, receipt.Tx)

	locked, err := reg.IsLocked(ctx, regA, two)
	require.NoError(t, err)
	assert.Equal(t, tokenref.New(regB, one), locked)

	unlocked, err := reg.IsLocked(ctx, regA, one)
	require.NoError(t, err)
	assert.True(t, unlocked.IsZero())

	set, err := reg.Index(ctx, regA)
	require.NoError(t, err)
	assert.Equal(t, 2, set.Len())
	assert.Len(t, set.ByOwner(alice), 2)
	assert.Len(t, set.Locked(), 1)

	_, err = reg.RemoveLockedToken(ctx, alice, regB, one, tokenref.New(regA, two))
	require.NoError(t, err)
	view, err := reg.Token(ctx, regB, one)
	require.NoError(t, err)
	assert.Empty(t, view.LockedFrom)
}

func TestKindOf_ForeignErrors(t *testing.T) {
	assert.Equal(t, lockable.KindUnknown, KindOf(errors.New("boom")))
	assert.Equal(t, lockable.KindNotFound, KindOf(lockable.ErrNotLocked))
}

func TestClient_StreamsEvents(t *testing.T) {
	srv := newTestServer(t)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	var dials atomic.Int32
	c, err := NewClient(ctx, Config{
		URL:        "inproc",
		Logger:     discardLogger(),
		BufferSize: 8,
		Registries: []common.Address{regA},
		Dial: func(context.Context, string) (*rpc.Client, error) {
			dials.Add(1)
			return rpc.DialInProc(srv), nil
		},
	})
	require.NoError(t, err)

	reg := NewRegistry(rpc.DialInProc(srv))
	defer reg.Close()

	// The subscription is established asynchronously; mint until an event arrives.
	ticker := time.NewTicker(20 * time.Millisecond)
	defer ticker.Stop()
	next := uint64(1)
	for {
		select {
		case ev := <-c.Events():
			assert.Equal(t, lockable.EventMinted, ev.Kind)
			assert.Equal(t, regA, ev.Registry)
			assert.EqualValues(t, 1, dials.Load())
			cancel()
			for range c.Events() {
			}
			return
		case err := <-c.Err():
			t.Fatalf("client failed: %v", err)
		case <-ticker.C:
			_, err := reg.Mint(context.Background(), admin, regA, alice, uint256.NewInt(next))
			require.NoError(t, err)
			next++
		case <-ctx.Done():
			t.Fatal("timed out waiting for event")
		}
	}
}
