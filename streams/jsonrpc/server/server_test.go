package server

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/Iwinswap/lockable-token-registry-go/pkg/chain"
	"github.com/Iwinswap/lockable-token-registry-go/protocols/lockable"
	"github.com/Iwinswap/lockable-token-registry-go/protocols/tokenref"
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

func newTestClient(t *testing.T) *rpc.Client {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	reg := prometheus.NewRegistry()

	host, err := chain.NewHost(chain.Config{Logger: logger, Registry: reg})
	require.NoError(t, err)
	dir := lockable.NewDirectory()

	var registries []*lockable.Registry
	for _, addr := range []common.Address{regA, regB} {
		r, err := lockable.New(lockable.Config{
			Address:    addr,
			Controller: admin,
			Directory:  dir,
			Logger:     logger,
			Registry:   reg,
		})
		require.NoError(t, err)
		registries = append(registries, r)
	}

	api, err := NewAPI(Config{Host: host, Registries: registries, Logger: logger, BufferSize: 16})
	require.NoError(t, err)
	srv, err := NewServer(api)
	require.NoError(t, err)
	t.Cleanup(srv.Stop)

	client := rpc.DialInProc(srv)
	t.Cleanup(client.Close)
	return client
}

func TestNewAPI_Validation(t *testing.T) {
	_, err := NewAPI(Config{})
	assert.Error(t, err)

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	host, err := chain.NewHost(chain.Config{Logger: logger, Registry: prometheus.NewRegistry()})
	require.NoError(t, err)
	_, err = NewAPI(Config{Host: host, Logger: logger, BufferSize: 1})
	assert.Error(t, err, "registries are required")
}

func TestAPI_MutationsAndQueries(t *testing.T) {
	client := newTestClient(t)
	ctx := context.Background()
	one := uint256.NewInt(1)

	var registries []common.Address
	require.NoError(t, client.CallContext(ctx, &registries, "registry_registries"))
	assert.Equal(t, []common.Address{regA, regB}, registries)

	var receipt Receipt
	require.NoError(t, client.CallContext(ctx, &receipt, "registry_mint", admin, regA, alice, one))
	assert.Equal(t, uint64(1), receipt.Tx)
	require.NoError(t, client.CallContext(ctx, &receipt, "registry_mint", admin, regB, alice, one))
	require.NoError(t, client.CallContext(ctx, &receipt, "registry_lock", alice, regA, one, tokenref.New(regB, one)))

	var locked *tokenref.Ref
	require.NoError(t, client.CallContext(ctx, &locked, "registry_isLocked", regA, one))
	require.NotNil(t, locked)
	assert.Equal(t, tokenref.New(regB, one), *locked)

	require.NoError(t, client.CallContext(ctx, &receipt, "registry_transferFrom", alice, regB, alice, bob, one))

	var owner common.Address
	require.NoError(t, client.CallContext(ctx, &owner, "registry_ownerOf", regA, one))
	assert.Equal(t, bob, owner, "the locked token followed its locking token")

	var view lockable.TokenView
	require.NoError(t, client.CallContext(ctx, &view, "registry_token", regB, one))
	assert.Equal(t, bob, view.Owner)
	assert.Equal(t, []tokenref.Ref{tokenref.New(regA, one)}, view.LockedFrom)

	var snapshot []lockable.TokenView
	require.NoError(t, client.CallContext(ctx, &snapshot, "registry_snapshot", regA))
	require.Len(t, snapshot, 1)
	require.NotNil(t, snapshot[0].LockedTo)

	var transferable bool
	require.NoError(t, client.CallContext(ctx, &transferable, "registry_isTokenTransferable", regA, one))
	assert.True(t, transferable)
}

func TestAPI_ErrorsCarryKind(t *testing.T) {
	client := newTestClient(t)
	ctx := context.Background()
	one := uint256.NewInt(1)

	var receipt Receipt
	require.NoError(t, client.CallContext(ctx, &receipt, "registry_mint", admin, regA, alice, one))

	testCases := []struct {
		name   string
		method string
		args   []any
		kind   lockable.Kind
	}{
		{"Unauthorized", "registry_transferFrom", []any{bob, regA, alice, bob, one}, lockable.KindAuthorization},
		{"NotFound", "registry_unlock", []any{regB, regA, one}, lockable.KindNotFound},
		{"UnknownRegistry", "registry_burn", []any{alice, common.HexToAddress("0x99"), one}, lockable.KindNotFound},
		{"Conflict", "registry_mint", []any{admin, regA, alice, one}, lockable.KindStateConflict},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			err := client.CallContext(ctx, &receipt, tc.method, tc.args...)
			require.Error(t, err)

			var rpcErr rpc.Error
			require.True(t, errors.As(err, &rpcErr))
			assert.Equal(t, ErrorCodeBase-int(tc.kind), rpcErr.ErrorCode())

			var dataErr rpc.DataError
			require.True(t, errors.As(err, &dataErr))
			assert.Equal(t, tc.kind.String(), dataErr.ErrorData())
		})
	}
}

func TestAPI_EventSubscription(t *testing.T) {
	client := newTestClient(t)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	events := make(chan lockable.Event, 8)
	sub, err := client.Subscribe(ctx, RpcNamespace, events, EventsSubscriptionMethod, []common.Address{regA})
	require.NoError(t, err)
	defer sub.Unsubscribe()

	one := uint256.NewInt(1)
	var receipt Receipt
	require.NoError(t, client.CallContext(ctx, &receipt, "registry_mint", admin, regB, alice, one))
	require.NoError(t, client.CallContext(ctx, &receipt, "registry_mint", admin, regA, alice, one))

	select {
	case ev := <-events:
		assert.Equal(t, lockable.EventMinted, ev.Kind)
		assert.Equal(t, regA, ev.Registry, "events of other registries are filtered out")
		assert.Equal(t, receipt.Tx, ev.Tx)
		require.NotNil(t, ev.To)
		assert.Equal(t, alice, *ev.To)
	case err := <-sub.Err():
		t.Fatalf("subscription failed: %v", err)
	case <-ctx.Done():
		t.Fatal("timed out waiting for event")
	}

	err = client.CallContext(ctx, &receipt, "registry_mint", admin, regA, alice, one)
	require.Error(t, err)
	select {
	case ev := <-events:
		t.Fatalf("reverted call published %v", ev.Kind)
	case <-time.After(100 * time.Millisecond):
	}
}
