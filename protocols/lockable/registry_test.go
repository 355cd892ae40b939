package lockable

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/Iwinswap/lockable-token-registry-go/pkg/chain"
	"github.com/Iwinswap/lockable-token-registry-go/protocols/tokenref"
	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	regA  = common.HexToAddress("0x000000000000000000000000000000000000aa01")
	regB  = common.HexToAddress("0x000000000000000000000000000000000000bb02")
	regC  = common.HexToAddress("0x000000000000000000000000000000000000cc03")
	admin = common.HexToAddress("0x00000000000000000000000000000000000000ad")
	alice = common.HexToAddress("0x000000000000000000000000000000000000a11c")
	bob   = common.HexToAddress("0x0000000000000000000000000000000000000b0b")
	carol = common.HexToAddress("0x00000000000000000000000000000000000ca201")
)

type testEnv struct {
	t    *testing.T
	host *chain.Host
	dir  *Directory
	prom *prometheus.Registry
}

func newEnv(t *testing.T, maxDepth int) *testEnv {
	t.Helper()
	prom := prometheus.NewRegistry()
	host, err := chain.NewHost(chain.Config{
		MaxCallDepth: maxDepth,
		Logger:       discardLogger(),
		Registry:     prom,
	})
	require.NoError(t, err)
	return &testEnv{t: t, host: host, dir: NewDirectory(), prom: prom}
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func (e *testEnv) registry(addr common.Address) *Registry {
	e.t.Helper()
	r, err := New(Config{
		Address:    addr,
		Controller: admin,
		Directory:  e.dir,
		Logger:     discardLogger(),
		Registry:   e.prom,
	})
	require.NoError(e.t, err)
	return r
}

func (e *testEnv) exec(sender common.Address, fn func(ctx context.Context) error) error {
	return e.host.Execute(context.Background(), sender, fn)
}

func (e *testEnv) mint(r *Registry, to common.Address, ids ...uint64) {
	e.t.Helper()
	for _, n := range ids {
		require.NoError(e.t, e.exec(admin, func(ctx context.Context) error {
			return r.Mint(ctx, to, id(n))
		}))
	}
}

func (e *testEnv) setTransferable(r *Registry, n uint64, transferable bool) {
	e.t.Helper()
	require.NoError(e.t, e.exec(admin, func(ctx context.Context) error {
		return r.SetTransferable(ctx, id(n), transferable)
	}))
}

func (e *testEnv) setBurnable(r *Registry, n uint64, burnable bool) {
	e.t.Helper()
	require.NoError(e.t, e.exec(admin, func(ctx context.Context) error {
		return r.SetBurnable(ctx, id(n), burnable)
	}))
}

func (e *testEnv) addDependency(r *Registry, sender common.Address, n uint64, dep tokenref.Ref) {
	e.t.Helper()
	require.NoError(e.t, e.exec(sender, func(ctx context.Context) error {
		return r.AddDependency(ctx, id(n), dep)
	}))
}

func (e *testEnv) lock(r *Registry, sender common.Address, n uint64, locking tokenref.Ref) error {
	return e.exec(sender, func(ctx context.Context) error {
		return r.Lock(ctx, id(n), locking)
	})
}

func (e *testEnv) transferable(r *Registry, n uint64) bool {
	e.t.Helper()
	var ok bool
	require.NoError(e.t, e.host.View(context.Background(), alice, func(ctx context.Context) error {
		var err error
		ok, err = r.IsTokenTransferable(ctx, id(n))
		return err
	}))
	return ok
}

func (e *testEnv) burnable(r *Registry, n uint64) bool {
	e.t.Helper()
	var ok bool
	require.NoError(e.t, e.host.View(context.Background(), alice, func(ctx context.Context) error {
		var err error
		ok, err = r.IsTokenBurnable(ctx, id(n))
		return err
	}))
	return ok
}

func (e *testEnv) transferableTo(r *Registry, n uint64, dest common.Address) bool {
	e.t.Helper()
	var ok bool
	require.NoError(e.t, e.host.View(context.Background(), alice, func(ctx context.Context) error {
		var err error
		ok, err = r.IsTokenTransferableToAddress(ctx, id(n), dest)
		return err
	}))
	return ok
}

func (e *testEnv) owner(r *Registry, n uint64) common.Address {
	e.t.Helper()
	owner, err := r.ledger.OwnerOf(id(n))
	require.NoError(e.t, err)
	return owner
}

func id(n uint64) *uint256.Int {
	return uint256.NewInt(n)
}

func ref(r *Registry, n uint64) tokenref.Ref {
	return tokenref.New(r.Address(), id(n))
}

func TestNewRegistry(t *testing.T) {
	e := newEnv(t, 0)

	t.Run("ConfigValidation", func(t *testing.T) {
		valid := Config{Address: regA, Controller: admin, Directory: e.dir, Logger: discardLogger(), Registry: prometheus.NewRegistry()}

		for name, mutate := range map[string]func(*Config){
			"address":    func(c *Config) { c.Address = common.Address{} },
			"controller": func(c *Config) { c.Controller = common.Address{} },
			"directory":  func(c *Config) { c.Directory = nil },
			"logger":     func(c *Config) { c.Logger = nil },
			"registry":   func(c *Config) { c.Registry = nil },
		} {
			cfg := valid
			mutate(&cfg)
			_, err := New(cfg)
			assert.Error(t, err, "missing %s must be rejected", name)
		}
	})

	t.Run("RegistersInDirectory", func(t *testing.T) {
		a := e.registry(regA)
		got, err := e.dir.Resolve(regA)
		require.NoError(t, err)
		assert.Same(t, a, got)
		assert.Equal(t, admin, a.Controller())

		_, err = New(Config{Address: regA, Controller: admin, Directory: e.dir, Logger: discardLogger(), Registry: prometheus.NewRegistry()})
		assert.ErrorIs(t, err, ErrRegistryExists)
	})

	t.Run("SharedMetricsRegistry", func(t *testing.T) {
		// Two registries on one Registerer must not collide.
		assert.NotPanics(t, func() { e.registry(regB) })
	})
}

func TestDirectory(t *testing.T) {
	e := newEnv(t, 0)
	e.registry(regC)
	e.registry(regA)

	assert.Equal(t, []common.Address{regA, regC}, e.dir.Addresses())

	_, err := e.dir.Resolve(regB)
	assert.ErrorIs(t, err, ErrUnknownRegistry)
	assert.ErrorIs(t, e.dir.Register(nil), ErrUnknownRegistry)
}

func TestMutationsRequireTransaction(t *testing.T) {
	e := newEnv(t, 0)
	a := e.registry(regA)
	e.mint(a, alice, 1)

	err := e.host.View(context.Background(), alice, func(ctx context.Context) error {
		return a.TransferFrom(ctx, alice, bob, id(1))
	})
	assert.ErrorIs(t, err, chain.ErrReadOnly)

	err = e.exec(alice, func(ctx context.Context) error {
		return a.TransferFrom(ctx, alice, bob, nil)
	})
	assert.ErrorIs(t, err, ErrNilTokenID)
}

func TestTokenView(t *testing.T) {
	e := newEnv(t, 0)
	a, b := e.registry(regA), e.registry(regB)
	e.mint(a, alice, 2, 1)
	e.mint(b, alice, 1)
	e.addDependency(a, alice, 1, ref(b, 1))
	require.NoError(t, e.lock(b, alice, 1, ref(a, 1)))
	require.NoError(t, e.exec(admin, func(ctx context.Context) error {
		return a.AddToWhitelist(ctx, id(1), carol)
	}))
	e.setBurnable(a, 1, false)

	view, err := a.Token(id(1))
	require.NoError(t, err)
	assert.Equal(t, alice, view.Owner)
	assert.True(t, view.NonBurnable)
	assert.False(t, view.NonTransferable)
	assert.Equal(t, []tokenref.Ref{ref(b, 1)}, view.Dependencies)
	assert.Equal(t, []tokenref.Ref{ref(b, 1)}, view.LockedFrom)
	assert.Nil(t, view.LockedTo)
	assert.Equal(t, []common.Address{carol}, view.Whitelist)

	locked, err := b.Token(id(1))
	require.NoError(t, err)
	require.NotNil(t, locked.LockedTo)
	assert.Equal(t, ref(a, 1), *locked.LockedTo)

	snapshot := a.Snapshot()
	require.Len(t, snapshot, 2)
	assert.Equal(t, uint64(1), snapshot[0].ID.Uint64(), "snapshot is ordered by id")
	assert.Equal(t, uint64(2), snapshot[1].ID.Uint64())

	_, err = a.Token(id(9))
	assert.ErrorIs(t, err, ErrNonexistentToken)
}
