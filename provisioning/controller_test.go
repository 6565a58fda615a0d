package provisioning

import (
	"context"
	"encoding/binary"
	"io"
	"log/slog"
	"math"
	"net"
	"net/http"
	"net/netip"
	"net/url"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/miekg/dns"
	"github.com/ruteri/wifi-provisioning-portal/api"
	"github.com/ruteri/wifi-provisioning-portal/assets"
	"github.com/ruteri/wifi-provisioning-portal/credentials"
	"github.com/ruteri/wifi-provisioning-portal/interfaces"
	"github.com/ruteri/wifi-provisioning-portal/radio"
	"github.com/ruteri/wifi-provisioning-portal/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/atomic"
)

// countingAssets counts mounts of the asset store
type countingAssets struct {
	*assets.Store
	mounts atomic.Int64
}

func (a *countingAssets) Mount() error {
	a.mounts.Inc()
	return a.Store.Mount()
}

// recordingSleep counts pauses instead of sleeping
type recordingSleep struct {
	calls  atomic.Int64
	total  atomic.Duration
	onCall func(n int64) error
}

func (s *recordingSleep) sleep(ctx context.Context, d time.Duration) error {
	n := s.calls.Inc()
	s.total.Add(d)
	if s.onCall != nil {
		return s.onCall(n)
	}
	return ctx.Err()
}

type testEnv struct {
	controller *Controller
	radio      *radio.Simulated
	backend    *storage.MemoryBackend
	assets     *countingAssets
	sleep      *recordingSleep
	log        *slog.Logger
}

func newTestEnv(t *testing.T, networks string, connectAfter int) *testEnv {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	parsed, err := radio.ParseNetworks(networks)
	require.NoError(t, err)

	env := &testEnv{
		radio:   radio.NewSimulated(radio.SimulatedConfig{Networks: parsed, ConnectAfter: connectAfter}, logger),
		backend: storage.NewMemoryBackend("nvs"),
		assets:  &countingAssets{Store: assets.NewStore("")},
		sleep:   &recordingSleep{},
		log:     logger,
	}
	env.controller = env.newController(Config{})

	t.Cleanup(func() { env.controller.Stop(context.Background()) })
	return env
}

func (env *testEnv) newController(cfg Config) *Controller {
	cfg.APName = "portal-test"
	if cfg.HTTP.ListenAddr == "" {
		cfg.HTTP.ListenAddr = "127.0.0.1:0"
	}
	cfg.Sleep = env.sleep.sleep
	cfg.Log = env.log

	nv := storage.NewEEPROM(env.backend, storage.DefaultRegionSize, env.log)
	return New(cfg, env.radio, nv, env.assets)
}

// savedRecord reads the record back through a fresh region over the same backend.
func (env *testEnv) savedRecord(t *testing.T, offset int64) credentials.Record {
	t.Helper()
	store := credentials.NewStore(storage.NewEEPROM(env.backend, storage.DefaultRegionSize, env.log), env.log)
	store.SetOffset(offset)
	rec, err := store.Load(context.Background())
	require.NoError(t, err)
	return rec
}

func noRedirectClient() *http.Client {
	return &http.Client{
		CheckRedirect: func(*http.Request, []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}
}

func postSave(t *testing.T, c *Controller, values url.Values) *http.Response {
	t.Helper()
	resp, err := noRedirectClient().PostForm("http://"+c.HTTPAddr()+api.RouteSave, values)
	require.NoError(t, err)
	resp.Body.Close()
	return resp
}

func TestStart_NoSavedRecord(t *testing.T) {
	env := newTestEnv(t, "HomeNet:secret123", 0)
	c := env.controller

	require.NoError(t, c.Start(context.Background()))

	assert.True(t, c.IsActive())
	assert.False(t, c.CredentialsKnown())
	assert.Equal(t, interfaces.ModeAccessPointStation, env.radio.Mode())
	assert.Equal(t, 1, env.radio.ScanStarts())

	ap, ok := env.radio.AccessPoint()
	require.True(t, ok)
	assert.Equal(t, "portal-test", ap.SSID)
	assert.Equal(t, netip.MustParsePrefix("192.168.0.4/24"), ap.Address)
	assert.Equal(t, netip.MustParseAddr("192.168.0.4"), ap.Gateway)
	assert.Empty(t, ap.Passphrase)

	resp, err := http.Get("http://" + c.HTTPAddr() + "/")
	require.NoError(t, err)
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), "<option>HomeNet</option>")
}

func TestStart_AlreadyActiveIsNoop(t *testing.T) {
	env := newTestEnv(t, "", 0)
	c := env.controller

	require.NoError(t, c.Start(context.Background()))
	addr := c.HTTPAddr()
	require.NoError(t, c.Start(context.Background()))

	assert.Equal(t, int64(1), env.assets.mounts.Load())
	assert.Equal(t, addr, c.HTTPAddr())
}

func TestStart_MountFailure(t *testing.T) {
	env := newTestEnv(t, "", 0)
	env.assets.Store = assets.NewStore(filepath.Join(t.TempDir(), "missing"))
	c := env.controller

	assert.Error(t, c.Start(context.Background()))
	assert.False(t, c.IsActive())
	assert.Empty(t, c.HTTPAddr())
	assert.Equal(t, interfaces.ModeStation, env.radio.Mode())
}

func TestStart_ListenFailureRollsBack(t *testing.T) {
	env := newTestEnv(t, "", 0)

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()

	c := env.newController(Config{HTTP: api.HTTPServerConfig{ListenAddr: ln.Addr().String()}})

	assert.Error(t, c.Start(context.Background()))
	assert.False(t, c.IsActive())
	assert.Equal(t, interfaces.ModeStation, env.radio.Mode())

	_, err = env.assets.Open("style.css")
	assert.ErrorIs(t, err, assets.ErrNotMounted)
}

func TestStart_LoadsSavedRecordAtOffset(t *testing.T) {
	env := newTestEnv(t, "", 0)
	ctx := context.Background()

	store := credentials.NewStore(storage.NewEEPROM(env.backend, storage.DefaultRegionSize, env.log), env.log)
	store.SetOffset(100)
	require.NoError(t, store.Save(ctx, credentials.New("HomeNet", "secret123")))

	c := env.controller
	c.Configure(100)
	require.NoError(t, c.Start(ctx))

	assert.True(t, c.CredentialsKnown())
	assert.Equal(t, credentials.Record{SSID: "HomeNet", Passphrase: "secret123"}, c.Credentials())
}

func TestStart_CorruptRecordLoadsEmpty(t *testing.T) {
	env := newTestEnv(t, "", 0)
	ctx := context.Background()

	image := make([]byte, storage.DefaultRegionSize)
	binary.LittleEndian.PutUint16(image[64:], credentials.MaxFieldLen+1)
	copy(image[66:], "garbage")
	require.NoError(t, env.backend.Store(ctx, image))

	c := env.controller
	c.Configure(64)
	require.NoError(t, c.Start(ctx))

	assert.False(t, c.CredentialsKnown())
	assert.True(t, c.Credentials().Empty())
}

func TestSave_RoundTrip(t *testing.T) {
	env := newTestEnv(t, "", 0)
	c := env.controller
	c.Configure(32)
	require.NoError(t, c.Start(context.Background()))

	resp := postSave(t, c, url.Values{"ssid": {"HomeNet"}, "password": {"secret123"}})
	assert.Equal(t, http.StatusSeeOther, resp.StatusCode)
	assert.Equal(t, api.RouteSave, resp.Header.Get("Location"))

	assert.True(t, c.CredentialsKnown())
	assert.Equal(t, credentials.Record{SSID: "HomeNet", Passphrase: "secret123"}, env.savedRecord(t, 32))
}

func TestSave_TruncatesLongValues(t *testing.T) {
	env := newTestEnv(t, "", 0)
	c := env.controller
	require.NoError(t, c.Start(context.Background()))

	long := strings.Repeat("n", 200)
	resp := postSave(t, c, url.Values{"ssid": {long}, "password": {long + "p"}})
	assert.Equal(t, http.StatusSeeOther, resp.StatusCode)

	rec := env.savedRecord(t, 0)
	assert.Equal(t, long[:credentials.MaxFieldLen], rec.SSID)
	assert.Equal(t, long[:credentials.MaxFieldLen], rec.Passphrase)
}

func TestSave_MissingPasswordLeavesRecord(t *testing.T) {
	env := newTestEnv(t, "", 0)
	c := env.controller
	require.NoError(t, c.Start(context.Background()))

	postSave(t, c, url.Values{"ssid": {"HomeNet"}, "password": {"secret123"}})

	resp := postSave(t, c, url.Values{"ssid": {"Other"}})
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)

	assert.Equal(t, credentials.Record{SSID: "HomeNet", Passphrase: "secret123"}, env.savedRecord(t, 0))
	assert.Equal(t, "HomeNet", c.Credentials().SSID)
}

func TestSave_StorageErrorKeepsPreviousRecord(t *testing.T) {
	env := newTestEnv(t, "", 0)
	c := env.controller
	ctx := context.Background()

	c.Configure(storage.DefaultRegionSize - 10)
	err := c.SubmitCredentials(ctx, "HomeNet", "secret123")
	require.ErrorIs(t, err, storage.ErrOutOfRange)
	assert.False(t, c.CredentialsKnown())
	assert.True(t, c.Credentials().Empty())

	c.Configure(0)
	require.NoError(t, c.SubmitCredentials(ctx, "HomeNet", "secret123"))

	c.Configure(storage.DefaultRegionSize - 10)
	err = c.SubmitCredentials(ctx, "CoffeeShop", "latte")
	require.ErrorIs(t, err, storage.ErrOutOfRange)
	assert.True(t, c.CredentialsKnown())
	assert.Equal(t, "HomeNet", c.Credentials().SSID)
	assert.Equal(t, "secret123", c.Credentials().Passphrase)

	// The connect loop never joins with the unsaved network
	assert.False(t, c.tryConnectOnce(ctx, 1))
	assert.Equal(t, "HomeNet", env.radio.LastConnectSSID())
}

func TestTryConnectOnce_NeverConnects(t *testing.T) {
	env := newTestEnv(t, "", 0)
	c := env.controller
	ctx := context.Background()

	require.NoError(t, c.SubmitCredentials(ctx, "HomeNet", "secret123"))

	assert.False(t, c.tryConnectOnce(ctx, 1))
	assert.Equal(t, int64(10), env.sleep.calls.Load())
	assert.Equal(t, time.Second, env.sleep.total.Load())
	assert.Equal(t, 1, env.radio.ConnectCalls())
	assert.Equal(t, "portal-test", env.radio.Hostname())
}

func TestTryConnectOnce_HugeTimeoutKeepsPolling(t *testing.T) {
	env := newTestEnv(t, "", 0)
	c := env.controller
	ctx := context.Background()

	require.NoError(t, c.SubmitCredentials(ctx, "HomeNet", "secret123"))

	// End the attempt from the sleep hook once it has clearly kept polling
	env.sleep.onCall = func(n int64) error {
		if n >= 50 {
			return context.Canceled
		}
		return nil
	}

	assert.False(t, c.tryConnectOnce(ctx, 10_000_000_000))
	assert.Equal(t, int64(50), env.sleep.calls.Load())
}

func TestAttemptTimeout(t *testing.T) {
	tests := []struct {
		name    string
		seconds int
		want    time.Duration
	}{
		{"default", 0, DefaultConnectTimeout * time.Second},
		{"negative", -5, DefaultConnectTimeout * time.Second},
		{"one second", 1, time.Second},
		{"clamped", math.MaxInt, time.Duration(MaxConnectTimeout) * time.Second},
		{"just past limit", int(MaxConnectTimeout) + 1, time.Duration(MaxConnectTimeout) * time.Second},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := attemptTimeout(tt.seconds)
			assert.Equal(t, tt.want, got)
			assert.Positive(t, got)
		})
	}
}

func TestTryConnectOnce_ConnectedAtFirstPoll(t *testing.T) {
	env := newTestEnv(t, "HomeNet:secret123", 0)
	c := env.controller
	ctx := context.Background()

	require.NoError(t, c.Start(ctx))
	addr := c.HTTPAddr()
	require.NoError(t, c.SubmitCredentials(ctx, "HomeNet", "secret123"))

	assert.True(t, c.tryConnectOnce(ctx, 1))
	assert.Zero(t, env.sleep.calls.Load())

	assert.False(t, c.IsActive())
	assert.False(t, c.CredentialsKnown())
	assert.Equal(t, interfaces.ModeStation, env.radio.Mode())

	// The portal stops accepting requests
	_, err := http.Get("http://" + addr + "/livez")
	assert.Error(t, err)
}

func TestTryConnectOnce_NoCredentialsStartsPortal(t *testing.T) {
	env := newTestEnv(t, "", 0)
	c := env.controller

	assert.False(t, c.tryConnectOnce(context.Background(), 1))
	assert.True(t, c.IsActive())
	assert.Zero(t, env.radio.ConnectCalls())
}

func TestTryConnectOnce_SavePageAbandonsAttempt(t *testing.T) {
	env := newTestEnv(t, "", 0)
	c := env.controller
	ctx := context.Background()

	require.NoError(t, c.Start(ctx))
	require.NoError(t, c.SubmitCredentials(ctx, "Elsewhere", "nope"))

	env.sleep.onCall = func(n int64) error {
		if n == 3 {
			resp, err := http.Get("http://" + c.HTTPAddr() + api.RouteSave)
			if err != nil {
				return err
			}
			resp.Body.Close()
		}
		return nil
	}

	assert.False(t, c.tryConnectOnce(ctx, DefaultConnectTimeout))
	assert.Equal(t, int64(3), env.sleep.calls.Load())
	assert.True(t, c.IsActive())
}

func TestConnect_StartsPortalOncePerCall(t *testing.T) {
	env := newTestEnv(t, "", 0)
	c := env.controller

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	env.sleep.onCall = func(n int64) error {
		if n >= 5 {
			cancel()
			return context.Canceled
		}
		return nil
	}

	assert.ErrorIs(t, c.Connect(ctx, 1), context.Canceled)
	assert.Equal(t, int64(1), env.assets.mounts.Load())
	assert.True(t, c.IsActive())
}

func TestConnect_ReturnsOnceConnected(t *testing.T) {
	env := newTestEnv(t, "HomeNet:secret123", 2)
	c := env.controller
	ctx := context.Background()

	require.NoError(t, c.SubmitCredentials(ctx, "HomeNet", "secret123"))
	require.NoError(t, c.Connect(ctx, 1))

	assert.Equal(t, interfaces.StatusConnected, env.radio.Status())
	// Two status polls while connecting, then the pause between rounds
	assert.Equal(t, int64(3), env.sleep.calls.Load())
	assert.Equal(t, 1, env.radio.ConnectCalls())
}

func TestConnect_LinkLossReentersProvisioning(t *testing.T) {
	env := newTestEnv(t, "HomeNet:secret123", 0)
	c := env.controller
	ctx := context.Background()

	require.NoError(t, c.Start(ctx))
	postSave(t, c, url.Values{"ssid": {"HomeNet"}, "password": {"secret123"}})
	require.NoError(t, c.Connect(ctx, 1))
	require.False(t, c.IsActive())

	env.radio.DropLink()

	// First round brings the portal back and reloads the saved record
	assert.False(t, c.tryConnectOnce(ctx, 1))
	assert.True(t, c.IsActive())
	assert.True(t, c.CredentialsKnown())

	// The next round joins again with it
	assert.True(t, c.tryConnectOnce(ctx, 1))
	assert.False(t, c.IsActive())
}

func TestStart_CaptiveDNS(t *testing.T) {
	env := newTestEnv(t, "", 0)
	c := env.newController(Config{DNSAddr: "127.0.0.1:0"})
	ctx := context.Background()

	require.NoError(t, c.Start(ctx))
	require.NotEmpty(t, c.DNSAddr())

	m := new(dns.Msg)
	m.SetQuestion("connectivitycheck.gstatic.com.", dns.TypeA)
	resp, _, err := (&dns.Client{Net: "udp"}).Exchange(m, c.DNSAddr())
	require.NoError(t, err)
	require.Len(t, resp.Answer, 1)
	assert.Equal(t, "192.168.0.4", resp.Answer[0].(*dns.A).A.String())

	require.NoError(t, c.Stop(ctx))
	assert.Empty(t, c.DNSAddr())
	assert.Empty(t, c.HTTPAddr())
}

func TestStop_Idempotent(t *testing.T) {
	env := newTestEnv(t, "", 0)
	c := env.controller

	assert.NoError(t, c.Stop(context.Background()))
	assert.NoError(t, c.Stop(context.Background()))
	assert.False(t, c.IsActive())
}
