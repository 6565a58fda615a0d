package provisioning

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/ruteri/wifi-provisioning-portal/api/portal"
	"github.com/ruteri/wifi-provisioning-portal/captivedns"
	"github.com/ruteri/wifi-provisioning-portal/credentials"
	"github.com/ruteri/wifi-provisioning-portal/httpserver"
	"github.com/ruteri/wifi-provisioning-portal/interfaces"
	"github.com/ruteri/wifi-provisioning-portal/metrics"
	"github.com/ruteri/wifi-provisioning-portal/poll"
	"go.uber.org/atomic"
)

// Controller brings up the provisioning portal when no usable credentials
// are known and joins the configured network once they are.
type Controller struct {
	cfg     Config
	radio   interfaces.Radio
	assets  interfaces.AssetStore
	creds   *credentials.Store
	metrics *metrics.Metrics
	log     *slog.Logger

	// mu guards the record, the known flag and the servers. It is never
	// held while polling or while waiting for handlers.
	mu     sync.Mutex
	record credentials.Record
	known  bool
	http   *httpserver.Server
	dns    *captivedns.Server

	active   atomic.Bool
	attempts atomic.Int64
	abandon  atomic.Bool
}

// New creates a controller. Call Configure before Start to move the
// credential record away from offset 0.
func New(cfg Config, radio interfaces.Radio, nv interfaces.NVStore, assets interfaces.AssetStore) *Controller {
	cfg = cfg.withDefaults()
	return &Controller{
		cfg:     cfg,
		radio:   radio,
		assets:  assets,
		creds:   credentials.NewStore(nv, cfg.Log),
		metrics: cfg.Metrics,
		log:     cfg.Log,
	}
}

// Configure sets the byte offset of the credential record in the
// non-volatile region. Existing data is not moved.
func (c *Controller) Configure(storageOffset int64) {
	c.creds.SetOffset(storageOffset)
}

// Start brings up the provisioning portal: assets, saved credentials, the
// access point, a background scan, the HTTP server and the captive DNS.
// Starting an active controller is a no-op.
func (c *Controller) Start(ctx context.Context) error {
	c.mu.Lock()

	if c.active.Load() {
		c.mu.Unlock()
		c.log.Warn("Provisioning portal already active")
		return nil
	}

	c.log.Info("Starting provisioning portal", "ap", c.cfg.APName)

	if err := c.assets.Mount(); err != nil {
		c.mu.Unlock()
		c.log.Error("Failed to mount asset store", "err", err)
		return fmt.Errorf("failed to mount asset store: %w", err)
	}

	c.loadLocked(ctx)

	err := c.startRadioLocked()
	if err == nil {
		err = c.startServersLocked()
	}
	if err != nil {
		httpSrv, dnsSrv := c.detachServersLocked()
		c.mu.Unlock()
		c.rollback(ctx, httpSrv, dnsSrv)
		return err
	}

	c.active.Store(true)
	c.mu.Unlock()

	c.metrics.PortalActive(true)
	return nil
}

func (c *Controller) loadLocked(ctx context.Context) {
	rec, err := c.creds.Load(ctx)
	if err != nil {
		c.log.Error("Failed to load credentials", "err", err)
		c.record = credentials.Record{}
		c.known = false
		return
	}

	c.record = rec
	c.known = !rec.Empty()
	c.log.Info("Loaded credentials", "offset", c.creds.Offset(), "known", c.known, "ssid", rec.SSID)
}

func (c *Controller) startRadioLocked() error {
	if err := c.radio.SetMode(interfaces.ModeAccessPointStation); err != nil {
		return fmt.Errorf("failed to enable access point: %w", err)
	}

	err := c.radio.StartAccessPoint(interfaces.AccessPointConfig{
		SSID:       c.cfg.APName,
		Passphrase: c.cfg.APPassphrase,
		Address:    c.cfg.APAddress,
		Gateway:    c.cfg.APAddress.Addr(),
	})
	if err != nil {
		return fmt.Errorf("failed to start access point: %w", err)
	}

	if _, err := c.radio.ScanComplete(); errors.Is(err, interfaces.ErrScanNotStarted) {
		if err := c.radio.StartScan(); err != nil {
			c.log.Warn("Failed to start scan", "err", err)
		}
	}
	return nil
}

func (c *Controller) startServersLocked() error {
	httpCfg := c.cfg.HTTP
	httpCfg.PortalAddr = c.cfg.APAddress.Addr()
	httpCfg.Log = c.log

	handler := portal.NewHandler(c.radio, c.assets, c, portal.Config{
		ScanTimeout:  c.cfg.ScanTimeout,
		PollInterval: c.cfg.PollInterval,
		Sleep:        c.cfg.Sleep,
		Metrics:      c.metrics,
	}, c.log)

	srv := httpserver.New(&httpCfg, handler)
	if err := srv.RunInBackground(); err != nil {
		return err
	}
	c.http = srv

	if c.cfg.DNSAddr == "" {
		return nil
	}

	dns := captivedns.New(c.cfg.DNSAddr, c.cfg.APAddress.Addr(), c.log)
	if err := dns.Start(); err != nil {
		return err
	}
	c.dns = dns
	return nil
}

// rollback undoes a partial Start.
func (c *Controller) rollback(ctx context.Context, httpSrv *httpserver.Server, dnsSrv *captivedns.Server) {
	if err := shutdownServers(ctx, httpSrv, dnsSrv); err != nil {
		c.log.Warn("Failed to stop servers", "err", err)
	}
	if err := c.radio.SetMode(interfaces.ModeStation); err != nil {
		c.log.Warn("Failed to restore station mode", "err", err)
	}
	if err := c.assets.Unmount(); err != nil {
		c.log.Warn("Failed to unmount asset store", "err", err)
	}
}

// detachServersLocked hands the servers to the caller, which shuts them
// down after releasing mu. Handlers take mu, so waiting for them under it
// would deadlock.
func (c *Controller) detachServersLocked() (*httpserver.Server, *captivedns.Server) {
	httpSrv, dnsSrv := c.http, c.dns
	c.http, c.dns = nil, nil
	return httpSrv, dnsSrv
}

func shutdownServers(ctx context.Context, httpSrv *httpserver.Server, dnsSrv *captivedns.Server) error {
	var errs []error
	if dnsSrv != nil {
		errs = append(errs, dnsSrv.Shutdown(ctx))
	}
	if httpSrv != nil {
		errs = append(errs, httpSrv.Shutdown(ctx))
	}
	return errors.Join(errs...)
}

// Stop tears the portal down and returns the radio to station mode. The
// credentials-known flag is cleared, so the next attempt after a lost link
// restarts provisioning and reloads the saved record.
func (c *Controller) Stop(ctx context.Context) error {
	c.log.Info("Stopping provisioning portal")

	c.mu.Lock()
	var errs []error
	if err := c.assets.Unmount(); err != nil {
		errs = append(errs, fmt.Errorf("failed to unmount asset store: %w", err))
	}
	if err := c.radio.SetMode(interfaces.ModeStation); err != nil {
		errs = append(errs, fmt.Errorf("failed to switch to station mode: %w", err))
	}

	c.active.Store(false)
	c.known = false
	httpSrv, dnsSrv := c.detachServersLocked()
	c.mu.Unlock()

	c.metrics.PortalActive(false)

	if err := shutdownServers(ctx, httpSrv, dnsSrv); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// Connect blocks until the radio reports a connection. Each round is one
// attempt of timeoutSeconds followed by ConnectPause. It returns nil once
// connected, or ctx.Err().
func (c *Controller) Connect(ctx context.Context, timeoutSeconds int) error {
	if timeoutSeconds <= 0 {
		timeoutSeconds = DefaultConnectTimeout
	}

	for c.radio.Status() != interfaces.StatusConnected {
		if err := ctx.Err(); err != nil {
			return err
		}
		c.tryConnectOnce(ctx, timeoutSeconds)
		if err := c.cfg.Sleep(ctx, c.cfg.ConnectPause); err != nil {
			return err
		}
	}
	return nil
}

// tryConnectOnce makes one connection attempt with the known credentials,
// or starts the portal when there are none. It reports whether the radio
// connected.
func (c *Controller) tryConnectOnce(ctx context.Context, timeoutSeconds int) bool {
	c.mu.Lock()
	known, rec := c.known, c.record
	c.mu.Unlock()

	if !known {
		if !c.active.Load() {
			if err := c.Start(ctx); err != nil {
				c.log.Error("Failed to start provisioning portal", "err", err)
			}
		}
		return false
	}

	if err := c.radio.Disconnect(); err != nil {
		c.log.Warn("Failed to disconnect station", "err", err)
	}
	c.attempts.Store(0)
	c.abandon.Store(false)

	if err := c.radio.Connect(rec.SSID, rec.Passphrase); err != nil {
		c.log.Error("Failed to begin association", "err", err, "ssid", rec.SSID)
		return false
	}
	if err := c.radio.SetHostname(c.cfg.APName); err != nil {
		c.log.Warn("Failed to set hostname", "err", err)
	}

	timeout := attemptTimeout(timeoutSeconds)
	c.log.Info("Connecting to WiFi",
		"mac", c.radio.HardwareAddr().String(),
		"ssid", rec.SSID,
		"timeout", timeout)

	cfg := poll.Config{
		Interval: c.cfg.PollInterval,
		Attempts: poll.AttemptsFor(timeout, c.cfg.PollInterval),
		Sleep:    c.cfg.Sleep,
	}
	res := poll.Until(ctx, cfg, func(int) poll.Outcome {
		if c.radio.Status() == interfaces.StatusConnected {
			return poll.Done
		}
		if c.abandon.Load() || c.attempts.Inc() > MaxTry {
			return poll.Abort
		}
		return poll.Pending
	})

	switch res {
	case poll.Succeeded:
		c.log.Info("Connected to WiFi", "ssid", rec.SSID)
		c.metrics.ConnectAttempt(metrics.ResultConnected)
		if err := c.Stop(ctx); err != nil {
			c.log.Warn("Failed to stop provisioning portal", "err", err)
		}
		return true
	case poll.TimedOut:
		c.log.Warn("Timed out connecting to WiFi", "ssid", rec.SSID, "status", c.radio.Status())
		c.metrics.ConnectAttempt(metrics.ResultTimedOut)
	case poll.Aborted:
		c.log.Info("Connection attempt abandoned", "ssid", rec.SSID)
		c.metrics.ConnectAttempt(metrics.ResultAbandoned)
	case poll.Canceled:
		c.metrics.ConnectAttempt(metrics.ResultCanceled)
	}
	return false
}

// attemptTimeout converts a per-attempt budget in seconds, clamping it to
// MaxConnectTimeout.
func attemptTimeout(seconds int) time.Duration {
	if seconds <= 0 {
		seconds = DefaultConnectTimeout
	}
	if int64(seconds) > MaxConnectTimeout {
		return time.Duration(MaxConnectTimeout) * time.Second
	}
	return time.Duration(seconds) * time.Second
}

// SubmitCredentials replaces the saved credentials and persists them.
// Values longer than credentials.MaxFieldLen are truncated. When persisting
// fails the previous record and known flag are kept.
func (c *Controller) SubmitCredentials(ctx context.Context, ssid, passphrase string) error {
	rec := credentials.New(ssid, passphrase)

	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.creds.Save(ctx, rec); err != nil {
		return fmt.Errorf("failed to persist credentials: %w", err)
	}

	c.record = rec
	c.known = true
	return nil
}

// AbandonAttempt ends the connection attempt in flight at its next poll.
func (c *Controller) AbandonAttempt() {
	c.attempts.Store(MaxTry)
	c.abandon.Store(true)
	c.log.Debug("Abandoning connection attempt")
}

// IsActive reports whether the portal is serving.
func (c *Controller) IsActive() bool {
	return c.active.Load()
}

// CredentialsKnown reports whether credentials are loaded or submitted.
func (c *Controller) CredentialsKnown() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.known
}

// Credentials returns a copy of the current record.
func (c *Controller) Credentials() credentials.Record {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.record
}

// HTTPAddr returns the portal's bound address, or "" when inactive.
func (c *Controller) HTTPAddr() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.http == nil {
		return ""
	}
	return c.http.Addr()
}

// DNSAddr returns the captive DNS bound address, or "" when not running.
func (c *Controller) DNSAddr() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.dns == nil {
		return ""
	}
	return c.dns.Addr()
}
