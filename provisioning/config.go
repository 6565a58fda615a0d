package provisioning

import (
	"log/slog"
	"math"
	"net/netip"
	"time"

	"github.com/ruteri/wifi-provisioning-portal/api"
	"github.com/ruteri/wifi-provisioning-portal/metrics"
	"github.com/ruteri/wifi-provisioning-portal/poll"
)

const (
	// DefaultConnectTimeout is the per-attempt budget of Connect in seconds.
	DefaultConnectTimeout = 60

	// MaxConnectTimeout is the largest per-attempt budget in seconds that
	// still fits a time.Duration. Larger values are clamped to it.
	MaxConnectTimeout = math.MaxInt64 / int64(time.Second)

	// MaxTry is the attempt counter value that abandons an attempt.
	MaxTry = 99999999

	DefaultPollInterval = 100 * time.Millisecond
	DefaultConnectPause = time.Second
)

// DefaultAPAddress is the access point address and subnet. The gateway is
// the same address.
var DefaultAPAddress = netip.MustParsePrefix("192.168.0.4/24")

// Config configures a Controller.
type Config struct {
	// APName is the access point SSID and the station hostname.
	APName string

	// APPassphrase secures the access point. Empty leaves it open.
	APPassphrase string

	// APAddress defaults to DefaultAPAddress.
	APAddress netip.Prefix

	// HTTP configures the portal server. PortalAddr and Log are filled in
	// by the controller.
	HTTP api.HTTPServerConfig

	// DNSAddr is the captive DNS listen address. Empty disables it.
	DNSAddr string

	// PollInterval is the pause between link status checks.
	PollInterval time.Duration

	// ConnectPause separates connection attempts in Connect.
	ConnectPause time.Duration

	// ScanTimeout bounds the root page's wait for scan results.
	ScanTimeout time.Duration

	// Sleep replaces every pause the controller and portal make.
	Sleep poll.SleepFunc

	// Metrics is optional.
	Metrics *metrics.Metrics

	Log *slog.Logger
}

func (cfg Config) withDefaults() Config {
	if !cfg.APAddress.IsValid() {
		cfg.APAddress = DefaultAPAddress
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = DefaultPollInterval
	}
	if cfg.ConnectPause <= 0 {
		cfg.ConnectPause = DefaultConnectPause
	}
	if cfg.Sleep == nil {
		cfg.Sleep = poll.Sleep
	}
	if cfg.Log == nil {
		cfg.Log = slog.Default()
	}
	return cfg
}
