package radio

import (
	"errors"
	"fmt"
	"log/slog"
	"net"
	"strings"
	"sync"

	"github.com/ruteri/wifi-provisioning-portal/interfaces"
)

// ErrStationDisabled is returned by Connect when only the access point is enabled.
var ErrStationDisabled = errors.New("station interface disabled")

// SimNetwork is a network the simulated radio can see.
type SimNetwork struct {
	interfaces.Network
	Passphrase string
}

// SimulatedConfig configures a Simulated radio.
type SimulatedConfig struct {
	Networks []SimNetwork

	// ConnectAfter is the number of Status calls answered with
	// StatusConnecting before the outcome of Connect is reported.
	ConnectAfter int

	// ScanPolls is the number of ScanComplete calls answered with
	// ErrScanRunning after StartScan.
	ScanPolls int

	HardwareAddr net.HardwareAddr
}

type scanState int

const (
	scanIdle scanState = iota
	scanRunning
	scanDone
)

// Simulated is an in-process radio. It backs the bench binary and tests and
// counts the calls made to it.
type Simulated struct {
	mu  sync.Mutex
	cfg SimulatedConfig
	log *slog.Logger

	mode     interfaces.WiFiMode
	ap       *interfaces.AccessPointConfig
	hostname string

	scan          scanState
	scanRemaining int
	results       []interfaces.Network

	status       interfaces.LinkStatus
	target       string
	passphrase   string
	statusPolls  int
	connectCalls int
	scanStarts   int
}

// NewSimulated creates a radio in station mode with no link.
func NewSimulated(cfg SimulatedConfig, log *slog.Logger) *Simulated {
	if cfg.HardwareAddr == nil {
		cfg.HardwareAddr = net.HardwareAddr{0x02, 0x00, 0x00, 0x5e, 0x00, 0x01}
	}
	return &Simulated{
		cfg:    cfg,
		log:    log,
		mode:   interfaces.ModeStation,
		status: interfaces.StatusIdle,
	}
}

func (r *Simulated) SetMode(mode interfaces.WiFiMode) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.log.Debug("Radio mode changed", "from", r.mode, "to", mode)
	r.mode = mode
	if mode == interfaces.ModeStation {
		r.ap = nil
	}
	return nil
}

func (r *Simulated) StartAccessPoint(cfg interfaces.AccessPointConfig) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.mode == interfaces.ModeStation {
		return fmt.Errorf("cannot start access point in %s mode", r.mode)
	}
	if cfg.SSID == "" {
		return errors.New("access point SSID is empty")
	}

	r.log.Info("Access point up", "ssid", cfg.SSID, "address", cfg.Address)
	r.ap = &cfg
	return nil
}

func (r *Simulated) StartScan() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.scanStarts++
	r.scan = scanRunning
	r.scanRemaining = r.cfg.ScanPolls
	r.results = nil
	return nil
}

func (r *Simulated) ScanComplete() (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	switch r.scan {
	case scanIdle:
		return 0, interfaces.ErrScanNotStarted
	case scanRunning:
		if r.scanRemaining > 0 {
			r.scanRemaining--
			return 0, interfaces.ErrScanRunning
		}
		r.results = make([]interfaces.Network, 0, len(r.cfg.Networks))
		for _, n := range r.cfg.Networks {
			r.results = append(r.results, n.Network)
		}
		r.scan = scanDone
	}
	return len(r.results), nil
}

func (r *Simulated) ScanResults() []interfaces.Network {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]interfaces.Network(nil), r.results...)
}

func (r *Simulated) ScanDelete() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.scan = scanIdle
	r.results = nil
}

func (r *Simulated) Connect(ssid, passphrase string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.mode == interfaces.ModeAccessPoint {
		return ErrStationDisabled
	}

	r.connectCalls++
	r.target = ssid
	r.passphrase = passphrase
	r.statusPolls = 0
	r.status = interfaces.StatusConnecting
	return nil
}

func (r *Simulated) Disconnect() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.status == interfaces.StatusConnected || r.status == interfaces.StatusConnecting {
		r.status = interfaces.StatusDisconnected
	}
	r.target = ""
	r.passphrase = ""
	return nil
}

// Status reports the link state. While connecting, every call counts as one
// poll towards ConnectAfter.
func (r *Simulated) Status() interfaces.LinkStatus {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.status != interfaces.StatusConnecting {
		return r.status
	}

	if r.statusPolls < r.cfg.ConnectAfter {
		r.statusPolls++
		return r.status
	}

	r.status = r.outcome()
	if r.status == interfaces.StatusConnected {
		r.log.Info("Station connected", "ssid", r.target)
	}
	return r.status
}

func (r *Simulated) outcome() interfaces.LinkStatus {
	for _, n := range r.cfg.Networks {
		if n.SSID != r.target {
			continue
		}
		if n.Open || n.Passphrase == r.passphrase {
			return interfaces.StatusConnected
		}
		return interfaces.StatusConnectFailed
	}
	return interfaces.StatusNoSSID
}

func (r *Simulated) SetHostname(name string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.hostname = name
	return nil
}

func (r *Simulated) HardwareAddr() net.HardwareAddr {
	return r.cfg.HardwareAddr
}

// DropLink simulates losing the station link.
func (r *Simulated) DropLink() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.status = interfaces.StatusDisconnected
}

// Mode returns the current mode.
func (r *Simulated) Mode() interfaces.WiFiMode {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.mode
}

// AccessPoint returns the running access point configuration, if any.
func (r *Simulated) AccessPoint() (interfaces.AccessPointConfig, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.ap == nil {
		return interfaces.AccessPointConfig{}, false
	}
	return *r.ap, true
}

// Hostname returns the last hostname set.
func (r *Simulated) Hostname() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.hostname
}

// ConnectCalls returns how many times Connect was called.
func (r *Simulated) ConnectCalls() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.connectCalls
}

// LastConnectSSID returns the network named by the last Connect call, or
// "" after Disconnect.
func (r *Simulated) LastConnectSSID() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.target
}

// ScanStarts returns how many times StartScan was called.
func (r *Simulated) ScanStarts() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.scanStarts
}

// ParseNetworks parses a comma separated list of ssid[:passphrase]
// entries. Entries without a passphrase are open networks.
func ParseNetworks(list string) ([]SimNetwork, error) {
	var networks []SimNetwork
	for i, entry := range strings.Split(list, ",") {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		ssid, pass, hasPass := strings.Cut(entry, ":")
		if ssid == "" {
			return nil, fmt.Errorf("network %d: empty ssid", i)
		}
		networks = append(networks, SimNetwork{
			Network: interfaces.Network{
				SSID:    ssid,
				BSSID:   net.HardwareAddr{0x02, 0x00, 0x00, 0x00, 0x00, byte(i + 1)},
				RSSI:    -40 - 5*i,
				Channel: 1 + (5*i)%11,
				Open:    !hasPass || pass == "",
			},
			Passphrase: pass,
		})
	}
	return networks, nil
}
