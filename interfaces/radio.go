package interfaces

import (
	"errors"
	"io/fs"
	"net"
	"net/netip"
)

// WiFiMode selects which interfaces of the radio are enabled.
type WiFiMode int

const (
	// ModeStation enables only the station (client) interface.
	ModeStation WiFiMode = iota
	// ModeAccessPoint enables only the soft access point.
	ModeAccessPoint
	// ModeAccessPointStation enables both at once, used while provisioning.
	ModeAccessPointStation
)

// String returns mode name.
func (m WiFiMode) String() string {
	switch m {
	case ModeStation:
		return "sta"
	case ModeAccessPoint:
		return "ap"
	case ModeAccessPointStation:
		return "ap+sta"
	default:
		return "unknown"
	}
}

// LinkStatus is the station link state reported by the radio.
type LinkStatus int

const (
	StatusIdle LinkStatus = iota
	StatusNoSSID
	StatusConnecting
	StatusConnected
	StatusConnectFailed
	StatusDisconnected
)

// String returns status name.
func (s LinkStatus) String() string {
	switch s {
	case StatusIdle:
		return "idle"
	case StatusNoSSID:
		return "no-ssid"
	case StatusConnecting:
		return "connecting"
	case StatusConnected:
		return "connected"
	case StatusConnectFailed:
		return "connect-failed"
	case StatusDisconnected:
		return "disconnected"
	default:
		return "unknown"
	}
}

var (
	// ErrScanNotStarted is returned by ScanComplete when no scan was requested.
	ErrScanNotStarted = errors.New("scan not started")

	// ErrScanRunning is returned by ScanComplete while a scan is in progress.
	ErrScanRunning = errors.New("scan running")
)

// Network is one scan result.
type Network struct {
	SSID    string
	BSSID   net.HardwareAddr
	RSSI    int // dBm
	Channel int
	Open    bool
}

// AccessPointConfig configures the soft access point.
type AccessPointConfig struct {
	SSID       string
	Passphrase string // empty for an open network
	Address    netip.Prefix
	Gateway    netip.Addr
}

// Radio is the WiFi driver used by the provisioning controller.
// Scans are asynchronous: StartScan returns immediately and ScanComplete
// reports progress.
type Radio interface {
	SetMode(mode WiFiMode) error
	StartAccessPoint(cfg AccessPointConfig) error

	// StartScan begins an asynchronous scan.
	StartScan() error
	// ScanComplete returns the number of networks found by the last scan,
	// ErrScanNotStarted or ErrScanRunning.
	ScanComplete() (int, error)
	// ScanResults returns the networks found by the last completed scan.
	ScanResults() []Network
	// ScanDelete drops the last scan results.
	ScanDelete()

	// Connect begins associating with a network and returns without waiting.
	Connect(ssid, passphrase string) error
	Disconnect() error
	Status() LinkStatus
	SetHostname(name string) error
	HardwareAddr() net.HardwareAddr
}

// AssetStore is a mountable read-only file store for static web assets.
type AssetStore interface {
	fs.FS
	Mount() error
	Unmount() error
}
