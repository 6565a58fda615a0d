package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ruteri/wifi-provisioning-portal/api/portal"
	"github.com/ruteri/wifi-provisioning-portal/assets"
	"github.com/ruteri/wifi-provisioning-portal/cmd/flags"
	"github.com/ruteri/wifi-provisioning-portal/common"
	"github.com/ruteri/wifi-provisioning-portal/interfaces"
	"github.com/ruteri/wifi-provisioning-portal/metrics"
	"github.com/ruteri/wifi-provisioning-portal/poll"
	"github.com/ruteri/wifi-provisioning-portal/provisioning"
	"github.com/ruteri/wifi-provisioning-portal/radio"
	"github.com/ruteri/wifi-provisioning-portal/storage"
	"github.com/urfave/cli/v2"
)

// linkCheckInterval is how often a joined link is checked for loss.
const linkCheckInterval = 5 * time.Second

var portalFlags = []cli.Flag{
	&cli.StringFlag{
		Name:    "ap-name",
		Value:   "WiFi-Setup",
		Usage:   "access point SSID, also used as the station hostname",
		EnvVars: []string{"AP_NAME"},
	},
	&cli.StringFlag{
		Name:    "ap-pass",
		Usage:   "access point passphrase, empty for an open network",
		EnvVars: []string{"AP_PASS"},
	},
	&cli.StringFlag{
		Name:    "listen-addr",
		Value:   ":80",
		Usage:   "address to listen on for the portal",
		EnvVars: []string{"LISTEN_ADDR"},
	},
	&cli.StringFlag{
		Name:    "dns-addr",
		Value:   ":53",
		Usage:   "address to listen on for captive DNS, empty to disable",
		EnvVars: []string{"DNS_ADDR"},
	},
	&cli.StringSliceFlag{
		Name:    "storage-uri",
		Value:   cli.NewStringSlice("file://./nvs.bin"),
		Usage:   "non-volatile region backend (file://, mem://, s3://, vault://), repeat to mirror",
		EnvVars: []string{"STORAGE_URI"},
	},
	&cli.IntFlag{
		Name:    "storage-size",
		Value:   storage.DefaultRegionSize,
		Usage:   "size of the non-volatile region in bytes",
		EnvVars: []string{"STORAGE_SIZE"},
	},
	&cli.Int64Flag{
		Name:    "storage-offset",
		Value:   0,
		Usage:   "byte offset of the credential record in the region",
		EnvVars: []string{"STORAGE_OFFSET"},
	},
	&cli.StringFlag{
		Name:    "assets-dir",
		Usage:   "directory whose files override the built-in portal assets",
		EnvVars: []string{"ASSETS_DIR"},
	},
	&cli.IntFlag{
		Name:    "connect-timeout",
		Value:   provisioning.DefaultConnectTimeout,
		Usage:   "seconds per connection attempt",
		EnvVars: []string{"CONNECT_TIMEOUT"},
	},
	&cli.DurationFlag{
		Name:    "scan-timeout",
		Value:   portal.DefaultScanTimeout,
		Usage:   "how long the portal page waits for scan results",
		EnvVars: []string{"SCAN_TIMEOUT"},
	},
	&cli.StringFlag{
		Name:    "radio",
		Value:   "sim",
		Usage:   "radio driver: 'sim'",
		EnvVars: []string{"RADIO"},
	},
	&cli.StringFlag{
		Name:    "sim-networks",
		Value:   "HomeNet:secret123,CoffeeShop",
		Usage:   "networks visible to the simulated radio, comma separated ssid[:passphrase]",
		EnvVars: []string{"SIM_NETWORKS"},
	},
	&cli.IntFlag{
		Name:    "sim-connect-after",
		Value:   20,
		Usage:   "status polls before the simulated radio reports the outcome of a connect",
		EnvVars: []string{"SIM_CONNECT_AFTER"},
	},
}

func main() {
	app := &cli.App{
		Name:   "portal",
		Usage:  "Provision WiFi credentials through a captive portal and keep the station connected",
		Flags:  append(portalFlags, flags.CommonFlags...),
		Action: runPortal,
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

func runPortal(cCtx *cli.Context) error {
	logger := flags.SetupLogger(cCtx)
	scanTimeout := cCtx.Duration("scan-timeout")
	metricsAddr := cCtx.String(flags.MetricsAddrFlag.Name)

	nv, err := openRegion(cCtx, logger)
	if err != nil {
		logger.Error("Failed to open non-volatile region", "err", err)
		return err
	}

	wifi, err := openRadio(cCtx, logger)
	if err != nil {
		logger.Error("Failed to open radio", "err", err)
		return err
	}

	var m *metrics.Metrics
	var metricsSrv *metrics.MetricsServer
	if metricsAddr != "" {
		m = metrics.NewMetrics(common.PackageName)
		metricsSrv, err = metrics.New(m, metricsAddr)
		if err != nil {
			return err
		}
		go func() {
			logger.Info("Starting metrics server", "metricsAddress", metricsAddr)
			if err := metricsSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("Metrics server failed", "err", err)
			}
		}()
	}

	controller := provisioning.New(provisioning.Config{
		APName:       cCtx.String("ap-name"),
		APPassphrase: cCtx.String("ap-pass"),
		HTTP:         flags.ConfigureServer(cCtx, logger, cCtx.String("listen-addr"), scanTimeout),
		DNSAddr:      cCtx.String("dns-addr"),
		ScanTimeout:  scanTimeout,
		Metrics:      m,
		Log:          logger,
	}, wifi, nv, assets.NewStore(cCtx.String("assets-dir")))
	controller.Configure(cCtx.Int64("storage-offset"))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger.Info("Portal is running, press Ctrl+C to stop")
	superviseLink(ctx, controller, wifi, cCtx.Int("connect-timeout"), logger)
	logger.Info("Shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := controller.Stop(shutdownCtx); err != nil {
		logger.Error("Failed to stop provisioning portal", "err", err)
	}
	if metricsSrv != nil {
		if err := metricsSrv.Shutdown(shutdownCtx); err != nil {
			logger.Error("Graceful metrics server shutdown failed", "err", err)
		}
	}

	logger.Info("Portal shutdown complete")
	return nil
}

// superviseLink joins the network, then watches the link and rejoins when it
// drops, until ctx ends.
func superviseLink(ctx context.Context, controller *provisioning.Controller, wifi interfaces.Radio, timeout int, logger *slog.Logger) {
	for {
		if err := controller.Connect(ctx, timeout); err != nil {
			return
		}
		logger.Info("Station connected", "ssid", controller.Credentials().SSID)

		for wifi.Status() == interfaces.StatusConnected {
			if err := poll.Sleep(ctx, linkCheckInterval); err != nil {
				return
			}
		}
		logger.Warn("Station link lost", "status", wifi.Status())
	}
}

func openRegion(cCtx *cli.Context, logger *slog.Logger) (interfaces.NVStore, error) {
	var locations []interfaces.StorageBackendLocation
	for _, uri := range cCtx.StringSlice("storage-uri") {
		loc, err := interfaces.NewStorageBackendLocation(uri)
		if err != nil {
			return nil, err
		}
		locations = append(locations, loc)
	}

	backend, err := storage.NewStorageBackendFactory(logger).CreateMultiBackend(locations)
	if err != nil {
		return nil, err
	}

	logger.Info("Using non-volatile region", "backend", backend.LocationURI(), "size", cCtx.Int("storage-size"))
	return storage.NewEEPROM(backend, cCtx.Int("storage-size"), logger), nil
}

func openRadio(cCtx *cli.Context, logger *slog.Logger) (interfaces.Radio, error) {
	switch driver := cCtx.String("radio"); driver {
	case "sim":
		networks, err := radio.ParseNetworks(cCtx.String("sim-networks"))
		if err != nil {
			return nil, err
		}
		return radio.NewSimulated(radio.SimulatedConfig{
			Networks:     networks,
			ConnectAfter: cCtx.Int("sim-connect-after"),
		}, logger), nil
	default:
		return nil, fmt.Errorf("unsupported radio driver: %s", driver)
	}
}
