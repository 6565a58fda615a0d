package portal

import (
	"context"
	"errors"
	"io/fs"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/ruteri/wifi-provisioning-portal/api"
	"github.com/ruteri/wifi-provisioning-portal/interfaces"
	"github.com/ruteri/wifi-provisioning-portal/metrics"
	"github.com/ruteri/wifi-provisioning-portal/poll"
)

const (
	// DefaultScanTimeout bounds how long GET / waits for scan results.
	DefaultScanTimeout = 10 * time.Second

	// DefaultPollInterval is the pause between scan status checks.
	DefaultPollInterval = 100 * time.Millisecond

	// maxFormSize caps the POST /save body.
	maxFormSize = 4096
)

// CredentialSink receives what the portal collects from the user.
type CredentialSink interface {
	// SubmitCredentials replaces and persists the saved credentials.
	SubmitCredentials(ctx context.Context, ssid, passphrase string) error

	// AbandonAttempt ends the connection attempt in flight, if any.
	AbandonAttempt()
}

// Config tunes the portal handlers. Zero values take the defaults.
type Config struct {
	ScanTimeout  time.Duration
	PollInterval time.Duration

	// Sleep replaces the pause between scan checks.
	Sleep poll.SleepFunc

	// Metrics is optional.
	Metrics *metrics.Metrics
}

// Handler serves the provisioning pages.
type Handler struct {
	radio   interfaces.Radio
	assets  fs.FS
	sink    CredentialSink
	scan    poll.Config
	metrics *metrics.Metrics
	log     *slog.Logger
}

// NewHandler creates the portal handler.
//
// Parameters:
//   - radio: Driver used to scan for networks
//   - assets: Static files, opened by name (favicon.ico, style.css, refresh.png, save.html)
//   - sink: Receives submitted credentials and the abandon signal
//   - cfg: Scan timing and metrics
//   - log: Structured logger for operational insights
func NewHandler(radio interfaces.Radio, assets fs.FS, sink CredentialSink, cfg Config, log *slog.Logger) *Handler {
	if cfg.ScanTimeout <= 0 {
		cfg.ScanTimeout = DefaultScanTimeout
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = DefaultPollInterval
	}

	return &Handler{
		radio:  radio,
		assets: assets,
		sink:   sink,
		scan: poll.Config{
			Interval: cfg.PollInterval,
			Attempts: poll.AttemptsFor(cfg.ScanTimeout, cfg.PollInterval),
			Sleep:    cfg.Sleep,
		},
		metrics: cfg.Metrics,
		log:     log,
	}
}

func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get(api.RouteFavicon, h.serveAsset("favicon.ico", "image/x-icon"))
	r.Get(api.RouteStyle, h.serveAsset("style.css", "text/css"))
	r.Get(api.RouteRefresh, h.serveAsset("refresh.png", "image/png"))

	r.Get(api.RouteRoot, h.HandleRoot)
	r.Get(api.RouteSave, h.HandleSaved)
	r.Post(api.RouteSave, h.HandleSave)
}

// HandleRoot renders the network selection form.
//
// URL format: GET /
//
// The station link is dropped first so the scan is not disturbed. The
// handler then waits for scan results, starting a scan if none is
// pending. When the wait times out the form is served without networks
// and the user can reload.
func (h *Handler) HandleRoot(w http.ResponseWriter, r *http.Request) {
	if err := h.radio.Disconnect(); err != nil {
		h.log.Warn("Failed to disconnect station", "err", err)
	}

	res := poll.Until(r.Context(), h.scan, h.scanReady)
	switch res {
	case poll.Canceled:
		h.log.Debug("Client went away while waiting for scan")
		return
	case poll.TimedOut:
		h.log.Warn("Scan did not complete in time, rendering empty list")
	}

	var ssids []string
	if res == poll.Succeeded {
		ssids = uniqueSSIDs(h.radio.ScanResults())
	}
	h.radio.ScanDelete()

	h.log.Debug("Rendering network list", "networks", len(ssids))
	h.metrics.ScanNetworks(len(ssids))

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(renderPage(ssids)))
}

func (h *Handler) scanReady(int) poll.Outcome {
	_, err := h.radio.ScanComplete()
	switch {
	case errors.Is(err, interfaces.ErrScanNotStarted):
		if err := h.radio.StartScan(); err != nil {
			h.log.Error("Failed to start scan", "err", err)
			return poll.Abort
		}
		return poll.Pending
	case errors.Is(err, interfaces.ErrScanRunning):
		return poll.Pending
	case err != nil:
		h.log.Error("Scan failed", "err", err)
		return poll.Abort
	}
	return poll.Done
}

// HandleSaved serves the confirmation page and abandons the connection
// attempt in flight so the next one uses the new credentials.
//
// URL format: GET /save
func (h *Handler) HandleSaved(w http.ResponseWriter, r *http.Request) {
	h.sink.AbandonAttempt()
	h.writeAsset(w, "save.html", "text/html; charset=utf-8")
}

// HandleSave persists the submitted credentials.
//
// URL format: POST /save
//
// Request body: application/x-www-form-urlencoded with ssid and password.
// A request missing either field is ignored with 204 No Content, which
// leaves the browser on the form. On success the client is redirected to
// GET /save.
func (h *Handler) HandleSave(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxFormSize)
	if err := r.ParseForm(); err != nil {
		h.log.Warn("Failed to parse form", "err", err)
		http.Error(w, "Invalid form", http.StatusBadRequest)
		return
	}

	ssid, hasSSID := r.PostForm[api.FormFieldSSID]
	password, hasPassword := r.PostForm[api.FormFieldPassword]
	if !hasSSID || !hasPassword {
		h.log.Debug("Ignoring incomplete form", "ssid", hasSSID, "password", hasPassword)
		w.WriteHeader(http.StatusNoContent)
		return
	}

	err := h.sink.SubmitCredentials(r.Context(), ssid[0], password[0])
	h.metrics.CredentialsSaved(err)
	if err != nil {
		h.log.Error("Failed to save credentials", "err", err, "ssid", ssid[0])
		http.Error(w, "Failed to save credentials", http.StatusInternalServerError)
		return
	}

	h.log.Info("Credentials saved", "ssid", ssid[0])
	http.Redirect(w, r, api.RouteSave, http.StatusSeeOther)
}

func (h *Handler) serveAsset(name, contentType string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		h.writeAsset(w, name, contentType)
	}
}

func (h *Handler) writeAsset(w http.ResponseWriter, name, contentType string) {
	data, err := fs.ReadFile(h.assets, name)
	if errors.Is(err, fs.ErrNotExist) {
		http.NotFound(w, nil)
		return
	}
	if err != nil {
		h.log.Error("Failed to read asset", "err", err, "name", name)
		http.Error(w, "Asset unavailable", http.StatusServiceUnavailable)
		return
	}

	w.Header().Set("Content-Type", contentType)
	w.WriteHeader(http.StatusOK)
	w.Write(data)
}
