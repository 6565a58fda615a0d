/*
Package httpserver runs the HTTP side of the provisioning portal.

The server mounts the portal handlers on a chi router with request logging
and panic recovery, and adds:

  - /livez and /readyz health endpoints
  - a captive redirect: any unknown path, including the connectivity probes
    phones and laptops send after joining a network, answers 302 Found with
    the portal's root URL on the access point address

# Lifecycle

RunInBackground binds the listen address before returning so a port in use
is reported to the caller. Shutdown marks the server not ready, stops
accepting connections and waits for in-flight requests. The root page can
hold a request while it waits for a scan, so GracefulShutdownDuration should
exceed the scan timeout.

# Usage Example

	cfg := &api.HTTPServerConfig{
		ListenAddr: ":80",
		PortalAddr: netip.MustParseAddr("192.168.0.4"),
		Log:        log,
	}
	srv := httpserver.New(cfg, portalHandler)
	if err := srv.RunInBackground(); err != nil {
		return err
	}
	defer srv.Shutdown(context.Background())
*/
package httpserver
