// Package portal implements the HTTP handlers of the WiFi provisioning
// portal.
//
// The root page lists the networks found by the radio and posts the chosen
// SSID and password to /save. Accepted credentials are handed to a
// CredentialSink, normally the provisioning controller, which persists them
// and retries the station connection. Static assets are read from an
// fs.FS by name.
//
// # Usage Example
//
//	handler := portal.NewHandler(radio, assets, controller, portal.Config{}, log)
//	mux := chi.NewRouter()
//	handler.RegisterRoutes(mux)
package portal
