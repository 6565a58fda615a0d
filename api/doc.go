/*
Package api holds what the portal's HTTP surface shares: server
configuration, route paths and form field names.

The portal subpackage implements the handlers. The httpserver package owns
the listener and mounts them.

# Routes

  - GET /favicon.ico, /style.css, /refresh.png: static assets
  - GET /: network selection form
  - GET /save: confirmation page, abandons the connection attempt in flight
  - POST /save: persists ssid and password, redirects to GET /save
*/
package api
