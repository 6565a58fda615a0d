// Package metrics provides the portal's Prometheus collectors and the HTTP
// server exposing them.
package metrics
