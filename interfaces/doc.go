// Package interfaces defines core interfaces and types for the WiFi
// provisioning portal, separating interface definitions from implementations.
//
// # Storage Interfaces
//
// StorageBackend: Persists the raw image of the non-volatile region across
// backend types (file, memory, S3, Vault).
//
// StorageBackendFactory: Creates storage backends from URI strings and builds
// mirrored multi-backend configurations.
//
// NVStore: A byte-addressable region that is loaded once, edited in place
// and committed whole, the way an EEPROM is driven.
//
// # Device Interfaces
//
// Radio: The WiFi driver. Mode switching, soft access point, asynchronous
// scanning, station association and link status.
//
// AssetStore: A mountable file store holding the portal's static assets.
package interfaces
