// Package storage persists the device's non-volatile region.
//
// The region is driven like an EEPROM: EEPROM.Begin loads the whole image,
// ReadAt and WriteAt edit it in memory, and Commit writes it back. The image
// itself is kept by a pluggable backend:
//
//   - File system storage for devices with a writable flash filesystem
//   - In-memory storage for the simulated device and tests
//   - S3-compatible storage for fleet-managed devices
//   - Vault storage with token authentication
//
// # Storage URI Format
//
// Storage backends are specified using URI format:
//
//	[scheme]://[auth@]host[:port][/path][?params]
//
// Supported URI schemes:
//
//   - file:///var/lib/portal/nvs.bin
//   - mem://bench
//   - s3://bucket-name/devices/portal-01/nvs.bin?region=us-west-2
//   - vault://vault.example.com:8200/secret/devices/portal-01
//
// # Mirroring
//
// Several locations can be combined with StorageBackendFactory.CreateMultiBackend.
// The resulting MultiStorageBackend writes the image to every available
// backend and reads from the first that holds it.
//
// # Usage Example
//
//	factory := storage.NewStorageBackendFactory(logger)
//	loc, _ := interfaces.NewStorageBackendLocation("file:///var/lib/portal/nvs.bin")
//	backend, err := factory.StorageBackendFor(loc)
//	if err != nil {
//	    return err
//	}
//	nv := storage.NewEEPROM(backend, storage.DefaultRegionSize, logger)
//	if err := nv.Begin(ctx); err != nil {
//	    return err
//	}
package storage
