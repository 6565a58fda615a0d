// Package credentials holds the saved WiFi network name and passphrase and
// persists them at a fixed offset of a non-volatile region.
//
// Each field is stored as a 2-byte little-endian length followed by a
// MaxFieldLen byte buffer, so a value at full capacity needs no terminator.
package credentials
