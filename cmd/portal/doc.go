/*
Portal runs the WiFi provisioning controller as a long-lived service.

It keeps the station joined to the saved network. When no credentials are
saved, or the saved ones stop working, it brings up an access point with a
captive portal where a user picks a network and enters its password.

Usage:

	portal [flags]

Flags:

	--ap-name value            access point SSID and station hostname (default: "WiFi-Setup")
	--ap-pass value            access point passphrase, empty for an open network
	--listen-addr value        portal listen address (default: ":80")
	--dns-addr value           captive DNS listen address, empty to disable (default: ":53")
	--storage-uri value        non-volatile region backend, repeat to mirror (default: "file://./nvs.bin")
	--storage-size value       region size in bytes (default: 4096)
	--storage-offset value     credential record offset in the region (default: 0)
	--assets-dir value         directory overriding the built-in portal assets
	--connect-timeout value    seconds per connection attempt (default: 60)
	--scan-timeout value       portal wait for scan results (default: 10s)
	--radio value              radio driver (default: "sim")
	--sim-networks value       networks seen by the simulated radio, ssid[:passphrase],...
	--sim-connect-after value  status polls before a simulated connect resolves (default: 20)
	--metrics-addr value       Prometheus metrics address, empty to disable
	--log-json, --log-debug, --log-uid, --log-service, --pprof

Every flag can also be set from the environment, for example AP_NAME or
STORAGE_URI.

Storage URIs:

	file:///var/lib/portal/nvs.bin
	mem://bench
	s3://ACCESS_KEY:SECRET_KEY@bucket/devices/portal-01/?region=eu-west-1
	vault://vault.internal:8200/secret/devices/portal-01?token=...

Example:

	portal --ap-name Garden-Setup --listen-addr :8080 --dns-addr :5353 \
		--storage-uri file://./nvs.bin --storage-uri mem://mirror \
		--sim-networks "HomeNet:secret123,Cafe" --log-debug
*/
package main
