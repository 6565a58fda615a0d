// Package captivedns is the DNS half of the captive portal. While the
// access point is up, every name resolves to the portal address so the
// operating system's connectivity check reaches the portal and the client
// shows the sign-in page.
package captivedns
