/*
Package provisioning implements the WiFi provisioning controller.

The controller owns the flow that takes a device from "no network" to
"joined": it loads saved credentials from the non-volatile region, brings up
an access point with a small web form when it has none, persists what the
user submits, and keeps trying to join the chosen network.

# State

	                 Start                      SubmitCredentials
	no creds, idle  ------->  no creds, serving  ------------------>  creds, serving
	      ^                                                                |
	      |  link lost, next attempt restarts the portal                  | connected: Stop
	      +---------------------------------------------------------------+

Connect runs attempts until the radio reports a connection. An attempt
without credentials starts the portal instead. GET /save raises the abandon
signal so the attempt in flight ends at its next poll and the next one uses
the freshly saved credentials.

# Concurrency

Portal handlers run on their own goroutines and call back through
SubmitCredentials and AbandonAttempt. The record, the credentials-known flag
and the servers are guarded by a mutex. The active flag, the attempt counter
and the abandon signal are atomics.
*/
package provisioning
