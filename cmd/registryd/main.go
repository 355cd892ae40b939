// Command registryd hosts a set of lockable token registries and serves them over
// JSON-RPC (HTTP and WebSocket) with Prometheus metrics.
package main

import (
	"os"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
