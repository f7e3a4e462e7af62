// webosctl is the operator CLI for LG webOS televisions.
//
// It finds televisions on the LAN and sends one-off commands over the same
// session code the bridge uses, which makes it the quickest way to pair a new
// television and capture its client key:
//
//	webosctl discover --timeout 5s
//	webosctl volume --address 192.168.1.40
//	webosctl toast --address 192.168.1.40 --key <key> "Dinner is ready"
package main

import (
	"fmt"
	"os"
)

// Version information - set at build time via ldflags
var version = "dev"

func main() {
	if err := newRootCmd(defaultCLI()).Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
