// Package ssdp finds LG webOS televisions on the local network.
//
// A Listener binds an ephemeral UDP port, multicasts an M-SEARCH probe for
// the webOS second-screen service and re-probes on an interval. Responses
// that mention the service marker are deduplicated by source address, their
// LOCATION header is fetched over HTTP, and the UPnP description is reduced
// to a Device. Each device ID is reported once per scan.
//
// Failures are per device: a description that cannot be fetched or parsed is
// logged and the address is forgotten so a later probe can retry it.
//
//	l := ssdp.NewListener(ssdp.DefaultConfig())
//	l.SetOnDevice(func(d ssdp.Device) {
//	    fmt.Println(d.ID, d.Address, d.FriendlyName)
//	})
//	if err := l.Start(ctx); err != nil {
//	    return err
//	}
//	defer l.Stop()
package ssdp
