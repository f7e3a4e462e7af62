// Package webos implements the Gray Logic bridge for LG webOS televisions.
//
// Televisions expose SSAP, a JSON request/response protocol carried over a
// WebSocket on port 3000 (3001 for TLS). Before accepting commands the
// television must register the client: the first registration shows a
// prompt on screen and, once accepted, returns a client key that skips the
// prompt on later connections.
//
// # Components
//
//   - Session owns the connection to one television. It connects lazily,
//     performs the registration, multiplexes concurrent requests by message
//     ID, enforces per-request timeouts and closes the socket after an idle
//     period. Reconnection after an unexpected drop is opt-in.
//   - Remote is the typed command catalog (volume, mute, toast, channels,
//     inputs, apps, power) on top of any Requester.
//   - Bridge maps MQTT commands onto sessions, publishes acknowledgments and
//     state, stores pairing keys and announces televisions found by SSDP.
//
// # MQTT Topics
//
//	graylogic/command/webos/{device_id}  commands from Core
//	graylogic/ack/webos/{device_id}      command acknowledgments
//	graylogic/state/webos/{device_id}    retained connection, volume and mute state
//	graylogic/discovery/webos            televisions found on the network
//	graylogic/health/webos               retained bridge health
//
// # Usage
//
//	s, err := webos.NewSession(webos.SessionConfig{
//	    Address:   "192.168.1.50",
//	    ClientKey: storedKey,
//	}, nil)
//	if err != nil {
//	    return err
//	}
//	defer s.Close()
//	s.SetOnKeyChange(func(key string) { save(key) })
//
//	tv := webos.NewRemote(s)
//	if err := tv.SetVolume(ctx, 12); err != nil {
//	    return err
//	}
package webos
