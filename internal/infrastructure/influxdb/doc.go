// Package influxdb records webOS bridge telemetry in InfluxDB.
//
// It wraps the official influxdb-client-go v2 library and writes:
//   - webos_command: per-command latency and outcome
//   - webos_state: volume level and mute flag reported by televisions
//   - webos_session: session state transitions
//   - webos_discovery: televisions found by SSDP discovery
//
// # Usage
//
//	client, err := influxdb.Connect(cfg.InfluxDB)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer client.Close()
//
//	client.WriteCommandMetric("living-room", "set_volume", 42*time.Millisecond, "ok")
//
// Writes are non-blocking and batched according to batch_size and
// flush_interval. Asynchronous write failures are delivered to the callback
// registered with SetOnError. A nil or disconnected client drops writes.
package influxdb
