// Package config handles loading and validating the webOS bridge configuration.
//
// This package manages:
//   - Loading configuration from YAML files
//   - Overriding with environment variables
//   - Validation of required fields
//   - Default value handling, including per-television port defaults
//
// Security Considerations:
//   - Sensitive values (MQTT passwords, InfluxDB tokens) should be set via
//     environment variables
//   - Pairing keys seeded via webos.devices[].client_key grant full remote
//     control of a television; keep the config file at 0600
//
// Usage:
//
//	cfg, err := config.Load("configs/config.yaml")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	for _, tv := range cfg.WebOS.Devices {
//	    fmt.Println(tv.ID, tv.Address)
//	}
package config
