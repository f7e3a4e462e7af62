// Package pairing persists the client keys televisions issue when a user
// accepts the pairing prompt.
//
// A key is the only state that must survive a restart: without it the
// television asks the user to accept the bridge again. Keys are stored in
// the webos_pairing_keys table, one row per device, and are overwritten
// whenever a television hands out a new one.
package pairing
