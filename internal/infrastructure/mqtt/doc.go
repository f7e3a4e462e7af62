// Package mqtt provides the broker connection used by the webOS bridge.
//
// Gray Logic uses MQTT as its internal bus. The webOS bridge listens for
// commands and publishes acknowledgements, television state, discovery
// announcements and health on the shared topic layout:
//
//	graylogic/command/webos/{device}   commands in
//	graylogic/ack/webos/{device}       acknowledgements out
//	graylogic/state/webos/{device}     retained state out
//	graylogic/discovery/webos          retained discovery announcements
//	graylogic/health/webos             bridge health
//	graylogic/system/status/webos      online/offline and Last Will
//
// # Usage
//
//	client, err := mqtt.Connect(cfg.MQTT)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer client.Close()
//
//	err = client.Subscribe(mqtt.Topics{}.AllCommands(), 1,
//	    func(topic string, payload []byte) error {
//	        log.Printf("command for %s", mqtt.DeviceFromTopic(topic))
//	        return nil
//	    })
package mqtt
