// Package mqtt provides MQTT client connectivity for Sweep Core.
//
// This package manages:
//   - Connection to Mosquitto broker with auto-reconnect
//   - Message publishing with QoS guarantees
//   - Topic subscriptions with wildcard support
//   - Last Will and Testament (LWT) for offline detection
//   - Connection health monitoring
//
// # Architecture
//
// Sweep Core uses MQTT as the message bus connecting the engine to
// instrument bridges (microscope controllers, camera servers). The
// broker (Mosquitto) decouples the engine from vendor-specific
// hardware protocols.
//
//	Sweep Core ↔ MQTT Broker ↔ Instrument Bridges
//
// # Security Considerations
//
//   - TLS is required for production deployments (cfg.Broker.TLS=true)
//   - Credentials are validated against broker ACL
//   - Anonymous access is only for local development
//   - Message payloads are not encrypted beyond TLS transport
//
// # Performance Characteristics
//
//   - Connection: <1 second to local broker
//   - Publish latency: <10ms for QoS 1 to local broker
//   - Reconnect: Exponential backoff 1s-60s with jitter
//   - Message throughput: Broker-limited (typically 10K+ msg/sec)
//
// # Usage
//
//	client, err := mqtt.Connect(cfg.MQTT)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer client.Close()
//
//	// Subscribe to all instrument acknowledgements
//	err = client.Subscribe(mqtt.Topics{}.AllInstrumentAcks(), 1,
//	    func(topic string, payload []byte) error {
//	        log.Printf("Received: %s = %s", topic, payload)
//	        return nil
//	    })
//
//	// Publish a set-point command
//	topic := mqtt.Topics{}.InstrumentSet("tem-01", "focus")
//	client.Publish(topic, []byte(`{"value":12.5}`), 1, false)
package mqtt
