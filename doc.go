// Package jetpush manages the lifecycle of a NATS connection and registers durable,
// queue-grouped JetStream push consumers for application handlers.
//
// A Manager owns one physical connection. Handlers declare the consumer they need
// (durable name, filter subjects, queue group, delivery limits) and the Manager's
// Registrar creates the consumer on the broker, binds a subscription to it and
// tracks the subscription for coordinated shutdown.
//
// # Quick Start
//
//	settings, err := jetpush.LoadSettings("nats.yaml") // then NATS_* env overrides
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	cfg, err := jetpush.ConnectionConfigFromSettings(settings, nil)
//	if err != nil {
//	    log.Fatal(err) // missing urls, maxReconnects or drainAwaitSeconds
//	}
//
//	mgr, err := jetpush.NewManager(cfg, jetpush.WithLogger(jetpush.NewZapLogger(zapLogger)))
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	if err := mgr.Connect(ctx); err != nil {
//	    log.Fatal(err)
//	}
//	defer mgr.Disconnect(context.Background())
//
//	orders := jetpush.NewHandler("orders-sub", []string{"orders.created"},
//	    jetpush.DecodeJSON[OrderCreated],
//	    handleOrder,
//	    jetpush.HandlerOptions{DeliverGroup: "orders-workers"},
//	)
//	if err := mgr.RegisterHandlers(ctx, orders); err != nil {
//	    log.Fatal(err)
//	}
//
// # Configuration
//
// Validation is strict: server URLs, max reconnects and drain await must be given
// explicitly. Violations are reported together by Build as errors matching
// ErrConfiguration, before any network activity.
//
// # Lifecycle
//
//	Disconnected → Connecting → Connected → Draining → Disconnected
//
// Failed is reached when connecting or draining fails, or when the client closes
// the connection after exhausting its reconnect attempts. Transient reconnects
// happen beneath Connected.
//
// # Delivery
//
// With the default ack policy each message is acked after Handle succeeds, nacked
// for redelivery when Handle fails, and terminated when Decode fails. Handlers run
// on the client's per-subscription goroutines, or on an executor pool keyed by
// subject when UseDispatcherWithExecutor is set.
//
// See the examples/ directory for a complete working example.
package jetpush
