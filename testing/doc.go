// Package testing provides test utilities for the jetpush library.
//
// This package offers helpers for setting up test environments, particularly
// embedded NATS servers for integration testing. It follows Go's convention
// of providing testing utilities in a dedicated package (similar to net/http/httptest).
//
// Key utilities:
//   - StartEmbeddedServer: Single NATS server with JetStream
//   - StartEmbeddedNATS: Server plus a connected client
//   - CreateStream, Publish: Stream setup and JetStream publishing
//   - NewTestLogger: Logger writing to t.Logf
//
// Example usage:
//
//	import (
//	    "testing"
//	    jetpushtest "github.com/arloliu/jetpush/testing"
//	)
//
//	func TestMyComponent(t *testing.T) {
//	    ns, nc := jetpushtest.StartEmbeddedNATS(t)
//	    jetpushtest.CreateStream(t, nc, "ORDERS", "orders.>")
//	    // connect to ns.ClientURL()
//	}
package testing
