// Package types provides core type definitions and interfaces for the jetpush library.
//
// This package contains shared types that are used across multiple packages in the
// library. By keeping these types in a separate package, internal packages can depend
// on them without importing the root jetpush package.
//
// Key types:
//   - State: Connection lifecycle state
//   - HandlerAdapter: Contract a message-processing unit satisfies to be registered
//   - Logger: Structured logging interface
//   - MetricsCollector: Metrics recording interface
//   - Hooks: Optional lifecycle callbacks
package types
