//go:build tools
// +build tools

// Package tools imports dependencies that are used by this project but not directly
// imported in the main codebase. This ensures they are tracked in go.mod.
package tools

import (
	// Database (migrate postgres driver dependency)
	_ "github.com/lib/pq"

	// gRPC and protobuf (Temporal transport)
	_ "google.golang.org/grpc"
	_ "google.golang.org/protobuf/proto"
)
