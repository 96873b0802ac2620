package tool

import "context"

// Source provides tools discovered from outside the process, such as an MCP
// server. Discovery failures are expected operational events: the registry
// logs and skips a broken source rather than failing startup.
type Source interface {
	// SourceName identifies the source in logs.
	SourceName() string

	// Discover lists the tools the source currently offers. The context
	// carries the per-source discovery deadline.
	Discover(ctx context.Context) ([]Tool, error)

	// Shutdown releases the source's resources (connections, processes).
	Shutdown() error
}
