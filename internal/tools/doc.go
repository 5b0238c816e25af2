// Package tools owns the callable tool surface.
//
// Ownership boundary:
// - tool metadata and input schema
//
// - argument decoding and defaults
//
// - name/alias resolution and invocation accounting
//
// Transports (mcp, httpapi, awxctl) call Registry.Invoke and never reach the
// controller client directly.
package tools
