// Package stdio implements the client side of the MCP stdio transport:
// newline-delimited JSON-RPC over a reader/writer pair, typically the
// stdout/stdin of a server subprocess.
//
// Characteristics
//
//	Connection model : 1 client <-> 1 server process
//	Framing          : one JSON object per line
//	Writes           : serialized; safe for concurrent writers
//	Shutdown         : closing stdin, then SIGKILL after a grace period
//
// Example:
//
//	p, err := stdio.StartCommand(ctx, stdio.CommandConfig{Command: "my-server"})
//	if err != nil { return err }
//	sess := client.New(p, p, client.WithSamplingHandler(h))
//	defer sess.Close()
//	if _, err := sess.Initialize(ctx); err != nil { return err }
//
// Stream works over any io.Reader / io.Writer, including io.Pipe pairs in
// tests.
package stdio
