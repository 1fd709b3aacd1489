// Package client implements the client side of an MCP session.
//
// A Session owns one connection to one server. It is built from an inbound
// MessageReader and an outbound MessageWriter (a *stdio.Stream is both),
// performs the initialize handshake, and then lets the application issue
// typed requests while a background consumer loop drains the inbound
// stream:
//
//	proc, err := stdio.StartCommand(ctx, stdio.CommandConfig{Command: "my-server"})
//	if err != nil {
//		return err
//	}
//	sess := client.New(proc, proc,
//		client.WithSamplingHandler(mySampler),
//		client.WithRootsProvider(roots.NewStatic(root)),
//	)
//	defer sess.Close()
//
//	if _, err := sess.Initialize(ctx); err != nil {
//		return err
//	}
//	tools, err := sess.ListTools(ctx, "")
//
// Responses are matched to requests by id, so concurrent requests may be
// answered in any order. Requests initiated by the server (sampling,
// roots/list, ping and anything registered with WithRequestHandler) are
// served on their own goroutines and always answered, with a JSON-RPC error
// when no handler exists. A message that cannot be decoded is logged and
// skipped without affecting the session.
//
// Lifecycle: StateCreated → StateInitializing → StateReady, ending in
// StateClosed (Close or end of input) or StateFailed (handshake failure,
// unsupported protocol version, stream error). Close always leaves the
// session in StateClosed.
package client
