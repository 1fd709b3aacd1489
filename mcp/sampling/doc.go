// Package sampling provides helpers for servicing MCP sampling/createMessage
// requests on the client side.
//
// A server asks the client to run its model by sending sampling/createMessage.
// The client session validates the request with ValidateCreateMessage and
// hands it to the application's Handler, whose result is sent back to the
// server:
//
//	h := func(ctx context.Context, req *mcp.CreateMessageRequest) (*mcp.CreateMessageResult, error) {
//	    prompt, _ := sampling.LastUserText(req)
//	    out, err := myModel.Complete(ctx, req.SystemPrompt, prompt)
//	    if err != nil { return nil, err }
//	    return sampling.TextResult("my-model", out), nil
//	}
//	sess := client.New(r, w, client.WithSamplingHandler(h))
//
// The builders (UserText, NewCreateMessage and the CreateOption helpers) are
// mostly useful in tests that play the server side.
package sampling
