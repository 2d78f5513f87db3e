// Package orchestrator runs the reasoning loop that answers one user request
// by consulting remote specialist agents.
//
// A request moves through four steps:
//   - Start: the binder builds tools from the current registry and the user
//     turn is appended to the conversation
//   - Deliberate: the Planner reads the conversation and decides which
//     tools to call, or that it is done
//   - Invoke: calls run sequentially or concurrently; each result is appended
//     to the conversation as a tool-result turn
//   - Finalize: the gathered results are synthesized and the answer is
//     appended as an agent turn
//
// Deliberate and Invoke repeat until the planner stops calling tools or the
// iteration limit is reached, in which case the answer is marked partial.
//
// Example usage:
//
//	orch := orchestrator.New(orchestrator.RequiredConfig{
//		Binder:  binder.New(reg, remoteClient),
//		Store:   convo.New(convo.Options{}),
//		Planner: planner.NewBroadcast(),
//	}, orchestrator.WithMaxIterations(4))
//	answer, err := orch.Handle(ctx, "conv-1", "Where is order ORD12345?")
package orchestrator
