package workflow

// RunChild executes a nested workflow from inside a step. Every event the
// child emits on its observability stream is relayed onto the parent's
// stream, so a consumer of the parent run observes the child's progress
// inline. Blocks until the child terminates and its stream is drained.
func RunChild(parent *RunContext, child *Workflow, start StartEvent) (any, error) {
	handle, err := child.Run(parent.Context(), start)
	if err != nil {
		return nil, err
	}

	relayDone := make(chan struct{})
	go func() {
		defer close(relayDone)
		for ev := range handle.Events() {
			if err := parent.WriteToStream(ev); err != nil {
				// Parent cancelled; keep draining so the child can finish.
				for range handle.Events() {
				}
				return
			}
		}
	}()

	result, runErr := handle.Result()
	<-relayDone
	return result, runErr
}
