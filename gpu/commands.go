package gpu

// BeginSingleUse allocates a command buffer from pool and starts recording.
func BeginSingleUse(pool CommandPool) (CommandBuffer, error) {
	buffer, err := pool.AllocateCommandBuffer()
	if err != nil {
		return nil, err
	}

	err = buffer.Begin()
	if err != nil {
		buffer.Free()
		return nil, err
	}

	return buffer, nil
}

// EndSingleUse ends recording, submits the buffer to queue and waits for
// the queue to drain before freeing the buffer.
func EndSingleUse(queue Queue, buffer CommandBuffer) error {
	defer buffer.Free()

	err := buffer.End()
	if err != nil {
		return err
	}

	return queue.SubmitAndWait(buffer)
}

// RunSingleUse records with record into a single-use command buffer and
// submits it. The buffer is freed whether or not record succeeds.
func RunSingleUse(pool CommandPool, queue Queue, record func(CommandBuffer) error) error {
	buffer, err := BeginSingleUse(pool)
	if err != nil {
		return err
	}

	err = record(buffer)
	if err != nil {
		buffer.Free()
		return err
	}

	return EndSingleUse(queue, buffer)
}
