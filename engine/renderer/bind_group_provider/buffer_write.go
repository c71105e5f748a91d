package bind_group_provider

// BufferWrite is one queued upload into the buffer bound at Binding of a provider. The renderer batches
// them per frame to refresh the bake and view uniforms.
type BufferWrite struct {
	Provider BindGroupProvider
	Binding  int
	Offset   uint64
	Data     []byte
}
