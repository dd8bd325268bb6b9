// Package pipeline provides the render pipeline graph of a shader project.
//
// A pipeline is an ordered list of passes, and every pass holds items. An item is one unit of GPU work, a draw or a
// dispatch, with one source per shader stage, a binding of resource slots to registry handles and its uniform
// sources. Passes execute in insertion order. A pass may declare the resources it reads and writes; when a pass reads a
// resource that a later pass writes, the pipeline records a DependencyOrderWarning and keeps rendering.
//
// Editing a source marks the item unbuilt. Build compiles it through a model.Compiler and, when the compilation fails,
// keeps the last good programs so that Execute can go on rendering the previous frame. BuildAll compiles every unbuilt
// item concurrently and commits the results in pipeline order.
//
// Execute resolves the uniform sources of each item against the system variable snapshot of the frame and submits the
// work to a device.Device. The FrameReport lists what ran, what ran a stale build and what was skipped and why.
//
// Pipeline options implementing model.PipelineOption observe builds and frames; the measure and drawer packages
// provide timing collection and a DOT export of the pipeline.
package pipeline
