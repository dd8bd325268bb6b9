package model

import "time"

// PipelineOption defines the interface for pipeline options.
type PipelineOption interface {
	// New initialises the pipeline option.
	New() error

	pipelineItemOption

	// Finish runs when the pipeline is cleared.
	Finish() error
}

// pipelineItemOption defines the interface for item hooks at the pipeline level.
type pipelineItemOption interface {
	// PreparePass runs when a pass is added.
	PreparePass(pass *PassInfo) error
	// PrepareItem runs when an item is added to a pass.
	PrepareItem(pass *PassInfo, item *ItemInfo) error
	// OnItemBuilt runs after every build attempt.
	OnItemBuilt(item *ItemInfo, compileDuration time.Duration) error
	// OnItemExecuted runs everytime an item submits GPU work.
	OnItemExecuted(item *ItemInfo, executionDuration time.Duration) error
	// OnItemSkipped runs everytime an item is skipped during a frame.
	OnItemSkipped(item *ItemInfo, reason string) error
	// OnDependency runs when a pass reads a resource another pass writes.
	OnDependency(producer, consumer *PassInfo) error
}
