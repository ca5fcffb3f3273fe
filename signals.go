package stash

import "github.com/zoobzio/capitan"

// Binding lifecycle signals.
var (
	// BindingAttached is emitted when a binding subscribes to a key.
	BindingAttached = capitan.NewSignal(
		"stash.binding.attached",
		"Binding attached to key",
	)

	// BindingDetached is emitted when a binding unsubscribes from a key.
	BindingDetached = capitan.NewSignal(
		"stash.binding.detached",
		"Binding detached from key",
	)

	// BindingStateChanged is emitted when a binding transitions between states.
	BindingStateChanged = capitan.NewSignal(
		"stash.binding.state.changed",
		"Binding state transition",
	)
)

// Cell signals.
var (
	// CellDiverged is emitted when a read finds the store changed outside the cell.
	CellDiverged = capitan.NewSignal(
		"stash.cell.diverged",
		"Stored value changed outside the cell",
	)

	// CellWritten is emitted after a value is persisted.
	CellWritten = capitan.NewSignal(
		"stash.cell.written",
		"Value persisted",
	)

	// CellWriteSkipped is emitted when a write encodes to the current value.
	CellWriteSkipped = capitan.NewSignal(
		"stash.cell.write.skipped",
		"Write skipped, value unchanged",
	)

	// CellDeleted is emitted after an entry is removed from the store.
	CellDeleted = capitan.NewSignal(
		"stash.cell.deleted",
		"Entry removed",
	)

	// CellLoadFailed is emitted when the store cannot be read.
	CellLoadFailed = capitan.NewSignal(
		"stash.cell.load.failed",
		"Store read failed",
	)

	// CellDecodeFailed is emitted when a stored entry cannot be decoded.
	CellDecodeFailed = capitan.NewSignal(
		"stash.cell.decode.failed",
		"Stored entry could not be decoded",
	)

	// CellEncodeFailed is emitted when a value cannot be encoded.
	CellEncodeFailed = capitan.NewSignal(
		"stash.cell.encode.failed",
		"Value could not be encoded",
	)

	// CellPersistFailed is emitted when the store rejects a write.
	CellPersistFailed = capitan.NewSignal(
		"stash.cell.persist.failed",
		"Store rejected write",
	)
)

// RegistryPublished is emitted after a change is delivered to subscribers.
var RegistryPublished = capitan.NewSignal(
	"stash.registry.published",
	"Change delivered to subscribers",
)
