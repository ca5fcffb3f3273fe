package stash

import "github.com/zoobzio/capitan"

// Field keys for stash events.
var (
	// KeyKey is the stash key the event concerns.
	KeyKey = capitan.NewStringKey("key")

	// KeyBinding is the ID of the binding that emitted the event.
	KeyBinding = capitan.NewStringKey("binding_id")

	// KeyOldState is the previous state before a transition.
	KeyOldState = capitan.NewStringKey("old_state")

	// KeyNewState is the new state after a transition.
	KeyNewState = capitan.NewStringKey("new_state")

	// KeyError is the error message when an operation fails.
	KeyError = capitan.NewStringKey("error")

	// KeySubscribers is the number of callbacks a change was delivered to.
	KeySubscribers = capitan.NewIntKey("subscribers")

	// KeyContentType is the MIME type of the cell's codec.
	KeyContentType = capitan.NewStringKey("content_type")

	// KeyDuration is how long a write took to persist.
	KeyDuration = capitan.NewDurationKey("duration")
)
