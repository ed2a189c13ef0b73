package permgate

import "errors"

var (
	// ErrInvalidIdentity is returned when an operation requires an identity and
	// received the nil UUID. A deny outcome is never reported this way.
	ErrInvalidIdentity = errors.New("invalid identity")
	// ErrInvalidGroup is returned when an operation requires a group name and
	// received an empty string.
	ErrInvalidGroup = errors.New("invalid group name")
	// ErrSourceLoad wraps persistence failures during source load. A source
	// that cannot load is unusable; it must not come up silently empty.
	ErrSourceLoad = errors.New("source load failed")
	// ErrSourceUnavailable wraps infrastructure failures reported by a source
	// during resolution or mutation.
	ErrSourceUnavailable = errors.New("source unavailable")
	// ErrDuplicateSource is returned when registering a source whose name
	// collides with one already in the registry.
	ErrDuplicateSource = errors.New("duplicate source name")
	// ErrSourceNotFound is returned when removing a source that is not
	// registered.
	ErrSourceNotFound = errors.New("source not found")
	// ErrNoSources is returned by mutations when the registry is empty and no
	// primary source exists to receive the write.
	ErrNoSources = errors.New("no sources registered")
	// ErrEngineNotReady is returned when an Engine method runs before Build.
	ErrEngineNotReady = errors.New("engine not initialized")
	// ErrBuilderUsed is returned when Build is called twice on one Builder.
	ErrBuilderUsed = errors.New("builder already used")
)
