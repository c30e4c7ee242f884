package menucache

import "errors"

var (
	// ErrUnserializable indicates render args hold a value with no stable
	// serialized form (a func, a channel, a struct outside walker).
	ErrUnserializable = errors.New("menucache: render args are not serializable")

	// ErrInvalidMenu indicates a menu id outside [A-Za-z0-9_-]{1,64}.
	ErrInvalidMenu = errors.New("menucache: invalid menu id")

	// ErrInvalidNamespace indicates a key namespace outside [A-Za-z0-9_-]{1,64}.
	ErrInvalidNamespace = errors.New("menucache: invalid key namespace")

	// ErrInvalidationFailed wraps store errors from InvalidateMenu and PurgeAll.
	ErrInvalidationFailed = errors.New("menucache: invalidation failed")

	// ErrNilStore indicates a Service was built without a cache store.
	ErrNilStore = errors.New("menucache: cache store is nil")
)
