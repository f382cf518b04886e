package watcher

import "context"

// Watcher watches jira-river's configuration file and invokes a
// callback, debounced, whenever it changes on disk.
type Watcher interface {
	// Start begins watching, invoking onChange (debounced) after each
	// burst of writes to the watched file.
	Start(ctx context.Context, onChange func())

	// Stop stops watching and releases the underlying fsnotify handle.
	Stop() error
}
