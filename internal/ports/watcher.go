package ports

// Watcher reports edits to the fixtures directory so the offline provider
// can reload without a restart. Adapters drop editor swap files, hidden
// files and anything that is not JSON before calling onChange.
type Watcher interface {
	// Watch observes dir and its subdirectories. onChange receives the
	// absolute path of a created, written, renamed or removed fixture and
	// may run on any goroutine. A missing or unreadable dir is an error.
	Watch(dir string, onChange func(filePath string)) error

	// Stop releases the watch. No onChange call starts after it returns.
	// Calling it twice is harmless.
	Stop() error
}
