package indexer

import "fmt"

// InvalidPathError is returned when the target is neither a Python source
// file nor a directory.
type InvalidPathError struct {
	Path string
	Err  error
}

func (e *InvalidPathError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("could not parse path %q: %v", e.Path, e.Err)
	}
	return fmt.Sprintf("could not parse path %q: not a .py file or directory", e.Path)
}

func (e *InvalidPathError) Unwrap() error {
	return e.Err
}
