package registryfile

import "fmt"

// CorruptRegistryError reports a registry file that exists but cannot be
// decoded into a valid catalog. The store surfaces it instead of replacing
// the file so a human can inspect or restore the document.
type CorruptRegistryError struct {
	Path string
	Err  error
}

func (e *CorruptRegistryError) Error() string {
	return fmt.Sprintf("registry file %s is corrupt: %v", e.Path, e.Err)
}

func (e *CorruptRegistryError) Unwrap() error { return e.Err }

// ConcurrentModificationError reports that the on-disk revision moved
// between Load and Save, meaning another process wrote the registry in the
// meantime. Callers reload and retry.
type ConcurrentModificationError struct {
	Path   string
	Loaded int64
	Found  int64
}

func (e *ConcurrentModificationError) Error() string {
	return fmt.Sprintf("registry file %s changed concurrently: loaded revision %d, found %d",
		e.Path, e.Loaded, e.Found)
}
