package catalog

import (
	"fmt"
	"strings"
)

// DuplicateNameError reports an attempt to register a name that already
// exists in the registry. Re-registration is never a silent overwrite.
type DuplicateNameError struct {
	Name string
}

func (e *DuplicateNameError) Error() string {
	return fmt.Sprintf("artifact %q is already registered", e.Name)
}

// InvalidNameError reports an artifact name containing path separators or
// dot segments, which could not serve as an archive path segment.
type InvalidNameError struct {
	Name string
}

func (e *InvalidNameError) Error() string {
	return fmt.Sprintf("artifact name %q must not contain path separators or dot segments", e.Name)
}

// UnknownTypeError reports a registration whose type is outside the
// caller-supplied allowed set.
type UnknownTypeError struct {
	Name    string
	Type    string
	Allowed []string
}

func (e *UnknownTypeError) Error() string {
	return fmt.Sprintf("artifact %q has type %q, not in allowed set [%s]",
		e.Name, e.Type, strings.Join(e.Allowed, ", "))
}

// ArtifactNotFoundError reports a reference to an artifact name that is not
// present in the registry: a dangling input_artifacts entry, a missing
// bundle root, or a plain lookup miss. ReferencedBy names the artifact that
// held the dangling reference, when there is one.
type ArtifactNotFoundError struct {
	Name         string
	Type         string
	ReferencedBy string
}

func (e *ArtifactNotFoundError) Error() string {
	switch {
	case e.ReferencedBy != "":
		return fmt.Sprintf("artifact %q references unknown artifact %q", e.ReferencedBy, e.Name)
	case e.Name == "" && e.Type != "":
		return fmt.Sprintf("no artifact of type %q in registry", e.Type)
	default:
		return fmt.Sprintf("artifact %q not found in registry", e.Name)
	}
}

// FileNotFoundError reports that an artifact's file is missing from disk:
// at registration time, or at bundling time when the registry and the
// filesystem have drifted apart.
type FileNotFoundError struct {
	Name string
	Path string
}

func (e *FileNotFoundError) Error() string {
	if e.Name == "" {
		return fmt.Sprintf("file %q does not exist", e.Path)
	}
	return fmt.Sprintf("artifact %q: file %q does not exist", e.Name, e.Path)
}
