package fluid

import (
	"errors"
	"fmt"
	"runtime"
)

var (
	// ErrIndexOutOfRange is returned when connectivity references a vertex
	// outside of the vertex array.
	ErrIndexOutOfRange = errors.New("index out of range")
	// ErrUnsupportedElementType is returned for unknown element arities or
	// element type names.
	ErrUnsupportedElementType = errors.New("unsupported element type")
	// ErrUnsupportedTechnique is returned for unknown integration techniques
	// or techniques paired with the wrong field source.
	ErrUnsupportedTechnique = errors.New("unsupported integration technique")
	// ErrHashCapacityExceeded means a fill pass wrote more entries than its
	// count pass reserved. It signals a bug, never bad input.
	ErrHashCapacityExceeded = errors.New("hash capacity exceeded")
	// ErrNoMatchingFace means an element face was not found in the face
	// table it was inserted in.
	ErrNoMatchingFace = errors.New("no matching face")
	// ErrNonManifoldFace means a face is shared by more than two elements.
	ErrNonManifoldFace = errors.New("non-manifold face")
	// ErrLengthMismatch is returned when parallel arrays differ in length.
	ErrLengthMismatch = errors.New("length mismatch")
	// ErrTransfer is returned when moving a buffer between host and device fails.
	ErrTransfer = errors.New("buffer transfer failed")
	// ErrFacetLimit is returned when a surface exceeds the facet budget of
	// its consumer.
	ErrFacetLimit = errors.New("facet limit exceeded")
)

// ElementError reports a malformed element.
type ElementError struct {
	Element int // element id
	Index   int // offending vertex index
	Err     error
}

func (e *ElementError) Error() string {
	return fmt.Sprintf("element %d: vertex index %d: %s", e.Element, e.Index, e.Err)
}

func (e *ElementError) Unwrap() error { return e.Err }

// TopologyError reports a face hashing inconsistency found while
// extracting a boundary surface.
type TopologyError struct {
	Err     error // ErrNoMatchingFace, ErrNonManifoldFace or ErrHashCapacityExceeded
	Element int   // element id
	Face    int   // local face number
	Bucket  int   // hash bucket id
	Matches int   // number of entries sharing the face key
}

func (e *TopologyError) Error() string {
	return fmt.Sprintf("element %d face %d (bucket %d, %d matches): %s", e.Element, e.Face, e.Bucket, e.Matches, e.Err)
}

func (e *TopologyError) Unwrap() error { return e.Err }

// ErrMsg returns an error with a message function name and line number.
func ErrMsg(msg string) error {
	pc, _, line, ok := runtime.Caller(1)
	if !ok {
		return fmt.Errorf("?: %s", msg)
	}
	fn := runtime.FuncForPC(pc)
	return fmt.Errorf("%s line %d: %s", fn.Name(), line, msg)
}
