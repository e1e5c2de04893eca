package lib

import (
	"errors"
	"fmt"
)

// ErrEmptyVocabulary is returned when representations are requested
// over a corpus that produced no word types at all.
var ErrEmptyVocabulary = errors.New("corpus produced an empty vocabulary")

// StateError reports a pipeline operation that was invoked before its
// prerequisites ran.
type StateError struct {
	Operation string
	Reason    string
}

func (e *StateError) Error() string {
	return fmt.Sprintf("cannot %s: %s", e.Operation, e.Reason)
}
