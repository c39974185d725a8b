package hazard

import (
	"errors"
	"fmt"
)

// ErrNoDataset is returned when a dataset has no usable frame.
var ErrNoDataset = errors.New("hazard dataset has no frames")

// DataFormatError reports a malformed hazard record. Index is the zero based position of the
// record in its source stream.
type DataFormatError struct {
	Index  int
	Field  string
	Reason string
	Err    error
}

func (e *DataFormatError) Error() string {
	msg := fmt.Sprintf("hazard record %d", e.Index)
	if e.Field != "" {
		msg += fmt.Sprintf(" field %s", e.Field)
	}
	msg += ": " + e.Reason
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *DataFormatError) Unwrap() error {
	return e.Err
}
