package reference

import (
	"fmt"
	"strings"
)

// DataFormatError reports a reference file that could not be parsed under any
// attempted encoding/delimiter combination. Fatal; there is no further fallback.
type DataFormatError struct {
	Path string
	Err  error
}

func (e *DataFormatError) Error() string {
	return fmt.Sprintf("reference file %s is unreadable: %v", e.Path, e.Err)
}

func (e *DataFormatError) Unwrap() error {
	return e.Err
}

// SchemaResolutionError reports a required column role that matched none of
// its known aliases. It carries every available header so an operator can
// extend the alias list. Fatal; masking it would silently corrupt the join key.
type SchemaResolutionError struct {
	Role    Role
	Headers []string
}

func (e *SchemaResolutionError) Error() string {
	return fmt.Sprintf("no column found for role %q, available headers: [%s]",
		e.Role, strings.Join(e.Headers, ", "))
}
