package repositories

import (
	"fmt"
	"strings"
)

// InvalidTagError lists every requested tag that does not exist in the
// repository.
type InvalidTagError struct {
	Repository string
	Names      []string
}

func (e *InvalidTagError) Error() string {
	return fmt.Sprintf("invalid tag name: %s", strings.Join(e.Names, ","))
}
