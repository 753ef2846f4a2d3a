package plan

import (
	"errors"
	"fmt"
	"strings"
)

// ErrEmptyName means a resource was declared without a name.
var ErrEmptyName = errors.New("resource name is empty")

// DuplicateResourceError means the same name appears more than once in a plan.
type DuplicateResourceError struct {
	Name string
}

func (e DuplicateResourceError) Error() string {
	return fmt.Sprintf("duplicate resource: %s", e.Name)
}

// UnknownDependencyError means a resource depends on a name that is not
// declared in the plan.
type UnknownDependencyError struct {
	Resource string
	Missing  string
}

func (e UnknownDependencyError) Error() string {
	return fmt.Sprintf("resource %s depends on undeclared resource %s", e.Resource, e.Missing)
}

// CycleError means the dependency relation contains a cycle. Path holds the
// cycle members in dependency order, with the entry resource repeated at the
// end.
type CycleError struct {
	Path []string
}

func (e CycleError) Error() string {
	if len(e.Path) == 0 {
		return "dependency cycle detected"
	}
	return "dependency cycle detected: " + strings.Join(e.Path, " -> ")
}
