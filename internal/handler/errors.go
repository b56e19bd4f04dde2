package handler

import "fmt"

// MalformedTaskError is raised at Task construction when the supplied
// handler instance does not implement Runner.
type MalformedTaskError struct {
	HandlerType string
}

func (e *MalformedTaskError) Error() string {
	return fmt.Sprintf("malformed task: handler of type %s does not implement Run(ctx) (any, error)", e.HandlerType)
}
