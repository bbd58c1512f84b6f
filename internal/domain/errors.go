package domain

import (
	"fmt"
	"strings"
)

// ValidationError is raised client-side before anything is submitted.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidationErrors collects every failed field of one input.
type ValidationErrors []*ValidationError

func (errs ValidationErrors) Error() string {
	msgs := make([]string, 0, len(errs))
	for _, e := range errs {
		msgs = append(msgs, e.Error())
	}
	return "validation failed: " + strings.Join(msgs, "; ")
}

// As lets errors.As find the first *ValidationError inside the collection.
func (errs ValidationErrors) As(target interface{}) bool {
	t, ok := target.(**ValidationError)
	if !ok || len(errs) == 0 {
		return false
	}
	*t = errs[0]
	return true
}

func (errs ValidationErrors) orNil() error {
	if len(errs) == 0 {
		return nil
	}
	return errs
}
