package llm

import "fmt"

// ServiceError is returned when the generation service fails, times out or
// returns nothing usable.
type ServiceError struct {
	Provider Provider
	Model    string
	Message  string
	Cause    error
}

func (e *ServiceError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s (%s): %s: %v", e.Provider, e.Model, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s (%s): %s", e.Provider, e.Model, e.Message)
}

func (e *ServiceError) Unwrap() error {
	return e.Cause
}
