package extract

import "fmt"

// QualityError reports a page whose cleaned text is below the minimum length.
type QualityError struct {
	URL    string
	Length int
	Min    int
}

func (e *QualityError) Error() string {
	return fmt.Sprintf("quality error for %s: %d characters, minimum %d", e.URL, e.Length, e.Min)
}
