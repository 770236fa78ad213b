package normalize

import (
	"fmt"

	"github.com/rotisserie/eris"
)

var (
	// ErrNoRecords is returned when there is nothing to normalize.
	ErrNoRecords = eris.New("normalize: no records")

	// ErrBlankCountry is returned when a record reaches a grouping stage without a country.
	ErrBlankCountry = eris.New("normalize: record has no country")

	// ErrBlankURL is returned when a record has no evidence URL to hash.
	ErrBlankURL = eris.New("normalize: record has no evidence URL")
)

// StageError aborts a run. Key locates the offending record or group.
type StageError struct {
	Stage string
	Key   string
	Err   error
}

func (e *StageError) Error() string {
	if e.Key == "" {
		return fmt.Sprintf("stage %s: %v", e.Stage, e.Err)
	}
	return fmt.Sprintf("stage %s: %v (%s)", e.Stage, e.Err, e.Key)
}

func (e *StageError) Unwrap() error {
	return e.Err
}
