package recipeassistant

import "errors"

var (
	// ErrGenerationFailed wraps any fault raised by the LLM capability.
	ErrGenerationFailed = errors.New("generation failed")

	// ErrStorageUnavailable wraps any fault raised by the storage collaborator.
	ErrStorageUnavailable = errors.New("storage unavailable")
)
