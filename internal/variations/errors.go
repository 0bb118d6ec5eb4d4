package variations

import "errors"

var (
	// ErrNoSelection indicates a scoped bulk apply was requested with an empty selection.
	ErrNoSelection = errors.New("variations: no variations selected")
	// ErrEmptyTemplate indicates a bulk template carries no present field.
	ErrEmptyTemplate = errors.New("variations: template has no fields to apply")
	// ErrInvalidTemplate indicates a bulk template holds a value a variation cannot take.
	ErrInvalidTemplate = errors.New("variations: invalid template")
	// ErrVariationNotFound indicates the addressed variation does not exist.
	ErrVariationNotFound = errors.New("variations: variation not found")
	// ErrVariationGone indicates an asynchronous result arrived for a variation removed in the meantime.
	ErrVariationGone = errors.New("variations: variation no longer exists")
	// ErrSaveInProgress indicates a save was requested while another one is in flight.
	ErrSaveInProgress = errors.New("variations: save already in progress")
	// ErrPersistenceMissing indicates the editor has no persistence adapter configured.
	ErrPersistenceMissing = errors.New("variations: persistence adapter is not configured")
	// ErrLoaderMissing indicates the editor has no loader configured.
	ErrLoaderMissing = errors.New("variations: loader is not configured")
	// ErrProductIDRequired indicates an editor that loads or stores data was built without a product id.
	ErrProductIDRequired = errors.New("variations: product id is required")
	// ErrSaveFailed indicates the persistence adapter reported an unsuccessful save.
	ErrSaveFailed = errors.New("variations: save failed")
)
