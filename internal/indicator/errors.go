package indicator

// constError is an immutable error type for sentinel errors.
// It implements the error interface and provides compile-time safety.
type constError string

func (e constError) Error() string { return string(e) }

// Sentinel errors for indicator arithmetic and unit normalization.
var (
	// ErrUnknownKey indicates an indicator key that is not registered.
	ErrUnknownKey = constError("unknown indicator key")

	// ErrUnsupportedUnit indicates a declared unit that cannot be converted to per-kg.
	ErrUnsupportedUnit = constError("unsupported declared unit")

	// ErrDensityRequired indicates a volumetric unit without a usable density.
	ErrDensityRequired = constError("density required to convert volumetric unit")

	// ErrNonFinite indicates an Inf or NaN input or result.
	ErrNonFinite = constError("non-finite indicator value")
)
