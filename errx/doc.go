/*
Package errx provides the structured error type shared by every visionocr
package: a code, a coarse type, a message, optional details and an optional
cause that stays reachable through errors.Is / errors.As.

# Registries

Each package registers its own codes under a prefix:

	var (
		localErrors = errx.NewRegistry("LOCAL")

		ErrLoadFailed = localErrors.Register("LOAD_FAILED", errx.TypeSystem, http.StatusServiceUnavailable, "Failed to load model")
	)

	err := localErrors.NewWithCause(ErrLoadFailed, cause).
		WithDetail("model", id)

# Checking

	if errx.IsCode(err, local.ErrLoadFailed) {
		// construction failed, no backend was returned
	}

	if errx.IsType(err, errx.TypeValidation) {
		// the caller sent something unusable
	}

IsCode walks nested *Error causes, so a LOCAL_EXTRACTION_FAILED error that
wraps an IMAGE_INVALID error answers true for both codes.

# Fiber

	return errx.Wrap(err, "extraction failed", errx.TypeInternal).ToFiber(c)
*/
package errx
