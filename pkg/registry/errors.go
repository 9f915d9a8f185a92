package registry

import "errors"

var (
	// ErrNoModels is returned when the registry holds no model descriptors.
	ErrNoModels = errors.New("no models configured")

	// ErrNoTarget is returned when the first model exposes neither a direct URL nor an endpoint URL.
	ErrNoTarget = errors.New("first model has no probe target")

	// ErrInvalidConfig is returned when the registry file cannot be read or parsed.
	ErrInvalidConfig = errors.New("invalid model registry")
)
