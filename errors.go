package rates

import "errors"

var (
	// ErrUnknownKey is returned when a categorical lookup (age band, race, sex, diagnosis, tier) fails.
	ErrUnknownKey = errors.New("unknown key")

	// ErrCascade is returned when a child filter is set without its parent.
	ErrCascade = errors.New("filter cascade violated")

	// ErrEncoding is returned for territory codes that do not fit their encoding.
	ErrEncoding = errors.New("bad territory code")

	// ErrSource is returned when an upstream table cannot be read or is malformed.
	ErrSource = errors.New("source unavailable")
)
