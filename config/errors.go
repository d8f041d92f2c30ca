package config

import "errors"

// ErrInvalid is returned by Validate when a configuration key fails its
// range check. Callers map it to exit code 2 (configuration error).
var ErrInvalid = errors.New("config: invalid configuration")
