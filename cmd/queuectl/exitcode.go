package main

import (
	"errors"

	"github.com/relaydb/queue/config"
	"github.com/relaydb/queue/resolver"
)

// Exit codes: 0 success, 1 configuration error, 2 storage error,
// 3 unknown task.
const (
	exitOK           = 0
	exitConfigError  = 1
	exitStorageError = 2
	exitUnknownTask  = 3
)

// exitCodeFor classifies an error returned from a command's RunE into one
// of the four documented codes. Anything that is neither
// a config nor a resolver error is treated as a storage fault, since every
// remaining failure path in this CLI (Reserve, Stats, GetFailed, InitDB,
// ...) talks to the store.
func exitCodeFor(err error) int {
	if err == nil {
		return exitOK
	}
	var invalid *config.ErrInvalid
	if errors.As(err, &invalid) {
		return exitConfigError
	}
	if errors.Is(err, resolver.ErrUnknownTask) || errors.Is(err, resolver.ErrInvalidHandler) {
		return exitUnknownTask
	}
	return exitStorageError
}
