// Copyright Storage Gateway Authors
// SPDX-License-Identifier: Apache-2.0

package gateway

import (
	"errors"
	"fmt"
)

var (
	// ErrNoProviderAvailable is returned when the registry is empty or the
	// current provider cannot be resolved. Fatal for the call; no fallback
	// is attempted because there is nothing to fall back from.
	ErrNoProviderAvailable = errors.New("no storage provider available")

	// ErrProviderNotFound is returned when a lookup or switch references an
	// unregistered provider name. Registry state is left unchanged.
	ErrProviderNotFound = errors.New("storage provider not found")

	// ErrProviderUnhealthy is returned when a switch targets a provider that
	// failed its health check. Registry state is left unchanged.
	ErrProviderUnhealthy = errors.New("storage provider unhealthy")

	// ErrDuplicateProvider is returned when registering a provider whose
	// name is already taken.
	ErrDuplicateProvider = errors.New("storage provider already registered")
)

// OperationError reports a failed backend call, identifying the provider
// that ultimately failed. When both the primary and the fallback provider
// fail, the fallback's OperationError is what callers receive; the primary
// failure is logged, not surfaced.
type OperationError struct {
	Provider string
	Op       string
	Err      error
}

func (e *OperationError) Error() string {
	return fmt.Sprintf("%s on provider %q: %v", e.Op, e.Provider, e.Err)
}

func (e *OperationError) Unwrap() error {
	return e.Err
}
