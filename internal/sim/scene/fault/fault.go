// Package fault defines the scene error taxonomy.
package fault

import (
	"errors"
	"fmt"

	"github.com/rs/zerolog"
)

var (
	// ErrLookupMiss marks a probe for an optional named thing that is not there.
	ErrLookupMiss = errors.New("lookup miss")
	// ErrInvariant marks an out-of-range index handed in by a trusted caller.
	ErrInvariant = errors.New("invariant violation")
	// ErrAllocation marks a required buffer that could not be created.
	ErrAllocation = errors.New("resource allocation failure")
)

// Miss logs a lookup miss at debug level and returns it wrapped.
func Miss(log zerolog.Logger, kind, name string) error {
	log.Debug().Str("kind", kind).Str("name", name).Msg("lookup miss")
	return fmt.Errorf("%s %q: %w", kind, name, ErrLookupMiss)
}

// Invariant reports a broken internal contract. Builds tagged scenedebug
// panic; otherwise the violation is logged and returned so the caller can
// no-op.
func Invariant(log zerolog.Logger, format string, args ...any) error {
	err := fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), ErrInvariant)
	log.Error().Err(err).Msg("invariant")
	if panicOnInvariant {
		panic(err)
	}
	return err
}

// Allocation wraps a failed allocation with context.
func Allocation(format string, args ...any) error {
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), ErrAllocation)
}
