// Package errors provides explicit, human-readable error types for zircon.
// Every error carries a Reason and a Suggestion so startup failures can be
// acted on without reading source.
package errors

import (
	stderrors "errors"
	"fmt"
	"strings"
)

// ZirconError is the base error type for all zircon errors.
type ZirconError struct {
	Code       ErrorCode
	Message    string
	Reason     string
	Suggestion string
	Cause      error
}

// ErrorCode represents the category of error for exit code mapping.
type ErrorCode int

const (
	CodeValidation ErrorCode = 1
	CodeConfig     ErrorCode = 2
	CodeDatabase   ErrorCode = 3
	CodeInternal   ErrorCode = 4
)

func (e *ZirconError) Error() string {
	msg := e.Message
	if e.Reason != "" {
		msg = fmt.Sprintf("%s\nReason: %s", msg, e.Reason)
	}
	if e.Suggestion != "" {
		msg = fmt.Sprintf("%s\nSuggestion: %s", msg, e.Suggestion)
	}
	if e.Cause != nil {
		msg = fmt.Sprintf("%s\nCaused by: %v", msg, e.Cause)
	}
	return msg
}

func (e *ZirconError) Unwrap() error {
	return e.Cause
}

// ExitCode maps an error to a process exit code. Errors that are not
// ZirconErrors are treated as internal failures.
func ExitCode(err error) int {
	if err == nil {
		return 0
	}
	return int(Code(err))
}

// zirconError is implemented by ZirconError and every type embedding it.
type zirconError interface {
	base() *ZirconError
}

func (e *ZirconError) base() *ZirconError { return e }

// Code returns the error code of err, or CodeInternal.
func Code(err error) ErrorCode {
	for err != nil {
		if ze, ok := err.(zirconError); ok {
			return ze.base().Code
		}
		err = stderrors.Unwrap(err)
	}
	return CodeInternal
}

// ErrMigrationFailed is returned when a schema migration cannot be applied.
type ErrMigrationFailed struct {
	ZirconError
	Migration string
}

// NewMigrationFailed creates a new ErrMigrationFailed.
func NewMigrationFailed(migration string, cause error) *ErrMigrationFailed {
	return &ErrMigrationFailed{
		ZirconError: ZirconError{
			Code:       CodeDatabase,
			Message:    fmt.Sprintf("migration failed: %s", migration),
			Reason:     "the migration script returned an error and was rolled back",
			Suggestion: "fix the migration script and restart; applied migrations are not re-run",
			Cause:      cause,
		},
		Migration: migration,
	}
}

// ErrSeederFailed is returned by the CLI when a seeder aborts startup.
// The orchestrator itself returns the seeder's error unchanged.
type ErrSeederFailed struct {
	ZirconError
	Seeder string
}

// NewSeederFailed creates a new ErrSeederFailed.
func NewSeederFailed(seeder string, cause error) *ErrSeederFailed {
	return &ErrSeederFailed{
		ZirconError: ZirconError{
			Code:       CodeDatabase,
			Message:    fmt.Sprintf("seeder failed: %s", seeder),
			Reason:     "seeding stopped at this seeder; later seeders were not run",
			Suggestion: "inspect the seeder log entry for details",
			Cause:      cause,
		},
		Seeder: seeder,
	}
}

// ErrServiceNotRegistered is returned when a service type has no registration.
type ErrServiceNotRegistered struct {
	ZirconError
	ServiceType string
}

// NewServiceNotRegistered creates a new ErrServiceNotRegistered.
func NewServiceNotRegistered(serviceType string) *ErrServiceNotRegistered {
	return &ErrServiceNotRegistered{
		ZirconError: ZirconError{
			Code:       CodeInternal,
			Message:    fmt.Sprintf("service not registered: %s", serviceType),
			Reason:     "no descriptor in the collection provides this type",
			Suggestion: "register the service before building the provider",
		},
		ServiceType: serviceType,
	}
}

// ErrCircularDependency is returned when resolving a service requires itself.
type ErrCircularDependency struct {
	ZirconError
	Chain []string
}

// NewCircularDependency creates a new ErrCircularDependency.
func NewCircularDependency(chain []string) *ErrCircularDependency {
	return &ErrCircularDependency{
		ZirconError: ZirconError{
			Code:       CodeInternal,
			Message:    "circular dependency detected",
			Reason:     strings.Join(chain, " -> "),
			Suggestion: "break the cycle by resolving one of the services lazily",
		},
		Chain: chain,
	}
}

// ErrInvalidDescriptor is returned when a service descriptor cannot be built.
type ErrInvalidDescriptor struct {
	ZirconError
	ServiceType string
}

// NewInvalidDescriptor creates a new ErrInvalidDescriptor.
func NewInvalidDescriptor(serviceType, reason string) *ErrInvalidDescriptor {
	return &ErrInvalidDescriptor{
		ZirconError: ZirconError{
			Code:       CodeInternal,
			Message:    fmt.Sprintf("invalid service descriptor: %s", serviceType),
			Reason:     reason,
			Suggestion: "provide exactly one of Factory or Instance",
		},
		ServiceType: serviceType,
	}
}

// ErrInvalidFixture is returned when a fixture file is malformed.
type ErrInvalidFixture struct {
	ZirconError
	Field string
}

// NewInvalidFixture creates a new ErrInvalidFixture.
func NewInvalidFixture(field, reason string) *ErrInvalidFixture {
	return &ErrInvalidFixture{
		ZirconError: ZirconError{
			Code:       CodeValidation,
			Message:    "invalid fixture definition",
			Reason:     fmt.Sprintf("field '%s': %s", field, reason),
			Suggestion: "check the fixture file with 'zircon fixtures validate'",
		},
		Field: field,
	}
}

// ErrUnsupportedDriver is returned for a database driver with no dialect.
type ErrUnsupportedDriver struct {
	ZirconError
	Driver string
}

// NewUnsupportedDriver creates a new ErrUnsupportedDriver.
func NewUnsupportedDriver(driver string, supported []string) *ErrUnsupportedDriver {
	return &ErrUnsupportedDriver{
		ZirconError: ZirconError{
			Code:       CodeConfig,
			Message:    fmt.Sprintf("unsupported database driver: %s", driver),
			Reason:     fmt.Sprintf("supported drivers: %s", strings.Join(supported, ", ")),
			Suggestion: "set database.driver to one of the supported drivers",
		},
		Driver: driver,
	}
}

// ErrLockNotAcquired is returned when the migration lock is held elsewhere.
type ErrLockNotAcquired struct {
	ZirconError
	Key string
}

// NewLockNotAcquired creates a new ErrLockNotAcquired.
func NewLockNotAcquired(key string, cause error) *ErrLockNotAcquired {
	return &ErrLockNotAcquired{
		ZirconError: ZirconError{
			Code:       CodeDatabase,
			Message:    fmt.Sprintf("migration lock not acquired: %s", key),
			Reason:     "another instance is migrating the same database",
			Suggestion: "wait for the other instance to finish or raise lock.ttl",
			Cause:      cause,
		},
		Key: key,
	}
}

// ErrValidationFailed is returned when a request fails validation.
type ErrValidationFailed struct {
	ZirconError
	Errors []string
}

// NewValidationFailed creates a new ErrValidationFailed.
func NewValidationFailed(errs []string) *ErrValidationFailed {
	return &ErrValidationFailed{
		ZirconError: ZirconError{
			Code:    CodeValidation,
			Message: "validation failed",
			Reason:  strings.Join(errs, "; "),
		},
		Errors: errs,
	}
}

// ErrConfig is returned when configuration is missing or inconsistent.
type ErrConfig struct {
	ZirconError
	Key string
}

// NewConfigError creates a new ErrConfig.
func NewConfigError(key, reason string) *ErrConfig {
	return &ErrConfig{
		ZirconError: ZirconError{
			Code:       CodeConfig,
			Message:    fmt.Sprintf("invalid configuration: %s", key),
			Reason:     reason,
			Suggestion: fmt.Sprintf("set %s in zircon.yaml or ZIRCON_%s", key, strings.ToUpper(strings.ReplaceAll(key, ".", "_"))),
		},
		Key: key,
	}
}

// NewBootstrapError creates a generic startup error.
func NewBootstrapError(message, reason, suggestion string) *ZirconError {
	return &ZirconError{
		Code:       CodeValidation,
		Message:    message,
		Reason:     reason,
		Suggestion: suggestion,
	}
}
