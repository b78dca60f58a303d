// Package errors provides custom error types for the metasync system.
// These errors enable programmatic error checking across the reconciliation
// engine: fatal duplicate-key violations, per-item remote failures, and
// skippable unknown-type records.
package errors

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// New returns an error that formats as the given text.
// It's an alias for the standard library errors.New for convenience.
var New = errors.New

// Common sentinel errors for the metasync system
var (
	// ErrNotFound indicates that a requested asset was not found in the target catalog
	ErrNotFound = errors.New("not found")

	// ErrDuplicateKey indicates that a natural key appears more than once
	ErrDuplicateKey = errors.New("duplicate natural key")

	// ErrRemote indicates a transport or protocol failure against an external system
	ErrRemote = errors.New("remote call failed")

	// ErrUnknownType indicates a source type that cannot be mapped to a catalog schema element
	ErrUnknownType = errors.New("unknown type")

	// ErrInvalidInput indicates that provided input was invalid
	ErrInvalidInput = errors.New("invalid input")

	// ErrReadOnly indicates an attempt to modify a read-only resource
	ErrReadOnly = errors.New("read only")
)

// KeyCollision identifies one natural key shared by multiple records or assets.
type KeyCollision struct {
	Key string   // The colliding natural key
	IDs []string // Identifiers of the records/assets carrying it
}

// DuplicateKeyError is fatal for a whole run: it reports every natural key
// that appears more than once within one side (source records or live
// catalog assets), with the identifiers of all colliding items.
type DuplicateKeyError struct {
	Scope      string // "source" or "catalog"
	Collisions []KeyCollision
}

// Error implements the error interface
func (e *DuplicateKeyError) Error() string {
	keys := make([]string, 0, len(e.Collisions))
	for _, c := range e.Collisions {
		keys = append(keys, fmt.Sprintf("%s (%s)", c.Key, strings.Join(c.IDs, ", ")))
	}
	sort.Strings(keys)
	return fmt.Sprintf("duplicate natural keys in %s: %s", e.Scope, strings.Join(keys, "; "))
}

// Is implements errors.Is support
func (e *DuplicateKeyError) Is(target error) bool {
	return target == ErrDuplicateKey
}

// NewDuplicateKeyError creates a new DuplicateKeyError
func NewDuplicateKeyError(scope string, collisions []KeyCollision) *DuplicateKeyError {
	return &DuplicateKeyError{Scope: scope, Collisions: collisions}
}

// RemoteError represents a transport or catalog failure on a single call.
// The reconciler records it against the offending item and continues the run.
type RemoteError struct {
	Operation  string // "get", "create", "update", "delete", "list", "mark"
	Ref        string // Asset reference or endpoint involved
	StatusCode int
	Message    string
	Err        error
}

// Error implements the error interface
func (e *RemoteError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("remote %s of %s failed (status %d): %s", e.Operation, e.Ref, e.StatusCode, e.Message)
	}
	return fmt.Sprintf("remote %s of %s failed: %s", e.Operation, e.Ref, e.Message)
}

// Unwrap implements errors.Unwrap
func (e *RemoteError) Unwrap() error {
	return e.Err
}

// Is implements errors.Is support
func (e *RemoteError) Is(target error) bool {
	return target == ErrRemote
}

// NewRemoteError creates a new RemoteError
func NewRemoteError(operation, ref string, statusCode int, err error) *RemoteError {
	message := ""
	if err != nil {
		message = err.Error()
	}
	return &RemoteError{
		Operation:  operation,
		Ref:        ref,
		StatusCode: statusCode,
		Message:    message,
		Err:        err,
	}
}

// NotFoundError represents an error when a catalog asset is not found
type NotFoundError struct {
	Resource string
	Ref      string
}

// Error implements the error interface
func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %s not found", e.Resource, e.Ref)
}

// Is implements errors.Is support
func (e *NotFoundError) Is(target error) bool {
	return target == ErrNotFound
}

// NewNotFoundError creates a new NotFoundError
func NewNotFoundError(resource, ref string) *NotFoundError {
	return &NotFoundError{Resource: resource, Ref: ref}
}

// UnknownTypeError indicates a source record or child whose declared type
// cannot be mapped to a target schema element. The item is skipped and
// counted as an error without failing the run.
type UnknownTypeError struct {
	Family string // Entity family being synced
	Key    string // Natural key or child technical name
	Type   string // The unrecognized type value
}

// Error implements the error interface
func (e *UnknownTypeError) Error() string {
	return fmt.Sprintf("unknown %s type %q for %s", e.Family, e.Type, e.Key)
}

// Is implements errors.Is support
func (e *UnknownTypeError) Is(target error) bool {
	return target == ErrUnknownType
}

// NewUnknownTypeError creates a new UnknownTypeError
func NewUnknownTypeError(family, key, typ string) *UnknownTypeError {
	return &UnknownTypeError{Family: family, Key: key, Type: typ}
}

// ValidationError represents a validation failure
type ValidationError struct {
	Field   string
	Value   interface{}
	Message string
}

// Error implements the error interface
func (e *ValidationError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("validation failed for field %s: %s", e.Field, e.Message)
	}
	return fmt.Sprintf("validation failed: %s", e.Message)
}

// Is implements errors.Is support
func (e *ValidationError) Is(target error) bool {
	return target == ErrInvalidInput
}

// NewValidationError creates a new ValidationError
func NewValidationError(field string, value interface{}, message string) *ValidationError {
	return &ValidationError{Field: field, Value: value, Message: message}
}

// ConfigError represents a configuration error
type ConfigError struct {
	Component string
	Message   string
	Err       error
}

// Error implements the error interface
func (e *ConfigError) Error() string {
	if e.Component != "" {
		return fmt.Sprintf("configuration error in %s: %s", e.Component, e.Message)
	}
	return fmt.Sprintf("configuration error: %s", e.Message)
}

// Unwrap implements errors.Unwrap
func (e *ConfigError) Unwrap() error {
	return e.Err
}

// NewConfigError creates a new ConfigError
func NewConfigError(component, message string, err error) *ConfigError {
	return &ConfigError{
		Component: component,
		Message:   message,
		Err:       err,
	}
}

// IOError represents an error during I/O operations
type IOError struct {
	Operation string // "read", "write", "create", "delete", "open", "close"
	Path      string
	Message   string
	Err       error
}

// Error implements the error interface
func (e *IOError) Error() string {
	if e.Path != "" {
		return fmt.Sprintf("IO error during %s of %s: %s", e.Operation, e.Path, e.Message)
	}
	return fmt.Sprintf("IO error during %s: %s", e.Operation, e.Message)
}

// Unwrap implements errors.Unwrap
func (e *IOError) Unwrap() error {
	return e.Err
}

// NewIOError creates a new IOError
func NewIOError(operation, path string, err error) *IOError {
	message := ""
	if err != nil {
		message = err.Error()
	}
	return &IOError{
		Operation: operation,
		Path:      path,
		Message:   message,
		Err:       err,
	}
}

// ParseError represents an error when parsing data formats
type ParseError struct {
	Format  string // "json", "yaml", "csv", "html"
	File    string
	Message string
	Err     error
}

// Error implements the error interface
func (e *ParseError) Error() string {
	if e.File != "" {
		return fmt.Sprintf("parse error in %s file %s: %s", e.Format, e.File, e.Message)
	}
	return fmt.Sprintf("%s parse error: %s", e.Format, e.Message)
}

// Unwrap implements errors.Unwrap
func (e *ParseError) Unwrap() error {
	return e.Err
}

// NewParseError creates a new ParseError
func NewParseError(format, file string, message string, err error) *ParseError {
	return &ParseError{
		Format:  format,
		File:    file,
		Message: message,
		Err:     err,
	}
}

// AuthenticationError represents an authentication failure against an external system
type AuthenticationError struct {
	System  string
	Method  string // "bearer", "basic", "api_key"
	Message string
	Err     error
}

// Error implements the error interface
func (e *AuthenticationError) Error() string {
	if e.System != "" {
		return fmt.Sprintf("authentication error for %s (%s): %s", e.System, e.Method, e.Message)
	}
	return fmt.Sprintf("authentication error (%s): %s", e.Method, e.Message)
}

// Unwrap implements errors.Unwrap
func (e *AuthenticationError) Unwrap() error {
	return e.Err
}

// Helper functions for error checking

// IsNotFound checks if an error is a not found error
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsDuplicateKey checks if an error is a duplicate natural key error
func IsDuplicateKey(err error) bool {
	return errors.Is(err, ErrDuplicateKey)
}

// IsRemote checks if an error is a remote call failure
func IsRemote(err error) bool {
	return errors.Is(err, ErrRemote)
}

// IsUnknownType checks if an error is an unknown type error
func IsUnknownType(err error) bool {
	return errors.Is(err, ErrUnknownType)
}

// IsValidationError checks if an error is a validation error
func IsValidationError(err error) bool {
	return errors.Is(err, ErrInvalidInput)
}

// Helper wrapping functions for common patterns

// WrapIO wraps an error as an IOError
func WrapIO(operation, path string, err error) error {
	if err == nil {
		return nil
	}
	return NewIOError(operation, path, err)
}

// WrapRemote wraps an error as a RemoteError
func WrapRemote(operation, ref string, err error) error {
	if err == nil {
		return nil
	}
	return NewRemoteError(operation, ref, 0, err)
}

// WrapParse wraps an error as a ParseError
func WrapParse(format, file string, err error) error {
	if err == nil {
		return nil
	}
	return NewParseError(format, file, err.Error(), err)
}

// WrapValidation wraps an error as a ValidationError
func WrapValidation(field string, err error) error {
	if err == nil {
		return nil
	}
	return &ValidationError{Field: field, Message: err.Error()}
}
