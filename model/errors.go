package model

import (
	"errors"
	"fmt"
)

// ValidationError rejects bad caller input, surfaced verbatim.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string {
	return e.Reason
}

// NotFoundError marks an absent entity, no retry.
type NotFoundError struct {
	Kind string
	Id   string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s not found: %s", e.Kind, e.Id)
}

// NotInFeedError marks a cross-reference integrity violation: the referenced
// reel has no placement in the referenced feed.
type NotInFeedError struct {
	FeedID string
	ReelID string
}

func (e *NotInFeedError) Error() string {
	return fmt.Sprintf("reel %s does not belong to feed %s", e.ReelID, e.FeedID)
}

// ProviderError marks an external source as unreachable or answering with a
// non-2xx status. It is caught per adapter inside the assembler and never
// aborts a fetch cycle.
type ProviderError struct {
	Provider   string
	StatusCode int
	Detail     string
}

func (e *ProviderError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("provider %s failed with status %d: %s", e.Provider, e.StatusCode, e.Detail)
	}
	return fmt.Sprintf("provider %s failed: %s", e.Provider, e.Detail)
}

// ConfigurationError marks missing required endpoint or credential
// configuration. Fatal only for that adapter's contribution, unless no
// adapter at all is configured.
type ConfigurationError struct {
	Provider string
	Missing  string
}

func (e *ConfigurationError) Error() string {
	if e.Provider == "" {
		return fmt.Sprintf("missing configuration: %s", e.Missing)
	}
	return fmt.Sprintf("provider %s missing configuration: %s", e.Provider, e.Missing)
}

func IsValidation(err error) bool {
	var target *ValidationError
	return errors.As(err, &target)
}

func IsNotFound(err error) bool {
	var target *NotFoundError
	return errors.As(err, &target)
}

func IsNotInFeed(err error) bool {
	var target *NotInFeedError
	return errors.As(err, &target)
}

func IsProviderError(err error) bool {
	var target *ProviderError
	return errors.As(err, &target)
}

func IsConfigurationError(err error) bool {
	var target *ConfigurationError
	return errors.As(err, &target)
}
