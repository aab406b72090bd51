package auth

import (
	"os"
	"time"
)

// EnvironmentStore implements CredentialStore using environment variables.
// It is read-only and serves CI jobs and one-off runs where the token is
// injected rather than captured interactively.
type EnvironmentStore struct{}

// NewEnvironmentStore creates a new environment-based credential store
func NewEnvironmentStore() *EnvironmentStore {
	return &EnvironmentStore{}
}

// Store is not supported for environment variables
func (e *EnvironmentStore) Store(cred *Credential) error {
	return ErrStoreUnavailable
}

// Retrieve gets the credential from environment variables
func (e *EnvironmentStore) Retrieve(eventSlug string) (*Credential, error) {
	token := os.Getenv("ALLIN_BEARER_TOKEN")
	userAgent := os.Getenv("ALLIN_USER_AGENT")

	if token == "" {
		return nil, ErrCredentialsNotFound
	}

	// The environment carries no slug, so fall back to the configured one
	if eventSlug == "" {
		eventSlug = os.Getenv("ALLIN_EVENT_SLUG")
	}
	if eventSlug == "" {
		eventSlug = "default"
	}

	return &Credential{
		EventSlug:    eventSlug,
		BearerToken:  token,
		UserAgent:    userAgent,
		LastModified: time.Now(),
	}, nil
}

// List returns a single credential if the environment variable is set
func (e *EnvironmentStore) List() ([]*Credential, error) {
	cred, err := e.Retrieve("")
	if err != nil {
		return []*Credential{}, nil
	}
	return []*Credential{cred}, nil
}

// Delete is not supported for environment variables
func (e *EnvironmentStore) Delete(eventSlug string) error {
	return ErrStoreUnavailable
}

// Exists checks if an environment credential exists
func (e *EnvironmentStore) Exists(eventSlug string) bool {
	return os.Getenv("ALLIN_BEARER_TOKEN") != ""
}
