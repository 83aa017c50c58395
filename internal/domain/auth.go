package domain

import (
	"encoding/base64"
	"fmt"
	"net/http"
	"time"
)

// Credentials holds the Jira Cloud identity: account email plus API token,
// sent as HTTP basic auth. Constructed once at startup and immutable for
// the process lifetime; never logged.
type Credentials struct {
	Email    string
	APIToken string
}

// Validate checks that both parts of the credential are present.
func (c Credentials) Validate() error {
	if c.Email == "" {
		return fmt.Errorf("email is required for Jira authentication")
	}
	if c.APIToken == "" {
		return fmt.Errorf("api token is required for Jira authentication")
	}
	return nil
}

// NewAuthenticatedClient returns an HTTP client whose transport attaches
// the credential to every request. The client and its connection pool are
// safe for concurrent use across all in-flight invocations.
func NewAuthenticatedClient(creds Credentials, timeout time.Duration) (*http.Client, error) {
	if err := creds.Validate(); err != nil {
		return nil, err
	}
	return &http.Client{
		Timeout: timeout,
		Transport: &authenticatedTransport{
			base:  http.DefaultTransport,
			creds: creds,
		},
	}, nil
}

// authenticatedTransport is an http.RoundTripper that adds the basic auth
// header without mutating the caller's request.
type authenticatedTransport struct {
	base  http.RoundTripper
	creds Credentials
}

// RoundTrip implements http.RoundTripper.
func (t *authenticatedTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	cloned := req.Clone(req.Context())
	auth := t.creds.Email + ":" + t.creds.APIToken
	cloned.Header.Set("Authorization", "Basic "+base64.StdEncoding.EncodeToString([]byte(auth)))
	return t.base.RoundTrip(cloned)
}
