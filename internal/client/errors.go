package client

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/xanzy/go-gitlab"
)

// APIError is a failed API call, carrying the HTTP status and the
// originating service name so callers can discriminate by status code.
type APIError struct {
	Status  int
	Service string
	Message string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("%s API error: status %d", e.Service, e.Status)
	}
	return fmt.Sprintf("%s API error: status %d: %s", e.Service, e.Status, e.Message)
}

// APIErrorFrom converts a client library failure into an *APIError. The
// response may be nil when the request never reached the service.
func APIErrorFrom(resp *gitlab.Response, err error) error {
	if err == nil {
		return nil
	}

	apiErr := &APIError{Service: ServiceName, Message: err.Error()}

	var errResp *gitlab.ErrorResponse
	if errors.As(err, &errResp) && errResp.Response != nil {
		apiErr.Status = errResp.Response.StatusCode
		apiErr.Message = errResp.Message
	} else if resp != nil && resp.Response != nil {
		apiErr.Status = resp.StatusCode
	}

	return apiErr
}

// IsNotFound reports whether err is an API error with status 404. Existence
// checks and reads use it to turn a missing resource into a negative result.
func IsNotFound(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Status == http.StatusNotFound
}
