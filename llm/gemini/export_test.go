package gemini

import "github.com/m-mizutani/cogito/llm"

var TokenLimitErrorOptions = tokenLimitErrorOptions

// APIClient is exported for building fakes in tests.
type APIClient = apiClient

// NewWithAPIClient creates a Client that talks to the given API client.
func NewWithAPIClient(client apiClient, options ...Option) *Client {
	c := newClient(options)
	c.apiClient = client
	return c
}

// BuildRequest exposes the request conversion for tests.
func (c *Client) BuildRequest(req *llm.Request) (any, any) {
	return c.buildRequest(req)
}
