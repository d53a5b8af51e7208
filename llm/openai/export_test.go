package openai

import "github.com/m-mizutani/cogito/llm"

var TokenLimitErrorOptions = tokenLimitErrorOptions

// BuildRequest exposes the request conversion for tests.
func (c *Client) BuildRequest(req *llm.Request) any {
	return c.buildRequest(req)
}
