// Package mcp exposes the tools of an MCP server as cogito actions.
package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"sort"
	"strings"
	"sync"

	"github.com/m-mizutani/cogito"
	"github.com/m-mizutani/goerr/v2"
	"github.com/mark3labs/mcp-go/client"
	"github.com/mark3labs/mcp-go/client/transport"
	"github.com/mark3labs/mcp-go/mcp"
)

const (
	DefaultClientName    = "cogito"
	DefaultClientVersion = "0.1.0"
)

var invalidNameChar = regexp.MustCompile(`[^a-zA-Z0-9_\-]`)

// Client connects to one MCP server. It implements cogito.ActionSet.
type Client struct {
	// stdio server
	path    string
	args    []string
	envVars []string

	// SSE server
	baseURL string
	headers map[string]string

	name    string
	version string
	prefix  string

	client     *client.Client
	initResult *mcp.InitializeResult
	initMutex  sync.Mutex
}

// Option configures a Client.
type Option func(*Client)

// WithEnvVars appends environment variables ("KEY=value") for a stdio server.
func WithEnvVars(envVars []string) Option {
	return func(c *Client) {
		c.envVars = append(c.envVars, envVars...)
	}
}

// WithHeaders sets HTTP headers for an SSE server. It replaces existing headers.
func WithHeaders(headers map[string]string) Option {
	return func(c *Client) {
		c.headers = headers
	}
}

// WithClientInfo sets the client name and version advertised on initialize.
func WithClientInfo(name, version string) Option {
	return func(c *Client) {
		c.name = name
		c.version = version
	}
}

// WithPrefix prepends prefix and "_" to every action name so that tools of different servers do
// not conflict.
func WithPrefix(prefix string) Option {
	return func(c *Client) {
		c.prefix = prefix
	}
}

func newClient(options []Option) *Client {
	c := &Client{
		name:    DefaultClientName,
		version: DefaultClientVersion,
		headers: map[string]string{},
	}
	for _, opt := range options {
		opt(c)
	}
	return c
}

// NewStdio starts a local MCP server process and connects to it over stdio.
func NewStdio(ctx context.Context, path string, args []string, options ...Option) (*Client, error) {
	c := newClient(options)
	c.path = path
	c.args = args

	if err := c.start(ctx); err != nil {
		return nil, goerr.Wrap(err, "failed to start MCP client", goerr.V("path", path))
	}
	return c, nil
}

// NewSSE connects to a remote MCP server over HTTP SSE. The SSE stream lives as long as ctx.
func NewSSE(ctx context.Context, baseURL string, options ...Option) (*Client, error) {
	c := newClient(options)
	c.baseURL = baseURL

	if err := c.start(ctx); err != nil {
		return nil, goerr.Wrap(err, "failed to start MCP client", goerr.V("url", baseURL))
	}
	return c, nil
}

func (c *Client) start(ctx context.Context) error {
	c.initMutex.Lock()
	defer c.initMutex.Unlock()

	if c.initResult != nil {
		return nil
	}

	var tp transport.Interface
	switch {
	case c.path != "":
		tp = transport.NewStdio(c.path, c.envVars, c.args...)
	case c.baseURL != "":
		sse, err := transport.NewSSE(c.baseURL, transport.WithHeaders(c.headers))
		if err != nil {
			return goerr.Wrap(err, "failed to create SSE transport")
		}
		tp = sse
	default:
		return goerr.New("no MCP transport")
	}

	c.client = client.NewClient(tp)
	if err := c.client.Start(ctx); err != nil {
		return goerr.Wrap(err, "failed to start MCP transport")
	}

	var initRequest mcp.InitializeRequest
	initRequest.Params.ProtocolVersion = mcp.LATEST_PROTOCOL_VERSION
	initRequest.Params.ClientInfo = mcp.Implementation{
		Name:    c.name,
		Version: c.version,
	}

	resp, err := c.client.Initialize(ctx, initRequest)
	if err != nil {
		_ = c.client.Close()
		return goerr.Wrap(err, "failed to initialize MCP client")
	}
	c.initResult = resp

	return nil
}

// ServerName returns the name the server reported on initialize.
func (c *Client) ServerName() string {
	if c.initResult == nil {
		return ""
	}
	return c.initResult.ServerInfo.Name
}

// Actions implements cogito.ActionSet. It lists the server tools on every call.
func (c *Client) Actions(ctx context.Context) ([]cogito.Action, error) {
	if c.initResult == nil {
		return nil, goerr.New("MCP client not initialized")
	}

	resp, err := c.client.ListTools(ctx, mcp.ListToolsRequest{})
	if err != nil {
		return nil, goerr.Wrap(err, "failed to list tools")
	}

	actions := make([]cogito.Action, 0, len(resp.Tools))
	names := make([]string, 0, len(resp.Tools))
	for _, tool := range resp.Tools {
		action, err := c.newToolAction(tool)
		if err != nil {
			return nil, goerr.Wrap(err, "failed to convert tool", goerr.V("tool", tool.Name))
		}
		actions = append(actions, action)
		names = append(names, action.spec.Name)
	}

	cogito.LoggerFromContext(ctx).Debug("found MCP tools", "server", c.ServerName(), "actions", names)
	return actions, nil
}

func (c *Client) callTool(ctx context.Context, name string, args map[string]any) (*mcp.CallToolResult, error) {
	if c.initResult == nil {
		return nil, goerr.New("MCP client not initialized")
	}

	req := mcp.CallToolRequest{}
	req.Params.Name = name
	req.Params.Arguments = args
	resp, err := c.client.CallTool(ctx, req)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to call tool", goerr.V("tool", name))
	}
	return resp, nil
}

// Close stops the transport and, for stdio, the server process.
func (c *Client) Close() error {
	if c.client == nil {
		return nil
	}
	if err := c.client.Close(); err != nil {
		return goerr.Wrap(err, "failed to close MCP client")
	}
	return nil
}

type toolAction struct {
	client   *Client
	toolName string
	spec     cogito.ActionSpec
}

func (c *Client) newToolAction(tool mcp.Tool) (*toolAction, error) {
	params, err := inputSchemaToParameters(tool.InputSchema)
	if err != nil {
		return nil, err
	}

	var required []string
	for _, name := range tool.InputSchema.Required {
		if _, ok := params[name]; ok {
			required = append(required, name)
		}
	}

	name := invalidNameChar.ReplaceAllString(tool.Name, "_")
	if c.prefix != "" {
		name = c.prefix + "_" + name
	}

	a := &toolAction{
		client:   c,
		toolName: tool.Name,
		spec: cogito.ActionSpec{
			Name:        name,
			Description: tool.Description,
			Parameters:  params,
			Required:    required,
		},
	}
	if err := a.spec.Validate(); err != nil {
		return nil, err
	}
	return a, nil
}

func (x *toolAction) Spec() cogito.ActionSpec {
	return x.spec
}

func (x *toolAction) Execute(ctx context.Context, actx *cogito.ActionContext) (map[string]any, error) {
	cogito.LoggerFromContext(ctx).Debug("call MCP tool", "tool", x.toolName, "args", actx.Input())

	resp, err := x.client.callTool(ctx, x.toolName, actx.Input())
	if err != nil {
		return nil, err
	}

	out := contentToMap(resp.Content)
	if resp.IsError {
		return nil, goerr.New("MCP tool returned an error", goerr.V("tool", x.toolName), goerr.V("result", out))
	}
	return out, nil
}

func valueOrEmpty[T any](v any) T {
	if v, ok := v.(T); ok {
		return v
	}
	var empty T
	return empty
}

func inputSchemaToParameters(schema mcp.ToolInputSchema) (map[string]*cogito.Parameter, error) {
	params := make(map[string]*cogito.Parameter, len(schema.Properties))
	for name, property := range schema.Properties {
		prop, ok := property.(map[string]any)
		if !ok {
			return nil, goerr.Wrap(cogito.ErrInvalidParameter, "property is not an object", goerr.V("property", name))
		}
		params[name] = propertyToParameter(prop)
	}
	return params, nil
}

// propertyToParameter maps a JSON schema property onto Parameter. Types Parameter cannot express
// fall back to string.
func propertyToParameter(prop map[string]any) *cogito.Parameter {
	p := &cogito.Parameter{
		Type:        cogito.ParameterType(valueOrEmpty[string](prop["type"])),
		Description: valueOrEmpty[string](prop["description"]),
	}

	switch p.Type {
	case cogito.TypeString, cogito.TypeNumber, cogito.TypeInteger, cogito.TypeBoolean:
	case cogito.TypeObject:
		p.Properties = map[string]*cogito.Parameter{}
		for k, v := range valueOrEmpty[map[string]any](prop["properties"]) {
			if nested, ok := v.(map[string]any); ok {
				p.Properties[k] = propertyToParameter(nested)
			}
		}
		for _, req := range valueOrEmpty[[]any](prop["required"]) {
			if s, ok := req.(string); ok {
				if _, defined := p.Properties[s]; defined {
					p.Required = append(p.Required, s)
				}
			}
		}
		sort.Strings(p.Required)
	case cogito.TypeArray:
		if items, ok := prop["items"].(map[string]any); ok {
			p.Items = propertyToParameter(items)
		} else {
			p.Items = &cogito.Parameter{Type: cogito.TypeString}
		}
	default:
		p.Type = cogito.TypeString
	}

	if p.Type == cogito.TypeString {
		for _, e := range valueOrEmpty[[]any](prop["enum"]) {
			p.Enum = append(p.Enum, fmt.Sprint(e))
		}
	}

	return p
}

func contentText(c mcp.Content) (string, bool) {
	switch v := c.(type) {
	case mcp.TextContent:
		return v.Text, true
	case *mcp.TextContent:
		return v.Text, true
	}
	return "", false
}

// contentToMap converts tool result content into an action output. A single JSON object is used
// as is; other text becomes "result", several text blocks are joined.
func contentToMap(contents []mcp.Content) map[string]any {
	var texts []string
	for _, c := range contents {
		if text, ok := contentText(c); ok {
			texts = append(texts, text)
		}
	}

	switch len(texts) {
	case 0:
		return map[string]any{}
	case 1:
		var v any
		if err := json.Unmarshal([]byte(texts[0]), &v); err == nil {
			if m, ok := v.(map[string]any); ok {
				return m
			}
			return map[string]any{"result": v}
		}
		return map[string]any{"result": texts[0]}
	default:
		return map[string]any{"result": strings.Join(texts, "\n")}
	}
}

var _ cogito.ActionSet = &Client{}
