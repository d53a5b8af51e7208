// Package webpage provides the read_web_page action, which fetches a URL and returns its title
// and visible text.
package webpage

import (
	"context"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/m-mizutani/cogito"
	"github.com/m-mizutani/goerr/v2"
	"golang.org/x/net/html"
)

// ActionName is the name of the action.
const ActionName = "read_web_page"

const (
	DefaultMaxLength = 20000
	DefaultTimeout   = 30 * time.Second

	maxBodySize = 4 << 20
	userAgent   = "cogito/1.0 (+https://github.com/m-mizutani/cogito)"
)

var (
	multiNewline = regexp.MustCompile(`\n{3,}`)
	multiSpace   = regexp.MustCompile(`[ \t]{2,}`)
)

// Action fetches web pages.
type Action struct {
	client    *http.Client
	maxLength int
	timeout   time.Duration
}

// Option configures an Action.
type Option func(*Action)

// WithHTTPClient replaces the HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(a *Action) {
		a.client = client
	}
}

// WithMaxLength sets the default text length in bytes. The caller may ask for less.
func WithMaxLength(n int) Option {
	return func(a *Action) {
		a.maxLength = n
	}
}

// WithTimeout sets the timeout of a single fetch.
func WithTimeout(d time.Duration) Option {
	return func(a *Action) {
		a.timeout = d
	}
}

// New creates the read_web_page action.
func New(options ...Option) *Action {
	a := &Action{
		client:    http.DefaultClient,
		maxLength: DefaultMaxLength,
		timeout:   DefaultTimeout,
	}
	for _, opt := range options {
		opt(a)
	}
	return a
}

// Spec implements cogito.Action.
func (a *Action) Spec() cogito.ActionSpec {
	return cogito.ActionSpec{
		Name:        ActionName,
		Description: "Fetch a web page over HTTP(S) and return its title and visible text.",
		Parameters: map[string]*cogito.Parameter{
			"url": {
				Type:        cogito.TypeString,
				Description: "Absolute http or https URL",
			},
			"max_length": {
				Type:        cogito.TypeInteger,
				Description: "Maximum length of the returned text in bytes",
			},
		},
		Required: []string{"url"},
	}
}

// Execute implements cogito.Action. The output has url, status, title, text and truncated.
func (a *Action) Execute(ctx context.Context, actx *cogito.ActionContext) (map[string]any, error) {
	input := actx.Input()
	raw, _ := input["url"].(string)
	target, err := url.Parse(strings.TrimSpace(raw))
	if err != nil || (target.Scheme != "http" && target.Scheme != "https") || target.Host == "" {
		return nil, goerr.Wrap(cogito.ErrInvalidParameter, "url must be an absolute http(s) URL", goerr.V("url", raw))
	}

	maxLength := a.maxLength
	var requested int
	switch v := input["max_length"].(type) {
	case float64:
		requested = int(v)
	case int:
		requested = v
	}
	if requested > 0 && requested < maxLength {
		maxLength = requested
	}

	if err := actx.Report(ctx, "Reading %s", target.String()); err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target.String(), nil)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to create request", goerr.V("url", target.String()))
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,text/plain;q=0.9,*/*;q=0.8")

	resp, err := a.client.Do(req)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to fetch page", goerr.V("url", target.String()))
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, goerr.New("unexpected HTTP status",
			goerr.V("url", target.String()),
			goerr.V("status", resp.StatusCode),
		)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return nil, goerr.Wrap(err, "failed to read page", goerr.V("url", target.String()))
	}

	var title, text string
	contentType := resp.Header.Get("Content-Type")
	if strings.HasPrefix(contentType, "text/plain") || strings.HasPrefix(contentType, "text/markdown") {
		text = string(body)
	} else {
		title, text, err = Extract(string(body))
		if err != nil {
			return nil, goerr.Wrap(err, "failed to parse HTML", goerr.V("url", target.String()))
		}
	}

	text, truncated := truncate(text, maxLength)
	cogito.LoggerFromContext(ctx).Debug("web page read",
		"url", target.String(),
		"title", title,
		"length", len(text),
		"truncated", truncated,
	)

	return map[string]any{
		"url":       target.String(),
		"status":    resp.StatusCode,
		"title":     title,
		"text":      text,
		"truncated": truncated,
	}, nil
}

// Extract returns the document title and the visible text of an HTML document.
func Extract(doc string) (string, string, error) {
	root, err := html.Parse(strings.NewReader(doc))
	if err != nil {
		return "", "", err
	}

	var (
		title string
		sb    strings.Builder
	)
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		switch n.Type {
		case html.TextNode:
			if s := strings.TrimSpace(n.Data); s != "" {
				sb.WriteString(s)
				sb.WriteString(" ")
			}
			return
		case html.ElementNode:
			switch n.Data {
			case "script", "style", "noscript", "template", "iframe", "svg", "nav", "footer":
				return
			case "title":
				if title == "" && n.FirstChild != nil {
					title = strings.TrimSpace(n.FirstChild.Data)
				}
				return
			case "p", "div", "section", "article", "h1", "h2", "h3", "h4", "h5", "h6", "tr", "pre", "blockquote":
				sb.WriteString("\n\n")
			case "br":
				sb.WriteString("\n")
			case "li":
				sb.WriteString("\n- ")
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(root)

	text := multiSpace.ReplaceAllString(sb.String(), " ")
	lines := strings.Split(text, "\n")
	for i := range lines {
		lines[i] = strings.TrimSpace(lines[i])
	}
	text = multiNewline.ReplaceAllString(strings.Join(lines, "\n"), "\n\n")
	return title, strings.TrimSpace(text), nil
}

func truncate(s string, n int) (string, bool) {
	if n <= 0 || len(s) <= n {
		return s, false
	}
	s = s[:n]
	// do not cut a multi-byte rune
	for len(s) > 0 && !utf8.ValidString(s) {
		s = s[:len(s)-1]
	}
	return s, true
}

var _ cogito.Action = &Action{}
