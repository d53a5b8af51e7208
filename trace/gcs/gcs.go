// Package gcs stores traces as JSON objects in a Google Cloud Storage bucket.
//
//	repo, err := gcs.New(ctx, "my-bucket", gcs.WithPrefix("traces/"))
//	rec := trace.New(trace.WithRepository(repo))
//
// The same Repository also implements trace.Source, so stored traces can be listed and loaded
// back, which is what `cogito traces` does.
package gcs

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"strings"

	"cloud.google.com/go/storage"
	"github.com/m-mizutani/cogito/trace"
	"github.com/m-mizutani/goerr/v2"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"
)

// Option configures a Repository.
type Option func(*Repository)

// WithPrefix sets the object name prefix. A trailing "/" is not added automatically.
func WithPrefix(prefix string) Option {
	return func(r *Repository) {
		r.prefix = prefix
	}
}

// WithClient uses an existing storage client instead of creating one.
func WithClient(client *storage.Client) Option {
	return func(r *Repository) {
		r.client = client
	}
}

// WithClientOptions passes options to storage.NewClient, e.g. option.WithCredentialsFile.
func WithClientOptions(opts ...option.ClientOption) Option {
	return func(r *Repository) {
		r.clientOptions = append(r.clientOptions, opts...)
	}
}

// Repository persists traces to {prefix}{trace_id}.json in a bucket.
type Repository struct {
	bucket        string
	prefix        string
	client        *storage.Client
	clientOptions []option.ClientOption
}

// New creates a Repository. Credentials are resolved by the storage client (ADC by default).
func New(ctx context.Context, bucket string, opts ...Option) (*Repository, error) {
	r := &Repository{bucket: bucket}
	for _, opt := range opts {
		opt(r)
	}

	if bucket == "" {
		return nil, goerr.New("bucket name is required")
	}

	if r.client == nil {
		client, err := storage.NewClient(ctx, r.clientOptions...)
		if err != nil {
			return nil, goerr.Wrap(err, "failed to create Cloud Storage client")
		}
		r.client = client
	}

	return r, nil
}

// ObjectName returns the object name of a trace.
func (r *Repository) ObjectName(traceID string) string {
	return r.prefix + traceID + ".json"
}

// TraceID extracts the trace ID from an object name. ok is false for objects that are not
// traces directly under the prefix.
func (r *Repository) TraceID(objectName string) (string, bool) {
	if !strings.HasPrefix(objectName, r.prefix) || !strings.HasSuffix(objectName, ".json") {
		return "", false
	}
	id := strings.TrimSuffix(strings.TrimPrefix(objectName, r.prefix), ".json")
	if id == "" || strings.Contains(id, "/") {
		return "", false
	}
	return id, true
}

// Save uploads the trace as JSON.
func (r *Repository) Save(ctx context.Context, t *trace.Trace) error {
	if err := trace.ValidateTraceID(t.TraceID); err != nil {
		return err
	}

	objectName := r.ObjectName(t.TraceID)
	w := r.client.Bucket(r.bucket).Object(objectName).NewWriter(ctx)
	w.ContentType = "application/json"

	if err := json.NewEncoder(w).Encode(t); err != nil {
		_ = w.Close()
		return goerr.Wrap(err, "failed to write trace object",
			goerr.V("bucket", r.bucket),
			goerr.V("object", objectName),
		)
	}

	if err := w.Close(); err != nil {
		return goerr.Wrap(err, "failed to upload trace object",
			goerr.V("bucket", r.bucket),
			goerr.V("object", objectName),
		)
	}

	return nil
}

// List returns one page of traces stored under the prefix.
func (r *Repository) List(ctx context.Context, req trace.ListRequest) (*trace.ListResponse, error) {
	pageSize := req.PageSize
	if pageSize <= 0 {
		pageSize = trace.DefaultPageSize
	}

	it := r.client.Bucket(r.bucket).Objects(ctx, &storage.Query{Prefix: r.prefix})
	pager := iterator.NewPager(it, pageSize, req.PageToken)

	var attrs []*storage.ObjectAttrs
	nextToken, err := pager.NextPage(&attrs)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to list objects",
			goerr.V("bucket", r.bucket),
			goerr.V("prefix", r.prefix),
		)
	}

	resp := &trace.ListResponse{NextPageToken: nextToken}
	for _, attr := range attrs {
		traceID, ok := r.TraceID(attr.Name)
		if !ok {
			continue
		}
		resp.Traces = append(resp.Traces, trace.Summary{
			TraceID:   traceID,
			Size:      attr.Size,
			UpdatedAt: attr.Updated,
		})
	}

	return resp, nil
}

// Get downloads and decodes one trace.
func (r *Repository) Get(ctx context.Context, traceID string) (*trace.Trace, error) {
	if err := trace.ValidateTraceID(traceID); err != nil {
		return nil, err
	}

	objectName := r.ObjectName(traceID)
	reader, err := r.client.Bucket(r.bucket).Object(objectName).NewReader(ctx)
	if err != nil {
		if errors.Is(err, storage.ErrObjectNotExist) {
			return nil, goerr.Wrap(trace.ErrTraceNotFound, "no trace object",
				goerr.V("bucket", r.bucket),
				goerr.V("object", objectName),
			)
		}
		return nil, goerr.Wrap(err, "failed to read trace object",
			goerr.V("bucket", r.bucket),
			goerr.V("object", objectName),
		)
	}
	defer func() { _ = reader.Close() }()

	data, err := io.ReadAll(reader)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to read trace data",
			goerr.V("bucket", r.bucket),
			goerr.V("object", objectName),
		)
	}

	var t trace.Trace
	if err := json.Unmarshal(data, &t); err != nil {
		return nil, goerr.Wrap(err, "failed to parse trace data",
			goerr.V("bucket", r.bucket),
			goerr.V("object", objectName),
		)
	}

	return &t, nil
}

// Close releases the storage client.
func (r *Repository) Close() error {
	return r.client.Close()
}

var (
	_ trace.Repository = &Repository{}
	_ trace.Source     = &Repository{}
)
