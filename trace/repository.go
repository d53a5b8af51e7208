package trace

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/m-mizutani/goerr/v2"
)

// DefaultPageSize is the page size used by List when ListRequest.PageSize is not positive.
const DefaultPageSize = 20

var (
	// ErrTraceNotFound is returned by Get when no trace with the ID exists.
	ErrTraceNotFound = errors.New("trace not found")

	// ErrInvalidTraceID is returned when a trace ID can not be mapped to a storage key.
	ErrInvalidTraceID = errors.New("invalid trace ID")
)

// Repository is the interface for persisting trace data.
type Repository interface {
	Save(ctx context.Context, trace *Trace) error
}

// Summary is a lightweight representation of a stored trace, derived from storage metadata
// without reading the trace itself.
type Summary struct {
	TraceID   string    `json:"trace_id"`
	Size      int64     `json:"size"`
	UpdatedAt time.Time `json:"updated_at"`
}

// ListRequest selects one page of stored traces.
type ListRequest struct {
	PageSize  int
	PageToken string
}

// ListResponse is one page of stored traces.
type ListResponse struct {
	Traces        []Summary `json:"traces"`
	NextPageToken string    `json:"next_page_token,omitempty"`
}

// Source provides read access to stored traces.
type Source interface {
	List(ctx context.Context, req ListRequest) (*ListResponse, error)
	Get(ctx context.Context, traceID string) (*Trace, error)
}

// ValidateTraceID rejects IDs that would escape the storage directory or prefix.
func ValidateTraceID(traceID string) error {
	if traceID == "" || strings.ContainsAny(traceID, `/\`) || strings.Contains(traceID, "..") {
		return goerr.Wrap(ErrInvalidTraceID, "trace ID must be a single path element", goerr.V("trace_id", traceID))
	}
	return nil
}

// FileRepository persists trace data as JSON files, one per trace.
type FileRepository struct {
	dir string
}

// NewFileRepository creates a new FileRepository that writes to the given directory.
func NewFileRepository(dir string) *FileRepository {
	return &FileRepository{dir: dir}
}

// Save writes the trace as JSON to {dir}/{trace_id}.json.
func (r *FileRepository) Save(_ context.Context, trace *Trace) error {
	if err := ValidateTraceID(trace.TraceID); err != nil {
		return err
	}

	if err := os.MkdirAll(r.dir, 0750); err != nil {
		return goerr.Wrap(err, "failed to create trace directory", goerr.V("dir", r.dir))
	}

	data, err := json.MarshalIndent(trace, "", "  ")
	if err != nil {
		return goerr.Wrap(err, "failed to marshal trace")
	}

	filePath := filepath.Join(r.dir, trace.TraceID+".json")
	if err := os.WriteFile(filePath, data, 0600); err != nil {
		return goerr.Wrap(err, "failed to write trace file", goerr.V("path", filePath))
	}

	return nil
}

// List returns stored traces ordered by file name. The page token is the last file name of the
// previous page.
func (r *FileRepository) List(_ context.Context, req ListRequest) (*ListResponse, error) {
	entries, err := os.ReadDir(r.dir)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to read directory", goerr.V("dir", r.dir))
	}

	type fileEntry struct {
		name string
		info os.FileInfo
	}
	var files []fileEntry
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".json") {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		files = append(files, fileEntry{name: e.Name(), info: info})
	}

	slices.SortFunc(files, func(a, b fileEntry) int {
		return strings.Compare(a.name, b.name)
	})

	if req.PageToken != "" {
		lastFile, err := decodePageToken(req.PageToken)
		if err != nil {
			return nil, err
		}
		idx := slices.IndexFunc(files, func(f fileEntry) bool { return f.name > lastFile })
		if idx < 0 {
			return &ListResponse{}, nil
		}
		files = files[idx:]
	}

	pageSize := req.PageSize
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}

	resp := &ListResponse{}
	page := files[:min(pageSize, len(files))]
	for _, f := range page {
		resp.Traces = append(resp.Traces, Summary{
			TraceID:   strings.TrimSuffix(f.name, ".json"),
			Size:      f.info.Size(),
			UpdatedAt: f.info.ModTime(),
		})
	}

	if len(page) < len(files) {
		resp.NextPageToken = encodePageToken(page[len(page)-1].name)
	}

	return resp, nil
}

// Get reads the trace stored as {dir}/{trace_id}.json.
func (r *FileRepository) Get(_ context.Context, traceID string) (*Trace, error) {
	if err := ValidateTraceID(traceID); err != nil {
		return nil, err
	}

	filePath := filepath.Join(r.dir, traceID+".json")
	data, err := os.ReadFile(filePath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, goerr.Wrap(ErrTraceNotFound, "no trace file", goerr.V("trace_id", traceID))
		}
		return nil, goerr.Wrap(err, "failed to read trace file", goerr.V("trace_id", traceID))
	}

	var t Trace
	if err := json.Unmarshal(data, &t); err != nil {
		return nil, goerr.Wrap(err, "failed to parse trace file", goerr.V("trace_id", traceID))
	}

	return &t, nil
}

func encodePageToken(fileName string) string {
	return base64.URLEncoding.EncodeToString([]byte(fileName))
}

func decodePageToken(token string) (string, error) {
	b, err := base64.URLEncoding.DecodeString(token)
	if err != nil {
		return "", goerr.Wrap(err, "failed to decode page token", goerr.V("token", token))
	}
	return string(b), nil
}

var (
	_ Repository = &FileRepository{}
	_ Source     = &FileRepository{}
)
