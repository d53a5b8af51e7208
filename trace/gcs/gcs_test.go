package gcs_test

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/m-mizutani/cogito/trace"
	"github.com/m-mizutani/cogito/trace/gcs"
	"github.com/m-mizutani/gt"
	"google.golang.org/api/option"
)

func newOfflineRepository(t *testing.T, prefix string) *gcs.Repository {
	t.Helper()
	repo, err := gcs.New(context.Background(), "test-bucket",
		gcs.WithPrefix(prefix),
		gcs.WithClientOptions(option.WithoutAuthentication()),
	)
	gt.NoError(t, err)
	t.Cleanup(func() { _ = repo.Close() })
	return repo
}

func TestObjectNameMapping(t *testing.T) {
	repo := newOfflineRepository(t, "traces/")

	gt.Equal(t, repo.ObjectName("abc"), "traces/abc.json")

	id, ok := repo.TraceID("traces/abc.json")
	gt.True(t, ok)
	gt.Equal(t, id, "abc")

	for _, name := range []string{
		"traces/abc.txt",
		"traces/nested/abc.json",
		"other/abc.json",
		"traces/.json",
	} {
		_, ok := repo.TraceID(name)
		gt.False(t, ok)
	}
}

func TestNewRequiresBucket(t *testing.T) {
	_, err := gcs.New(context.Background(), "")
	gt.Error(t, err)
}

func TestSaveRejectsInvalidID(t *testing.T) {
	repo := newOfflineRepository(t, "")
	err := repo.Save(context.Background(), &trace.Trace{TraceID: "../x"})
	gt.True(t, errors.Is(err, trace.ErrInvalidTraceID))
}

func TestRepositoryLive(t *testing.T) {
	bucket, ok := os.LookupEnv("TEST_GCS_BUCKET")
	if !ok {
		t.Skip("TEST_GCS_BUCKET is not set")
	}

	ctx := context.Background()
	prefix := "cogito-test/" + uuid.NewString() + "/"
	repo, err := gcs.New(ctx, bucket, gcs.WithPrefix(prefix))
	gt.NoError(t, err)
	defer func() { _ = repo.Close() }()

	now := time.Now()
	tr := &trace.Trace{
		TraceID:   "cycle-live",
		RootSpan:  &trace.Span{SpanID: "root", Kind: trace.SpanKindCycle, Name: "cycle", StartedAt: now},
		StartedAt: now,
	}
	gt.NoError(t, repo.Save(ctx, tr))

	loaded, err := repo.Get(ctx, "cycle-live")
	gt.NoError(t, err)
	gt.Equal(t, loaded.RootSpan.Kind, trace.SpanKindCycle)

	resp, err := repo.List(ctx, trace.ListRequest{})
	gt.NoError(t, err)
	gt.A(t, resp.Traces).Length(1)
	gt.Equal(t, resp.Traces[0].TraceID, "cycle-live")

	_, err = repo.Get(ctx, "missing")
	gt.True(t, errors.Is(err, trace.ErrTraceNotFound))
}
