// Copyright 2024 The Replicator Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package tracing_test

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"testing"

	"github.com/uber/jaeger-client-go"

	"github.com/viewshare/replicator/pkg/logging"
	"github.com/viewshare/replicator/pkg/tracing"
)

func TestSpanFromHTTPHeaders(t *testing.T) {
	tracer, closer := newTracer(t)
	defer closer.Close()

	span, _, ctx := tracer.StartSpanFromContext(context.Background(), "replicate", nil)
	defer span.Finish()

	headers := make(http.Header)
	if err := tracer.AddContextHTTPHeader(ctx, headers); err != nil {
		t.Fatal(err)
	}
	if headers.Get(tracing.TraceContextHeaderName) == "" {
		t.Fatalf("header %q not set", tracing.TraceContextHeaderName)
	}

	gotSpanContext, err := tracer.FromHTTPHeaders(headers)
	if err != nil {
		t.Fatal(err)
	}

	wantSpanContext := span.Context()
	if fmt.Sprint(gotSpanContext) != fmt.Sprint(wantSpanContext) {
		t.Errorf("got span context %+v, want %+v", gotSpanContext, wantSpanContext)
	}
}

func TestWithContextFromHTTPHeaders(t *testing.T) {
	tracer, closer := newTracer(t)
	defer closer.Close()

	span, _, ctx := tracer.StartSpanFromContext(context.Background(), "fetch-descriptor", nil)
	defer span.Finish()

	headers := make(http.Header)
	if err := tracer.AddContextHTTPHeader(ctx, headers); err != nil {
		t.Fatal(err)
	}

	ctx, err := tracer.WithContextFromHTTPHeaders(context.Background(), headers)
	if err != nil {
		t.Fatal(err)
	}

	gotSpanContext := tracing.FromContext(ctx)
	if gotSpanContext == nil {
		t.Fatal("span context not found")
	}
	if fmt.Sprint(gotSpanContext) != fmt.Sprint(span.Context()) {
		t.Errorf("got span context %+v, want %+v", gotSpanContext, span.Context())
	}
}

func TestContextNotFound(t *testing.T) {
	tracer, closer := newTracer(t)
	defer closer.Close()

	if err := tracer.AddContextHTTPHeader(context.Background(), make(http.Header)); !errors.Is(err, tracing.ErrContextNotFound) {
		t.Errorf("got error %v, want %v", err, tracing.ErrContextNotFound)
	}

	ctx, err := tracer.WithContextFromHTTPHeaders(context.Background(), make(http.Header))
	if !errors.Is(err, tracing.ErrContextNotFound) {
		t.Errorf("got error %v, want %v", err, tracing.ErrContextNotFound)
	}
	if tracing.FromContext(ctx) != nil {
		t.Error("unexpected span context")
	}
}

func TestChildSpan(t *testing.T) {
	tracer, closer := newTracer(t)
	defer closer.Close()

	parent, _, ctx := tracer.StartSpanFromContext(context.Background(), "poll", nil)
	defer parent.Finish()

	child, _, _ := tracer.StartSpanFromContext(ctx, "replicate", nil)
	defer child.Finish()

	p := parent.Context().(jaeger.SpanContext)
	c := child.Context().(jaeger.SpanContext)
	if c.TraceID() != p.TraceID() {
		t.Errorf("got trace id %v, want %v", c.TraceID(), p.TraceID())
	}
	if c.ParentID() != p.SpanID() {
		t.Errorf("got parent id %v, want %v", c.ParentID(), p.SpanID())
	}
}

func TestStartSpanFromContextLogger(t *testing.T) {
	tracer, closer := newTracer(t)
	defer closer.Close()

	span, logger, _ := tracer.StartSpanFromContext(context.Background(), "replicate", logging.New(io.Discard, 0))
	defer span.Finish()

	wantTraceID := span.Context().(jaeger.SpanContext).TraceID()

	v, ok := logger.Data[tracing.LogField]
	if !ok {
		t.Fatalf("log field %q not found", tracing.LogField)
	}
	if got, _ := v.(string); got != wantTraceID.String() {
		t.Errorf("got trace id %q, want %q", got, wantTraceID.String())
	}
}

func TestNewLoggerWithTraceID(t *testing.T) {
	tracer, closer := newTracer(t)
	defer closer.Close()

	span, _, ctx := tracer.StartSpanFromContext(context.Background(), "replicate", nil)
	defer span.Finish()

	logger := tracing.NewLoggerWithTraceID(ctx, logging.New(io.Discard, 0))

	wantTraceID := span.Context().(jaeger.SpanContext).TraceID()
	if got, _ := logger.Data[tracing.LogField].(string); got != wantTraceID.String() {
		t.Errorf("got trace id %q, want %q", got, wantTraceID.String())
	}

	if tracing.NewLoggerWithTraceID(ctx, nil) != nil {
		t.Error("logger is not nil")
	}
	if _, ok := tracing.NewLoggerWithTraceID(context.Background(), logging.New(io.Discard, 0)).Data[tracing.LogField]; ok {
		t.Error("trace id set without a span")
	}
}

func TestNilTracer(t *testing.T) {
	var tracer *tracing.Tracer

	span, logger, ctx := tracer.StartSpanFromContext(context.Background(), "replicate", nil)
	defer span.Finish()

	if logger != nil {
		t.Error("logger is not nil")
	}
	if tracing.FromContext(ctx) == nil {
		t.Error("span context not set")
	}
	if len(tracer.Metrics()) != 0 {
		t.Error("nil tracer has metrics")
	}
}

func TestMetrics(t *testing.T) {
	tracer, closer := newTracer(t)
	defer closer.Close()

	span, _, _ := tracer.StartSpanFromContext(context.Background(), "replicate", nil)
	span.Finish()

	if len(tracer.Metrics()) == 0 {
		t.Error("no jaeger metrics collected")
	}
}

func newTracer(t *testing.T) (*tracing.Tracer, io.Closer) {
	t.Helper()

	tracer, closer, err := tracing.NewTracer(&tracing.Options{
		Enabled:     true,
		ServiceName: "test",
	})
	if err != nil {
		t.Fatal(err)
	}

	return tracer, closer
}
