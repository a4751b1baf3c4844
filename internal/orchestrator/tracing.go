// Copyright 2026 fanjia1024
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package orchestrator

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"assistant-platform/internal/session"
	"assistant-platform/pkg/tracing"
)

// TracingRunner 给编排循环叠加 OpenTelemetry span 的装饰器
type TracingRunner struct {
	inner  Runner
	tracer trace.Tracer
}

// NewTracingRunner 包装 Runner，记录每个周期的 span
func NewTracingRunner(inner Runner) *TracingRunner {
	return &TracingRunner{
		inner:  inner,
		tracer: tracing.Tracer("orchestrator"),
	}
}

// Run 实现 Runner
func (r *TracingRunner) Run(ctx context.Context, sess *session.Session, inbound Inbound) (Result, error) {
	kind := "text"
	if inbound.MIMEType != "" {
		kind = inbound.MIMEType
	}
	ctx, span := r.tracer.Start(ctx, "orchestrator.Run",
		trace.WithAttributes(attribute.String("inbound.kind", kind)))
	defer span.End()

	result, err := r.inner.Run(ctx, sess, inbound)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return result, err
	}
	span.SetAttributes(
		attribute.Int("reply.chars", len(result.Text)),
		attribute.String("task.status", result.TaskStatus),
	)
	return result, nil
}
