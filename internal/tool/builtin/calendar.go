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

package builtin

import (
	"context"
	"fmt"
	"time"

	"assistant-platform/internal/tool"
)

// iso8601Layout 事件时间格式：YYYY-MM-DDTHH:MM:SS（无时区偏移，时区单独传）
const iso8601Layout = "2006-01-02T15:04:05"

// CalendarTool 实现 create_calendar_event
type CalendarTool struct{}

// NewCalendarTool 创建 create_calendar_event 工具
func NewCalendarTool() *CalendarTool {
	return &CalendarTool{}
}

// Name 实现 tool.Tool
func (t *CalendarTool) Name() string { return "create_calendar_event" }

// Description 实现 tool.Tool
func (t *CalendarTool) Description() string {
	return "Creates a calendar event with title and time, location, and description"
}

// Schema 实现 tool.Tool
func (t *CalendarTool) Schema() tool.Schema {
	return tool.Schema{
		Type: "object",
		Properties: map[string]tool.SchemaProperty{
			"title": {
				Type:        "string",
				Description: "Event title/name, max 7 words",
			},
			"start": {
				Type:        "string",
				Description: "Event start date and time in ISO-8601 format (YYYY-MM-DDTHH:MM:SS)",
			},
			"end": {
				Type:        "string",
				Description: "Event end date and time in ISO-8601 format (YYYY-MM-DDTHH:MM:SS)",
			},
			"timeZone": {
				Type:        "string",
				Description: "Event time zone in IANA identifier (e.g., 'America/Los_Angeles')",
			},
			"location": {
				Type:        "string",
				Description: "Event location, be it physical or virtual (link)",
			},
			"description": {
				Type:        "string",
				Description: "Additional details of the event",
			},
		},
		Required: []string{"title", "start", "end", "timeZone"},
	}
}

// Execute 实现 tool.Tool：校验时间与时区后创建事件
func (t *CalendarTool) Execute(ctx context.Context, input map[string]any) (tool.Result, error) {
	title, _ := input["title"].(string)
	start, _ := input["start"].(string)
	end, _ := input["end"].(string)
	timeZone, _ := input["timeZone"].(string)
	if title == "" || start == "" || end == "" || timeZone == "" {
		return tool.Failure("title, start, end and timeZone are required"), nil
	}

	loc, err := time.LoadLocation(timeZone)
	if err != nil {
		return tool.Failure(fmt.Sprintf("invalid IANA time zone: %s", timeZone)), nil
	}
	startAt, err := time.ParseInLocation(iso8601Layout, start, loc)
	if err != nil {
		return tool.Failure(fmt.Sprintf("invalid ISO-8601 start: %s", start)), nil
	}
	endAt, err := time.ParseInLocation(iso8601Layout, end, loc)
	if err != nil {
		return tool.Failure(fmt.Sprintf("invalid ISO-8601 end: %s", end)), nil
	}
	if !endAt.After(startAt) {
		return tool.Failure("end must be after start"), nil
	}

	// TODO: 对接 Google Calendar API 真正落日历
	return tool.Result{
		Success: true,
		Fields: map[string]any{
			"title":    title,
			"start":    start,
			"timeZone": timeZone,
			"link":     "https://calendar.google.com",
		},
	}, nil
}
