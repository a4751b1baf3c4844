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
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	"assistant-platform/internal/tool"
)

// splitwiseRetryMax 网络错误或 5xx 的最大重试次数（不含首次请求）
const splitwiseRetryMax = 2

// splitwiseBackoffBase 首次重试前的等待时间，之后指数翻倍（1s、2s）
const splitwiseBackoffBase = time.Second

// currencySymbols 展示用货币符号
var currencySymbols = map[string]string{
	"USD": "$",
	"EUR": "€",
	"BRL": "R$",
}

// SplitwiseConfig Splitwise 工具配置
type SplitwiseConfig struct {
	BaseURL string // 空则使用官方 API
	APIKey  string
}

// SplitwiseTool 实现 add_to_splitwise：调用外部记账 API 登记共享支出
type SplitwiseTool struct {
	client  *resty.Client
	baseURL string
}

// NewSplitwiseTool 创建 add_to_splitwise 工具
func NewSplitwiseTool(cfg SplitwiseConfig) *SplitwiseTool {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = "https://secure.splitwise.com/api/v3.0"
	}
	client := resty.New()
	client.SetTimeout(15 * time.Second)
	client.SetHeader("Authorization", "Bearer "+cfg.APIKey)
	return &SplitwiseTool{client: client, baseURL: baseURL}
}

// Name 实现 tool.Tool
func (t *SplitwiseTool) Name() string { return "add_to_splitwise" }

// Description 实现 tool.Tool
func (t *SplitwiseTool) Description() string {
	return "Adds an expense to Splitwise to be shared with other people"
}

// Schema 实现 tool.Tool
func (t *SplitwiseTool) Schema() tool.Schema {
	return tool.Schema{
		Type: "object",
		Properties: map[string]tool.SchemaProperty{
			"title": {
				Type:        "string",
				Description: "Short expense title, max 5 words",
			},
			"amount": {
				Type:        "number",
				Description: "Expense amount without currency sign (e.g., 127.43)",
			},
			"currency": {
				Type:        "string",
				Enum:        []string{"USD", "EUR", "BRL"},
				Description: "Expense currency",
			},
			"details": {
				Type:        "string",
				Description: "Summary of all other expense information, including the people involved (e.g., 'Shared with: Georgia, Panda, and Ma')",
			},
		},
		Required: []string{"title", "amount", "currency", "details"},
	}
}

// splitwiseError 提取 API 层错误；{error:""} 或 {errors:{base:[""]}}
func splitwiseError(body map[string]any) string {
	if msg, ok := body["error"].(string); ok && msg != "" {
		return msg
	}
	if errs, ok := body["errors"].(map[string]any); ok && len(errs) > 0 {
		var parts []string
		for _, v := range errs {
			if list, ok := v.([]any); ok {
				for _, item := range list {
					if s, ok := item.(string); ok {
						parts = append(parts, s)
					}
				}
			}
		}
		if len(parts) > 0 {
			return strings.Join(parts, ", ")
		}
	}
	return ""
}

// postExpense 带重试地提交支出。仅网络错误或 5xx 触发重试，
// 指数退避从 1s 起；API 层错误（200 返回体带 error）不重试。
func (t *SplitwiseTool) postExpense(ctx context.Context, payload map[string]any) (map[string]any, error) {
	backoff := splitwiseBackoffBase
	var lastErr error
	for attempt := 0; attempt <= splitwiseRetryMax; attempt++ {
		if attempt > 0 {
			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
			backoff *= 2
		}

		var body map[string]any
		resp, err := t.client.R().
			SetContext(ctx).
			SetBody(payload).
			SetResult(&body).
			Post(t.baseURL + "/create_expense")
		if err != nil {
			lastErr = err
			continue
		}
		if resp.StatusCode() >= 500 {
			lastErr = fmt.Errorf("Splitwise API HTTP %d", resp.StatusCode())
			continue
		}
		if resp.StatusCode() >= 400 {
			return nil, fmt.Errorf("Splitwise API HTTP %d: %s", resp.StatusCode(), resp.String())
		}
		return body, nil
	}
	return nil, lastErr
}

// Execute 实现 tool.Tool
func (t *SplitwiseTool) Execute(ctx context.Context, input map[string]any) (tool.Result, error) {
	title, _ := input["title"].(string)
	amount, _ := input["amount"].(float64)
	currency, _ := input["currency"].(string)
	details, _ := input["details"].(string)
	if title == "" || amount <= 0 || currency == "" {
		return tool.Failure("title, amount and currency are required"), nil
	}

	body, err := t.postExpense(ctx, map[string]any{
		"cost":          fmt.Sprintf("%.2f", amount),
		"description":   title,
		"details":       details + "\n\nCreated by the assistant",
		"currency_code": currency,
		"group_id":      0, // 用户间直接支出
		"split_equally": true,
	})
	if err != nil {
		return tool.Failure(fmt.Sprintf("Splitwise API: %v", err)), nil
	}
	if msg := splitwiseError(body); msg != "" {
		return tool.Failure("Splitwise API: " + msg), nil
	}

	symbol := currencySymbols[currency]
	return tool.Result{
		Success: true,
		Fields: map[string]any{
			"title":  title,
			"amount": fmt.Sprintf("%s%.2f", symbol, amount),
			"link":   "https://secure.splitwise.com/#/activity",
		},
	}, nil
}
