package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"harrisrecords/internal/llm"
)

const maxPromptChars = 12000

// ExtractAddresses implements llm.AddressExtractor using text-only
// chat/completions. The model is asked for grantee addresses only; legal
// description fragments and company mailing addresses are prompted away.
func (c *Client) ExtractAddresses(ctx context.Context, text string) ([]llm.AddressCandidate, error) {
	rid := uuid.New().String()
	start := time.Now()

	c.logger.Info("llm.extract.start",
		"req_id", rid,
		"model", c.cfg.Model,
		"temp", c.cfg.Temperature,
		"text_len", len(text),
	)

	schema := llm.BuildAddressJSONSchema()
	body := map[string]any{
		"model":           c.cfg.Model,
		"temperature":     c.cfg.Temperature,
		"response_format": map[string]any{"type": "json_object"},
		"messages": []map[string]any{
			{"role": "system", "content": systemPrompt},
			{"role": "user", "content": buildUserPrompt(text)},
			{"role": "system", "content": "JSON Schema:\n" + mustJSON(schema)},
		},
	}

	endpoint := strings.TrimRight(c.cfg.BaseURL, "/") + "/chat/completions"
	raw, err := c.post(ctx, endpoint, body)
	if err != nil {
		c.logger.Error("llm.extract.http_error",
			"req_id", rid, "error", err,
			"elapsed_ms", time.Since(start).Milliseconds(),
		)
		return nil, err
	}

	var cc struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	if err := json.Unmarshal(raw, &cc); err != nil {
		c.logger.Error("llm.extract.decode_error",
			"req_id", rid, "error", err, "raw_bytes", len(raw),
			"elapsed_ms", time.Since(start).Milliseconds(),
		)
		return nil, fmt.Errorf("decode openai response: %w", err)
	}
	if len(cc.Choices) == 0 {
		c.logger.Error("llm.extract.no_choices", "req_id", rid,
			"elapsed_ms", time.Since(start).Milliseconds())
		return nil, fmt.Errorf("no choices in openai response")
	}
	content := []byte(strings.TrimSpace(cc.Choices[0].Message.Content))

	if err := llm.ValidateJSONAgainstSchema(schema, content); err != nil {
		c.logger.Error("llm.extract.schema_validation_failed",
			"req_id", rid, "error", err,
			"elapsed_ms", time.Since(start).Milliseconds(),
		)
		return nil, fmt.Errorf("schema validation failed: %w", err)
	}

	var out struct {
		Addresses []llm.AddressCandidate `json:"addresses"`
	}
	if err := json.Unmarshal(content, &out); err != nil {
		return nil, fmt.Errorf("unmarshal addresses: %w", err)
	}

	c.logger.Info("llm.extract.ok",
		"req_id", rid,
		"candidates", len(out.Addresses),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return out.Addresses, nil
}

func (c *Client) post(ctx context.Context, url string, body map[string]any) ([]byte, error) {
	b, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(b))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("openai http error: %w", err)
	}
	defer func(Body io.ReadCloser) {
		if err := Body.Close(); err != nil {
			c.logger.Warn("openai response body close error", "error", err)
		}
	}(resp.Body)

	raw, _ := io.ReadAll(resp.Body)
	if resp.StatusCode == http.StatusTooManyRequests {
		return nil, &llm.RateLimitError{
			StatusCode: resp.Status,
			Cause:      fmt.Errorf("openai status %d: %s", resp.StatusCode, string(raw)),
		}
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("openai status %d: %s", resp.StatusCode, string(raw))
	}
	return raw, nil
}

const systemPrompt = `You are an expert at extracting GRANTEE addresses and grantee names from recorded legal documents. ` +
	`Extract only addresses that belong to grantees (property owners/recipients), together with the grantee name when identifiable. ` +
	`If multiple grantees appear, extract the latest/most recent grantee and their address. ` +
	`Ignore legal description addresses (Lot X, Block Y), company mailing addresses, and any address not directly associated with a grantee name. ` +
	`Return ONLY JSON matching the provided schema. If no grantee address is found, return {"addresses": []}.`

func buildUserPrompt(text string) string {
	if len(text) > maxPromptChars {
		text = text[:maxPromptChars]
	}
	var b strings.Builder
	b.WriteString("Extract the latest grantee address and grantee name from the following recorded instrument text.\n\n")
	b.WriteString("Text to analyze:\n")
	b.WriteString(text)
	return b.String()
}

func mustJSON(v any) string {
	b, _ := json.MarshalIndent(v, "", "  ")
	return string(b)
}
