package llm

import (
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"
)

var (
	fenceRe          = regexp.MustCompile("(?s)```[A-Za-z0-9_-]*[ \t]*\r?\n?(.*?)```")
	errEmptyResponse = errors.New("empty response")
)

// JSONBlocks returns every fenced block in raw. Without fences the outermost
// brace-delimited span is returned, or the trimmed text itself.
func JSONBlocks(raw string) []string {
	var blocks []string
	for _, m := range fenceRe.FindAllStringSubmatch(raw, -1) {
		if b := strings.TrimSpace(m[1]); b != "" {
			blocks = append(blocks, b)
		}
	}
	if len(blocks) > 0 {
		return blocks
	}
	s := strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(raw), "```"))
	if s == "" {
		return nil
	}
	start, end := strings.Index(s, "{"), strings.LastIndex(s, "}")
	if start >= 0 && end > start {
		return []string{s[start : end+1]}
	}
	return []string{s}
}

// DecodeJSON parses every block in raw and merges them into out. Top-level
// keys from later blocks replace earlier ones, except arrays, which are
// concatenated.
func DecodeJSON(raw string, out any) error {
	blocks := JSONBlocks(raw)
	switch len(blocks) {
	case 0:
		return errEmptyResponse
	case 1:
		return json.Unmarshal([]byte(blocks[0]), out)
	}
	merged := map[string]json.RawMessage{}
	for i, b := range blocks {
		var obj map[string]json.RawMessage
		if err := json.Unmarshal([]byte(b), &obj); err != nil {
			return fmt.Errorf("json block %d: %w", i+1, err)
		}
		for k, v := range obj {
			prev, ok := merged[k]
			if !ok {
				merged[k] = v
				continue
			}
			merged[k] = mergeValue(prev, v)
		}
	}
	blob, err := json.Marshal(merged)
	if err != nil {
		return err
	}
	return json.Unmarshal(blob, out)
}

func mergeValue(prev, next json.RawMessage) json.RawMessage {
	var a, b []json.RawMessage
	if json.Unmarshal(prev, &a) != nil || json.Unmarshal(next, &b) != nil {
		return next
	}
	blob, err := json.Marshal(append(a, b...))
	if err != nil {
		return next
	}
	return blob
}
