package model

import (
	"encoding/json"
	"fmt"
)

// Option is one selectable choice of a multiple-choice question. Label is the
// positional identifier ("0", "1", ... or an explicit letter from the source
// data); Text is the display text.
type Option struct {
	Label string `json:"label"`
	Text  string `json:"text"`
}

// ParseOptions converts the loose wire shapes of an options payload into the
// canonical ordered []Option. Accepted inputs:
//
//   - null / absent / empty array  → nil (free-text question)
//   - ["red", "blue"]              → labels assigned by index
//   - [{"text": "red"}, ...]       → object form, optional "label"/"displayText"
//   - "[\"red\", \"blue\"]"        → a JSON string wrapping either array form
//
// Anything else is a malformed payload.
func ParseOptions(raw json.RawMessage) ([]Option, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return nil, nil
	}

	// A JSON string wrapping the real payload: unwrap once and recurse.
	var wrapped string
	if err := json.Unmarshal(raw, &wrapped); err == nil {
		if wrapped == "" {
			return nil, nil
		}
		return ParseOptions(json.RawMessage(wrapped))
	}

	var items []json.RawMessage
	if err := json.Unmarshal(raw, &items); err != nil {
		return nil, fmt.Errorf("parse options: %w", err)
	}

	if len(items) == 0 {
		return nil, nil
	}

	opts := make([]Option, 0, len(items))
	for i, item := range items {
		opt, err := parseOption(item, i)
		if err != nil {
			return nil, err
		}
		opts = append(opts, opt)
	}
	return opts, nil
}

func parseOption(item json.RawMessage, index int) (Option, error) {
	var text string
	if err := json.Unmarshal(item, &text); err == nil {
		return Option{Label: fmt.Sprintf("%d", index), Text: text}, nil
	}

	var obj struct {
		Label       string `json:"label"`
		Text        string `json:"text"`
		DisplayText string `json:"displayText"`
	}
	if err := json.Unmarshal(item, &obj); err != nil {
		return Option{}, fmt.Errorf("parse option %d: %w", index, err)
	}

	opt := Option{Label: obj.Label, Text: obj.Text}
	if opt.Text == "" {
		opt.Text = obj.DisplayText
	}
	if opt.Label == "" {
		opt.Label = fmt.Sprintf("%d", index)
	}
	if opt.Text == "" {
		return Option{}, fmt.Errorf("parse option %d: no display text", index)
	}
	return opt, nil
}
