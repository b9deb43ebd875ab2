package config

import (
	"fmt"
	"net/url"
	"sort"
	"strings"

	"github.com/mitchellh/mapstructure"
)

const masked = "****"

// Setting is one flattened configuration key, such as "engine.kind".
type Setting struct {
	Key   string
	Value string
}

var secretKeys = map[string]bool{
	"engine.openai.api_key":        true,
	"storage.encryption_key":       true,
	"storage.s3.secret_access_key": true,
}

// Settings flattens c into sorted dotted keys with secrets masked.
func (c *Config) Settings() ([]Setting, error) {
	var tree map[string]any
	if err := mapstructure.Decode(c, &tree); err != nil {
		return nil, fmt.Errorf("flatten config: %w", err)
	}
	var out []Setting
	flatten("", tree, &out)
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out, nil
}

func flatten(prefix string, node map[string]any, out *[]Setting) {
	for k, v := range node {
		key := k
		if prefix != "" {
			key = prefix + "." + k
		}
		if child, ok := v.(map[string]any); ok {
			flatten(key, child, out)
			continue
		}
		*out = append(*out, Setting{Key: key, Value: maskValue(key, fmt.Sprint(v))})
	}
}

func maskValue(key, value string) string {
	if value == "" {
		return value
	}
	if secretKeys[key] {
		return masked
	}
	if strings.HasSuffix(key, ".url") {
		return maskURLPassword(value)
	}
	return value
}

func maskURLPassword(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return raw
	}
	return u.Redacted()
}
