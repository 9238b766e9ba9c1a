package mailer

import (
	"bytes"
	"fmt"

	"gopkg.in/yaml.v3"
)

var fmDelimiter = []byte("---")

// splitFrontMatter separates optional YAML front matter from the markdown
// body. A template without a leading "---" is all body.
func splitFrontMatter(content []byte) (map[string]any, string, error) {
	if !bytes.HasPrefix(content, fmDelimiter) {
		return map[string]any{}, string(content), nil
	}

	rest := bytes.TrimLeft(bytes.TrimPrefix(content, fmDelimiter), "\r\n")
	end := bytes.Index(rest, fmDelimiter)
	if end < 0 {
		return nil, "", fmt.Errorf("%w: closing delimiter not found", ErrFrontMatter)
	}

	head := rest[:end]
	body := bytes.TrimPrefix(rest[end+len(fmDelimiter):], []byte("\r"))
	body = bytes.TrimPrefix(body, []byte("\n"))

	metadata := map[string]any{}
	if len(bytes.TrimSpace(head)) > 0 {
		if err := yaml.Unmarshal(head, &metadata); err != nil {
			return nil, "", fmt.Errorf("%w: %v", ErrFrontMatter, err)
		}
	}
	return metadata, string(body), nil
}
