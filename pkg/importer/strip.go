package importer

import (
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// secretKeys are credential-carrying config keys that never survive an import.
var secretKeys = map[string]bool{
	"password":  true,
	"brokerUrl": true,
	"username":  true,
}

// rawTextTags are the elements whose content the tokenizer returns as one unparsed text token.
// Their content is dropped with the tag, otherwise markup inside them would survive as text.
var rawTextTags = map[atom.Atom]bool{
	atom.Iframe:    true,
	atom.Noembed:   true,
	atom.Noframes:  true,
	atom.Noscript:  true,
	atom.Plaintext: true,
	atom.Script:    true,
	atom.Style:     true,
	atom.Textarea:  true,
	atom.Title:     true,
	atom.Xmp:       true,
}

// StripTags deletes HTML tags from s. The content of raw text elements such as script,
// title or textarea goes with their tags; entities in the remaining text are left as written.
func StripTags(s string) string {
	if !strings.Contains(s, "<") {
		return s
	}

	var (
		out      strings.Builder
		skipping bool
	)

	tokenizer := html.NewTokenizer(strings.NewReader(s))

	for {
		switch tokenizer.Next() {
		case html.ErrorToken:
			return strings.TrimSpace(out.String())
		case html.TextToken:
			if !skipping {
				out.Write(tokenizer.Raw())
			}
		case html.StartTagToken, html.SelfClosingTagToken:
			// <title/> still switches the tokenizer to raw text.
			if isRawTextTag(tokenizer) {
				skipping = true
			}
		case html.EndTagToken:
			if isRawTextTag(tokenizer) {
				skipping = false
			}
		}
	}
}

func isRawTextTag(tokenizer *html.Tokenizer) bool {
	name, _ := tokenizer.TagName()

	return rawTextTags[atom.Lookup(name)]
}

// sanitizeValue strips tags from every string and drops secret keys, recursing through maps and arrays.
func sanitizeValue(value any) any {
	switch v := value.(type) {
	case string:
		return StripTags(v)
	case map[string]any:
		for key, child := range v {
			if secretKeys[key] {
				delete(v, key)

				continue
			}

			v[key] = sanitizeValue(child)
		}

		return v
	case []any:
		for i, child := range v {
			v[i] = sanitizeValue(child)
		}

		return v
	default:
		return v
	}
}

// sanitizeDocument cleans the user-visible strings of a decoded payload in place.
func sanitizeDocument(doc map[string]any) {
	for _, key := range []string{"name", "description", "growth_stage"} {
		if text, ok := doc[key].(string); ok {
			doc[key] = StripTags(text)
		}
	}

	nodes, _ := doc["nodes"].([]any)
	for _, item := range nodes {
		node, ok := item.(map[string]any)
		if !ok {
			continue
		}

		data, ok := node["data"].(map[string]any)
		if !ok {
			continue
		}

		if label, ok := data["label"].(string); ok {
			data["label"] = StripTags(label)
		}

		if config, ok := data["config"].(map[string]any); ok {
			data["config"] = sanitizeValue(config)
		}
	}
}
