package domain

import (
	"fmt"
	"net/url"
	"path"
	"sort"
	"strings"
)

// FlattenOutput reduces a raw job output value to an ordered sequence of
// artifacts. Sequences contribute leaves in index order, mappings in
// sorted key order so the result is stable across runs. Leaves that are
// not strings (numbers, booleans, null) contribute nothing.
func FlattenOutput(raw any) []OutputArtifact {
	var arts []OutputArtifact
	flatten(raw, "", &arts)
	return arts
}

func flatten(v any, hint string, arts *[]OutputArtifact) {
	switch val := v.(type) {
	case string:
		if val == "" {
			return
		}
		*arts = append(*arts, OutputArtifact{
			SourceURL: val,
			Name:      ArtifactName(val, hint, len(*arts)),
		})
	case []any:
		for _, item := range val {
			flatten(item, hint, arts)
		}
	case map[string]any:
		keys := make([]string, 0, len(val))
		for k := range val {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			flatten(val[k], k, arts)
		}
	}
}

// ArtifactName derives a bundle filename for the artifact at the given
// position: the sanitized basename of the URL path, or a positional
// fallback built from the traversal hint when nothing usable remains.
func ArtifactName(rawURL, hint string, pos int) string {
	base := ""
	if u, err := url.Parse(rawURL); err == nil {
		base = path.Base(u.Path)
	}
	if base == "." || base == "/" {
		base = ""
	}
	name := SanitizeName(base)
	if strings.Trim(name, "._-") != "" {
		return name
	}
	if hint = SanitizeName(hint); hint == "" {
		hint = "stem"
	}
	ext := path.Ext(base)
	if ext == "" {
		ext = ".bin"
	}
	return fmt.Sprintf("%s-%d%s", hint, pos+1, ext)
}

// SanitizeName collapses every character outside [A-Za-z0-9._-] to an
// underscore. Applying it twice yields the same result as applying it once.
func SanitizeName(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == '.', r == '-', r == '_':
			b.WriteRune(r)
		default:
			b.WriteByte('_')
		}
	}
	return b.String()
}

// IsArchiveName reports whether the URL path looks like a zip archive.
func IsArchiveName(rawURL string) bool {
	u, err := url.Parse(rawURL)
	if err != nil {
		return strings.HasSuffix(strings.ToLower(rawURL), ".zip")
	}
	return strings.HasSuffix(strings.ToLower(u.Path), ".zip")
}

// IsArchiveContentType reports whether the content type announces a zip.
func IsArchiveContentType(ct string) bool {
	ct = strings.ToLower(strings.TrimSpace(ct))
	return strings.HasPrefix(ct, "application/zip") ||
		strings.HasPrefix(ct, "application/x-zip-compressed")
}
