package domain

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

const DefaultSizeKey = "us"

type SizeSpec struct {
	Key    string `json:"key"`
	Name   string `json:"name"`
	Width  int    `json:"width"`
	Height int    `json:"height"`
}

func (s SizeSpec) IsZero() bool {
	return s.Key == ""
}

// Catalog is an ordered set of sizes with unique keys. On the wire it is a
// JSON object of key -> {name, width, height}; decoding keeps the order the
// server sent so the first entry is well defined.
type Catalog []SizeSpec

func FallbackCatalog() Catalog {
	return Catalog{
		{Key: "us", Name: "US (2x2 inches)", Width: 600, Height: 600},
		{Key: "eu", Name: "EU/UK/Pakistan (35x45 mm)", Width: 413, Height: 531},
		{Key: "india", Name: "India (51x51 mm)", Width: 602, Height: 602},
	}
}

func (c Catalog) Lookup(key string) (SizeSpec, bool) {
	key = strings.TrimSpace(key)
	for _, s := range c {
		if s.Key == key {
			return s, true
		}
	}
	return SizeSpec{}, false
}

func (c Catalog) First() (SizeSpec, bool) {
	if len(c) == 0 {
		return SizeSpec{}, false
	}
	return c[0], true
}

func (c Catalog) Keys() []string {
	keys := make([]string, 0, len(c))
	for _, s := range c {
		keys = append(keys, s.Key)
	}
	return keys
}

func (c Catalog) Validate() error {
	seen := make(map[string]struct{}, len(c))
	for i, s := range c {
		if strings.TrimSpace(s.Key) == "" {
			return fmt.Errorf("sizes[%d].key is required", i)
		}
		if _, dup := seen[s.Key]; dup {
			return fmt.Errorf("duplicate size key: %s", s.Key)
		}
		seen[s.Key] = struct{}{}
		if s.Width <= 0 || s.Height <= 0 {
			return fmt.Errorf("size %s must have positive dimensions", s.Key)
		}
	}
	return nil
}

type wireSize struct {
	Name   string `json:"name"`
	Width  int    `json:"width"`
	Height int    `json:"height"`
}

func (c Catalog) MarshalJSON() ([]byte, error) {
	if c == nil {
		return []byte("null"), nil
	}
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, s := range c {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(s.Key)
		if err != nil {
			return nil, err
		}
		val, err := json.Marshal(wireSize{Name: s.Name, Width: s.Width, Height: s.Height})
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')
		buf.Write(val)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

func (c *Catalog) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	tok, err := dec.Token()
	if err != nil {
		return fmt.Errorf("decode size catalog: %w", err)
	}
	if tok == nil {
		*c = nil
		return nil
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return errors.New("decode size catalog: expected JSON object")
	}

	out := Catalog{}
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return fmt.Errorf("decode size catalog key: %w", err)
		}
		key, ok := keyTok.(string)
		if !ok {
			return errors.New("decode size catalog: non-string key")
		}
		var ws wireSize
		if err := dec.Decode(&ws); err != nil {
			return fmt.Errorf("decode size %s: %w", key, err)
		}
		out = append(out, SizeSpec{Key: key, Name: ws.Name, Width: ws.Width, Height: ws.Height})
	}
	if _, err := dec.Token(); err != nil {
		return fmt.Errorf("decode size catalog: %w", err)
	}

	*c = out
	return nil
}
