package manifest

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"slices"
)

// EntrypointsKey is the top level key holding the per entry point breakdown.
const EntrypointsKey = "entrypoints"

var (
	// ErrInvalidManifest indicates the manifest document could not be decoded
	ErrInvalidManifest = errors.New("invalid manifest")
	// ErrEntrypointNotFound indicates the entry point is not present in the manifest
	ErrEntrypointNotFound = errors.New("entrypoint not found in manifest")
)

// FileDescriptor is one compiled output artifact emitted by the bundler.
type FileDescriptor struct {
	// Logical name used for direct lookups, e.g. "application.js"
	Name string
	// Public path the artifact is served from, e.g. "/packs/js/application-abc123.js"
	Path string
}

// EntrypointFiles is the ordered list of raw output files produced for one entry point.
// Files are relative to the output directory.
type EntrypointFiles struct {
	Name  string
	Files []string
}

type Assets struct {
	JS  []string `json:"js"`
	CSS []string `json:"css"`
}

type Entrypoint struct {
	Assets Assets `json:"assets"`
}

// Manifest maps logical asset names to public paths and entry point names to
// their script and style URLs. Insertion order is kept for encoding, lookups
// are by name. The zero value is an empty manifest ready to use.
type Manifest struct {
	names       []string
	values      map[string]any
	entryNames  []string
	entrypoints map[string]Entrypoint
}

// New returns an empty manifest.
func New() *Manifest {
	return &Manifest{
		values:      map[string]any{},
		entrypoints: map[string]Entrypoint{},
	}
}

// Clone returns a deep copy, the receiver is left untouched.
func (m *Manifest) Clone() *Manifest {
	c := New()
	if m == nil {
		return c
	}

	c.names = slices.Clone(m.names)
	for k, v := range m.values {
		c.values[k] = v
	}
	c.entryNames = slices.Clone(m.entryNames)
	for k, ep := range m.entrypoints {
		c.entrypoints[k] = Entrypoint{Assets: Assets{
			JS:  slices.Clone(ep.Assets.JS),
			CSS: slices.Clone(ep.Assets.CSS),
		}}
	}

	return c
}

// Set assigns a logical name to a public path, replacing any existing value.
func (m *Manifest) Set(name, path string) {
	m.set(name, path)
}

func (m *Manifest) set(name string, value any) {
	if m.values == nil {
		m.values = map[string]any{}
	}
	if _, ok := m.values[name]; !ok {
		m.names = append(m.names, name)
	}
	m.values[name] = value
}

// Lookup returns the public path registered for a logical asset name.
func (m *Manifest) Lookup(name string) (string, bool) {
	v, ok := m.values[name]
	if !ok {
		return "", false
	}

	s, ok := v.(string)
	return s, ok
}

// Names returns the logical asset names in insertion order.
func (m *Manifest) Names() []string {
	return slices.Clone(m.names)
}

// SetEntrypoints replaces the entry point breakdown.
func (m *Manifest) SetEntrypoints(names []string, entrypoints map[string]Entrypoint) {
	m.entryNames = slices.Clone(names)
	m.entrypoints = make(map[string]Entrypoint, len(entrypoints))
	for k, v := range entrypoints {
		m.entrypoints[k] = v
	}
}

// Entrypoint returns the assets for the named entry point.
func (m *Manifest) Entrypoint(name string) (Entrypoint, error) {
	ep, ok := m.entrypoints[name]
	if !ok {
		return Entrypoint{}, fmt.Errorf("%w: %s", ErrEntrypointNotFound, name)
	}
	return ep, nil
}

// Entrypoints returns the entry point names in insertion order.
func (m *Manifest) Entrypoints() []string {
	return slices.Clone(m.entryNames)
}

// MarshalJSON writes asset names in insertion order followed by the entrypoints key.
func (m *Manifest) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer

	buf.WriteByte('{')
	first := true
	writeKey := func(key string) error {
		if !first {
			buf.WriteByte(',')
		}
		first = false
		k, err := json.Marshal(key)
		if err != nil {
			return err
		}
		buf.Write(k)
		buf.WriteByte(':')
		return nil
	}

	for _, name := range m.names {
		if name == EntrypointsKey {
			continue
		}
		if err := writeKey(name); err != nil {
			return nil, err
		}
		v, err := json.Marshal(m.values[name])
		if err != nil {
			return nil, fmt.Errorf("failed to encode %s: %w", name, err)
		}
		buf.Write(v)
	}

	if err := writeKey(EntrypointsKey); err != nil {
		return nil, err
	}
	buf.WriteByte('{')
	for i, name := range m.entryNames {
		if i > 0 {
			buf.WriteByte(',')
		}
		k, err := json.Marshal(name)
		if err != nil {
			return nil, err
		}
		buf.Write(k)
		buf.WriteByte(':')
		v, err := json.Marshal(normalize(m.entrypoints[name]))
		if err != nil {
			return nil, fmt.Errorf("failed to encode entrypoint %s: %w", name, err)
		}
		buf.Write(v)
	}
	buf.WriteString("}}")

	return buf.Bytes(), nil
}

// Encode returns the indented JSON document written to disk.
func (m *Manifest) Encode() ([]byte, error) {
	raw, err := m.MarshalJSON()
	if err != nil {
		return nil, err
	}

	var out bytes.Buffer
	if err := json.Indent(&out, raw, "", "  "); err != nil {
		return nil, err
	}
	out.WriteByte('\n')

	return out.Bytes(), nil
}

// UnmarshalJSON decodes a manifest document keeping key order.
func (m *Manifest) UnmarshalJSON(data []byte) error {
	parsed, err := Parse(data)
	if err != nil {
		return err
	}
	*m = *parsed
	return nil
}

// Parse decodes a manifest document.
func Parse(data []byte) (*Manifest, error) {
	m := New()

	dec := json.NewDecoder(bytes.NewReader(data))
	tok, err := dec.Token()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidManifest, err)
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return nil, fmt.Errorf("%w: expected object", ErrInvalidManifest)
	}

	for dec.More() {
		key, err := readKey(dec)
		if err != nil {
			return nil, err
		}

		if key == EntrypointsKey {
			if err := m.decodeEntrypoints(dec); err != nil {
				return nil, err
			}
			continue
		}

		var raw json.RawMessage
		if err := dec.Decode(&raw); err != nil {
			return nil, fmt.Errorf("%w: %s: %v", ErrInvalidManifest, key, err)
		}

		var s string
		if err := json.Unmarshal(raw, &s); err == nil {
			m.set(key, s)
		} else {
			m.set(key, raw)
		}
	}

	return m, nil
}

func (m *Manifest) decodeEntrypoints(dec *json.Decoder) error {
	tok, err := dec.Token()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidManifest, err)
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return fmt.Errorf("%w: entrypoints must be an object", ErrInvalidManifest)
	}

	for dec.More() {
		name, err := readKey(dec)
		if err != nil {
			return err
		}

		var ep Entrypoint
		if err := dec.Decode(&ep); err != nil {
			return fmt.Errorf("%w: entrypoint %s: %v", ErrInvalidManifest, name, err)
		}

		if _, ok := m.entrypoints[name]; !ok {
			m.entryNames = append(m.entryNames, name)
		}
		m.entrypoints[name] = normalize(ep)
	}

	// closing brace
	if _, err := dec.Token(); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidManifest, err)
	}

	return nil
}

func readKey(dec *json.Decoder) (string, error) {
	tok, err := dec.Token()
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidManifest, err)
	}
	key, ok := tok.(string)
	if !ok {
		return "", fmt.Errorf("%w: expected key", ErrInvalidManifest)
	}
	return key, nil
}

// Read loads the manifest at path.
func Read(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return Parse(data)
}

// ReadSeed loads the manifest at path for use as a seed, a missing file
// yields an empty manifest.
func ReadSeed(path string) (*Manifest, error) {
	m, err := Read(path)
	if errors.Is(err, fs.ErrNotExist) {
		return New(), nil
	}
	return m, err
}

func normalize(ep Entrypoint) Entrypoint {
	if ep.Assets.JS == nil {
		ep.Assets.JS = []string{}
	}
	if ep.Assets.CSS == nil {
		ep.Assets.CSS = []string{}
	}
	return ep
}
