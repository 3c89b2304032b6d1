// Package registry keeps the labelled set of channels the bot manages and the
// default channel selection. The whole registry is persisted as one document
// and rewritten on every mutation.
package registry

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/vovakirdan/voiceaccess/internal/platform"
)

var (
	// ErrDuplicateLabel is returned when adding a label that already exists.
	ErrDuplicateLabel = errors.New("label already exists")
	// ErrNotFound is returned when a label is not registered.
	ErrNotFound = errors.New("label not found")
	// ErrInvalidLabel is returned for empty labels.
	ErrInvalidLabel = errors.New("label must not be empty")
)

// Kind tells how a channel was registered.
type Kind string

const (
	KindPublic  Kind = "public"
	KindPrivate Kind = "private"
)

// Entry is one registered channel.
type Entry struct {
	Label      string `json:"-"`
	ID         int64  `json:"id"`
	AccessHash int64  `json:"hash"`
	Kind       Kind   `json:"kind,omitempty"`
	Username   string `json:"username,omitempty"`
}

// Ref returns the platform reference of the channel.
func (e Entry) Ref() platform.ChannelRef {
	return platform.ChannelRef{ID: e.ID, AccessHash: e.AccessHash}
}

// Registry is an insertion-ordered label → entry mapping plus an optional
// default label. The default, when set, always names a live entry.
type Registry struct {
	entries      []Entry
	defaultLabel string
}

// New returns an empty registry.
func New() *Registry {
	return &Registry{}
}

// Len returns the number of entries.
func (r *Registry) Len() int {
	return len(r.entries)
}

// Entries returns a copy of the entries in insertion order.
func (r *Registry) Entries() []Entry {
	return append([]Entry(nil), r.entries...)
}

// Labels returns entry labels in insertion order.
func (r *Registry) Labels() []string {
	labels := make([]string, len(r.entries))
	for i, e := range r.entries {
		labels[i] = e.Label
	}
	return labels
}

// Lookup returns the entry registered under label.
func (r *Registry) Lookup(label string) (Entry, bool) {
	label = NormalizeLabel(label)
	if i := r.index(label); i >= 0 {
		return r.entries[i], true
	}
	return Entry{}, false
}

// DefaultLabel returns the default label or "" when none is set.
func (r *Registry) DefaultLabel() string {
	return r.defaultLabel
}

// Default returns the default entry, if any.
func (r *Registry) Default() (Entry, bool) {
	if r.defaultLabel == "" {
		return Entry{}, false
	}
	return r.Lookup(r.defaultLabel)
}

// Add registers e under e.Label. Existing labels are never overwritten.
func (r *Registry) Add(e Entry) error {
	e.Label = NormalizeLabel(e.Label)
	if e.Label == "" {
		return ErrInvalidLabel
	}
	if r.index(e.Label) >= 0 {
		return fmt.Errorf("add %q: %w", e.Label, ErrDuplicateLabel)
	}
	r.entries = append(r.entries, e)
	return nil
}

// Remove deletes label and clears the default if it pointed at it.
func (r *Registry) Remove(label string) error {
	label = NormalizeLabel(label)
	i := r.index(label)
	if i < 0 {
		return fmt.Errorf("remove %q: %w", label, ErrNotFound)
	}
	r.entries = append(r.entries[:i], r.entries[i+1:]...)
	if r.defaultLabel == label {
		r.defaultLabel = ""
	}
	return nil
}

// SetDefault selects label as the default channel.
func (r *Registry) SetDefault(label string) error {
	label = NormalizeLabel(label)
	if r.index(label) < 0 {
		return fmt.Errorf("set default %q: %w", label, ErrNotFound)
	}
	r.defaultLabel = label
	return nil
}

// Clone returns a deep copy of r.
func (r *Registry) Clone() *Registry {
	return &Registry{entries: r.Entries(), defaultLabel: r.defaultLabel}
}

// NormalizeLabel returns label in the form the registry stores and matches.
func NormalizeLabel(label string) string {
	return strings.TrimSpace(label)
}

func (r *Registry) index(label string) int {
	for i, e := range r.entries {
		if e.Label == label {
			return i
		}
	}
	return -1
}

// MarshalJSON writes {"channels": {label: entry, ...}, "default": label|null}
// keeping insertion order of the channels object.
func (r *Registry) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteString(`{"channels":{`)
	for i, e := range r.entries {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(e.Label)
		if err != nil {
			return nil, err
		}
		val, err := json.Marshal(e)
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')
		buf.Write(val)
	}
	buf.WriteString(`},"default":`)
	if r.defaultLabel == "" {
		buf.WriteString("null")
	} else {
		def, err := json.Marshal(r.defaultLabel)
		if err != nil {
			return nil, err
		}
		buf.Write(def)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON reads the document written by MarshalJSON. A default that
// does not reference a decoded entry is dropped.
func (r *Registry) UnmarshalJSON(data []byte) error {
	var doc struct {
		Channels json.RawMessage `json:"channels"`
		Default  *string         `json:"default"`
	}
	if err := json.Unmarshal(data, &doc); err != nil {
		return err
	}

	out := Registry{}
	if len(doc.Channels) > 0 && !bytes.Equal(doc.Channels, []byte("null")) {
		dec := json.NewDecoder(bytes.NewReader(doc.Channels))
		tok, err := dec.Token()
		if err != nil {
			return err
		}
		if d, ok := tok.(json.Delim); !ok || d != '{' {
			return errors.New("channels: expected object")
		}
		for dec.More() {
			tok, err := dec.Token()
			if err != nil {
				return err
			}
			label, _ := tok.(string)
			label = NormalizeLabel(label)
			var e Entry
			if err := dec.Decode(&e); err != nil {
				return fmt.Errorf("channel %q: %w", label, err)
			}
			e.Label = label
			if e.Kind == "" {
				e.Kind = KindPrivate
				if e.Username != "" {
					e.Kind = KindPublic
				}
			}
			if i := out.index(label); i >= 0 {
				out.entries[i] = e
				continue
			}
			out.entries = append(out.entries, e)
		}
	}
	if doc.Default != nil {
		if def := NormalizeLabel(*doc.Default); out.index(def) >= 0 {
			out.defaultLabel = def
		}
	}

	*r = out
	return nil
}
