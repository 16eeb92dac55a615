package domain

import (
	"fmt"
	"time"
)

// PropertyKind tags the value encoding of a property entry.
type PropertyKind string

const (
	// PropertyKindString marks a plain string value.
	PropertyKindString PropertyKind = "string"
	// PropertyKindTime marks an RFC 3339 timestamp value.
	PropertyKindTime PropertyKind = "time"
)

// PropertyLastUpdateTime is the property key holding the token's last update
// timestamp.
const PropertyLastUpdateTime = "LastUpdateTime"

// Property is one typed key/value entry in a token's property map.
type Property struct {
	Key   string
	Kind  PropertyKind
	Value string
}

// Properties is an extensible, ordered property map scoped to one token. It
// lives and dies with the token: burn removes all entries.
type Properties []Property

// Set upserts a string property, preserving entry order on update.
func (p Properties) Set(key, value string) Properties {
	return p.set(Property{Key: key, Kind: PropertyKindString, Value: value})
}

// SetTime upserts a time property encoded as RFC 3339 with nanoseconds.
func (p Properties) SetTime(key string, value time.Time) Properties {
	return p.set(Property{Key: key, Kind: PropertyKindTime, Value: value.UTC().Format(time.RFC3339Nano)})
}

func (p Properties) set(entry Property) Properties {
	for i := range p {
		if p[i].Key == entry.Key {
			out := make(Properties, len(p))
			copy(out, p)
			out[i] = entry
			return out
		}
	}
	out := make(Properties, len(p), len(p)+1)
	copy(out, p)
	return append(out, entry)
}

// Get returns the entry for key.
func (p Properties) Get(key string) (Property, bool) {
	for _, entry := range p {
		if entry.Key == key {
			return entry, true
		}
	}
	return Property{}, false
}

// Time decodes a time-kind property value.
func (p Properties) Time(key string) (time.Time, error) {
	entry, ok := p.Get(key)
	if !ok {
		return time.Time{}, fmt.Errorf("property %q is not set", key)
	}
	if entry.Kind != PropertyKindTime {
		return time.Time{}, fmt.Errorf("property %q is %s, not time", key, entry.Kind)
	}
	value, err := time.Parse(time.RFC3339Nano, entry.Value)
	if err != nil {
		return time.Time{}, fmt.Errorf("decode property %q: %w", key, err)
	}
	return value, nil
}
