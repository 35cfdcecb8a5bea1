package download

import (
	"sort"
	"strconv"
	"strings"
)

// Options holds daemon options of one scope.
// Lookups that miss fall back to the parent scope, so per download options fall back to global ones.
// An unset option is an absent key.
type Options struct {
	values map[string]string
	parent *Options
}

// NewOptions copies m. Names are normalized so "max_tries" and "max-tries" are the same option.
func NewOptions(m map[string]string) *Options {
	o := &Options{values: make(map[string]string, len(m))}
	for k, v := range m {
		o.values[normalizeOption(k)] = v
	}
	return o
}

// WithFallback returns a copy of o whose lookups fall back to global.
func (o *Options) WithFallback(global *Options) *Options {
	if o == nil {
		return global
	}
	return &Options{values: o.values, parent: global}
}

func normalizeOption(name string) string {
	return strings.ReplaceAll(name, "_", "-")
}

// Get returns the value of the option and whether it is set in any scope.
func (o *Options) Get(name string) (string, bool) {
	name = normalizeOption(name)
	for s := o; s != nil; s = s.parent {
		if v, ok := s.values[name]; ok {
			return v, true
		}
	}
	return "", false
}

// String returns the value of the option or an empty string.
func (o *Options) String(name string) string {
	v, _ := o.Get(name)
	return v
}

// Bool parses the daemon's "true" and "false" values.
func (o *Options) Bool(name string) (value, ok bool) {
	v, ok := o.Get(name)
	if !ok {
		return false, false
	}
	switch v {
	case "true":
		return true, true
	case "false":
		return false, true
	}
	return false, false
}

// Int parses numeric options. Size suffixes like "1M" are not interpreted.
func (o *Options) Int(name string) (int64, bool) {
	v, ok := o.Get(name)
	if !ok {
		return 0, false
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return 0, false
	}
	return n, true
}

// Map returns the options set in this scope only.
func (o *Options) Map() map[string]string {
	m := make(map[string]string)
	if o == nil {
		return m
	}
	for k, v := range o.values {
		m[k] = v
	}
	return m
}

// Names returns the sorted names of options set in this scope.
func (o *Options) Names() []string {
	if o == nil {
		return nil
	}
	names := make([]string, 0, len(o.values))
	for k := range o.values {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}
