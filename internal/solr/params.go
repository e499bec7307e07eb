package solr

import (
	"net/url"
	"strings"
)

// ParamBag holds multi-valued Solr request parameters in insertion order.
type ParamBag struct {
	names  []string
	values map[string][]string
}

// NewParamBag returns an empty bag.
func NewParamBag() *ParamBag {
	return &ParamBag{values: make(map[string][]string)}
}

// Set replaces all values of name.
func (p *ParamBag) Set(name string, values ...string) {
	if _, ok := p.values[name]; !ok {
		p.names = append(p.names, name)
	}
	p.values[name] = append([]string(nil), values...)
}

// Add appends a value to name.
func (p *ParamBag) Add(name, value string) {
	if _, ok := p.values[name]; !ok {
		p.names = append(p.names, name)
	}
	p.values[name] = append(p.values[name], value)
}

// Get returns the values of name, or nil.
func (p *ParamBag) Get(name string) []string {
	return p.values[name]
}

// First returns the first value of name, or "".
func (p *ParamBag) First(name string) string {
	if v := p.values[name]; len(v) > 0 {
		return v[0]
	}
	return ""
}

// Has reports whether name is set.
func (p *ParamBag) Has(name string) bool {
	_, ok := p.values[name]
	return ok
}

// Remove deletes name.
func (p *ParamBag) Remove(name string) {
	if _, ok := p.values[name]; !ok {
		return
	}
	delete(p.values, name)
	for i, n := range p.names {
		if n == name {
			p.names = append(p.names[:i], p.names[i+1:]...)
			break
		}
	}
}

// Names returns parameter names in insertion order.
func (p *ParamBag) Names() []string {
	return append([]string(nil), p.names...)
}

// Values copies the bag into url.Values.
func (p *ParamBag) Values() url.Values {
	v := make(url.Values, len(p.names))
	for _, name := range p.names {
		v[name] = append([]string(nil), p.values[name]...)
	}
	return v
}

// Encode renders the bag as a query string, keeping insertion order.
func (p *ParamBag) Encode() string {
	var b strings.Builder
	for _, name := range p.names {
		for _, value := range p.values[name] {
			if b.Len() > 0 {
				b.WriteByte('&')
			}
			b.WriteString(url.QueryEscape(name))
			b.WriteByte('=')
			b.WriteString(url.QueryEscape(value))
		}
	}
	return b.String()
}
