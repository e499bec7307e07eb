package solr

import (
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParamBag(t *testing.T) {
	p := NewParamBag()
	assert.False(t, p.Has("q"))
	assert.Nil(t, p.Get("q"))
	assert.Equal(t, "", p.First("q"))

	p.Set("q", "title:foo")
	p.Add("fq", "format:Book")
	p.Add("fq", "language:English")
	p.Set("qt", "dismax")

	assert.True(t, p.Has("q"))
	assert.Equal(t, "title:foo", p.First("q"))
	assert.Equal(t, []string{"format:Book", "language:English"}, p.Get("fq"))
	assert.Equal(t, []string{"q", "fq", "qt"}, p.Names())

	p.Set("fq", "format:Map")
	assert.Equal(t, []string{"format:Map"}, p.Get("fq"))
	assert.Equal(t, []string{"q", "fq", "qt"}, p.Names(), "Set keeps the original position")

	p.Remove("fq")
	p.Remove("missing")
	assert.False(t, p.Has("fq"))
	assert.Equal(t, []string{"q", "qt"}, p.Names())
}

func TestParamBag_Encode(t *testing.T) {
	p := NewParamBag()
	p.Set("q", `title:"a b"`)
	p.Add("fq", "x:1")
	p.Add("fq", "y:2&z")

	assert.Equal(t, "q=title%3A%22a+b%22&fq=x%3A1&fq=y%3A2%26z", p.Encode())
	assert.Equal(t, url.Values{
		"q":  {`title:"a b"`},
		"fq": {"x:1", "y:2&z"},
	}, p.Values())
}

func TestParamBag_SetCopiesValues(t *testing.T) {
	values := []string{"a", "b"}
	p := NewParamBag()
	p.Set("fl", values...)
	values[0] = "changed"
	assert.Equal(t, []string{"a", "b"}, p.Get("fl"))
}
