package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeKey(t *testing.T) {
	assert.Equal(t, "connected_clients", NormalizeKey("  Connected Clients "))
	assert.Equal(t, "gzurl0", NormalizeKey("GZURL0"))
}

func TestDescriptor_Accumulates(t *testing.T) {
	d := NewDescriptor()
	d.Add("gzurl0", "http://a")
	d.Add("GZURL0", "http://b")
	d.Add("msg0", "hello")

	assert.Equal(t, []string{"http://a", "http://b"}, d.Values("gzurl0"))
	assert.True(t, d.Has("msg0"))
	assert.False(t, d.Has("url0"))
	assert.Equal(t, []string{"gzurl0", "msg0"}, d.Keys())

	// Values returns a copy
	vals := d.Values("gzurl0")
	vals[0] = "changed"
	assert.Equal(t, "http://a", d.Values("gzurl0")[0])
}

func TestGeneral_RenamesCollisions(t *testing.T) {
	g := NewGeneral()

	assert.Equal(t, "version", g.Set("VERSION", "8"))
	assert.Equal(t, "version_", g.Set("version", "9"))
	assert.Equal(t, "version__", g.Set("Version", "10"))
	assert.Equal(t, "connected_clients", g.Set("Connected Clients", "42"))

	v, ok := g.Get("version")
	assert.True(t, ok)
	assert.Equal(t, "8", v)
	v, _ = g.Get("version_")
	assert.Equal(t, "9", v)
	assert.Equal(t, 4, g.Len())
	assert.Equal(t, "42", g.Map()["connected_clients"])
}
