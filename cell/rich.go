package cell

import "github.com/arloliu/kvcore/format"

// Object is a container built outside this package and owned by a cell.
type Object interface {
	// Size returns the number of elements.
	Size() int
	// Encoding returns the container's current internal representation.
	Encoding() format.RichEncoding
	// MallocUsed returns the bytes the container holds.
	MallocUsed() int
}

// richHandle boxes the Object of a rich cell.
type richHandle struct {
	obj Object
}

// Releaser is implemented by objects that must free resources when a cell
// drops them.
type Releaser interface {
	Release()
}

// ImportRich makes the cell the owner of obj, releasing the previous
// payload. The cell's flags are kept.
func (c *Cell) ImportRich(env *Env, obj Object, typ format.ObjType) {
	old := c.detach()
	c.buf = [MaxInlineLen]byte{}
	c.tag = format.EncodingRich
	c.n = uint8(typ)
	c.aux = uint8(obj.Encoding())
	c.rich = &richHandle{obj: obj}
	env.release(old)
}

// AsRich returns the owned container of a rich cell.
func (c *Cell) AsRich() (Object, bool) {
	if c.tag != format.EncodingRich {
		return nil, false
	}

	return c.rich.obj, true
}

// RichEncoding returns the container encoding cached at import or at the
// last SyncRich.
func (c *Cell) RichEncoding() format.RichEncoding {
	if c.tag != format.EncodingRich {
		return format.RichEncodingUnknown
	}

	return format.RichEncoding(c.aux)
}

// SyncRich refreshes the cached encoding after the container converted its
// internal representation.
func (c *Cell) SyncRich() {
	if c.tag == format.EncodingRich {
		c.aux = uint8(c.rich.obj.Encoding())
	}
}
