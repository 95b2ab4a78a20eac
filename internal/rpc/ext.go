package rpc

import (
	"fmt"
	"reflect"

	"github.com/vmihailenco/msgpack/v5"
)

// Editor object handles. They travel as msgpack ext values whose payload is
// a msgpack-encoded integer.
type (
	// Buffer is a buffer handle (ext type 0).
	Buffer int64
	// Window is a window handle (ext type 1).
	Window int64
	// Tabpage is a tabpage handle (ext type 2).
	Tabpage int64
)

const (
	extBuffer  int8 = 0
	extWindow  int8 = 1
	extTabpage int8 = 2
)

func init() {
	registerHandle(extBuffer, Buffer(0))
	registerHandle(extWindow, Window(0))
	registerHandle(extTabpage, Tabpage(0))
}

// registerHandle registers an int64-kinded handle type by value so that
// handles decode as plain values and encode without needing an address.
func registerHandle(id int8, zero any) {
	msgpack.RegisterExtEncoder(id, zero, func(_ *msgpack.Encoder, v reflect.Value) ([]byte, error) {
		return msgpack.Marshal(v.Int())
	})
	msgpack.RegisterExtDecoder(id, zero, func(d *msgpack.Decoder, v reflect.Value, extLen int) error {
		b := make([]byte, extLen)
		if err := d.ReadFull(b); err != nil {
			return err
		}
		var n int64
		if err := msgpack.Unmarshal(b, &n); err != nil {
			return fmt.Errorf("decode ext %d handle: %w", id, err)
		}
		v.SetInt(n)
		return nil
	})
}

func (b Buffer) String() string  { return fmt.Sprintf("Buffer(%d)", int64(b)) }
func (w Window) String() string  { return fmt.Sprintf("Window(%d)", int64(w)) }
func (t Tabpage) String() string { return fmt.Sprintf("Tabpage(%d)", int64(t)) }
