package cart

import (
	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
)

// ErrMalformed is returned by Unmarshal for payloads that are not a valid
// cart document.
var ErrMalformed = errors.New("malformed cart payload")

// Marshal encodes s as {"items":{"<id>":<qty>,...}}, keeping insertion order.
func Marshal(s State) []byte {
	var e jx.Encoder
	e.ObjStart()
	e.FieldStart("items")
	e.ObjStart()
	for _, id := range s.ids {
		e.FieldStart(id)
		e.Int(s.items[id])
	}
	e.ObjEnd()
	e.ObjEnd()
	return e.Bytes()
}

// Unmarshal decodes a payload written by Marshal. Entries with a quantity of
// 0 or less are dropped so the decoded State keeps its invariant. Unknown
// top-level fields are ignored.
func Unmarshal(data []byte) (State, error) {
	var (
		ids   []string
		qty   = make(map[string]int)
		found bool
	)
	d := jx.DecodeBytes(data)
	if d.Next() != jx.Object {
		return State{}, ErrMalformed
	}
	if err := d.Obj(func(d *jx.Decoder, key string) error {
		if key != "items" {
			return d.Skip()
		}
		found = true
		return d.Obj(func(d *jx.Decoder, id string) error {
			n, err := d.Int()
			if err != nil {
				return errors.Wrapf(err, "quantity of %q", id)
			}
			if _, dup := qty[id]; !dup {
				ids = append(ids, id)
			}
			qty[id] = n
			return nil
		})
	}); err != nil {
		return State{}, errors.Errorf("%w: %w", ErrMalformed, err)
	}
	if !found {
		return State{}, ErrMalformed
	}
	return FromItems(ids, qty), nil
}
