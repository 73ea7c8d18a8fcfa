package types

import (
	"encoding/json"
	"time"

	"github.com/juju/errors"
	"github.com/spf13/cast"
)

type Data map[string]any

func (d *Data) Get(key string) (any, bool) {
	if *d == nil {
		return nil, false
	}
	v, exists := (*d)[key]
	return v, exists
}

func (d *Data) GetString(key string) (string, bool) {
	v, exists := d.Get(key)
	return cast.ToString(v), exists
}

func (d *Data) GetInt(key string) (int, bool) {
	v, exists := d.Get(key)
	return cast.ToInt(v), exists
}

func (d *Data) GetBool(key string) (bool, bool) {
	v, exists := d.Get(key)
	return cast.ToBool(v), exists
}

func (d *Data) GetFloat64(key string) (float64, bool) {
	v, exists := d.Get(key)
	return cast.ToFloat64(v), exists
}

// GetDuration accepts either a duration string ("1.5s") or a number of milliseconds.
func (d *Data) GetDuration(key string) (time.Duration, bool) {
	v, exists := d.Get(key)
	if !exists {
		return 0, false
	}
	if s, ok := v.(string); ok {
		dur, err := cast.ToDurationE(s)
		return dur, err == nil
	}
	ms, err := cast.ToInt64E(v)
	if err != nil {
		return 0, false
	}
	return time.Duration(ms) * time.Millisecond, true
}

// GetData returns a nested object, converting plain maps when needed.
func (d *Data) GetData(key string) (Data, bool) {
	v, exists := d.Get(key)
	if !exists {
		return nil, false
	}
	switch m := v.(type) {
	case Data:
		return m, true
	case map[string]any:
		return Data(m), true
	}
	m, err := cast.ToStringMapE(v)
	if err != nil {
		return nil, false
	}
	return Data(m), true
}

func (d *Data) GetStruct(key string, s any) error {
	v, exists := d.Get(key)
	if !exists {
		return errors.NotFoundf("key %s", key)
	}
	b, err := json.Marshal(v)
	if err != nil {
		return errors.Annotatef(err, "marshal %s", key)
	}
	return errors.Trace(json.Unmarshal(b, s))
}

func (d *Data) Set(key string, value any) {
	if *d == nil {
		*d = Data{}
	}
	(*d)[key] = value
}

// Clone deep copies the data through its JSON form. Values that cannot be
// encoded are copied shallowly.
func (d Data) Clone() Data {
	if d == nil {
		return nil
	}
	b, err := json.Marshal(d)
	if err == nil {
		out := Data{}
		if err := json.Unmarshal(b, &out); err == nil {
			return out
		}
	}
	out := make(Data, len(d))
	for k, v := range d {
		out[k] = v
	}
	return out
}
