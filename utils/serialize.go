package utils

import (
	"encoding/json"

	"github.com/juju/errors"
)

// Serialize encodes a persisted value. Every store row goes through here.
func Serialize(o any) ([]byte, error) {
	b, err := json.Marshal(o)
	if err != nil {
		return nil, errors.Annotatef(err, "serialize %T", o)
	}
	return b, nil
}

// Unserialize decodes a row written by Serialize into o.
func Unserialize(b []byte, o any) error {
	if len(b) == 0 {
		return errors.NotValidf("empty payload for %T", o)
	}
	return errors.Annotatef(json.Unmarshal(b, o), "unserialize %T", o)
}
