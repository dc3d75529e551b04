package domain

import (
	"bytes"
	"encoding/json"
	"errors"
	"math"
)

// ErrUserIDNotInteger is returned when a user-ids element is not an
// integral JSON number.
var ErrUserIDNotInteger = errors.New("user id must be an integer")

// maxInt64Float is 2^63, the first float64 that does not fit in an int64.
const maxInt64Float = float64(math.MaxInt64)

// UserIDs is a list of user identities. It decodes from either a JSON array
// of integers or a single integer. Integral floats such as 3.0 are accepted.
type UserIDs []int64

// UnmarshalJSON implements json.Unmarshaler.
func (ids *UserIDs) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	var raw interface{}
	if err := dec.Decode(&raw); err != nil {
		return err
	}
	if raw == nil {
		*ids = nil
		return nil
	}

	items, ok := raw.([]interface{})
	if !ok {
		items = []interface{}{raw}
	}

	out := make(UserIDs, 0, len(items))
	for _, item := range items {
		n, ok := item.(json.Number)
		if !ok {
			return ErrUserIDNotInteger
		}
		id, err := integral(n)
		if err != nil {
			return err
		}
		out = append(out, id)
	}
	*ids = out
	return nil
}

func integral(n json.Number) (int64, error) {
	if id, err := n.Int64(); err == nil {
		return id, nil
	}
	f, err := n.Float64()
	if err != nil || f != math.Trunc(f) || f >= maxInt64Float || f < -maxInt64Float {
		return 0, ErrUserIDNotInteger
	}
	return int64(f), nil
}
