package database

import (
	"database/sql/driver"
	"errors"
	"fmt"
	"strconv"
	"strings"
)

const idSeparator = ","

// Int64Set stores a set of integer identifiers as delimited text so that it
// works the same on PostgreSQL, MySQL and SQLite. The stored form always
// starts and ends with the separator (",1,2,"), which lets a single LIKE
// condition test membership and a single REPLACE remove an element.
type Int64Set []int64

// Scan implements the sql.Scanner interface for reading from the database.
func (s *Int64Set) Scan(value interface{}) error {
	if value == nil {
		*s = nil
		return nil
	}

	switch v := value.(type) {
	case []byte:
		return s.parse(string(v))
	case string:
		return s.parse(v)
	default:
		return errors.New("Int64Set: unsupported scan type")
	}
}

func (s *Int64Set) parse(str string) error {
	parts := strings.Split(strings.Trim(str, idSeparator), idSeparator)
	out := make([]int64, 0, len(parts))
	for _, p := range parts {
		if p == "" {
			continue
		}
		id, err := strconv.ParseInt(p, 10, 64)
		if err != nil {
			return fmt.Errorf("Int64Set: invalid element %q: %w", p, err)
		}
		out = append(out, id)
	}
	*s = out
	return nil
}

// Value implements the driver.Valuer interface for writing to the database.
func (s Int64Set) Value() (driver.Value, error) {
	var b strings.Builder
	b.WriteString(idSeparator)
	for _, id := range s {
		b.WriteString(strconv.FormatInt(id, 10))
		b.WriteString(idSeparator)
	}
	return b.String(), nil
}

// GormDataType returns the GORM data type hint.
func (Int64Set) GormDataType() string {
	return "text"
}

// Int64SetToken is the stored fragment that identifies id inside an Int64Set
// column, including both separators.
func Int64SetToken(id int64) string {
	return idSeparator + strconv.FormatInt(id, 10) + idSeparator
}

// Int64SetPattern is a LIKE pattern matching any Int64Set column containing id.
func Int64SetPattern(id int64) string {
	return "%" + Int64SetToken(id) + "%"
}
