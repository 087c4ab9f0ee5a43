package sqlstore

import (
	"fmt"
	"time"
)

// Fixed width so that text comparison in SQLite orders the same way as time
const sqliteTimeLayout = "2006-01-02 15:04:05.000000000-07:00"

var readLayouts = []string{
	sqliteTimeLayout,
	"2006-01-02 15:04:05.999999999-07:00",
	time.RFC3339Nano,
	"2006-01-02 15:04:05.999999999",
	"2006-01-02 15:04:05",
}

func formatSQLiteTime(t time.Time) string {
	return t.UTC().Format(sqliteTimeLayout)
}

// timeScanner reads timestamps whether the driver hands back time.Time (pgx, and modernc for
// TIMESTAMP columns) or the stored text
type timeScanner struct {
	dest  *time.Time
	valid *bool // nil means NULL is an error
}

func scanTime(dest *time.Time) timeScanner { return timeScanner{dest: dest} }

func scanNullTime(dest *time.Time, valid *bool) timeScanner {
	return timeScanner{dest: dest, valid: valid}
}

func (s timeScanner) Scan(src any) error {
	if s.valid != nil {
		*s.valid = src != nil
	}
	switch v := src.(type) {
	case nil:
		if s.valid != nil {
			return nil
		}
		return fmt.Errorf("unexpected NULL timestamp")
	case time.Time:
		*s.dest = v.UTC()
		return nil
	case string:
		return s.parse(v)
	case []byte:
		return s.parse(string(v))
	}
	return fmt.Errorf("unsupported timestamp type %T", src)
}

func (s timeScanner) parse(v string) error {
	for _, layout := range readLayouts {
		if t, err := time.Parse(layout, v); err == nil {
			*s.dest = t.UTC()
			return nil
		}
	}
	return fmt.Errorf("unparseable timestamp %q", v)
}
