package repo

import (
	"database/sql"
	"encoding/json"
	"errors"
)

type Repo struct {
	DB *sql.DB
}

var ErrNotFound = errors.New("not found")

func nullable(v string) any {
	if v == "" {
		return nil
	}
	return v
}

func nullableStringPtr(v *string) any {
	if v == nil {
		return nil
	}
	if *v == "" {
		return nil
	}
	return *v
}

func toJSON(items []string) any {
	if len(items) == 0 {
		return nil
	}
	b, _ := json.Marshal(items)
	return string(b)
}

func fromJSON(s sql.NullString) []string {
	if !s.Valid || s.String == "" {
		return nil
	}
	var items []string
	_ = json.Unmarshal([]byte(s.String), &items)
	return items
}
