package db

import (
	"encoding/json"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/juju/errors"
)

// matchLike reports whether s matches the SQL LIKE pattern. '%' matches any
// run of characters and '_' a single one; ASCII letters compare
// case-insensitively as they do in sqlite.
func matchLike(pattern, s string) bool {
	var b strings.Builder
	b.WriteString("(?is)^")
	for _, r := range pattern {
		switch r {
		case '%':
			b.WriteString(".*")
		case '_':
			b.WriteString(".")
		default:
			b.WriteString(regexp.QuoteMeta(string(r)))
		}
	}
	b.WriteString("$")
	re, err := regexp.Compile(b.String())
	if err != nil {
		return false
	}
	return re.MatchString(s)
}

// columnMatches applies a LIKE pattern to a column value. NULL never matches.
func columnMatches(columns map[string]any, column, pattern string) bool {
	if pattern == "" {
		return true
	}
	v, ok := columns[column].(string)
	if !ok {
		return false
	}
	return matchLike(pattern, v)
}

func parseID(id string) (uint64, bool) {
	n, err := strconv.ParseUint(id, 10, 64)
	if err != nil || n == 0 {
		return 0, false
	}
	return n, true
}

// Document stores keep records as JSON objects keyed by column name. The
// helpers below move between a record and that representation.

func encodeDoc(rec any, now time.Time, created bool) ([]byte, error) {
	raw, err := json.Marshal(rec)
	if err != nil {
		return nil, errors.Trace(err)
	}
	var doc map[string]any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, errors.Trace(err)
	}
	if created {
		doc["createdAt"] = now
	}
	doc["updatedAt"] = now
	return json.Marshal(doc)
}

func patchDoc(raw []byte, values map[string]any, now time.Time) ([]byte, error) {
	var doc map[string]any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, errors.Annotate(err, "corrupt record")
	}
	for k, v := range values {
		doc[k] = v
	}
	doc["updatedAt"] = now
	return json.Marshal(doc)
}

func decodeDoc[T any](raw []byte) (*T, error) {
	rec := new(T)
	if err := json.Unmarshal(raw, rec); err != nil {
		return nil, errors.Annotate(err, "corrupt record")
	}
	return rec, nil
}

func sortByID[T any](recs []T, key func(*T) uint) {
	sort.Slice(recs, func(i, j int) bool {
		return key(&recs[i]) < key(&recs[j])
	})
}
