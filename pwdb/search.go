// search.go -- substring search across decoded records

package pwdb

import (
	"bytes"
	"sort"
	"strings"

	"github.com/google/uuid"
)

// Match pairs a record with its UUID, the shape Search returns.
type Match struct {
	UUID   uuid.UUID
	Record *Record
}

// Search returns every record whose title, username, group, URL, or
// notes contains query, case-insensitively. An empty query matches every
// record. Results are ordered by title ascending, ties broken by UUID,
// so the result is deterministic regardless of map iteration order.
func (d *Database) Search(query string) []Match {
	q := strings.ToLower(query)

	matches := make([]Match, 0, len(d.records))
	for id, rec := range d.records {
		if q == "" || recordMatches(rec, q) {
			matches = append(matches, Match{UUID: id, Record: rec})
		}
	}

	sort.Slice(matches, func(i, j int) bool {
		ti, tj := matches[i].Record.Title, matches[j].Record.Title
		if ti != tj {
			return ti < tj
		}
		return bytes.Compare(matches[i].UUID[:], matches[j].UUID[:]) < 0
	})

	return matches
}

func recordMatches(rec *Record, lowerQuery string) bool {
	fields := [...]string{rec.Title, rec.Username, rec.Group, rec.URL, rec.Notes}
	for _, f := range fields {
		if strings.Contains(strings.ToLower(f), lowerQuery) {
			return true
		}
	}
	return false
}
