// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package filter selects objectives matching a FilterSpec. Every predicate
// (text, status, from-date, to-date) must pass; order is preserved.
package filter

import (
	"fmt"
	"strings"
	"time"

	"github.com/pdiddy/okr-evaluator/pkg/types"
)

// timestampLayouts are tried in order when reading an objective's creation
// time. Layouts without a zone are read in the filter bound's location.
var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999Z07:00",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02T15:04",
	types.DateLayout,
}

// Apply returns the objectives that satisfy every constraint of spec, in
// input order. An empty spec returns objectives unchanged.
func Apply(objectives []types.Objective, spec types.FilterSpec) []types.Objective {
	if spec.IsEmpty() {
		return objectives
	}
	m := newMatcher(spec)
	out := make([]types.Objective, 0, len(objectives))
	for _, o := range objectives {
		if m.match(o) {
			out = append(out, o)
		}
	}
	return out
}

// Match reports whether a single objective satisfies spec.
func Match(o types.Objective, spec types.FilterSpec) bool {
	return newMatcher(spec).match(o)
}

type matcher struct {
	query  string
	status types.Status
	from   time.Time // inclusive
	until  time.Time // exclusive: midnight after ToDate
	loc    *time.Location
}

func newMatcher(spec types.FilterSpec) matcher {
	m := matcher{
		query:  strings.ToLower(strings.TrimSpace(spec.Query)),
		status: spec.Status,
		loc:    time.Local,
	}
	if !spec.FromDate.IsZero() {
		m.from = startOfDay(spec.FromDate)
		m.loc = spec.FromDate.Location()
	}
	if !spec.ToDate.IsZero() {
		m.until = startOfDay(spec.ToDate).AddDate(0, 0, 1)
		m.loc = spec.ToDate.Location()
	}
	return m
}

func (m matcher) match(o types.Objective) bool {
	if m.query != "" && !strings.Contains(strings.ToLower(o.Objective), m.query) {
		return false
	}
	if m.status != "" && o.Status != m.status {
		return false
	}
	if m.from.IsZero() && m.until.IsZero() {
		return true
	}

	created, ok := ParseTimestamp(o.CreatedAt, m.loc)
	if !ok {
		return false
	}
	if !m.from.IsZero() && created.Before(m.from) {
		return false
	}
	if !m.until.IsZero() && !created.Before(m.until) {
		return false
	}
	return true
}

// ParseTimestamp reads an ISO-8601 creation timestamp. Timestamps without a
// zone are interpreted in loc.
func ParseTimestamp(s string, loc *time.Location) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	if loc == nil {
		loc = time.Local
	}
	for _, layout := range timestampLayouts {
		if t, err := time.ParseInLocation(layout, s, loc); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// ParseSpec builds a FilterSpec from raw user input. Empty strings impose no
// constraint. Dates use YYYY-MM-DD and are placed in loc (time.Local if nil).
func ParseSpec(q, status, from, to string, loc *time.Location) (types.FilterSpec, error) {
	if loc == nil {
		loc = time.Local
	}
	spec := types.FilterSpec{Query: strings.TrimSpace(q)}

	if status = strings.TrimSpace(status); status != "" {
		st := types.Status(status)
		if !st.Valid() {
			return types.FilterSpec{}, fmt.Errorf("unknown status %q (want one of %v)", status, types.Statuses)
		}
		spec.Status = st
	}

	var err error
	if spec.FromDate, err = parseDate("from", from, loc); err != nil {
		return types.FilterSpec{}, err
	}
	if spec.ToDate, err = parseDate("to", to, loc); err != nil {
		return types.FilterSpec{}, err
	}
	if !spec.FromDate.IsZero() && !spec.ToDate.IsZero() && spec.FromDate.After(spec.ToDate) {
		return types.FilterSpec{}, fmt.Errorf("from date %s is after to date %s",
			spec.FromDate.Format(types.DateLayout), spec.ToDate.Format(types.DateLayout))
	}
	return spec, nil
}

func parseDate(name, s string, loc *time.Location) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, nil
	}
	t, err := time.ParseInLocation(types.DateLayout, s, loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid %s date %q: want YYYY-MM-DD", name, s)
	}
	return t, nil
}

func startOfDay(t time.Time) time.Time {
	y, mo, d := t.Date()
	return time.Date(y, mo, d, 0, 0, 0, 0, t.Location())
}
