package pipeline

import (
	"errors"
	"fmt"
	"strings"

	"salesdash/internal/dataset"
)

// ErrBadBound is returned for a range bound that is not YYYY-MM-DD.
var ErrBadBound = errors.New("date bound must be YYYY-MM-DD")

// Request is the wire form of a Query. The page sends it as URL parameters
// and over the live connection as JSON.
type Request struct {
	Start  string   `json:"start,omitempty" query:"start" validate:"omitempty,isodate"`
	End    string   `json:"end,omitempty" query:"end" validate:"omitempty,isodate"`
	Region []string `json:"region,omitempty" query:"region" validate:"max=100,dive,max=200"`
	State  []string `json:"state,omitempty" query:"state" validate:"max=100,dive,max=200"`
	City   []string `json:"city,omitempty" query:"city" validate:"max=500,dive,max=200"`
}

// Normalize trims the date bounds and drops dimension values that are blank.
// Other values are kept exactly as sent: they must equal a cell's text to
// match it.
func (r Request) Normalize() Request {
	return Request{
		Start:  strings.TrimSpace(r.Start),
		End:    strings.TrimSpace(r.End),
		Region: dropBlank(r.Region),
		State:  dropBlank(r.State),
		City:   dropBlank(r.City),
	}
}

func dropBlank(values []string) []string {
	var out []string
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			out = append(out, v)
		}
	}
	return out
}

// Query converts the request. Empty bounds stay nil and default to the
// observed range.
func (r Request) Query() (Query, error) {
	var q Query
	if r.Start != "" {
		t, err := ParseBound(r.Start)
		if err != nil {
			return Query{}, fmt.Errorf("%w: start %q", ErrBadBound, r.Start)
		}
		q.Start = &t
	}
	if r.End != "" {
		t, err := ParseBound(r.End)
		if err != nil {
			return Query{}, fmt.Errorf("%w: end %q", ErrBadBound, r.End)
		}
		q.End = &t
	}
	sel := Selection{}
	for column, values := range map[string][]string{
		dataset.ColRegion: r.Region,
		dataset.ColState:  r.State,
		dataset.ColCity:   r.City,
	} {
		if len(values) > 0 {
			sel[column] = values
		}
	}
	if len(sel) > 0 {
		q.Selection = sel
	}
	return q, nil
}
