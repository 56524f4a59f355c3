package conversion

import (
	"bytes"
	"encoding/json"
	"sort"
)

// ObjectTypeCount is the per-object-type tally inside a StatusSnapshot.
// SuccessCount never exceeds Total.
type ObjectTypeCount struct {
	Type         string
	SuccessCount int
	ErrorCount   int
	Total        int
	Percentage   float64
	Done         bool
	Errors       []string
}

// Overall is the job-wide progress of a snapshot.
type Overall struct {
	Done       int
	Total      int
	Percentage float64
}

// StatusSnapshot is the authoritative job status returned by the status endpoint.
// Snapshots are values: the session never edits one after decoding it.
type StatusSnapshot struct {
	TransactionID string
	Schema        string
	Overall       Overall
	DoneCounts    map[string]ObjectTypeCount
}

// Complete reports whether the backend considers the job finished.
func (s StatusSnapshot) Complete() bool { return s.Overall.Percentage >= 100 }

// Types returns the object types present in DoneCounts, sorted.
func (s StatusSnapshot) Types() []string {
	out := make([]string, 0, len(s.DoneCounts))
	for k := range s.DoneCounts {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// ErrorTotal sums ErrorCount over all object types.
func (s StatusSnapshot) ErrorTotal() int {
	n := 0
	for _, c := range s.DoneCounts {
		n += c.ErrorCount
	}
	return n
}

type wireCount struct {
	Total        int               `json:"total"`
	SuccessCount int               `json:"success_count"`
	ErrorCount   int               `json:"error_count"`
	Errors       []json.RawMessage `json:"errors"`
	Done         bool              `json:"done"`
	Percentage   float64           `json:"percentage"`
}

type wireSnapshot struct {
	TransactionID string               `json:"transaction_id"`
	Schema        string               `json:"schema"`
	DoneCounts    map[string]wireCount `json:"done_counts"`
	Overall       struct {
		Done       int     `json:"done"`
		Total      int     `json:"total"`
		Percentage float64 `json:"percentage"`
	} `json:"overall"`
}

// DecodeSnapshot parses the status endpoint body and normalises counters so
// percentages stay within [0,100] and success counts within their totals.
func DecodeSnapshot(data []byte) (StatusSnapshot, error) {
	var w wireSnapshot
	if err := json.Unmarshal(data, &w); err != nil {
		return StatusSnapshot{}, err
	}
	s := StatusSnapshot{
		TransactionID: w.TransactionID,
		Schema:        w.Schema,
		Overall: Overall{
			Done:       w.Overall.Done,
			Total:      w.Overall.Total,
			Percentage: clampPercent(w.Overall.Percentage),
		},
		DoneCounts: make(map[string]ObjectTypeCount, len(w.DoneCounts)),
	}
	for name, c := range w.DoneCounts {
		success := c.SuccessCount
		if success > c.Total {
			success = c.Total
		}
		if success < 0 {
			success = 0
		}
		s.DoneCounts[name] = ObjectTypeCount{
			Type:         name,
			SuccessCount: success,
			ErrorCount:   c.ErrorCount,
			Total:        c.Total,
			Percentage:   clampPercent(c.Percentage),
			Done:         c.Done,
			Errors:       errorStrings(c.Errors),
		}
	}
	return s, nil
}

// MarshalJSON writes the snapshot in the status endpoint's wire format.
func (s StatusSnapshot) MarshalJSON() ([]byte, error) {
	type count struct {
		Total        int      `json:"total"`
		SuccessCount int      `json:"success_count"`
		ErrorCount   int      `json:"error_count"`
		Errors       []string `json:"errors"`
		Done         bool     `json:"done"`
		Percentage   float64  `json:"percentage"`
	}
	out := struct {
		TransactionID string           `json:"transaction_id"`
		Schema        string           `json:"schema"`
		DoneCounts    map[string]count `json:"done_counts"`
		Overall       struct {
			Done       int     `json:"done"`
			Total      int     `json:"total"`
			Percentage float64 `json:"percentage"`
		} `json:"overall"`
	}{
		TransactionID: s.TransactionID,
		Schema:        s.Schema,
		DoneCounts:    make(map[string]count, len(s.DoneCounts)),
	}
	out.Overall.Done = s.Overall.Done
	out.Overall.Total = s.Overall.Total
	out.Overall.Percentage = s.Overall.Percentage
	for name, c := range s.DoneCounts {
		errs := c.Errors
		if errs == nil {
			errs = []string{}
		}
		out.DoneCounts[name] = count{
			Total:        c.Total,
			SuccessCount: c.SuccessCount,
			ErrorCount:   c.ErrorCount,
			Errors:       errs,
			Done:         c.Done,
			Percentage:   c.Percentage,
		}
	}
	return json.Marshal(out)
}

// errorStrings accepts both plain strings and objects in the errors array.
func errorStrings(raw []json.RawMessage) []string {
	if len(raw) == 0 {
		return nil
	}
	out := make([]string, 0, len(raw))
	for _, r := range raw {
		var s string
		if err := json.Unmarshal(r, &s); err == nil {
			out = append(out, s)
			continue
		}
		var buf bytes.Buffer
		if err := json.Compact(&buf, r); err == nil {
			out = append(out, buf.String())
		}
	}
	return out
}
