package cpis

import (
	"encoding/json"
	"math"
	"reflect"
	"sort"
	"strconv"
	"strings"
	"time"
)

// RawRecord is an evidence record as delivered by a collaborator system.
// Magnitude is left untyped so that missing and non-numeric values can be
// told apart from a measured zero.
type RawRecord struct {
	SubjectID string    `json:"subjectId"`
	Dimension string    `json:"dimensionCode"`
	Timestamp time.Time `json:"timestamp"`
	Magnitude any       `json:"magnitude"`
	Weight    *float64  `json:"weight,omitempty"`
	Source    string    `json:"source,omitempty"`
}

// AdaptReport summarizes what happened to each input record.
type AdaptReport struct {
	Accepted int
	Dropped  int
	Clamped  int
	Rejected []*MalformedEvidenceError
}

func (r *AdaptReport) add(other AdaptReport) {
	r.Accepted += other.Accepted
	r.Dropped += other.Dropped
	r.Clamped += other.Clamped
	r.Rejected = append(r.Rejected, other.Rejected...)
}

// Adapt normalizes records for any number of subjects. Malformed records are
// rejected one by one; records without a usable magnitude are dropped.
func Adapt(records []RawRecord) (map[string]Evidence, AdaptReport) {
	out := map[string]Evidence{}
	var report AdaptReport
	for i, rec := range records {
		obs, dropped, clamped, err := adaptRecord(i, rec)
		if err != nil {
			report.Rejected = append(report.Rejected, err)
			continue
		}
		if dropped {
			report.Dropped++
			continue
		}
		if clamped {
			report.Clamped++
		}
		ev, ok := out[obs.SubjectID]
		if !ok {
			ev = Evidence{}
			out[obs.SubjectID] = ev
		}
		ev[obs.Code] = append(ev[obs.Code], obs)
		report.Accepted++
	}
	for _, ev := range out {
		ev.sort()
	}
	return out, report
}

// AdaptSubject normalizes records that must all belong to subjectID.
func AdaptSubject(subjectID string, records []RawRecord) (Evidence, AdaptReport) {
	var report AdaptReport
	matching := make([]RawRecord, 0, len(records))
	positions := make([]int, 0, len(records))
	for i, rec := range records {
		if id := strings.TrimSpace(rec.SubjectID); id != "" && id != subjectID {
			report.Rejected = append(report.Rejected, &MalformedEvidenceError{
				Index:     i,
				SubjectID: rec.SubjectID,
				Dimension: rec.Dimension,
				Reason:    "record belongs to a different subject",
			})
			continue
		}
		matching = append(matching, rec)
		positions = append(positions, i)
	}
	grouped, sub := Adapt(matching)
	for _, rej := range sub.Rejected {
		rej.Index = positions[rej.Index]
	}
	report.add(sub)
	ev := grouped[subjectID]
	if ev == nil {
		ev = Evidence{}
	}
	return ev, report
}

// GroupBySubject splits records per subject without validating them.
func GroupBySubject(records []RawRecord) map[string][]RawRecord {
	out := map[string][]RawRecord{}
	for _, rec := range records {
		id := strings.TrimSpace(rec.SubjectID)
		out[id] = append(out[id], rec)
	}
	return out
}

func adaptRecord(index int, rec RawRecord) (Observation, bool, bool, *MalformedEvidenceError) {
	subjectID := strings.TrimSpace(rec.SubjectID)
	fail := func(reason string) (Observation, bool, bool, *MalformedEvidenceError) {
		return Observation{}, false, false, &MalformedEvidenceError{
			Index:     index,
			SubjectID: rec.SubjectID,
			Dimension: rec.Dimension,
			Reason:    reason,
		}
	}
	if subjectID == "" {
		return fail("missing subject id")
	}
	if strings.TrimSpace(rec.Dimension) == "" {
		return fail("missing dimension code")
	}
	code, err := ParseCode(rec.Dimension)
	if err != nil {
		return fail(err.Error())
	}
	weight := 1.0
	if rec.Weight != nil {
		weight = *rec.Weight
		if math.IsNaN(weight) || math.IsInf(weight, 0) || weight < 0 {
			return fail("weight must be a non-negative number")
		}
	}

	magnitude, ok := numeric(rec.Magnitude)
	if !ok {
		return Observation{}, true, false, nil
	}
	clamped := magnitude < 0 || magnitude > 100
	return Observation{
		SubjectID: subjectID,
		Code:      code,
		Timestamp: rec.Timestamp,
		Magnitude: clamp(magnitude, 0, 100),
		Weight:    weight,
	}, false, clamped, nil
}

func numeric(v any) (float64, bool) {
	var f float64
	switch value := v.(type) {
	case nil:
		return 0, false
	case float64:
		f = value
	case float32:
		f = float64(value)
	case int:
		f = float64(value)
	case int64:
		f = float64(value)
	case json.Number:
		parsed, err := value.Float64()
		if err != nil {
			return 0, false
		}
		f = parsed
	case string:
		parsed, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
		if err != nil {
			return 0, false
		}
		f = parsed
	case *float64:
		if value == nil {
			return 0, false
		}
		f = *value
	default:
		rv := reflect.ValueOf(v)
		switch {
		case rv.CanInt():
			f = float64(rv.Int())
		case rv.CanUint():
			f = float64(rv.Uint())
		case rv.CanFloat():
			f = rv.Float()
		default:
			return 0, false
		}
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

// sort orders each dimension by timestamp so scoring is independent of
// the order collaborators delivered records in.
func (e Evidence) sort() {
	for _, obs := range e {
		sort.SliceStable(obs, func(i, j int) bool {
			if !obs[i].Timestamp.Equal(obs[j].Timestamp) {
				return obs[i].Timestamp.Before(obs[j].Timestamp)
			}
			if obs[i].Magnitude != obs[j].Magnitude {
				return obs[i].Magnitude < obs[j].Magnitude
			}
			return obs[i].Weight < obs[j].Weight
		})
	}
}
