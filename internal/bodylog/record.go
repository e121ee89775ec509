// Package bodylog owns the body-log capture pipeline: the optimistic record
// store, the capture state machine, the analysis runner, the idle-analysis
// sweep and the grid projection read by the presentation layer.
package bodylog

import (
	"strings"
	"time"
)

const tempIDPrefix = "tmp_"

type IdentityKind int

const (
	Temporary IdentityKind = iota
	Durable
)

// Identity is either a client-generated temporary id or the durable id the
// backend assigned on persist. Never both.
type Identity struct {
	Value string
	Kind  IdentityKind
}

func TemporaryID(value string) Identity {
	return Identity{Value: value, Kind: Temporary}
}

func DurableID(value string) Identity {
	return Identity{Value: value, Kind: Durable}
}

func (i Identity) String() string {
	return i.Value
}

func (i Identity) IsTemporary() bool {
	return i.Kind == Temporary
}

// IsTemporaryValue reports whether a raw id string was minted by NewTempID.
func IsTemporaryValue(id string) bool {
	return strings.HasPrefix(id, tempIDPrefix)
}

type LoadStatus string

const (
	LoadIdle    LoadStatus = "idle"
	LoadLoading LoadStatus = "loading"
	LoadLoaded  LoadStatus = "loaded"
	LoadError   LoadStatus = "error"
)

func (s LoadStatus) Valid() bool {
	switch s {
	case LoadIdle, LoadLoading, LoadLoaded, LoadError:
		return true
	}
	return false
}

type AnalysisStatus string

const (
	AnalysisIdle    AnalysisStatus = "idle"
	AnalysisPending AnalysisStatus = "pending"
	AnalysisSuccess AnalysisStatus = "success"
	AnalysisError   AnalysisStatus = "error"
)

// Metrics are the body-composition values returned by analysis. Each field is
// independently nullable.
type Metrics struct {
	Weight            *float64 `json:"weight"`
	BodyFatPercentage *float64 `json:"body_fat_percentage"`
	BMI               *float64 `json:"bmi"`
	MuscleMass        *float64 `json:"muscle_mass"`
}

func (m Metrics) Empty() bool {
	return m.Weight == nil && m.BodyFatPercentage == nil && m.BMI == nil && m.MuscleMass == nil
}

// merge overwrites fields of m with the non-nil fields of other.
func (m Metrics) merge(other Metrics) Metrics {
	if other.Weight != nil {
		m.Weight = floatPtr(*other.Weight)
	}
	if other.BodyFatPercentage != nil {
		m.BodyFatPercentage = floatPtr(*other.BodyFatPercentage)
	}
	if other.BMI != nil {
		m.BMI = floatPtr(*other.BMI)
	}
	if other.MuscleMass != nil {
		m.MuscleMass = floatPtr(*other.MuscleMass)
	}
	return m
}

func (m Metrics) clone() Metrics {
	return Metrics{}.merge(m)
}

// ImageRecord is one captured body-progress photo and its derived metrics.
type ImageRecord struct {
	ID             Identity
	OwnerID        string
	StoragePath    string
	DisplayURL     *string
	LoadStatus     LoadStatus
	AnalysisStatus AnalysisStatus
	Metrics        Metrics
	CreatedAt      time.Time
}

func (r ImageRecord) clone() ImageRecord {
	out := r
	if r.DisplayURL != nil {
		out.DisplayURL = stringPtr(*r.DisplayURL)
	}
	out.Metrics = r.Metrics.clone()
	return out
}

// AnalysisPatch is a partial update of a record's analysis fields. Nil metric
// fields leave the stored value untouched.
type AnalysisPatch struct {
	Status  AnalysisStatus
	Metrics Metrics
}

func stringPtr(s string) *string {
	return &s
}

func floatPtr(f float64) *float64 {
	return &f
}

func sameURL(a, b *string) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}
