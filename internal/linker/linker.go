// Package linker joins normalized NSLDS and SIS records into unified
// borrower profiles using a prioritized exact-key strategy. There is
// deliberately no fuzzy name or email matching here: a false-positive
// identity merge links two people's financial records, which is the costly
// failure mode in this domain.
package linker

import (
	"crypto/sha256"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/charted-solutions/loanrisk/internal/model"
	"github.com/charted-solutions/loanrisk/internal/schema"
)

// source tags a record's origin during coalescing.
type source int

const (
	sourceNSLDS source = iota
	sourceSIS
)

// coalesced is one deduplicated record within a single source.
type coalesced struct {
	rec        model.NormalizedRecord
	duplicates int
}

// Link produces the set of unified profiles from the two sources.
//
// Matching runs in priority order: exact nine-digit SSN, then exact
// case-insensitive student ID. Records matching neither tier become
// single-source profiles rather than being dropped; dropping silently would
// hide coverage gaps from aggregation and audit. A record whose SSN match
// and student-ID match point at different counterparts is a linkage
// conflict: the SSN match wins and the conflict is flagged.
//
// Output is sorted by borrower key, so permuting either input never changes
// the result.
func Link(nslds, sis []model.NormalizedRecord) model.LinkResult {
	nsldsRecs := coalesce(nslds, sourceNSLDS)
	sisRecs := coalesce(sis, sourceSIS)

	sisBySSN := make(map[string]int)
	sisByStudentID := make(map[string]int)
	for i, c := range sisRecs {
		if ssn := c.rec.NormalizedSSN(); ssn != "" {
			sisBySSN[ssn] = i
		}
		if sid := c.rec.NormalizedStudentID(); sid != "" {
			sisByStudentID[sid] = i
		}
	}

	var result model.LinkResult
	claimed := make(map[int]bool, len(sisRecs))

	for _, nc := range nsldsRecs {
		ssn := nc.rec.NormalizedSSN()
		sid := nc.rec.NormalizedStudentID()

		tier1, haveTier1 := -1, false
		if ssn != "" {
			tier1, haveTier1 = indexOf(sisBySSN, ssn)
		}
		tier2, haveTier2 := -1, false
		if sid != "" {
			tier2, haveTier2 = indexOf(sisByStudentID, sid)
		}

		switch {
		case haveTier1:
			if haveTier2 && tier2 != tier1 {
				conflict := model.LinkageConflict{
					Key:            model.BorrowerKey{Kind: model.KeySSN, Value: ssn},
					SSNMatch:       sisRecs[tier1].rec.NormalizedStudentID(),
					StudentIDMatch: sisRecs[tier2].rec.NormalizedStudentID(),
					Detail: fmt.Sprintf("SSN matches one SIS record, student ID %q matches another; linked by SSN",
						sid),
				}
				result.Conflicts = append(result.Conflicts, conflict)
				slog.Warn("Linkage conflict",
					"key", conflict.Key.String(),
					"detail", conflict.Detail)
			}
			claimed[tier1] = true
			result.Profiles = append(result.Profiles,
				merge(nc, sisRecs[tier1], model.BorrowerKey{Kind: model.KeySSN, Value: ssn}))

		case haveTier2:
			claimed[tier2] = true
			result.Profiles = append(result.Profiles,
				merge(nc, sisRecs[tier2], model.BorrowerKey{Kind: model.KeyStudentID, Value: sid}))

		default:
			result.Profiles = append(result.Profiles, singleSource(nc, sourceNSLDS))
		}
	}

	for i, sc := range sisRecs {
		if !claimed[i] {
			result.Profiles = append(result.Profiles, singleSource(sc, sourceSIS))
		}
	}

	sort.Slice(result.Profiles, func(i, j int) bool {
		return result.Profiles[i].Key.String() < result.Profiles[j].Key.String()
	})
	sort.Slice(result.Conflicts, func(i, j int) bool {
		return result.Conflicts[i].Key.String() < result.Conflicts[j].Key.String()
	})

	return result
}

func indexOf(m map[string]int, key string) (int, bool) {
	i, ok := m[key]
	if !ok {
		return -1, false
	}
	return i, true
}

// coalesce deduplicates same-key rows within one source, last row wins.
// Records with no usable key are kept as-is; they cannot collide.
func coalesce(records []model.NormalizedRecord, _ source) []coalesced {
	var out []coalesced
	byKey := make(map[string]int)

	for _, rec := range records {
		key := recordKey(rec)
		if key == "" {
			out = append(out, coalesced{rec: rec})
			continue
		}
		if i, seen := byKey[key]; seen {
			out[i].rec = rec
			out[i].duplicates++
			continue
		}
		byKey[key] = len(out)
		out = append(out, coalesced{rec: rec})
	}
	return out
}

// recordKey prefers the SSN identity, falling back to student ID.
func recordKey(rec model.NormalizedRecord) string {
	if ssn := rec.NormalizedSSN(); ssn != "" {
		return "ssn:" + ssn
	}
	if sid := rec.NormalizedStudentID(); sid != "" {
		return "student_id:" + sid
	}
	return ""
}

// merge builds a fully matched profile. Identity fields come from the NSLDS
// side first; absent values are filled from SIS. Delinquency fields are
// NSLDS-owned, academic fields SIS-owned.
func merge(nslds, sis coalesced, key model.BorrowerKey) model.UnifiedProfile {
	n, s := nslds.rec, sis.rec

	p := model.UnifiedProfile{
		Key:              key,
		FirstName:        firstNonEmpty(n.Get(model.FieldFirstName), s.Get(model.FieldFirstName)),
		LastName:         firstNonEmpty(n.Get(model.FieldLastName), s.Get(model.FieldLastName)),
		Email:            firstNonEmpty(n.Get(model.FieldEmail), s.Get(model.FieldEmail)),
		SSN:              firstNonEmpty(n.NormalizedSSN(), s.NormalizedSSN()),
		StudentID:        firstNonEmpty(s.Get(model.FieldStudentID), n.Get(model.FieldStudentID)),
		LoanType:         n.Get(model.FieldLoanType),
		Major:            s.Get(model.FieldMajor),
		EnrollmentStatus: s.Get(model.FieldEnrollmentStatus),
		Provenance:       model.ProvenanceMatched,

		DaysDelinquent:     schema.ParseNumber(n.Get(model.FieldDaysDelinquent)),
		OutstandingBalance: schema.ParseNumber(n.Get(model.FieldOutstandingBalance)),
		HasDelinquency:     true,

		Duplicates: nslds.duplicates + sis.duplicates,
	}
	return p
}

// singleSource builds a profile for a record no tier could match.
func singleSource(c coalesced, src source) model.UnifiedProfile {
	rec := c.rec

	srcName := "nslds"
	if src == sourceSIS {
		srcName = "sis"
	}
	// Content-hashed so the key is stable under input reordering.
	key := model.BorrowerKey{Kind: model.KeyUnmatched, Value: contentHash(srcName, rec)}
	if ssn := rec.NormalizedSSN(); ssn != "" {
		key = model.BorrowerKey{Kind: model.KeySSN, Value: ssn}
	} else if sid := rec.NormalizedStudentID(); sid != "" {
		key = model.BorrowerKey{Kind: model.KeyStudentID, Value: sid}
	}

	p := model.UnifiedProfile{
		Key:        key,
		FirstName:  rec.Get(model.FieldFirstName),
		LastName:   rec.Get(model.FieldLastName),
		Email:      rec.Get(model.FieldEmail),
		SSN:        rec.NormalizedSSN(),
		StudentID:  rec.Get(model.FieldStudentID),
		Duplicates: c.duplicates,
	}

	switch src {
	case sourceNSLDS:
		p.Provenance = model.ProvenanceNSLDSOnly
		p.LoanType = rec.Get(model.FieldLoanType)
		p.DaysDelinquent = schema.ParseNumber(rec.Get(model.FieldDaysDelinquent))
		p.OutstandingBalance = schema.ParseNumber(rec.Get(model.FieldOutstandingBalance))
		p.HasDelinquency = true
	case sourceSIS:
		p.Provenance = model.ProvenanceSISOnly
		p.Major = rec.Get(model.FieldMajor)
		p.EnrollmentStatus = rec.Get(model.FieldEnrollmentStatus)
	}
	return p
}

// contentHash derives a stable identity for records that carry no usable
// key at all.
func contentHash(src string, rec model.NormalizedRecord) string {
	var b strings.Builder
	b.WriteString(src)
	for _, f := range model.CanonicalFields {
		b.WriteByte(':')
		b.WriteString(rec.Get(f))
	}
	sum := sha256.Sum256([]byte(b.String()))
	return fmt.Sprintf("%x", sum[:8])
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
