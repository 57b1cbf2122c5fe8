// Package study flattens ClinicalTrials.gov study records.
//
// The registry returns every study as a deeply nested JSON tree. Flatten maps
// one such tree onto a fixed set of fifteen scalar fields:
//
//	raw := study.Raw{"protocolSection": ...}
//	rec, err := study.Flatten(raw)
//	if errors.Is(err, study.ErrMalformedStudy) {
//		// protocolSection or identificationModule missing
//	}
//	row := rec.Row() // table.Row with only the present fields
//
// Every lookup below the identification module is optional. A missing module,
// key or list yields an absent field, never an error.
package study
