package study

import (
	"github.com/Sternrassler/ctgov-client/pkg/table"
)

// Column names of a flattened record.
const (
	FieldNCTID           = "nct_id"
	FieldOrgStudyID      = "org_study_id"
	FieldBriefTitle      = "brief_title"
	FieldOverallStatus   = "overall_status"
	FieldLastKnownStatus = "last_known_status"
	FieldStartDate       = "start_date"
	FieldCompletionDate  = "completion_date"
	FieldSponsor         = "sponsor"
	FieldBriefSummary    = "brief_summary"
	FieldConditions      = "conditions"
	FieldKeywords        = "keywords"
	FieldEnrollmentCount = "enrollment_count"
	FieldStudyType       = "study_type"
	FieldPhase           = "phase"
	FieldLocations       = "locations"
)

// Fields lists every flattened column in output order.
var Fields = []string{
	FieldNCTID,
	FieldOrgStudyID,
	FieldBriefTitle,
	FieldOverallStatus,
	FieldLastKnownStatus,
	FieldStartDate,
	FieldCompletionDate,
	FieldSponsor,
	FieldBriefSummary,
	FieldConditions,
	FieldKeywords,
	FieldEnrollmentCount,
	FieldStudyType,
	FieldPhase,
	FieldLocations,
}

// DateFields are the columns holding registry dates.
var DateFields = []string{FieldStartDate, FieldCompletionDate}

// Record is a flattened study. A nil field means the source tree did not
// carry it.
type Record struct {
	NCTID           *string
	OrgStudyID      *string
	BriefTitle      *string
	OverallStatus   *string
	LastKnownStatus *string
	StartDate       *string
	CompletionDate  *string
	Sponsor         *string
	BriefSummary    *string
	Conditions      *string
	Keywords        *string
	EnrollmentCount *int64
	StudyType       *string
	Phase           *string
	Locations       *string
}

// Row converts the record to a table row. Absent fields are left out.
func (r Record) Row() table.Row {
	row := make(table.Row, len(Fields))
	setString := func(name string, v *string) {
		if v != nil {
			row[name] = *v
		}
	}

	setString(FieldNCTID, r.NCTID)
	setString(FieldOrgStudyID, r.OrgStudyID)
	setString(FieldBriefTitle, r.BriefTitle)
	setString(FieldOverallStatus, r.OverallStatus)
	setString(FieldLastKnownStatus, r.LastKnownStatus)
	setString(FieldStartDate, r.StartDate)
	setString(FieldCompletionDate, r.CompletionDate)
	setString(FieldSponsor, r.Sponsor)
	setString(FieldBriefSummary, r.BriefSummary)
	setString(FieldConditions, r.Conditions)
	setString(FieldKeywords, r.Keywords)
	if r.EnrollmentCount != nil {
		row[FieldEnrollmentCount] = *r.EnrollmentCount
	}
	setString(FieldStudyType, r.StudyType)
	setString(FieldPhase, r.Phase)
	setString(FieldLocations, r.Locations)

	return row
}
