package study

import (
	"errors"
	"fmt"
	"strings"

	"github.com/samber/lo"
)

// ErrMalformedStudy is returned when a study lacks its protocol section or
// identification module.
var ErrMalformedStudy = errors.New("malformed study")

// listSeparator joins multi-valued fields.
const listSeparator = ", "

// Flatten maps one raw study onto a Record.
func Flatten(raw Raw) (Record, error) {
	protocol, ok := objectAt(raw, "protocolSection")
	if !ok {
		return Record{}, fmt.Errorf("%w: missing protocolSection", ErrMalformedStudy)
	}

	ident, ok := objectAt(protocol, "identificationModule")
	if !ok {
		return Record{}, fmt.Errorf("%w: missing identificationModule", ErrMalformedStudy)
	}

	rec := Record{
		NCTID:      stringAt(ident, "nctId"),
		OrgStudyID: stringAt(ident, "orgStudyIdInfo", "id"),
		BriefTitle: stringAt(ident, "briefTitle"),

		OverallStatus:   stringAt(protocol, "statusModule", "overallStatus"),
		LastKnownStatus: stringAt(protocol, "statusModule", "lastKnownStatus"),
		StartDate:       stringAt(protocol, "statusModule", "startDateStruct", "date"),
		CompletionDate:  stringAt(protocol, "statusModule", "completionDateStruct", "date"),

		Sponsor:      stringAt(protocol, "sponsorCollaboratorsModule", "leadSponsor", "name"),
		BriefSummary: stringAt(protocol, "descriptionModule", "briefSummary"),

		Conditions: joined(stringsAt(protocol, "conditionsModule", "conditions")),
		Keywords:   joined(stringsAt(protocol, "conditionsModule", "keywords")),

		EnrollmentCount: intAt(protocol, "designModule", "enrollmentInfo", "count"),
		StudyType:       stringAt(protocol, "designModule", "studyType"),
		Phase:           joined(stringsAt(protocol, "designModule", "phases")),

		Locations: joined(lo.Map(objectsAt(protocol, "contactsLocationsModule", "locations"),
			func(loc map[string]any, _ int) string { return formatLocation(loc) })),
	}

	return rec, nil
}

// formatLocation renders "<facility> (<city>, <country>)"; missing parts are
// empty.
func formatLocation(loc map[string]any) string {
	return fmt.Sprintf("%s (%s, %s)",
		valueOr(loc, "", "facility"),
		valueOr(loc, "", "city"),
		valueOr(loc, "", "country"),
	)
}

func joined(items []string) *string {
	if len(items) == 0 {
		return nil
	}
	s := strings.Join(items, listSeparator)
	return &s
}
