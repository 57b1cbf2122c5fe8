package store

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/Sternrassler/ctgov-client/pkg/client"
)

// KeyPrefix is prepended to every dataset name.
const KeyPrefix = "ctgov:dataset:"

var (
	validName = regexp.MustCompile(`^[A-Za-z0-9._-]{1,128}$`)
	nameSep   = regexp.MustCompile(`[^a-z0-9]+`)
)

// Key returns the Redis key for a dataset name.
func Key(name string) string {
	return KeyPrefix + name
}

// ValidateName reports whether name may be used as a dataset name.
func ValidateName(name string) error {
	if !validName.MatchString(name) {
		return fmt.Errorf("%w: %q", ErrInvalidName, name)
	}
	return nil
}

// DatasetKey derives a deterministic dataset name from a query, e.g.
// "pompe-disease_recruiting_10". Defaults are applied first so that an
// explicit RECRUITING status names the same dataset as an empty one.
//
// Example:
//
//	DatasetKey(client.Query{Condition: "Pompe Disease"}) // "pompe-disease_recruiting_10"
func DatasetKey(q client.Query) string {
	v := q.Values("")

	condition := slug(v.Get("query.cond"))
	if condition == "" {
		condition = "all"
	}

	return strings.Join([]string{
		condition,
		slug(v.Get("filter.overallStatus")),
		v.Get("pageSize"),
	}, "_")
}

func slug(s string) string {
	return strings.Trim(nameSep.ReplaceAllString(strings.ToLower(s), "-"), "-")
}
