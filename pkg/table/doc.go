// Package table provides the in-memory result table used for flattened
// studies.
//
// A Table is an ordered list of rows over an ordered list of columns. A cell
// that is missing from a row, or holds nil, is null. Tables grow by Append
// and Concat; Merge joins two tables on the nct_id column.
//
//	all := page1.Concat(page2)         // row concatenation, no dedup
//	merged, err := table.Merge(a, b, table.JoinOuter)
//	_ = merged.WriteCSV(os.Stdout)
package table
