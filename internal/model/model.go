package model

import "strings"

type Classification string

const (
	ClassificationHS   Classification = "HS"
	ClassificationSITC Classification = "SITC"
	ClassificationBEC  Classification = "BEC"
)

// Query identifies one fetch against the upstream statistics service.
// Values are passed through; the service decides whether they are valid.
type Query struct {
	Reporter       string
	Partner        string
	Year           string
	Classification Classification
}

// Normalized trims every field. Reporter and partner are otherwise passed
// through as given; the classification is upper-cased and defaults to HS.
func (q Query) Normalized() Query {
	out := Query{
		Reporter:       strings.TrimSpace(q.Reporter),
		Partner:        strings.TrimSpace(q.Partner),
		Year:           strings.TrimSpace(q.Year),
		Classification: Classification(strings.ToUpper(strings.TrimSpace(string(q.Classification)))),
	}
	if out.Classification == "" {
		out.Classification = ClassificationHS
	}
	return out
}

// Record is one row of the fetched table. Fields holds every column the
// service returned, including the ones copied into the typed fields.
type Record struct {
	Commodity  string
	TradeValue float64
	Period     string
	Fields     map[string]any
}

// Table is the ordered row set returned for a single query. Order is the
// order the service returned; duplicates are kept.
type Table struct {
	Query   Query
	Records []Record
}

func EmptyTable(q Query) Table {
	return Table{Query: q, Records: []Record{}}
}

func (t Table) Len() int {
	return len(t.Records)
}

func (t Table) Empty() bool {
	return len(t.Records) == 0
}
