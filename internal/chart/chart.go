package chart

import (
	"math"
	"strings"

	"github.com/shopspring/decimal"

	"tradedash/internal/model"
)

const (
	FlowTitle      = "Trade Flow"
	HierarchyTitle = "Commodity Share of Trade"
	TrendTitle     = "Trade Trends Over Time"

	unlabelled = "Unspecified"
)

var palette = []string{
	"#4F46E5", "#10B981", "#F59E0B", "#EF4444", "#8B5CF6",
	"#06B6D4", "#EC4899", "#84CC16", "#F97316", "#6366F1",
}

type Kind string

const (
	KindFlow      Kind = "flow"
	KindHierarchy Kind = "hierarchy"
	KindTrend     Kind = "trend"
)

func ParseKind(value string) (Kind, bool) {
	switch Kind(strings.ToLower(strings.TrimSpace(value))) {
	case KindFlow, "sankey":
		return KindFlow, true
	case KindHierarchy, "treemap":
		return KindHierarchy, true
	case KindTrend, "trendline", "line":
		return KindTrend, true
	default:
		return "", false
	}
}

// Link moves Value from node Source to node Target (indexes into Nodes).
type Link struct {
	Source int     `json:"source"`
	Target int     `json:"target"`
	Value  float64 `json:"value"`
}

// FlowSpec is a two-level flow graph: the reporter fans out to one node per
// row. The partner label trails the row nodes and carries no link.
type FlowSpec struct {
	Title string   `json:"title"`
	Nodes []string `json:"nodes"`
	Links []Link   `json:"links"`
}

type Share struct {
	Label string  `json:"label"`
	Value float64 `json:"value"`
	Rows  int     `json:"rows"`
	Color string  `json:"color"`
}

type HierarchySpec struct {
	Title  string  `json:"title"`
	Total  float64 `json:"total"`
	Shares []Share `json:"shares"`
}

type Point struct {
	Period string  `json:"period"`
	Value  float64 `json:"value"`
}

type Series struct {
	Name   string  `json:"name"`
	Color  string  `json:"color"`
	Points []Point `json:"points"`
}

type TrendSpec struct {
	Title  string   `json:"title"`
	XAxis  string   `json:"xAxis"`
	YAxis  string   `json:"yAxis"`
	Series []Series `json:"series"`
}

type Figures struct {
	Flow      FlowSpec      `json:"flow"`
	Hierarchy HierarchySpec `json:"hierarchy"`
	Trend     TrendSpec     `json:"trend"`
}

func (s FlowSpec) Empty() bool      { return len(s.Links) == 0 }
func (s HierarchySpec) Empty() bool { return len(s.Shares) == 0 }
func (s TrendSpec) Empty() bool     { return len(s.Series) == 0 }

// Project derives the three chart specs from a table. It reads nothing but
// the table, so equal tables give equal specs.
func Project(table model.Table) Figures {
	if table.Empty() {
		return EmptyFigures()
	}
	return Figures{
		Flow:      BuildFlow(table),
		Hierarchy: BuildHierarchy(table),
		Trend:     BuildTrend(table),
	}
}

func EmptyFigures() Figures {
	return Figures{
		Flow:      FlowSpec{Title: FlowTitle, Nodes: []string{}, Links: []Link{}},
		Hierarchy: HierarchySpec{Title: HierarchyTitle, Shares: []Share{}},
		Trend:     TrendSpec{Title: TrendTitle, XAxis: "period", YAxis: "TradeValue", Series: []Series{}},
	}
}

func BuildFlow(table model.Table) FlowSpec {
	spec := FlowSpec{Title: FlowTitle, Nodes: []string{}, Links: []Link{}}
	if table.Empty() {
		return spec
	}

	spec.Nodes = make([]string, 0, table.Len()+2)
	spec.Links = make([]Link, 0, table.Len())
	spec.Nodes = append(spec.Nodes, table.Query.Reporter)
	for i, record := range table.Records {
		spec.Nodes = append(spec.Nodes, label(record.Commodity))
		spec.Links = append(spec.Links, Link{Source: 0, Target: i + 1, Value: tradeValue(record)})
	}
	spec.Nodes = append(spec.Nodes, table.Query.Partner)
	return spec
}

// BuildHierarchy groups rows by commodity in first-seen order. Sums are
// accumulated in decimal so that regrouping the same rows cannot drift.
func BuildHierarchy(table model.Table) HierarchySpec {
	spec := HierarchySpec{Title: HierarchyTitle, Shares: []Share{}}
	if table.Empty() {
		return spec
	}

	index := make(map[string]int)
	sums := make([]decimal.Decimal, 0)
	total := decimal.Zero
	for _, record := range table.Records {
		name := label(record.Commodity)
		value := decimal.NewFromFloat(tradeValue(record))
		total = total.Add(value)

		i, ok := index[name]
		if !ok {
			i = len(spec.Shares)
			index[name] = i
			spec.Shares = append(spec.Shares, Share{Label: name, Color: palette[i%len(palette)]})
			sums = append(sums, decimal.Zero)
		}
		sums[i] = sums[i].Add(value)
		spec.Shares[i].Rows++
	}

	for i := range spec.Shares {
		spec.Shares[i].Value = sums[i].InexactFloat64()
	}
	spec.Total = total.InexactFloat64()
	return spec
}

// BuildTrend emits one series per commodity, in first-seen order, with the
// points of each series in row order.
func BuildTrend(table model.Table) TrendSpec {
	spec := TrendSpec{Title: TrendTitle, XAxis: "period", YAxis: "TradeValue", Series: []Series{}}
	if table.Empty() {
		return spec
	}

	index := make(map[string]int)
	for _, record := range table.Records {
		name := label(record.Commodity)
		i, ok := index[name]
		if !ok {
			i = len(spec.Series)
			index[name] = i
			spec.Series = append(spec.Series, Series{Name: name, Color: palette[i%len(palette)], Points: []Point{}})
		}
		spec.Series[i].Points = append(spec.Series[i].Points, Point{Period: record.Period, Value: tradeValue(record)})
	}
	return spec
}

// tradeValue maps NaN and Inf to zero. Neither survives decimal conversion
// or JSON encoding.
func tradeValue(record model.Record) float64 {
	if math.IsNaN(record.TradeValue) || math.IsInf(record.TradeValue, 0) {
		return 0
	}
	return record.TradeValue
}

func label(commodity string) string {
	commodity = strings.TrimSpace(commodity)
	if commodity == "" {
		return unlabelled
	}
	return commodity
}
