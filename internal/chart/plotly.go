package chart

// Figure is the JSON shape Plotly.newPlot/react accept: a list of traces and
// a layout. A figure with no traces renders as a blank chart.
type Figure struct {
	Data   []map[string]any `json:"data"`
	Layout map[string]any   `json:"layout"`
}

type PlotlyFigures struct {
	Flow      Figure `json:"flow"`
	Hierarchy Figure `json:"hierarchy"`
	Trend     Figure `json:"trend"`
}

func (f Figures) Plotly() PlotlyFigures {
	return PlotlyFigures{
		Flow:      f.Flow.Plotly(),
		Hierarchy: f.Hierarchy.Plotly(),
		Trend:     f.Trend.Plotly(),
	}
}

func (s FlowSpec) Plotly() Figure {
	if s.Empty() {
		return blankFigure()
	}
	sources := make([]int, len(s.Links))
	targets := make([]int, len(s.Links))
	values := make([]float64, len(s.Links))
	for i, link := range s.Links {
		sources[i] = link.Source
		targets[i] = link.Target
		values[i] = link.Value
	}
	return Figure{
		Data: []map[string]any{{
			"type": "sankey",
			"node": map[string]any{"label": s.Nodes},
			"link": map[string]any{"source": sources, "target": targets, "value": values},
		}},
		Layout: layout(s.Title),
	}
}

func (s HierarchySpec) Plotly() Figure {
	if s.Empty() {
		return blankFigure()
	}
	labels := make([]string, len(s.Shares))
	parents := make([]string, len(s.Shares))
	values := make([]float64, len(s.Shares))
	colors := make([]string, len(s.Shares))
	for i, share := range s.Shares {
		labels[i] = share.Label
		values[i] = share.Value
		colors[i] = share.Color
	}
	return Figure{
		Data: []map[string]any{{
			"type":         "treemap",
			"labels":       labels,
			"parents":      parents,
			"values":       values,
			"branchvalues": "total",
			"marker":       map[string]any{"colors": colors},
		}},
		Layout: layout(s.Title),
	}
}

func (s TrendSpec) Plotly() Figure {
	if s.Empty() {
		return blankFigure()
	}
	traces := make([]map[string]any, 0, len(s.Series))
	for _, series := range s.Series {
		xs := make([]string, len(series.Points))
		ys := make([]float64, len(series.Points))
		for i, point := range series.Points {
			xs[i] = point.Period
			ys[i] = point.Value
		}
		traces = append(traces, map[string]any{
			"type": "scatter",
			"mode": "lines+markers",
			"name": series.Name,
			"x":    xs,
			"y":    ys,
			"line": map[string]any{"color": series.Color},
		})
	}
	fig := Figure{Data: traces, Layout: layout(s.Title)}
	fig.Layout["xaxis"] = map[string]any{"title": map[string]any{"text": s.XAxis}, "type": "category"}
	fig.Layout["yaxis"] = map[string]any{"title": map[string]any{"text": s.YAxis}}
	return fig
}

func layout(title string) map[string]any {
	return map[string]any{"title": map[string]any{"text": title}}
}

func blankFigure() Figure {
	return Figure{Data: []map[string]any{}, Layout: map[string]any{}}
}
