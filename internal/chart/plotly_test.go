package chart

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPlotlyFlow(t *testing.T) {
	fig := Project(oilGasTable()).Flow.Plotly()
	require.Len(t, fig.Data, 1)
	trace := fig.Data[0]
	assert.Equal(t, "sankey", trace["type"])
	assert.Equal(t, map[string]any{"label": []string{"NGA", "Oil", "Gas", "Oil", "WLD"}}, trace["node"])
	assert.Equal(t, map[string]any{
		"source": []int{0, 0, 0},
		"target": []int{1, 2, 3},
		"value":  []float64{100, 50, 25},
	}, trace["link"])
}

func TestPlotlyHierarchy(t *testing.T) {
	fig := Project(oilGasTable()).Hierarchy.Plotly()
	require.Len(t, fig.Data, 1)
	assert.Equal(t, "treemap", fig.Data[0]["type"])
	assert.Equal(t, []string{"Oil", "Gas"}, fig.Data[0]["labels"])
	assert.Equal(t, []string{"", ""}, fig.Data[0]["parents"])
	assert.Equal(t, []float64{125, 50}, fig.Data[0]["values"])
	assert.Equal(t, map[string]any{"text": HierarchyTitle}, fig.Layout["title"])
}

func TestPlotlyTrend(t *testing.T) {
	fig := Project(oilGasTable()).Trend.Plotly()
	require.Len(t, fig.Data, 2)
	assert.Equal(t, "Oil", fig.Data[0]["name"])
	assert.Equal(t, []string{"2022", "2024"}, fig.Data[0]["x"])
	assert.Equal(t, []float64{100, 25}, fig.Data[0]["y"])
	assert.Equal(t, "Gas", fig.Data[1]["name"])
}

func TestPlotlyEmptyFiguresAreBlank(t *testing.T) {
	figs := EmptyFigures().Plotly()
	for _, fig := range []Figure{figs.Flow, figs.Hierarchy, figs.Trend} {
		assert.NotNil(t, fig.Data)
		assert.Empty(t, fig.Data)
		assert.NotNil(t, fig.Layout)
	}
}
