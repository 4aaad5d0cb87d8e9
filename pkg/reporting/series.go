package reporting

import (
	"errors"
	"time"

	"github.com/truecharts/truenas-go/pkg/rest"
)

const timeLegend = "time"

var ErrRowLengthMismatch = errors.New("data row does not match legend")

type Point struct {
	Time  time.Time
	Value float64
}

type Series struct {
	Name   string
	Points []Point
}

// GraphSeries is a converted reporting/get_data entry.
type GraphSeries struct {
	Graph      string
	Identifier string
	Start      time.Time
	End        time.Time
	Series     []Series
}

// Convert turns rows of a get_data result into one series per legend entry. When the first
// legend entry is "time" the timestamps are taken from the rows, otherwise they are derived
// from start and step. Null samples are dropped.
func Convert(data rest.GraphData) (GraphSeries, error) {
	graph := GraphSeries{
		Graph: data.Name,
		Start: time.Unix(data.Start, 0).UTC(),
		End:   time.Unix(data.End, 0).UTC(),
	}
	if data.Identifier != nil {
		graph.Identifier = *data.Identifier
	}

	legend := data.Legend
	timeInRows := len(legend) > 0 && legend[0] == timeLegend
	if timeInRows {
		legend = legend[1:]
	}

	graph.Series = make([]Series, len(legend))
	for i, name := range legend {
		graph.Series[i].Name = name
	}

	step := data.Step
	if step <= 0 && !timeInRows && len(data.Data) > 1 && data.End > data.Start {
		step = (data.End - data.Start) / int64(len(data.Data)-1)
	}

	for rowIndex, row := range data.Data {
		var timestamp time.Time
		samples := row
		if timeInRows {
			if len(row) == 0 || row[0] == nil {
				continue
			}
			timestamp = time.Unix(int64(*row[0]), 0).UTC()
			samples = row[1:]
		} else {
			timestamp = time.Unix(data.Start+int64(rowIndex)*step, 0).UTC()
		}

		if len(samples) != len(legend) {
			return GraphSeries{}, ErrRowLengthMismatch
		}

		for i, sample := range samples {
			if sample == nil {
				continue
			}
			graph.Series[i].Points = append(graph.Series[i].Points, Point{Time: timestamp, Value: *sample})
		}
	}

	return graph, nil
}

// ConvertAll converts every entry and stops at the first malformed one.
func ConvertAll(data []rest.GraphData) ([]GraphSeries, error) {
	graphs := make([]GraphSeries, 0, len(data))
	for _, entry := range data {
		graph, err := Convert(entry)
		if err != nil {
			return nil, err
		}
		graphs = append(graphs, graph)
	}
	return graphs, nil
}
