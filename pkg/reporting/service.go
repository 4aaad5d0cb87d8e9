package reporting

//go:generate mockgen -destination=graph_source_mock_test.go -package=reporting . GraphSource

import (
	"context"
	"fmt"
	"sync"

	lru "github.com/hashicorp/golang-lru"
	"github.com/jensneuse/abstractlogger"

	"github.com/truecharts/truenas-go/pkg/rest"
)

const DefaultGraphCacheSize = 128

// GraphSource is implemented by rest.Client.
type GraphSource interface {
	ReportingGraphs(ctx context.Context) ([]rest.Graph, error)
	ReportingData(ctx context.Context, request rest.ReportingDataRequest) ([]rest.GraphData, error)
}

type UnknownGraphError struct {
	Name string
}

func (e *UnknownGraphError) Error() string {
	return fmt.Sprintf("reporting: unknown graph %q", e.Name)
}

// Service resolves graph definitions through an lru cache and fetches their series.
type Service struct {
	logger abstractlogger.Logger
	source GraphSource
	graphs *lru.Cache
	// loadMu serializes definition reloads on a cache miss.
	loadMu sync.Mutex
}

func NewService(logger abstractlogger.Logger, source GraphSource, cacheSize int) (*Service, error) {
	if logger == nil {
		logger = abstractlogger.Noop{}
	}
	if cacheSize <= 0 {
		cacheSize = DefaultGraphCacheSize
	}
	graphs, err := lru.New(cacheSize)
	if err != nil {
		return nil, err
	}
	return &Service{
		logger: logger,
		source: source,
		graphs: graphs,
	}, nil
}

// Graph returns the definition of name, loading all definitions on a cache miss.
func (s *Service) Graph(ctx context.Context, name string) (rest.Graph, error) {
	if graph, ok := s.cached(name); ok {
		return graph, nil
	}

	s.loadMu.Lock()
	defer s.loadMu.Unlock()

	if graph, ok := s.cached(name); ok {
		return graph, nil
	}

	graphs, err := s.source.ReportingGraphs(ctx)
	if err != nil {
		s.logger.Error("reporting.Service.Graph: on loading graph definitions",
			abstractlogger.Error(err),
		)
		return rest.Graph{}, err
	}

	s.logger.Debug("reporting.Service.Graph: on graph definitions loaded",
		abstractlogger.Any("count", len(graphs)),
	)

	var found *rest.Graph
	for i := range graphs {
		s.graphs.Add(graphs[i].Name, graphs[i])
		if graphs[i].Name == name {
			found = &graphs[i]
		}
	}
	if found == nil {
		return rest.Graph{}, &UnknownGraphError{Name: name}
	}
	return *found, nil
}

func (s *Service) cached(name string) (rest.Graph, bool) {
	value, ok := s.graphs.Get(name)
	if !ok {
		return rest.Graph{}, false
	}
	graph, ok := value.(rest.Graph)
	return graph, ok
}

// Series fetches and converts the data of graph name for every identifier it declares.
// A graph without identifiers is queried once.
func (s *Service) Series(ctx context.Context, name string, query *rest.ReportingQuery) ([]GraphSeries, error) {
	graph, err := s.Graph(ctx, name)
	if err != nil {
		return nil, err
	}

	request := rest.ReportingDataRequest{Query: query}
	if len(graph.Identifiers) == 0 {
		request.Graphs = []rest.GraphQuery{{Name: graph.Name}}
	}
	for i := range graph.Identifiers {
		request.Graphs = append(request.Graphs, rest.GraphQuery{Name: graph.Name, Identifier: &graph.Identifiers[i]})
	}

	data, err := s.source.ReportingData(ctx, request)
	if err != nil {
		return nil, err
	}
	return ConvertAll(data)
}
