package adminserver

import (
	"encoding/json"
	"net/http"

	"github.com/graphql-go/graphql"

	"github.com/mnohosten/pagestore/pkg/storage"
	"github.com/mnohosten/pagestore/pkg/taskrunner"
)

// newGraphQLSchema builds a minimal schema exposing a single pageStats
// query. A page store has no document graph to traverse, so one
// read-only query is the whole surface. The resolver runs its engine
// reads on the workers pool and awaits the result.
func newGraphQLSchema(engine *storage.Engine, workers *taskrunner.Pool) (graphql.Schema, error) {
	bufferPoolType := graphql.NewObject(graphql.ObjectConfig{
		Name: "BufferPoolStats",
		Fields: graphql.Fields{
			"hits":        &graphql.Field{Type: graphql.Float},
			"misses":      &graphql.Field{Type: graphql.Float},
			"ioErrors":    &graphql.Field{Type: graphql.Float},
			"allocations": &graphql.Field{Type: graphql.Float},
			"writes":      &graphql.Field{Type: graphql.Float},
			"bufferFull":  &graphql.Field{Type: graphql.Float},
			"numFrames":   &graphql.Field{Type: graphql.Int},
		},
	})

	pageHeaderType := graphql.NewObject(graphql.ObjectConfig{
		Name: "PageHeader",
		Fields: graphql.Fields{
			"slotCount":  &graphql.Field{Type: graphql.Int},
			"freeStart":  &graphql.Field{Type: graphql.Int},
			"freeEnd":    &graphql.Field{Type: graphql.Int},
			"freeSpace":  &graphql.Field{Type: graphql.Int},
			"canCompact": &graphql.Field{Type: graphql.Boolean},
			"pageNumber": &graphql.Field{Type: graphql.Float},
			"pageType":   &graphql.Field{Type: graphql.Int},
		},
	})

	pageStatsType := graphql.NewObject(graphql.ObjectConfig{
		Name: "PageStats",
		Fields: graphql.Fields{
			"registeredFiles": &graphql.Field{Type: graphql.Int},
			"bufferPool":      &graphql.Field{Type: bufferPoolType},
			"page":            &graphql.Field{Type: pageHeaderType},
		},
	})

	queryType := graphql.NewObject(graphql.ObjectConfig{
		Name: "Query",
		Fields: graphql.Fields{
			"pageStats": &graphql.Field{
				Type: pageStatsType,
				Args: graphql.FieldConfigArgument{
					"fileID":     &graphql.ArgumentConfig{Type: graphql.Int},
					"pageNumber": &graphql.ArgumentConfig{Type: graphql.Int},
				},
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					fileID, haveFile := p.Args["fileID"].(int)
					pageNumber, havePage := p.Args["pageNumber"].(int)

					var stats storage.BufferPoolStats
					var fileIDs []storage.FileID
					var pageHeader map[string]interface{}
					err := workers.DoFunc(p.Context, func() error {
						stats = engine.BufferPoolStats()
						fileIDs = engine.Catalog().FileIDs()
						if !haveFile || !havePage {
							return nil
						}
						pageID := storage.PageID{FileID: storage.FileID(fileID), PageNumber: uint32(pageNumber)}
						guard, err := engine.ReadPage(pageID)
						if err != nil {
							return err
						}
						defer guard.Release()
						info, err := guard.Page().HeaderInfo()
						if err != nil {
							return err
						}
						pageHeader = map[string]interface{}{
							"slotCount":  int(info.SlotCount),
							"freeStart":  int(info.FreeStart),
							"freeEnd":    int(info.FreeEnd),
							"freeSpace":  int(info.FreeSpace),
							"canCompact": info.CanCompact,
							"pageNumber": float64(info.PageNumber),
							"pageType":   int(info.PageType),
						}
						return nil
					})
					if err != nil {
						return nil, err
					}
					result := map[string]interface{}{
						"registeredFiles": len(fileIDs),
						"bufferPool": map[string]interface{}{
							"hits":        stats.Hits,
							"misses":      stats.Misses,
							"ioErrors":    stats.IOErrors,
							"allocations": stats.Allocations,
							"writes":      stats.Writes,
							"bufferFull":  stats.BufferFull,
							"numFrames":   stats.NumFrames,
						},
					}
					if pageHeader != nil {
						result["page"] = pageHeader
					}
					return result, nil
				},
			},
		},
	})

	return graphql.NewSchema(graphql.SchemaConfig{Query: queryType})
}

type graphQLRequest struct {
	Query     string                 `json:"query"`
	Variables map[string]interface{} `json:"variables"`
}

// graphQLHandler serves POST /graphql against the pageStats schema.
func graphQLHandler(schema graphql.Schema) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req graphQLRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "invalid GraphQL request body", http.StatusBadRequest)
			return
		}

		result := graphql.Do(graphql.Params{
			Schema:         schema,
			RequestString:  req.Query,
			VariableValues: req.Variables,
		})

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(result)
	}
}
