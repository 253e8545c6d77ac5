package graph

import (
	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"github.com/neo4j/neo4j-go-driver/v5/neo4j/dbtype"

	"github.com/formalab/cadgraph/pkg/repo"
)

// FeatureNode is the read-back view of a persisted feature, for callers that
// query construction history without touching raw cypher.
type FeatureNode struct {
	StableID      string  `json:"stable_id"`
	Name          string  `json:"name"`
	ComponentID   string  `json:"component_id"`
	TimelineIndex int64   `json:"timeline_index"`
	Operation     string  `json:"operation"`
	Distance      float64 `json:"distance"`
}

// NewFeatureRepo creates a repository over persisted Feature nodes.
func NewFeatureRepo(driver neo4j.DriverWithContext) *repo.Neo4jRepo[FeatureNode, string] {
	return repo.NewNeo4jRepo[FeatureNode, string](
		driver,
		LabelFeature,
		featureToMap,
		featureFromRecord,
		repo.WithIDKey[FeatureNode, string]("stable_id"),
	)
}

func featureToMap(f FeatureNode) map[string]any {
	return map[string]any{
		"stable_id":      f.StableID,
		"name":           f.Name,
		"component_id":   f.ComponentID,
		"timeline_index": f.TimelineIndex,
		"operation":      f.Operation,
		"distance":       f.Distance,
	}
}

func featureFromRecord(rec *neo4j.Record) (FeatureNode, error) {
	node, _, err := neo4j.GetRecordValue[dbtype.Node](rec, "n")
	if err != nil {
		return FeatureNode{}, err
	}
	props := node.Props
	f := FeatureNode{
		StableID:    strProp(props, "stable_id"),
		Name:        strProp(props, "name"),
		ComponentID: strProp(props, "component_id"),
		Operation:   strProp(props, "operation"),
	}
	if v, ok := props["timeline_index"].(int64); ok {
		f.TimelineIndex = v
	}
	if v, ok := props["distance"].(float64); ok {
		f.Distance = v
	}
	return f, nil
}

func strProp(props map[string]any, key string) string {
	if v, ok := props[key]; ok {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}
