package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	"github.com/hoferino/manda-platform/domain"
)

// Neo4jGraphRepository implements GraphRepository. Every Cypher statement
// below is parameterized by group_id and nothing in this file ever
// concatenates a caller-supplied string into a query: the isolation
// invariant depends on that discipline holding at every call site.
type Neo4jGraphRepository struct {
	driver neo4j.DriverWithContext
}

func NewNeo4jGraphRepository(uri, username, password string) (*Neo4jGraphRepository, error) {
	ctx := context.Background()

	driver, err := neo4j.NewDriverWithContext(uri, neo4j.BasicAuth(username, password, ""))
	if err != nil {
		return nil, fmt.Errorf("create neo4j driver: %w", err)
	}
	if err := driver.VerifyConnectivity(ctx); err != nil {
		return nil, fmt.Errorf("connect to neo4j: %w", err)
	}
	return &Neo4jGraphRepository{driver: driver}, nil
}

// EnsureSchema creates the indexes the adapter relies on. Index creation is
// idempotent; "already exists" is not an error.
func (r *Neo4jGraphRepository) EnsureSchema(ctx context.Context) error {
	session := r.driver.NewSession(ctx, neo4j.SessionConfig{AccessMode: neo4j.AccessModeWrite})
	defer session.Close(ctx)

	statements := []string{
		`CREATE INDEX episode_group_id IF NOT EXISTS FOR (e:Episode) ON (e.group_id)`,
		`CREATE INDEX entity_group_id IF NOT EXISTS FOR (n:Entity) ON (n.group_id)`,
		`CREATE FULLTEXT INDEX entity_name_fulltext IF NOT EXISTS FOR (n:Entity) ON EACH [n.name]`,
	}
	for _, stmt := range statements {
		if _, err := session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (interface{}, error) {
			return tx.Run(ctx, stmt, nil)
		}); err != nil {
			return fmt.Errorf("ensure schema (%s): %w", stmt, err)
		}
	}
	return nil
}

// AddEpisode merges an Episode node scoped to group_id. Entity/edge
// extraction from episode content is out of scope for this adapter layer
//; the episode node itself is the
// durable record the rest of the graph schema hangs extracted entities off
// of via EXTRACTED_FROM edges created by SyncFinding and the stage handlers.
func (r *Neo4jGraphRepository) AddEpisode(ctx context.Context, groupID string, episode domain.Episode) error {
	session := r.driver.NewSession(ctx, neo4j.SessionConfig{AccessMode: neo4j.AccessModeWrite})
	defer session.Close(ctx)

	_, err := session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (interface{}, error) {
		_, err := tx.Run(ctx, `
			MERGE (e:Episode {id: $id})
			SET e.group_id = $groupId,
			    e.source = $source,
			    e.name = $name,
			    e.content = $content,
			    e.reference_id = $referenceId,
			    e.confidence = $confidence,
			    e.occurred_at = $occurredAt,
			    e.ingested_at = $ingestedAt
		`, map[string]interface{}{
			"id":          episode.ID,
			"groupId":     groupID,
			"source":      string(episode.Source),
			"name":        episode.Name,
			"content":     episode.Content,
			"referenceId": episode.ReferenceID,
			"confidence":  episode.Confidence,
			"occurredAt":  episode.OccurredAt.Format(time.RFC3339),
			"ingestedAt":  episode.IngestedAt.Format(time.RFC3339),
		})
		return nil, err
	})
	if err != nil {
		return fmt.Errorf("add episode %s: %w", episode.ID, err)
	}
	return nil
}

// Search runs a full-text lookup over entity names scoped to group_id, the
// slice of a hybrid vector + full-text + graph-context search this adapter
// implements directly; vector re-ranking is expected to happen in the
// caller using chunk embeddings already in Postgres.
func (r *Neo4jGraphRepository) Search(ctx context.Context, groupID, query string, numResults int) ([]SearchResult, error) {
	session := r.driver.NewSession(ctx, neo4j.SessionConfig{AccessMode: neo4j.AccessModeRead})
	defer session.Close(ctx)

	result, err := session.ExecuteRead(ctx, func(tx neo4j.ManagedTransaction) (interface{}, error) {
		res, err := tx.Run(ctx, `
			CALL db.index.fulltext.queryNodes("entity_name_fulltext", $query) YIELD node, score
			WHERE node.group_id = $groupId
			RETURN node.id AS id, node.name AS name, labels(node)[0] AS type, score,
			       coalesce(node.summary, "") AS summary
			ORDER BY score DESC
			LIMIT $limit
		`, map[string]interface{}{"query": query, "groupId": groupID, "limit": numResults})
		if err != nil {
			return nil, err
		}

		var hits []SearchResult
		for res.Next(ctx) {
			rec := res.Record()
			id, _ := rec.Get("id")
			name, _ := rec.Get("name")
			typ, _ := rec.Get("type")
			score, _ := rec.Get("score")
			summary, _ := rec.Get("summary")
			hits = append(hits, SearchResult{
				EntityID: fmt.Sprintf("%v", id),
				Name:     fmt.Sprintf("%v", name),
				Type:     fmt.Sprintf("%v", typ),
				Score:    toFloat64(score),
				Summary:  fmt.Sprintf("%v", summary),
			})
		}
		return hits, res.Err()
	})
	if err != nil {
		return nil, fmt.Errorf("search group %s: %w", groupID, err)
	}
	return result.([]SearchResult), nil
}

func toFloat64(v interface{}) float64 {
	if f, ok := v.(float64); ok {
		return f
	}
	return 0
}

// SyncFinding creates a Finding node with an EXTRACTED_FROM edge to its
// Document node, both scoped to group_id. Called best-effort from the
// analyze stage; failures here are logged by the caller and never
// fail the stage, since the relational store remains source of truth.
func (r *Neo4jGraphRepository) SyncFinding(ctx context.Context, groupID string, finding domain.Finding, documentNodeID string) error {
	session := r.driver.NewSession(ctx, neo4j.SessionConfig{AccessMode: neo4j.AccessModeWrite})
	defer session.Close(ctx)

	_, err := session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (interface{}, error) {
		_, err := tx.Run(ctx, `
			MERGE (f:Finding {id: $findingId})
			SET f.group_id = $groupId,
			    f.text = $text,
			    f.finding_type = $findingType,
			    f.domain = $domain,
			    f.confidence = $confidence
			MERGE (d:Document {id: $documentId})
			SET d.group_id = $groupId
			MERGE (f)-[:EXTRACTED_FROM]->(d)
		`, map[string]interface{}{
			"findingId":   finding.ID,
			"groupId":     groupID,
			"text":        finding.Text,
			"findingType": string(finding.Type),
			"domain":      string(finding.Domain),
			"confidence":  finding.Confidence,
			"documentId":  documentNodeID,
		})
		return nil, err
	})
	if err != nil {
		return fmt.Errorf("sync finding %s: %w", finding.ID, err)
	}
	return nil
}

func (r *Neo4jGraphRepository) Close(ctx context.Context) error {
	return r.driver.Close(ctx)
}
