// Package graph implements the knowledge-graph adapter: entity/edge
// schema allow-lists, company/person entity-resolution normalization, and
// a Client that enforces tenant isolation and sequential per-group episode
// ingestion on top of db/repository.GraphRepository.
package graph

// EntityType is one of the schema's required node labels.
type EntityType string

const (
	EntityCompany         EntityType = "Company"
	EntityPerson          EntityType = "Person"
	EntityFinancialMetric EntityType = "FinancialMetric"
	EntityFinding         EntityType = "Finding"
	EntityRisk            EntityType = "Risk"
)

// EdgeType is one of the schema's required relationship labels.
type EdgeType string

const (
	EdgeWorksFor       EdgeType = "WORKS_FOR"
	EdgeSupersedes     EdgeType = "SUPERSEDES"
	EdgeContradicts    EdgeType = "CONTRADICTS"
	EdgeSupports       EdgeType = "SUPPORTS"
	EdgeExtractedFrom  EdgeType = "EXTRACTED_FROM"
	EdgeCompetesWith   EdgeType = "COMPETES_WITH"
	EdgeInvestsIn      EdgeType = "INVESTS_IN"
	EdgeMentions       EdgeType = "MENTIONS"
	EdgeSupplies       EdgeType = "SUPPLIES"
)

type edgeEndpoints struct {
	source EntityType
	target EntityType
}

// edgeAllowList restricts each edge type to the (source, target) entity
// pairs the schema permits, so extraction stays schema-guided while still
// admitting novel entities within those types.
var edgeAllowList = map[EdgeType][]edgeEndpoints{
	EdgeWorksFor:      {{EntityPerson, EntityCompany}},
	EdgeSupersedes:    {{EntityFinding, EntityFinding}, {EntityFinancialMetric, EntityFinancialMetric}},
	EdgeContradicts:   {{EntityFinding, EntityFinding}},
	EdgeSupports:      {{EntityFinding, EntityFinding}},
	EdgeExtractedFrom: {{EntityFinding, EntityCompany}, {EntityFinancialMetric, EntityCompany}},
	EdgeCompetesWith:  {{EntityCompany, EntityCompany}},
	EdgeInvestsIn:     {{EntityCompany, EntityCompany}, {EntityPerson, EntityCompany}},
	EdgeMentions:      {{EntityFinding, EntityPerson}, {EntityFinding, EntityCompany}, {EntityFinding, EntityRisk}},
	EdgeSupplies:      {{EntityCompany, EntityCompany}},
}

// AllowedEndpoints reports whether edgeType may connect an entity of
// source to one of target.
func AllowedEndpoints(edgeType EdgeType, source, target EntityType) bool {
	for _, pair := range edgeAllowList[edgeType] {
		if pair.source == source && pair.target == target {
			return true
		}
	}
	return false
}

// SchemaGuide is an allow-list of the entity/edge vocabulary above, with
// the permitted source/target entity types for each edge type.
type SchemaGuide struct {
	EntityTypes []EntityType
	EdgeTypes   []EdgeType
	Allowed     map[EdgeType][]edgeEndpoints
}

// MandASchema is the fixed M&A schema. Client.AddEpisode does not pass it
// to the graph store, and no extraction prompt includes it.
var MandASchema = SchemaGuide{
	EntityTypes: []EntityType{EntityCompany, EntityPerson, EntityFinancialMetric, EntityFinding, EntityRisk},
	EdgeTypes: []EdgeType{
		EdgeWorksFor, EdgeSupersedes, EdgeContradicts, EdgeSupports, EdgeExtractedFrom,
		EdgeCompetesWith, EdgeInvestsIn, EdgeMentions, EdgeSupplies,
	},
	Allowed: edgeAllowList,
}
