package stages

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/hoferino/manda-platform/common"
	"github.com/hoferino/manda-platform/domain"
	"github.com/hoferino/manda-platform/llm"
)

// maxFindingsPerDomain caps each domain group before pairing so pair count
// stays bounded regardless of how many findings a deal accumulates.
const maxFindingsPerDomain = 100

// contradictionConfidenceThreshold is the minimum LLM-reported confidence
// required to persist a contradiction.
const contradictionConfidenceThreshold = 0.70

var contradictionSchema = map[string]interface{}{
	"type": "array",
	"items": map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"pair_index":  map[string]interface{}{"type": "integer"},
			"contradicts": map[string]interface{}{"type": "boolean"},
			"confidence":  map[string]interface{}{"type": "number"},
			"reason":      map[string]interface{}{"type": "string"},
		},
		"required": []string{"pair_index", "contradicts", "confidence"},
	},
}

const contradictionSystemPrompt = "You compare pairs of due-diligence findings and judge whether they factually contradict each other. Respond only with the requested JSON, referencing each pair by its pair_index."

type pairComparison struct {
	PairIndex   int     `json:"pair_index"`
	Contradicts bool    `json:"contradicts"`
	Confidence  float64 `json:"confidence"`
	Reason      string  `json:"reason"`
}

type findingPair struct {
	A domain.Finding
	B domain.Finding
}

// DetectContradictionsHandler runs a deal-wide pairwise comparison within
// each finding domain, sequential per invocation since pairs share one LLM
// client.
type DetectContradictionsHandler struct {
	deps *Deps
	log  *common.ContextLogger
}

func NewDetectContradictionsHandler(deps *Deps) *DetectContradictionsHandler {
	return &DetectContradictionsHandler{deps: deps, log: common.ComponentLogger("stage_detect_contradictions")}
}

func (h *DetectContradictionsHandler) Handle(ctx context.Context, job domain.Job) error {
	dealID, _ := job.Payload["deal_id"].(string)
	if dealID == "" {
		return fmt.Errorf("permanent: job %s missing deal_id", job.ID)
	}
	log := h.log.WithField("deal_id", dealID)

	findings, err := h.deps.Relational.GetFindingsForDeal(ctx, dealID, domain.FindingRejected)
	if err != nil {
		return fmt.Errorf("permanent: get findings for deal: %w", err)
	}

	byDomain := make(map[domain.FindingDomain][]domain.Finding)
	for _, f := range findings {
		byDomain[f.Domain] = append(byDomain[f.Domain], f)
	}

	var pairs []findingPair
	for _, group := range byDomain {
		sort.Slice(group, func(i, j int) bool { return group[i].Confidence > group[j].Confidence })
		if len(group) > maxFindingsPerDomain {
			group = group[:maxFindingsPerDomain]
		}
		pairs = append(pairs, candidatePairs(group)...)
	}

	if len(pairs) == 0 {
		log.Info("no candidate finding pairs, detect-contradictions complete")
		return nil
	}

	batchSize := h.deps.PairBatchSize
	if batchSize <= 0 {
		batchSize = 5
	}
	usageCtx := llm.Context{DealID: dealID, Feature: "detect_contradictions"}

	inserted := 0
	for start := 0; start < len(pairs); start += batchSize {
		end := start + batchSize
		if end > len(pairs) {
			end = len(pairs)
		}
		batch := pairs[start:end]

		comparisons, err := h.compareBatch(ctx, usageCtx, batch)
		if err != nil {
			log.WithError(err).WithField("batch_start", start).Warn("contradiction comparison batch failed, skipping")
			continue
		}

		for _, cmp := range comparisons {
			if !cmp.Contradicts || cmp.Confidence < contradictionConfidenceThreshold {
				continue
			}
			if cmp.PairIndex < 0 || cmp.PairIndex >= len(batch) {
				continue
			}
			pair := batch[cmp.PairIndex]

			ok, err := h.deps.Relational.InsertContradictionIfAbsent(ctx, domain.Contradiction{
				ID:          domain.NewID(),
				DealID:      dealID,
				Domain:      pair.A.Domain,
				FindingAID:  pair.A.ID,
				FindingBID:  pair.B.ID,
				Explanation: cmp.Reason,
				Confidence:  cmp.Confidence,
				Status:      domain.ContradictionUnresolved,
				DetectedAt:  time.Now().UTC(),
			})
			if err != nil {
				log.WithError(err).Warn("insert contradiction failed")
				continue
			}
			if ok {
				inserted++
			}
		}
	}

	log.WithField("contradiction_count", inserted).Info("detect-contradictions stage complete")
	return nil
}

// candidatePairs generates unordered pairs within group, pre-filtering
// identical normalized text, same chunk_id, and pairs whose
// date_referenced metadata are both set and differ.
func candidatePairs(group []domain.Finding) []findingPair {
	var pairs []findingPair
	for i := 0; i < len(group); i++ {
		for j := i + 1; j < len(group); j++ {
			a, b := group[i], group[j]
			if normalizeText(a.Text) == normalizeText(b.Text) {
				continue
			}
			if a.ChunkID != nil && b.ChunkID != nil && *a.ChunkID == *b.ChunkID {
				continue
			}
			dateA, okA := a.DateReferenced()
			dateB, okB := b.DateReferenced()
			if okA && okB && dateA != dateB {
				continue
			}
			pairs = append(pairs, findingPair{A: a, B: b})
		}
	}
	return pairs
}

func normalizeText(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

func (h *DetectContradictionsHandler) compareBatch(ctx context.Context, usageCtx llm.Context, batch []findingPair) ([]pairComparison, error) {
	var b strings.Builder
	for i, p := range batch {
		fmt.Fprintf(&b, "pair_index=%d\nA: %s\nB: %s\n\n", i, p.A.Text, p.B.Text)
	}

	result, usage, err := h.deps.Models.Run(ctx, b.String(), contradictionSystemPrompt, llm.TierFlash, contradictionSchema)
	h.deps.Usage.Record(ctx, usageCtx, usage)
	if err != nil {
		return nil, fmt.Errorf("compare pair batch: %w", err)
	}

	var comparisons []pairComparison
	source := result.Text
	if result.Structured != nil {
		if raw, err := json.Marshal(result.Structured["comparisons"]); err == nil && len(raw) > 0 && string(raw) != "null" {
			source = string(raw)
		} else if raw, err := json.Marshal(result.Structured); err == nil {
			source = string(raw)
		}
	}
	if err := json.Unmarshal([]byte(source), &comparisons); err != nil {
		return nil, fmt.Errorf("unmarshal pair comparisons: %w", err)
	}
	return comparisons, nil
}
