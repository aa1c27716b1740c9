package officeaction

import "time"

type StrategyKind string

const (
	StrategyTechnicalComparison StrategyKind = "technicalComparison"
	StrategyNovelFeatures       StrategyKind = "novelFeatures"
	StrategyDependentClaims     StrategyKind = "dependentClaims"
	StrategyCompositeAmendment  StrategyKind = "compositeAmendment"
	StrategyOneFeatures         StrategyKind = "oneFeatures"
)

var StrategyKinds = []StrategyKind{
	StrategyTechnicalComparison,
	StrategyNovelFeatures,
	StrategyDependentClaims,
	StrategyCompositeAmendment,
	StrategyOneFeatures,
}

func ParseStrategyKind(s string) (StrategyKind, bool) {
	for _, k := range StrategyKinds {
		if string(k) == s {
			return k, true
		}
	}
	return "", false
}

type Docket struct {
	RejectionID       RejectionID         `json:"rejectionId"`
	ApplicationID     string              `json:"applicationId"`
	ClaimsRejected    []int               `json:"claimsRejected"`
	PriorArt          []PriorArtReference `json:"priorArtReferences"`
	Basis             Basis               `json:"basis"`
	FinalizedStrategy StrategyKind        `json:"finalizedStrategy,omitempty"`
	ShowFinalizedType bool                `json:"showFinalizedType"`
	CreatedAt         time.Time           `json:"createdAt"`
}

type ComparisonRow struct {
	FeatureNumber          int    `json:"featureNumber"`
	SubjectApplication     string `json:"subjectApplication"`
	PriorArt               string `json:"priorArt"`
	DifferentiatingFeature string `json:"differentiatingFeature"`
}

type ClaimElement struct {
	ElementID string `json:"elementId"`
	Text      string `json:"text"`
}

type AmendedClaim struct {
	Preamble           string         `json:"preamble"`
	Elements           []ClaimElement `json:"elements"`
	AdditionalElements []ClaimElement `json:"additionalElements,omitempty"`
}

func (c AmendedClaim) Empty() bool {
	return c.Preamble == "" && len(c.Elements) == 0 && len(c.AdditionalElements) == 0
}

// StrategyOutput is the shape every strategy returns.
type StrategyOutput struct {
	ComparisonTable   []ComparisonRow `json:"comparisonTable"`
	AmendedClaim      AmendedClaim    `json:"amendedClaim"`
	AmendmentStrategy string          `json:"amendmentStrategy"`
}

type StrategyResult struct {
	RejectionID   RejectionID  `json:"rejectionId"`
	ApplicationID string       `json:"applicationId"`
	Kind          StrategyKind `json:"kind"`
	StrategyOutput
	UpdatedAt time.Time `json:"updatedAt"`
}

type RecordStatus string

const (
	StatusDraft     RecordStatus = "draft"
	StatusFinalized RecordStatus = "finalized"
)

type FinalizedAmendment struct {
	RejectionID   RejectionID  `json:"rejectionId"`
	ApplicationID string       `json:"applicationId"`
	Kind          StrategyKind `json:"kind"`
	StrategyOutput
	Status      RecordStatus `json:"status"`
	FinalizedAt *time.Time   `json:"finalizedAt,omitempty"`
	UpdatedAt   time.Time    `json:"updatedAt"`
}

type OtherRejectionResponse struct {
	RejectionID   RejectionID  `json:"rejectionId"`
	ApplicationID string       `json:"applicationId"`
	Response      string       `json:"response"`
	Status        RecordStatus `json:"status"`
	FinalizedAt   *time.Time   `json:"finalizedAt,omitempty"`
	UpdatedAt     time.Time    `json:"updatedAt"`
}
