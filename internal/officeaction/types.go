package officeaction

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

const UnknownRejectionType = "Unknown Rejection Type"

// RejectionID is minted once at extraction time and is the join key for
// every record derived from a rejection.
type RejectionID string

func NewRejectionID() RejectionID { return RejectionID(uuid.NewString()) }

func (id RejectionID) String() string { return string(id) }

type PriorArtReference struct {
	Citation string `json:"citation"`
	// ReferenceID is the compact lookup key, e.g. "US7250547B2".
	ReferenceID string `json:"referenceId"`
	URL         string `json:"url"`
}

type Rejection struct {
	ID                RejectionID         `json:"id"`
	Type              string              `json:"rejectionType"`
	ClaimsRejected    []int               `json:"claimsRejected"`
	PriorArt          []PriorArtReference `json:"priorArtReferences"`
	ExaminerReasoning string              `json:"examinerReasoning"`
	Analyzable        bool                `json:"analyzable"`
}

// Basis buckets the statutory type into "102", "103" or "" for everything
// answered with a freeform response.
func (r Rejection) Basis() Basis {
	return BasisOf(r.Type)
}

type Basis string

const (
	BasisNone Basis = ""
	Basis102  Basis = "102"
	Basis103  Basis = "103"
)

func BasisOf(rejectionType string) Basis {
	t := strings.ToLower(rejectionType)
	if strings.Contains(t, "double patenting") {
		return BasisNone
	}
	switch {
	case strings.Contains(t, "103"):
		return Basis103
	case strings.Contains(t, "102"):
		return Basis102
	default:
		return BasisNone
	}
}

type ClaimStatusKind string

const (
	StatusPending             ClaimStatusKind = "Pending"
	StatusRejected            ClaimStatusKind = "Rejected"
	StatusWithdrawn           ClaimStatusKind = "Withdrawn"
	StatusCanceled            ClaimStatusKind = "Canceled"
	StatusAllowed             ClaimStatusKind = "Allowed"
	StatusObjected            ClaimStatusKind = "Objected"
	StatusIndicatedAllowable  ClaimStatusKind = "Indicated Allowable"
	StatusPreviouslyPresented ClaimStatusKind = "Previously Presented"
	StatusCurrentlyAmended    ClaimStatusKind = "Currently Amended"
	StatusNew                 ClaimStatusKind = "New"
)

var claimStatusKinds = []ClaimStatusKind{
	StatusPending, StatusRejected, StatusWithdrawn, StatusCanceled, StatusAllowed,
	StatusObjected, StatusIndicatedAllowable, StatusPreviouslyPresented, StatusCurrentlyAmended, StatusNew,
}

// ParseClaimStatus matches s case-insensitively against the fixed set,
// accepting "Cancelled" for Canceled.
func ParseClaimStatus(s string) (ClaimStatusKind, bool) {
	norm := strings.Join(strings.Fields(strings.ToLower(s)), " ")
	if norm == "cancelled" {
		norm = "canceled"
	}
	for _, k := range claimStatusKinds {
		if strings.ToLower(string(k)) == norm {
			return k, true
		}
	}
	return "", false
}

type ClaimStatus struct {
	// ClaimNumbers is the range as written, e.g. "1-5, 7".
	ClaimNumbers string          `json:"claimNumbers"`
	Status       ClaimStatusKind `json:"status"`
	Basis        string          `json:"type,omitempty"`
}

type Application struct {
	ID                  string        `json:"id"`
	ApplicationNumber   string        `json:"applicationNumber"`
	PublicationNumber   string        `json:"publicationNumber"`
	OwnerID             string        `json:"ownerId"`
	Title               string        `json:"title"`
	FilingDate          string        `json:"filingDate"`
	Rejections          []Rejection   `json:"rejections"`
	ClaimStatuses       []ClaimStatus `json:"claimStatus"`
	ClaimsIngested      bool          `json:"claimsIngested"`
	DescriptionIngested bool          `json:"descriptionIngested"`
	PriorArtIngested    bool          `json:"priorArtIngested"`
	// FirstAction is a best-effort signal from document history, not a legal fact.
	FirstAction bool      `json:"firstAction"`
	ClaimCount  int       `json:"claimCount,omitempty"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

func (a *Application) Ready() bool {
	return a.ClaimsIngested && a.DescriptionIngested && a.PriorArtIngested
}

func (a *Application) Rejection(id RejectionID) (*Rejection, bool) {
	for i := range a.Rejections {
		if a.Rejections[i].ID == id {
			return &a.Rejections[i], true
		}
	}
	return nil, false
}

type ClaimGroup struct {
	IndependentClaim     int    `json:"independentClaim"`
	IndependentClaimText string `json:"independentClaimText,omitempty"`
	DependentClaims      []int  `json:"dependentClaims"`
}

type PriorArtDocument struct {
	ReferenceID string `json:"referenceId"`
	Description string `json:"description"`
}

type ApplicationDocuments struct {
	ApplicationID   string             `json:"applicationId"`
	ClaimText       string             `json:"claimText"`
	DescriptionText string             `json:"descriptionText"`
	ClaimTree       []ClaimGroup       `json:"claimTree"`
	PriorArt        []PriorArtDocument `json:"priorArt"`
	UpdatedAt       time.Time          `json:"updatedAt"`
}

func (d *ApplicationDocuments) PriorArtDescription(referenceID string) (string, bool) {
	for _, p := range d.PriorArt {
		if p.ReferenceID == referenceID && strings.TrimSpace(p.Description) != "" {
			return p.Description, true
		}
	}
	return "", false
}
