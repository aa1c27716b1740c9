// Package storetest opens throwaway stores and seeds ready matters for tests.
package storetest

import (
	"context"
	"path/filepath"
	"testing"

	oa "github.com/joelkehle/office-action-response/internal/officeaction"
	"github.com/joelkehle/office-action-response/internal/store"
)

const (
	Owner         = "owner-1"
	ApplicationID = "a1b2c3d4e5"
)

func New(t testing.TB) *store.SQLiteStore {
	t.Helper()
	s, err := store.Open(filepath.Join(t.TempDir(), "store.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// Matter is a fully ingested application with one 103 rejection (rej-103)
// against claims 1-2, one 102 rejection (rej-102) against claim 10, and one
// 112(b) rejection (rej-112).
type Matter struct {
	Application *oa.Application
	Documents   *oa.ApplicationDocuments
}

func SeedMatter(t testing.TB, s store.API) Matter {
	t.Helper()
	tree := []oa.ClaimGroup{
		{IndependentClaim: 1, DependentClaims: []int{2}},
		{IndependentClaim: 10, DependentClaims: []int{}},
	}
	app := &oa.Application{
		ID:                ApplicationID,
		ApplicationNumber: "16/123,456",
		PublicationNumber: "US 2020/0123456 A1",
		OwnerID:           Owner,
		Title:             "Widget with lever",
		FilingDate:        "2019-05-01",
		Rejections: []oa.Rejection{
			{
				ID: "rej-103", Type: "35 U.S.C. 103", ClaimsRejected: []int{1, 2},
				PriorArt:          []oa.PriorArtReference{oa.NewPriorArtReference("US 7250547 B2"), oa.NewPriorArtReference("EP 1234567")},
				ExaminerReasoning: "Smith teaches the widget; Jones teaches the lever.",
			},
			{
				ID: "rej-102", Type: "35 U.S.C. 102(a)(1)", ClaimsRejected: []int{10},
				PriorArt:          []oa.PriorArtReference{oa.NewPriorArtReference("US 7250547 B2")},
				ExaminerReasoning: "Smith anticipates claim 10.",
			},
			{
				ID: "rej-112", Type: "35 U.S.C. 112(b)", ClaimsRejected: []int{2},
				ExaminerReasoning: "\"substantially\" is indefinite.",
			},
		},
		ClaimStatuses:       []oa.ClaimStatus{{ClaimNumbers: "1-2, 10", Status: oa.StatusRejected}},
		ClaimsIngested:      true,
		DescriptionIngested: true,
		PriorArtIngested:    true,
	}
	app.RecomputeAnalyzable(tree)
	docs := &oa.ApplicationDocuments{
		ApplicationID:   app.ID,
		ClaimText:       "1. (Original) A widget comprising a lever.\n2. (Original) The widget of claim 1, wherein the lever is substantially straight.\n10. (Original) A method of operating a widget.",
		DescriptionText: "The widget has a lever and a hinge that locks under load.",
		ClaimTree:       tree,
		PriorArt: []oa.PriorArtDocument{
			{ReferenceID: "US7250547B2", Description: "Smith describes a widget."},
			{ReferenceID: "EP1234567", Description: "Jones describes a lever."},
		},
	}
	ctx := context.Background()
	if err := s.InsertApplication(ctx, app); err != nil {
		t.Fatalf("insert application: %v", err)
	}
	if err := s.SaveDocuments(ctx, docs); err != nil {
		t.Fatalf("save documents: %v", err)
	}
	return Matter{Application: app, Documents: docs}
}
