package store

import (
	"context"
	"database/sql"
	"fmt"
	"testing"
	"time"

	"github.com/erazemk/najdeno/internal/model"
)

var testNow = time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)

var itemSeq int

func mustUser(t *testing.T, database *sql.DB, username string) *model.User {
	t.Helper()
	u, err := CreateUser(context.Background(), database, username, "hash", model.RoleUser, testNow)
	if err != nil {
		t.Fatalf("CreateUser: %v", err)
	}
	return u
}

func mustItem(t *testing.T, database *sql.DB, reporterID int64, status model.ItemStatus, verification model.VerificationStatus) *model.Item {
	t.Helper()
	ctx := context.Background()

	itemSeq++
	item := &model.Item{
		ReferenceNumber:    fmt.Sprintf("LF-2026-%08d", itemSeq),
		Title:              "Blue backpack",
		Description:        "Left in the library",
		Category:           "bags",
		Color:              "blue",
		Condition:          "worn",
		Location:           "Library 2nd floor",
		Date:               "2026-03-01",
		Status:             status,
		VerificationStatus: verification,
		ReporterID:         reporterID,
		CreatedAt:          testNow,
		UpdatedAt:          testNow,
	}
	id, err := CreateItem(ctx, database, item)
	if err != nil {
		t.Fatalf("CreateItem: %v", err)
	}
	got, err := GetItem(ctx, database, id)
	if err != nil || got == nil {
		t.Fatalf("GetItem(%d): %v", id, err)
	}
	return got
}

func testFields() model.VerificationFields {
	return model.VerificationFields{
		VerificationDetails: "Has a keychain shaped like a cat",
		Color:               "blue",
		Condition:           "worn",
		Location:            "Library",
		Date:                "2026-03-01",
	}
}

func mustClaim(t *testing.T, database *sql.DB, itemID, claimantID int64) int64 {
	t.Helper()
	id, err := CreateClaim(context.Background(), database, itemID, claimantID, testFields(), testNow)
	if err != nil {
		t.Fatalf("CreateClaim: %v", err)
	}
	return id
}
