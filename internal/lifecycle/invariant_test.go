package lifecycle

import (
	"errors"
	"testing"
	"time"

	"pgregory.net/rapid"

	"github.com/erazemk/najdeno/internal/db"
	"github.com/erazemk/najdeno/internal/model"
	"github.com/erazemk/najdeno/internal/store"
)

// TestClaimLockInvariant drives random admin, claimant and scheduler actions
// against one item and checks after every step that at most one claim locks
// it and that the item status agrees with that claim.
func TestClaimLockInvariant(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		database, err := db.Open(":memory:")
		if err != nil {
			rt.Fatalf("open: %v", err)
		}
		defer database.Close()
		if err := db.EnsureSchema(database); err != nil {
			rt.Fatalf("schema: %v", err)
		}

		f := newFixture(rt, database)
		item, err := f.items.SubmitItem(f.ctx, f.reporter, model.ItemKindFound, backpack())
		if err != nil {
			rt.Fatalf("submit item: %v", err)
		}
		if _, err := f.items.VerifyItem(f.ctx, item.ID, f.admin, model.ApproveItem{}); err != nil {
			rt.Fatalf("verify item: %v", err)
		}

		if rapid.Bool().Draw(rt, "archive policy") {
			if _, err := f.settings.Update(f.ctx, f.admin, map[string]string{model.SettingHoldExpiryPolicy: "archive"}); err != nil {
				rt.Fatalf("settings: %v", err)
			}
		}

		claimants := []int64{f.x, f.y, f.reporter}
		var claims []int64

		expected := func(err error) {
			if err == nil {
				return
			}
			for _, want := range []error{model.ErrConflict, model.ErrInvalidTransition, model.ErrValidation} {
				if errors.Is(err, want) {
					return
				}
			}
			rt.Fatalf("unexpected error: %v", err)
		}

		pick := func(label string) (int64, bool) {
			if len(claims) == 0 {
				return 0, false
			}
			return rapid.SampledFrom(claims).Draw(rt, label), true
		}

		rt.Repeat(map[string]func(*rapid.T){
			"submit": func(rt *rapid.T) {
				who := rapid.SampledFrom(claimants).Draw(rt, "claimant")
				c, err := f.claims.SubmitClaim(f.ctx, item.ID, who, fields())
				expected(err)
				if err == nil {
					claims = append(claims, c.ID)
				}
			},
			"approve": func(rt *rapid.T) {
				if id, ok := pick("claim"); ok {
					_, err := f.claims.VerifyClaim(f.ctx, id, f.admin, model.ApproveClaim{})
					expected(err)
				}
			},
			"deny": func(rt *rapid.T) {
				if id, ok := pick("claim"); ok {
					_, err := f.claims.VerifyClaim(f.ctx, id, f.admin, model.DenyClaim{Reason: "mismatch"})
					expected(err)
				}
			},
			"request info": func(rt *rapid.T) {
				if id, ok := pick("claim"); ok {
					_, err := f.claims.VerifyClaim(f.ctx, id, f.admin, model.RequestClaimInfo{Message: "more"})
					expected(err)
				}
			},
			"resubmit": func(rt *rapid.T) {
				if id, ok := pick("claim"); ok {
					c, err := f.claims.GetClaim(f.ctx, id)
					if err != nil {
						rt.Fatalf("get claim: %v", err)
					}
					_, err = f.claims.ResubmitClaim(f.ctx, id, c.ClaimantID, fields())
					expected(err)
				}
			},
			"hold": func(rt *rapid.T) {
				if id, ok := pick("claim"); ok {
					days := rapid.IntRange(-1, 10).Draw(rt, "days")
					_, err := f.claims.VerifyClaim(f.ctx, id, f.admin, model.HoldClaim{Days: days})
					expected(err)
				}
			},
			"time passes": func(rt *rapid.T) {
				f.clock.Advance(time.Duration(rapid.IntRange(1, 240).Draw(rt, "hours")) * time.Hour)
				held, err := f.claims.ListExpiredHolds(f.ctx)
				if err != nil {
					rt.Fatalf("list expired: %v", err)
				}
				for _, c := range held {
					if _, err := f.claims.ExpireHold(f.ctx, c.ID); err != nil {
						rt.Fatalf("expire hold %d: %v", c.ID, err)
					}
				}
			},
			"": func(rt *rapid.T) {
				checkLockInvariant(rt, f, item.ID)
			},
		})
	})
}

func checkLockInvariant(rt *rapid.T, f *fixture, itemID int64) {
	item, err := store.GetItem(f.ctx, f.db, itemID)
	if err != nil {
		rt.Fatalf("get item: %v", err)
	}
	claims, err := store.ListClaims(f.ctx, f.db, store.ClaimFilter{ItemID: itemID})
	if err != nil {
		rt.Fatalf("list claims: %v", err)
	}

	var approved, held int
	for _, c := range claims {
		switch c.Status {
		case model.ClaimApproved:
			approved++
		case model.ClaimOnHold:
			held++
			if c.HoldExpiresAt == nil {
				rt.Fatalf("claim %d on hold without expiry", c.ID)
			}
		}
		if c.Status != model.ClaimOnHold && c.HoldExpiresAt != nil {
			rt.Fatalf("claim %d is %s but has a hold expiry", c.ID, c.Status)
		}
	}

	if approved+held > 1 {
		rt.Fatalf("%d approved and %d held claims on item %d", approved, held, itemID)
	}
	if (item.Status == model.ItemStatusClaimed) != (approved == 1) {
		rt.Fatalf("item is %s with %d approved claims", item.Status, approved)
	}
	if (item.Status == model.ItemStatusOnHold) != (held == 1) {
		rt.Fatalf("item is %s with %d held claims", item.Status, held)
	}
}
