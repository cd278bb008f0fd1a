package inventory

import (
	"context"
	"errors"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/zombor/fridgetrack/internal/suggest"
)

var _ = Describe("Service", func() {
	var (
		db        *mockDB
		storage   *mockStorage
		suggester *fakeSuggester
		service   *Service
		now       time.Time
		ctx       context.Context
	)

	day := func(offset int) *time.Time {
		d := time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC).AddDate(0, 0, offset)
		return &d
	}

	addItem := func(id, user, name string, status Status, expires *time.Time, detectedAt time.Time) {
		db.items[id] = &InventoryItem{
			ID:             id,
			UserID:         user,
			ItemName:       name,
			ExpirationDate: expires,
			DetectedAt:     detectedAt,
			Quantity:       1,
			Status:         status,
		}
	}

	BeforeEach(func() {
		ctx = context.Background()
		now = time.Date(2026, 3, 10, 15, 30, 0, 0, time.UTC)
		db = newMockDB()
		storage = newMockStorage()
		suggester = &fakeSuggester{}
	})

	JustBeforeEach(func() {
		service = NewServiceWithDeps(db, storage, Pipeline{
			Detector:  &fakeDetector{},
			Suggester: suggester,
		}, &sequenceIDGenerator{}, &fixedTimeSource{now: now})
	})

	Describe("ListItems", func() {
		BeforeEach(func() {
			addItem("a", "alice", "milk", StatusActive, day(2), now.Add(-2*time.Hour))
			addItem("b", "alice", "eggs", StatusActive, day(5), now.Add(-1*time.Hour))
			addItem("c", "alice", "yogurt", StatusConsumed, day(1), now)
			addItem("d", "bob", "cheese", StatusActive, day(4), now)
		})

		It("should default to active items, newest first", func() {
			list, err := service.ListItems(ctx, "alice", "")
			Expect(err).NotTo(HaveOccurred())
			Expect(list.Total).To(Equal(2))
			Expect(list.Items[0].ID).To(Equal("b"))
			Expect(list.Items[1].ID).To(Equal("a"))
		})

		It("should filter by status", func() {
			list, err := service.ListItems(ctx, "alice", "consumed")
			Expect(err).NotTo(HaveOccurred())
			Expect(list.Items).To(HaveLen(1))
			Expect(list.Items[0].ItemName).To(Equal("yogurt"))
		})

		It("rejects unknown statuses", func() {
			_, err := service.ListItems(ctx, "alice", "eaten")
			Expect(err).To(MatchError(ErrInvalidStatus))
		})
	})

	Describe("ExpiringItems", func() {
		BeforeEach(func() {
			addItem("today", "alice", "chicken", StatusActive, day(0), now)
			addItem("tomorrow", "alice", "milk", StatusActive, day(1), now)
			addItem("three", "alice", "yogurt", StatusActive, day(3), now)
			addItem("five", "alice", "cheese", StatusActive, day(5), now)
			addItem("past", "alice", "lettuce", StatusActive, day(-1), now)
			addItem("eaten", "alice", "ham", StatusConsumed, day(1), now)
			addItem("undated", "alice", "jam", StatusActive, nil, now)
		})

		It("should return active items expiring within the window, soonest first", func() {
			report, err := service.ExpiringItems(ctx, "alice", 3)
			Expect(err).NotTo(HaveOccurred())
			Expect(report.TotalExpiring).To(Equal(3))
			Expect(report.ExpiringItems[0].ID).To(Equal("today"))
			Expect(report.ExpiringItems[1].ID).To(Equal("tomorrow"))
			Expect(report.ExpiringItems[2].ID).To(Equal("three"))
		})

		It("should report days left and urgency", func() {
			report, err := service.ExpiringItems(ctx, "alice", 3)
			Expect(err).NotTo(HaveOccurred())
			Expect(report.ExpiringItems[0].DaysLeft).To(Equal(0))
			Expect(report.ExpiringItems[2].DaysLeft).To(Equal(3))
			Expect(report.UrgencyBreakdown).To(Equal(Urgency{Today: 1, Tomorrow: 1, ThisWeek: 1}))
		})

		It("should use three days for a negative window", func() {
			report, err := service.ExpiringItems(ctx, "alice", -1)
			Expect(err).NotTo(HaveOccurred())
			Expect(report.TotalExpiring).To(Equal(3))
		})

		When("the database fails", func() {
			BeforeEach(func() {
				db.findErr = errors.New("boom")
			})

			It("returns the error", func() {
				_, err := service.ExpiringItems(ctx, "alice", 3)
				Expect(err).To(MatchError(ContainSubstring("boom")))
			})
		})
	})

	Describe("RecipesForUser", func() {
		When("nothing is expiring", func() {
			It("should not generate recipes", func() {
				report, err := service.RecipesForUser(ctx, "alice", 3)
				Expect(err).NotTo(HaveOccurred())
				Expect(report.Recipes).To(BeEmpty())
				Expect(report.ExpiringItemsUsed).To(BeEmpty())
				Expect(report.Message).To(Equal("No expiring items found. Your fridge is in good shape!"))
				Expect(suggester.recipesCalled).To(BeFalse())
			})
		})

		When("items are expiring", func() {
			BeforeEach(func() {
				addItem("a", "alice", "eggs", StatusActive, day(1), now)
				addItem("b", "alice", "eggs", StatusActive, day(2), now)
				addItem("c", "alice", "milk", StatusActive, day(2), now.Add(time.Minute))
				suggester.recipes = []suggest.Recipe{{Name: "Scramble"}}
			})

			It("should generate recipes from the unique item names", func() {
				report, err := service.RecipesForUser(ctx, "alice", 3)
				Expect(err).NotTo(HaveOccurred())
				Expect(suggester.recipeItems).To(Equal([]string{"eggs", "milk"}))
				Expect(report.ExpiringItemsUsed).To(Equal([]string{"eggs", "milk"}))
				Expect(report.Recipes).To(HaveLen(1))
				Expect(report.Message).To(Equal("Here are 1 recipes using your expiring items!"))
			})
		})
	})

	Describe("ShoppingList", func() {
		BeforeEach(func() {
			addItem("a", "alice", "milk", StatusActive, day(2), now)
			addItem("b", "alice", "ham", StatusWasted, day(2), now)
			db.scans["recent"] = &ScanRecord{ID: "recent", UserID: "alice", ScannedAt: now.AddDate(0, 0, -3), Items: []string{"milk", "eggs"}}
			db.scans["old"] = &ScanRecord{ID: "old", UserID: "alice", ScannedAt: now.AddDate(0, 0, -45), Items: []string{"kale"}}
			db.scans["other"] = &ScanRecord{ID: "other", UserID: "bob", ScannedAt: now, Items: []string{"beer"}}
			suggester.suggestions = []suggest.ShoppingSuggestion{{ItemName: "eggs", Reason: "You ran out", Priority: 4}}
		})

		It("should pass active items and the last 30 days of scans", func() {
			list, err := service.ShoppingList(ctx, "alice")
			Expect(err).NotTo(HaveOccurred())
			Expect(suggester.currentItems).To(Equal([]string{"milk"}))
			Expect(suggester.history).To(Equal([]suggest.ScanHistory{
				{ScanID: "recent", ScannedAt: now.AddDate(0, 0, -3), Items: []string{"milk", "eggs"}},
			}))
			Expect(list.TotalItems).To(Equal(1))
			Expect(list.GeneratedAt).To(Equal(now))
		})
	})

	Describe("Stats", func() {
		BeforeEach(func() {
			for i, status := range []Status{StatusConsumed, StatusConsumed, StatusConsumed, StatusConsumed, StatusWasted, StatusActive, StatusActive} {
				addItem(string(rune('a'+i)), "alice", "milk", status, nil, now)
			}
			addItem("z", "bob", "milk", StatusConsumed, nil, now)
		})

		It("should compute the savings", func() {
			stats, err := service.Stats(ctx, "alice")
			Expect(err).NotTo(HaveOccurred())
			Expect(*stats).To(Equal(Stats{
				TotalItemsTracked: 7,
				ItemsSaved:        4,
				ItemsWasted:       1,
				MoneySaved:        12,
				PoundsSaved:       2,
				CO2Saved:          1.6,
			}))
		})

		It("should return zeros for unknown users", func() {
			stats, err := service.Stats(ctx, "nobody")
			Expect(err).NotTo(HaveOccurred())
			Expect(*stats).To(Equal(Stats{}))
		})

		When("counting fails", func() {
			BeforeEach(func() {
				db.countErr = errors.New("boom")
			})

			It("returns the error", func() {
				_, err := service.Stats(ctx, "alice")
				Expect(err).To(HaveOccurred())
			})
		})
	})

	Describe("GetItemImage", func() {
		BeforeEach(func() {
			addItem("a", "alice", "milk", StatusActive, day(2), now)
			db.items["a"].ImageReference = "alice_1_fridge.png"
			storage.files["alice_1_fridge.png"] = testPNG(4, 4)
		})

		It("should read the upload back from storage", func() {
			data, contentType, err := service.GetItemImage(ctx, "a")
			Expect(err).NotTo(HaveOccurred())
			Expect(data).To(Equal(testPNG(4, 4)))
			Expect(contentType).To(Equal("image/png"))
		})

		It("returns ErrItemNotFound for unknown items", func() {
			_, _, err := service.GetItemImage(ctx, "missing")
			Expect(err).To(MatchError(ErrItemNotFound))
		})

		When("the upload is gone", func() {
			BeforeEach(func() {
				delete(storage.files, "alice_1_fridge.png")
			})

			It("returns ErrImageNotFound", func() {
				_, _, err := service.GetItemImage(ctx, "a")
				Expect(err).To(MatchError(ErrImageNotFound))
			})
		})
	})

	Describe("UpdateItemStatus", func() {
		BeforeEach(func() {
			addItem("a", "alice", "milk", StatusActive, day(2), now.Add(-time.Hour))
		})

		It("should change only the status", func() {
			status, err := service.UpdateItemStatus(ctx, "a", "consumed")
			Expect(err).NotTo(HaveOccurred())
			Expect(status).To(Equal(StatusConsumed))
			Expect(db.items["a"].Status).To(Equal(StatusConsumed))
			Expect(*db.items["a"].ExpirationDate).To(Equal(*day(2)))
			Expect(db.items["a"].UpdatedAt).To(Equal(now))
		})

		It("should allow any transition", func() {
			_, err := service.UpdateItemStatus(ctx, "a", "wasted")
			Expect(err).NotTo(HaveOccurred())
			_, err = service.UpdateItemStatus(ctx, "a", "active")
			Expect(err).NotTo(HaveOccurred())
			Expect(db.items["a"].Status).To(Equal(StatusActive))
		})

		It("rejects unknown statuses", func() {
			_, err := service.UpdateItemStatus(ctx, "a", "eaten")
			Expect(err).To(MatchError(ErrInvalidStatus))
			Expect(db.items["a"].Status).To(Equal(StatusActive))
		})

		It("returns ErrItemNotFound for unknown items", func() {
			_, err := service.UpdateItemStatus(ctx, "missing", "consumed")
			Expect(err).To(MatchError(ErrItemNotFound))
		})
	})

	Describe("Health", func() {
		It("should report a healthy database", func() {
			h := service.Health(ctx)
			Expect(h.Status).To(Equal("healthy"))
			Expect(h.Database).To(Equal("connected"))
			Expect(h.Components.FoodDetector).To(Equal("fake"))
			Expect(h.Components.DateExtractor).To(Equal("unavailable"))
			Expect(h.Components.AI).To(Equal("loaded"))
		})

		When("the database is down", func() {
			BeforeEach(func() {
				db.pingErr = errors.New("connection refused")
			})

			It("should report degraded", func() {
				h := service.Health(ctx)
				Expect(h.Status).To(Equal("degraded"))
				Expect(h.Database).To(Equal("disconnected"))
			})
		})
	})
})

var _ = Describe("ParseStatus", func() {
	It("should accept every status", func() {
		for _, s := range []string{"active", "consumed", "wasted"} {
			status, err := ParseStatus(s)
			Expect(err).NotTo(HaveOccurred())
			Expect(string(status)).To(Equal(s))
		}
	})

	It("rejects anything else", func() {
		_, err := ParseStatus("ACTIVE")
		Expect(err).To(MatchError(ErrInvalidStatus))
	})
})
