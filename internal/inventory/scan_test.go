package inventory

import (
	"context"
	"errors"
	"strings"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/zombor/fridgetrack/internal/detection"
	"github.com/zombor/fridgetrack/internal/expiry"
)

var _ = Describe("ProcessScan", func() {
	var (
		db        *mockDB
		storage   *mockStorage
		detector  *fakeDetector
		ocr       *fakeExtractor
		vision    *fakeReader
		estimator *fakeEstimator
		service   *Service
		now       time.Time

		data        []byte
		contentType string
		result      *ScanResult
		err         error
	)

	BeforeEach(func() {
		now = time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
		db = newMockDB()
		storage = newMockStorage()
		detector = &fakeDetector{detections: []detection.Detection{
			{ItemName: "milk", Confidence: 0.9, BoundingBox: detection.Box{0, 0, 100, 100}},
			{ItemName: "eggs", Confidence: 0.6, BoundingBox: detection.Box{100, 0, 200, 100}},
		}}
		ocr = &fakeExtractor{}
		vision = &fakeReader{}
		estimator = &fakeEstimator{date: time.Date(2026, 3, 17, 0, 0, 0, 0, time.UTC)}

		data = testPNG(200, 100)
		contentType = "image/png"
	})

	JustBeforeEach(func() {
		service = NewServiceWithDeps(db, storage, Pipeline{
			Detector:  detector,
			Threshold: 0.4,
			OCR:       ocr,
			Vision:    vision,
			Estimator: estimator,
		}, &sequenceIDGenerator{}, &fixedTimeSource{now: now})
		result, err = service.ProcessScan(context.Background(), "alice", "My Fridge!.png", data, contentType)
	})

	When("every item is found", func() {
		It("should not return an error", func() {
			Expect(err).NotTo(HaveOccurred())
		})

		It("should return every detection", func() {
			Expect(result.ScanID).To(Equal("id-1"))
			Expect(result.TotalItems).To(Equal(2))
			Expect(result.ItemsDetected).To(HaveLen(2))
			Expect(result.ItemsDetected[0].ItemName).To(Equal("milk"))
			Expect(result.ItemsDetected[0].BoundingBox).To(Equal(detection.Box{0, 0, 100, 100}))
			Expect(result.Message).To(Equal("Successfully detected 2 items!"))
		})

		It("should pass the configured threshold to the detector", func() {
			Expect(detector.threshold).To(Equal(0.4))
		})

		It("should persist active items", func() {
			Expect(db.items).To(HaveLen(2))
			for _, item := range db.items {
				Expect(item.Status).To(Equal(StatusActive))
				Expect(item.Quantity).To(Equal(1))
				Expect(item.UserID).To(Equal("alice"))
				Expect(item.ScanID).To(Equal("id-1"))
				Expect(item.ExpirationDate).NotTo(BeNil())
				Expect(item.Category).To(Equal(expiry.Category(item.ItemName)))
			}
		})

		It("should persist one scan record", func() {
			Expect(db.scans).To(HaveKey("id-1"))
			scan := db.scans["id-1"]
			Expect(scan.ItemsDetected).To(Equal(2))
			Expect(scan.Items).To(Equal([]string{"milk", "eggs"}))
			Expect(scan.ScannedAt).To(Equal(now))
			Expect(scan.ProcessingTime).To(BeNumerically(">=", 0))
		})

		It("should keep the upload under a user and time scoped name", func() {
			Expect(storage.files).To(HaveLen(1))
			for name := range storage.files {
				Expect(name).To(HavePrefix("alice_"))
				Expect(name).To(HaveSuffix("_My Fridge.png"))
			}
		})

		It("should only write the upload to storage", func() {
			Expect(storage.savedNames()).To(HaveLen(1))
			Expect(storage.savedNames()[0]).To(HavePrefix("alice_"))
		})
	})

	When("OCR reads a date", func() {
		BeforeEach(func() {
			ocr.date = time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC)
			ocr.found = true
		})

		It("should use the printed date for every item", func() {
			Expect(err).NotTo(HaveOccurred())
			for _, item := range result.ItemsDetected {
				Expect(item.ExpirationDate).NotTo(BeNil())
				Expect(*item.ExpirationDate).To(Equal("2026-04-01"))
			}
		})

		It("should not ask the vision model", func() {
			Expect(vision.calls.Load()).To(BeZero())
		})
	})

	When("OCR finds nothing", func() {
		BeforeEach(func() {
			vision.date = time.Date(2026, 3, 20, 0, 0, 0, 0, time.UTC)
			vision.found = true
		})

		It("should ask the vision model only for low-confidence items", func() {
			Expect(err).NotTo(HaveOccurred())
			Expect(vision.calls.Load()).To(Equal(int32(1)))
			Expect(*result.ItemsDetected[1].ExpirationDate).To(Equal("2026-03-20"))
		})

		It("should estimate the rest", func() {
			Expect(*result.ItemsDetected[0].ExpirationDate).To(Equal("2026-03-17"))
		})
	})

	When("no reader finds a date", func() {
		It("should estimate every item", func() {
			Expect(err).NotTo(HaveOccurred())
			for _, item := range result.ItemsDetected {
				Expect(*item.ExpirationDate).To(Equal("2026-03-17"))
			}
		})
	})


	When("the upload is empty", func() {
		BeforeEach(func() {
			data = nil
		})

		It("returns ErrEmptyUpload", func() {
			Expect(err).To(MatchError(ErrEmptyUpload))
			Expect(storage.files).To(BeEmpty())
		})
	})

	When("the upload is not an image", func() {
		BeforeEach(func() {
			data = []byte("definitely not an image")
			contentType = "image/jpeg"
		})

		It("returns ErrInvalidImage", func() {
			Expect(errors.Is(err, ErrInvalidImage)).To(BeTrue())
		})

		It("should delete the upload", func() {
			Expect(storage.files).To(BeEmpty())
		})
	})

	When("nothing is detected", func() {
		BeforeEach(func() {
			detector.detections = []detection.Detection{}
		})

		It("returns ErrNoItemsDetected", func() {
			Expect(err).To(MatchError(ErrNoItemsDetected))
		})

		It("should not persist anything", func() {
			Expect(db.items).To(BeEmpty())
			Expect(db.scans).To(BeEmpty())
			Expect(storage.files).To(BeEmpty())
		})
	})

	When("saving the upload fails", func() {
		BeforeEach(func() {
			storage.saveErr = errors.New("disk full")
		})

		It("returns the error", func() {
			Expect(err).To(MatchError(ContainSubstring("saving upload")))
		})
	})

	When("saving items fails", func() {
		BeforeEach(func() {
			db.saveErr = errors.New("database locked")
		})

		It("returns the error", func() {
			Expect(err).To(MatchError(ContainSubstring("database locked")))
			Expect(db.scans).To(BeEmpty())
		})

		It("should delete the upload", func() {
			Expect(storage.files).To(BeEmpty())
		})

		When("the upload cannot be deleted either", func() {
			BeforeEach(func() {
				storage.deleteErr = errors.New("disk busy")
			})

			It("still returns the save error", func() {
				Expect(err).To(MatchError(ContainSubstring("saving items")))
			})
		})
	})

	When("saving the scan record fails", func() {
		BeforeEach(func() {
			db.scanErr = errors.New("database locked")
		})

		It("returns the error", func() {
			Expect(err).To(MatchError(ContainSubstring("saving scan")))
		})

		It("should keep the upload the saved items point at", func() {
			Expect(db.items).To(HaveLen(2))
			Expect(storage.files).To(HaveLen(1))
			for _, item := range db.items {
				Expect(storage.files).To(HaveKey(item.ImageReference))
			}
		})
	})
})

var _ = Describe("ProcessScan with a cancelled context", func() {
	It("returns the context error", func() {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		db := newMockDB()
		service := NewServiceWithDeps(db, newMockStorage(), Pipeline{
			Detector: &fakeDetector{detections: []detection.Detection{
				{ItemName: "milk", Confidence: 0.9, BoundingBox: detection.Box{0, 0, 10, 10}},
			}},
		}, &sequenceIDGenerator{}, &fixedTimeSource{now: time.Now()})

		_, err := service.ProcessScan(ctx, "alice", "fridge.png", testPNG(20, 20), "image/png")
		Expect(errors.Is(err, context.Canceled)).To(BeTrue())
		Expect(db.items).To(BeEmpty())
	})
})

var _ = Describe("sanitizeFilename", func() {
	It("should strip special characters", func() {
		Expect(sanitizeFilename("my (fridge) #1.jpg")).To(Equal("my fridge 1.jpg"))
	})

	It("should truncate long names", func() {
		name := sanitizeFilename(strings.Repeat("a", 80) + ".heic")
		Expect(name).To(Equal(strings.Repeat("a", 50) + ".heic"))
	})

	It("should fall back when nothing is left", func() {
		Expect(sanitizeFilename("???.png")).To(Equal("scan.png"))
	})

	It("should not allow path separators", func() {
		Expect(sanitizeFilename("../../etc/passwd")).NotTo(ContainSubstring("/"))
	})
})
