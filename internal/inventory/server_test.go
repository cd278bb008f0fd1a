package inventory

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strings"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/onsi/gomega/ghttp"

	"github.com/zombor/fridgetrack/internal/detection"
)

var _ = Describe("Server", func() {
	var (
		db          *mockDB
		storage     *mockStorage
		detector    *fakeDetector
		server      *Server
		ghttpServer *ghttp.Server
		now         time.Time
	)

	BeforeEach(func() {
		now = time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
		db = newMockDB()
		storage = newMockStorage()
		detector = &fakeDetector{detections: []detection.Detection{
			{ItemName: "milk", Confidence: 0.9, BoundingBox: detection.Box{0, 0, 50, 50}},
			{ItemName: "eggs", Confidence: 0.8, BoundingBox: detection.Box{50, 0, 100, 50}},
		}}
	})

	JustBeforeEach(func() {
		service := NewServiceWithDeps(db, storage, Pipeline{
			Detector:  detector,
			Suggester: &fakeSuggester{},
		}, &sequenceIDGenerator{}, &fixedTimeSource{now: now})
		server = NewServer(service, "1.0.0")
		ghttpServer = ghttp.NewServer()
		ghttpServer.AppendHandlers(server.ServeHTTP)
	})

	AfterEach(func() {
		ghttpServer.Close()
	})

	decode := func(resp *http.Response) map[string]any {
		defer resp.Body.Close()
		body, err := io.ReadAll(resp.Body)
		Expect(err).NotTo(HaveOccurred())
		var out map[string]any
		Expect(json.Unmarshal(body, &out)).To(Succeed())
		return out
	}

	upload := func(field, filename string, data []byte, userID string) *http.Response {
		var body bytes.Buffer
		writer := multipart.NewWriter(&body)
		if field != "" {
			part, err := writer.CreateFormFile(field, filename)
			Expect(err).NotTo(HaveOccurred())
			_, err = part.Write(data)
			Expect(err).NotTo(HaveOccurred())
		}
		if userID != "" {
			Expect(writer.WriteField("user_id", userID)).To(Succeed())
		}
		Expect(writer.Close()).To(Succeed())

		resp, err := http.Post(ghttpServer.URL()+"/api/scan", writer.FormDataContentType(), &body)
		Expect(err).NotTo(HaveOccurred())
		return resp
	}

	Describe("GET /", func() {
		It("should return the banner", func() {
			resp, err := http.Get(ghttpServer.URL() + "/")
			Expect(err).NotTo(HaveOccurred())
			Expect(resp.StatusCode).To(Equal(http.StatusOK))
			Expect(resp.Header.Get("Content-Type")).To(Equal("application/json"))
			Expect(decode(resp)).To(HaveKeyWithValue("version", "1.0.0"))
		})
	})

	Describe("GET /health", func() {
		It("should report component status", func() {
			resp, err := http.Get(ghttpServer.URL() + "/health")
			Expect(err).NotTo(HaveOccurred())
			Expect(resp.StatusCode).To(Equal(http.StatusOK))
			body := decode(resp)
			Expect(body).To(HaveKeyWithValue("status", "healthy"))
			Expect(body["components"]).To(HaveKeyWithValue("food_detector", "fake"))
		})
	})

	Describe("CORS", func() {
		It("should answer preflight requests", func() {
			req, err := http.NewRequest(http.MethodOptions, ghttpServer.URL()+"/api/items/a/status", nil)
			Expect(err).NotTo(HaveOccurred())
			req.Header.Set("Origin", "http://localhost:3000")
			req.Header.Set("Access-Control-Request-Method", "PUT")
			resp, err := http.DefaultClient.Do(req)
			Expect(err).NotTo(HaveOccurred())
			defer resp.Body.Close()
			Expect(resp.StatusCode).To(Equal(http.StatusOK))
			Expect(resp.Header.Get("Access-Control-Allow-Origin")).To(Equal("*"))
		})
	})

	Describe("POST /api/scan", func() {
		When("an image is uploaded", func() {
			It("should create the scan", func() {
				resp := upload("image", "fridge.png", testPNG(100, 50), "alice")
				Expect(resp.StatusCode).To(Equal(http.StatusCreated))
				body := decode(resp)
				Expect(body).To(HaveKeyWithValue("scan_id", "id-1"))
				Expect(body).To(HaveKeyWithValue("total_items", BeNumerically("==", 2)))
				Expect(body["items_detected"]).To(HaveLen(2))
				Expect(db.scans["id-1"].UserID).To(Equal("alice"))
			})
		})

		When("the image is sent as file with no user", func() {
			It("should use the demo user", func() {
				resp := upload("file", "fridge.png", testPNG(100, 50), "")
				Expect(resp.StatusCode).To(Equal(http.StatusCreated))
				resp.Body.Close()
				Expect(db.scans["id-1"].UserID).To(Equal(DefaultUserID))
			})
		})

		When("no image is sent", func() {
			It("should return bad request", func() {
				resp := upload("", "", nil, "alice")
				Expect(resp.StatusCode).To(Equal(http.StatusBadRequest))
				Expect(decode(resp)).To(HaveKey("error"))
			})
		})

		When("the image cannot be decoded", func() {
			It("should return bad request", func() {
				resp := upload("image", "fridge.jpg", []byte("not an image"), "alice")
				Expect(resp.StatusCode).To(Equal(http.StatusBadRequest))
				Expect(decode(resp)["error"]).To(ContainSubstring("Invalid image"))
			})
		})

		When("nothing is detected", func() {
			BeforeEach(func() {
				detector.detections = nil
			})

			It("should return bad request", func() {
				resp := upload("image", "fridge.png", testPNG(100, 50), "alice")
				Expect(resp.StatusCode).To(Equal(http.StatusBadRequest))
				Expect(decode(resp)["error"]).To(ContainSubstring("No items detected"))
			})
		})

		When("saving fails", func() {
			BeforeEach(func() {
				db.saveErr = errors.New("disk full")
			})

			It("should return internal server error", func() {
				resp := upload("image", "fridge.png", testPNG(100, 50), "alice")
				Expect(resp.StatusCode).To(Equal(http.StatusInternalServerError))
				resp.Body.Close()
			})
		})
	})

	Describe("GET /api/inventory/{user_id}", func() {
		BeforeEach(func() {
			db.items["a"] = &InventoryItem{ID: "a", UserID: "alice", ItemName: "milk", Status: StatusActive, DetectedAt: now}
			db.items["b"] = &InventoryItem{ID: "b", UserID: "alice", ItemName: "ham", Status: StatusWasted, DetectedAt: now}
		})

		It("should list active items", func() {
			resp, err := http.Get(ghttpServer.URL() + "/api/inventory/alice")
			Expect(err).NotTo(HaveOccurred())
			Expect(resp.StatusCode).To(Equal(http.StatusOK))
			body := decode(resp)
			Expect(body).To(HaveKeyWithValue("user_id", "alice"))
			Expect(body).To(HaveKeyWithValue("total", BeNumerically("==", 1)))
		})

		It("rejects unknown statuses", func() {
			resp, err := http.Get(ghttpServer.URL() + "/api/inventory/alice?status=eaten")
			Expect(err).NotTo(HaveOccurred())
			Expect(resp.StatusCode).To(Equal(http.StatusBadRequest))
			resp.Body.Close()
		})
	})

	Describe("GET /api/expiring-items/{user_id}", func() {
		BeforeEach(func() {
			tomorrow := time.Date(2026, 3, 11, 0, 0, 0, 0, time.UTC)
			db.items["a"] = &InventoryItem{ID: "a", UserID: "alice", ItemName: "milk", Status: StatusActive, ExpirationDate: &tomorrow, DetectedAt: now}
		})

		It("should report expiring items", func() {
			resp, err := http.Get(ghttpServer.URL() + "/api/expiring-items/alice?days=3")
			Expect(err).NotTo(HaveOccurred())
			Expect(resp.StatusCode).To(Equal(http.StatusOK))
			body := decode(resp)
			Expect(body).To(HaveKeyWithValue("total_expiring", BeNumerically("==", 1)))
			Expect(body["urgency_breakdown"]).To(HaveKeyWithValue("tomorrow", BeNumerically("==", 1)))
			items := body["expiring_items"].([]any)
			Expect(items[0]).To(HaveKeyWithValue("days_left", BeNumerically("==", 1)))
			Expect(items[0]).To(HaveKeyWithValue("item_name", "milk"))
		})

		It("rejects a non-numeric window", func() {
			resp, err := http.Get(ghttpServer.URL() + "/api/expiring-items/alice?days=soon")
			Expect(err).NotTo(HaveOccurred())
			Expect(resp.StatusCode).To(Equal(http.StatusBadRequest))
			resp.Body.Close()
		})

		It("rejects a window that is too large", func() {
			resp, err := http.Get(ghttpServer.URL() + "/api/expiring-items/alice?days=1000")
			Expect(err).NotTo(HaveOccurred())
			Expect(resp.StatusCode).To(Equal(http.StatusBadRequest))
			resp.Body.Close()
		})
	})

	Describe("GET /api/recipes/{user_id}", func() {
		It("should explain when nothing is expiring", func() {
			resp, err := http.Get(ghttpServer.URL() + "/api/recipes/alice")
			Expect(err).NotTo(HaveOccurred())
			Expect(resp.StatusCode).To(Equal(http.StatusOK))
			Expect(decode(resp)).To(HaveKeyWithValue("message", "No expiring items found. Your fridge is in good shape!"))
		})
	})

	Describe("GET /api/shopping-list/{user_id}", func() {
		It("should return the list", func() {
			resp, err := http.Get(ghttpServer.URL() + "/api/shopping-list/alice")
			Expect(err).NotTo(HaveOccurred())
			Expect(resp.StatusCode).To(Equal(http.StatusOK))
			Expect(decode(resp)).To(HaveKeyWithValue("user_id", "alice"))
		})
	})

	Describe("GET /api/stats/{user_id}", func() {
		BeforeEach(func() {
			db.items["a"] = &InventoryItem{ID: "a", UserID: "alice", Status: StatusConsumed}
		})

		It("should return the stats", func() {
			resp, err := http.Get(ghttpServer.URL() + "/api/stats/alice")
			Expect(err).NotTo(HaveOccurred())
			Expect(resp.StatusCode).To(Equal(http.StatusOK))
			body := decode(resp)
			Expect(body).To(HaveKeyWithValue("items_saved", BeNumerically("==", 1)))
			Expect(body).To(HaveKeyWithValue("money_saved", BeNumerically("==", 3)))
		})

		When("the database fails", func() {
			BeforeEach(func() {
				db.countErr = errors.New("boom")
			})

			It("should return internal server error", func() {
				resp, err := http.Get(ghttpServer.URL() + "/api/stats/alice")
				Expect(err).NotTo(HaveOccurred())
				Expect(resp.StatusCode).To(Equal(http.StatusInternalServerError))
				Expect(decode(resp)).To(HaveKeyWithValue("error", "Failed to fetch stats"))
			})
		})
	})

	Describe("GET /api/items/{item_id}/image", func() {
		BeforeEach(func() {
			db.items["a"] = &InventoryItem{ID: "a", UserID: "alice", ImageReference: "alice_1_fridge.png"}
			storage.files["alice_1_fridge.png"] = testPNG(4, 4)
		})

		It("should serve the stored photo", func() {
			resp, err := http.Get(ghttpServer.URL() + "/api/items/a/image")
			Expect(err).NotTo(HaveOccurred())
			defer resp.Body.Close()
			Expect(resp.StatusCode).To(Equal(http.StatusOK))
			Expect(resp.Header.Get("Content-Type")).To(Equal("image/png"))
			body, err := io.ReadAll(resp.Body)
			Expect(err).NotTo(HaveOccurred())
			Expect(body).To(Equal(testPNG(4, 4)))
		})

		It("returns not found for unknown items", func() {
			resp, err := http.Get(ghttpServer.URL() + "/api/items/missing/image")
			Expect(err).NotTo(HaveOccurred())
			Expect(resp.StatusCode).To(Equal(http.StatusNotFound))
			Expect(decode(resp)).To(HaveKeyWithValue("error", "Item not found"))
		})
	})

	Describe("PUT /api/items/{item_id}/status", func() {
		BeforeEach(func() {
			db.items["a"] = &InventoryItem{ID: "a", UserID: "alice", Status: StatusActive}
		})

		put := func(id, contentType, body string) *http.Response {
			req, err := http.NewRequest(http.MethodPut, ghttpServer.URL()+"/api/items/"+id+"/status", strings.NewReader(body))
			Expect(err).NotTo(HaveOccurred())
			req.Header.Set("Content-Type", contentType)
			resp, err := http.DefaultClient.Do(req)
			Expect(err).NotTo(HaveOccurred())
			return resp
		}

		It("should accept a form field", func() {
			resp := put("a", "application/x-www-form-urlencoded", url.Values{"status": {"consumed"}}.Encode())
			Expect(resp.StatusCode).To(Equal(http.StatusOK))
			Expect(decode(resp)).To(HaveKeyWithValue("message", "Item status updated to consumed"))
			Expect(db.items["a"].Status).To(Equal(StatusConsumed))
		})

		It("should accept JSON", func() {
			resp := put("a", "application/json", `{"status": "wasted"}`)
			Expect(resp.StatusCode).To(Equal(http.StatusOK))
			resp.Body.Close()
			Expect(db.items["a"].Status).To(Equal(StatusWasted))
		})

		It("rejects unknown statuses", func() {
			resp := put("a", "application/json", `{"status": "eaten"}`)
			Expect(resp.StatusCode).To(Equal(http.StatusBadRequest))
			Expect(decode(resp)).To(HaveKeyWithValue("error", invalidStatusMessage))
		})

		It("returns not found for unknown items", func() {
			resp := put("missing", "application/json", `{"status": "consumed"}`)
			Expect(resp.StatusCode).To(Equal(http.StatusNotFound))
			resp.Body.Close()
		})
	})
})
