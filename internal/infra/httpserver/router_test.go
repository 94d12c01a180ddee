package httpserver

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/hzerradi/foodscan/internal/application"
	appscans "github.com/hzerradi/foodscan/internal/application/scans"
	aiport "github.com/hzerradi/foodscan/internal/domain/ai"
	"github.com/hzerradi/foodscan/internal/domain/food"
	domain "github.com/hzerradi/foodscan/internal/domain/scans"
	"github.com/hzerradi/foodscan/internal/middleware"
)

type stubAI struct {
	nutritionErr error
}

func (s *stubAI) AnalyzeFood(context.Context, string) (food.Analysis, error) {
	return food.Analysis{
		Ingredients:     []string{"semoule", "courgettes"},
		NutritionalInfo: &food.NutritionalInfo{Calories: 150},
	}, nil
}

func (s *stubAI) RecipesByIngredients(context.Context, []string) ([]food.Recipe, error) {
	return []food.Recipe{{Name: "Recette suggérée", CookingTime: "15 min", Difficulty: "Facile"}}, nil
}

func (s *stubAI) NutritionalInfo(context.Context, string) (food.NutritionalInfo, error) {
	if s.nutritionErr != nil {
		return food.NutritionalInfo{}, s.nutritionErr
	}
	return food.NutritionalInfo{Calories: 52, Carbs: 14}, nil
}

func (s *stubAI) TestConnection(context.Context) bool   { return true }
func (s *stubAI) CheckQuota(context.Context) aiport.Quota {
	return aiport.Quota{Remaining: 10, Limit: 100, ResetTime: "2025-03-11T00:00:00Z"}
}
func (s *stubAI) ClearCache()    {}
func (s *stubAI) CacheSize() int { return 0 }

type stubDescriber struct{}

func (stubDescriber) Describe(context.Context, string) (string, error) {
	return "Image montrant un plat de Ratatouille (Plat végétarien). Ingrédients visibles: aubergines, courgettes. Présentation appétissante et bien préparée.", nil
}

type nopStore struct{ records []*domain.ScanRecord }

func (n *nopStore) Load(context.Context) ([]*domain.ScanRecord, error)          { return n.records, nil }
func (n *nopStore) Save(context.Context, []*domain.ScanRecord) error            { return nil }
func (n *nopStore) Clear(context.Context) error                                 { return nil }

var testKeys = map[string]middleware.User{
	"sk-test-a": {ID: "userA", Name: "Alice"},
	"sk-test-b": {ID: "userB", Name: "Bob"},
}

func newTestHandler(t *testing.T, ai aiport.Client, store domain.HistoryStore, now time.Time) http.Handler {
	t.Helper()
	svc, err := appscans.New(context.Background(), store, ai, stubDescriber{}, application.FixedClock{T: now})
	if err != nil {
		t.Fatalf("service init: %v", err)
	}
	return middleware.APIKeyAuth(testKeys)(NewRouter(svc, nil, nil))
}

func doJSON(t *testing.T, h http.Handler, method, target, apiKey string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatal(err)
		}
	}
	req := httptest.NewRequest(method, target, &buf)
	req.Header.Set("Content-Type", "application/json")
	if apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+apiKey)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestSubmitScanEndpoint(t *testing.T) {
	now := time.Date(2025, 3, 10, 14, 0, 0, 0, time.Local)
	h := newTestHandler(t, &stubAI{}, &nopStore{}, now)

	rec := doJSON(t, h, http.MethodPost, "/v1/scans", "sk-test-a", map[string]string{"image_ref": "file:///scan.jpg"})
	if rec.Code != http.StatusOK {
		t.Fatalf("status %d: %s", rec.Code, rec.Body.String())
	}

	var res appscans.SubmitResult
	if err := json.Unmarshal(rec.Body.Bytes(), &res); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !res.Success || res.Record == nil {
		t.Fatalf("expected success, got %s", rec.Body.String())
	}
	if res.Record.UserID != "userA" {
		t.Fatalf("record scoped to wrong user: %q", res.Record.UserID)
	}
	if res.Record.Result.Title != "Ratatouille" {
		t.Fatalf("unexpected title %q", res.Record.Result.Title)
	}
}

func TestSubmitScanQuotaRefusalIsStill200(t *testing.T) {
	now := time.Date(2025, 3, 10, 14, 0, 0, 0, time.Local)
	store := &nopStore{records: []*domain.ScanRecord{
		{ID: "1", UserID: "userA", CreatedAt: now.Add(-time.Hour)},
		{ID: "2", UserID: "userA", CreatedAt: now.Add(-2 * time.Hour)},
	}}
	h := newTestHandler(t, &stubAI{}, store, now)

	rec := doJSON(t, h, http.MethodPost, "/v1/scans", "sk-test-a", map[string]string{"image_ref": "file:///scan.jpg"})
	if rec.Code != http.StatusOK {
		t.Fatalf("quota refusal must not be an HTTP error, got %d", rec.Code)
	}

	var res appscans.SubmitResult
	if err := json.Unmarshal(rec.Body.Bytes(), &res); err != nil {
		t.Fatal(err)
	}
	if res.Success || res.Msg != appscans.MsgDailyLimit {
		t.Fatalf("got %s", rec.Body.String())
	}
}

func TestSubmitScanRejectsBadBody(t *testing.T) {
	h := newTestHandler(t, &stubAI{}, &nopStore{}, time.Now())

	req := httptest.NewRequest(http.MethodPost, "/v1/scans", strings.NewReader("{broken"))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer sk-test-a")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for malformed body, got %d", rec.Code)
	}
}

func TestSubmitScanRejectsEmptyImageRef(t *testing.T) {
	h := newTestHandler(t, &stubAI{}, &nopStore{}, time.Now())

	rec := doJSON(t, h, http.MethodPost, "/v1/scans", "sk-test-a", map[string]string{"image_ref": "  "})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for empty image_ref, got %d", rec.Code)
	}
}

func TestHistoryIsScopedToCaller(t *testing.T) {
	now := time.Now()
	store := &nopStore{records: []*domain.ScanRecord{
		{ID: "1", UserID: "userA", CreatedAt: now},
		{ID: "2", UserID: "userB", CreatedAt: now},
	}}
	h := newTestHandler(t, &stubAI{}, store, now)

	rec := doJSON(t, h, http.MethodGet, "/v1/scans", "sk-test-b", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status %d", rec.Code)
	}

	var got []*domain.ScanRecord
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 || got[0].UserID != "userB" {
		t.Fatalf("history leaked across users: %s", rec.Body.String())
	}
}

func TestClearHistoryEndpoint(t *testing.T) {
	now := time.Now()
	store := &nopStore{records: []*domain.ScanRecord{
		{ID: "1", UserID: "userA", CreatedAt: now},
		{ID: "2", UserID: "userB", CreatedAt: now},
	}}
	h := newTestHandler(t, &stubAI{}, store, now)

	rec := doJSON(t, h, http.MethodDelete, "/v1/scans", "sk-test-a", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status %d", rec.Code)
	}

	rec = doJSON(t, h, http.MethodGet, "/v1/scans", "sk-test-a", nil)
	var mine []*domain.ScanRecord
	if err := json.Unmarshal(rec.Body.Bytes(), &mine); err != nil {
		t.Fatal(err)
	}
	if len(mine) != 0 {
		t.Fatalf("caller's history should be empty: %s", rec.Body.String())
	}

	rec = doJSON(t, h, http.MethodGet, "/v1/scans", "sk-test-b", nil)
	var theirs []*domain.ScanRecord
	if err := json.Unmarshal(rec.Body.Bytes(), &theirs); err != nil {
		t.Fatal(err)
	}
	if len(theirs) != 1 {
		t.Fatalf("other users' history must survive a scoped clear")
	}
}

func TestStatsEndpoint(t *testing.T) {
	now := time.Date(2025, 3, 10, 14, 0, 0, 0, time.Local)
	store := &nopStore{records: []*domain.ScanRecord{
		{ID: "1", UserID: "userA", CreatedAt: now.Add(-time.Hour)},
		{ID: "2", UserID: "userA", CreatedAt: now.Add(-10 * 24 * time.Hour)},
	}}
	h := newTestHandler(t, &stubAI{}, store, now)

	rec := doJSON(t, h, http.MethodGet, "/v1/stats", "sk-test-a", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status %d", rec.Code)
	}

	var st domain.Stats
	if err := json.Unmarshal(rec.Body.Bytes(), &st); err != nil {
		t.Fatal(err)
	}
	if st.TotalScans != 2 || st.ThisWeek != 1 || st.ThisMonth != 2 {
		t.Fatalf("unexpected stats: %+v", st)
	}
}

func TestRecipesEndpointValidation(t *testing.T) {
	h := newTestHandler(t, &stubAI{}, &nopStore{}, time.Now())

	rec := doJSON(t, h, http.MethodPost, "/v1/recipes", "sk-test-a", map[string][]string{"ingredients": {"oignons", "tomates"}})
	if rec.Code != http.StatusOK {
		t.Fatalf("status %d: %s", rec.Code, rec.Body.String())
	}
	var recipes []food.Recipe
	if err := json.Unmarshal(rec.Body.Bytes(), &recipes); err != nil {
		t.Fatal(err)
	}
	if len(recipes) != 1 || recipes[0].Name != "Recette suggérée" {
		t.Fatalf("unexpected recipes: %s", rec.Body.String())
	}

	rec = doJSON(t, h, http.MethodPost, "/v1/recipes", "sk-test-a", map[string][]string{"ingredients": {}})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("empty ingredient list should be a 400, got %d", rec.Code)
	}
}

func TestNutritionEndpoint(t *testing.T) {
	h := newTestHandler(t, &stubAI{}, &nopStore{}, time.Now())

	rec := doJSON(t, h, http.MethodPost, "/v1/nutrition", "sk-test-a", map[string]string{"food": "pomme"})
	if rec.Code != http.StatusOK {
		t.Fatalf("status %d: %s", rec.Code, rec.Body.String())
	}
	var info food.NutritionalInfo
	if err := json.Unmarshal(rec.Body.Bytes(), &info); err != nil {
		t.Fatal(err)
	}
	if info.Calories != 52 {
		t.Fatalf("unexpected body: %s", rec.Body.String())
	}

	rec = doJSON(t, h, http.MethodPost, "/v1/nutrition", "sk-test-a", map[string]string{"food": ""})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("missing food should be a 400, got %d", rec.Code)
	}
}

func TestNutritionFailureIsBadGateway(t *testing.T) {
	ai := &stubAI{nutritionErr: errors.New("réponse sans JSON exploitable")}
	h := newTestHandler(t, ai, &nopStore{}, time.Now())

	rec := doJSON(t, h, http.MethodPost, "/v1/nutrition", "sk-test-a", map[string]string{"food": "pomme"})
	if rec.Code != http.StatusBadGateway {
		t.Fatalf("expected 502, got %d", rec.Code)
	}
}

func TestConnectionAndQuotaEndpoints(t *testing.T) {
	h := newTestHandler(t, &stubAI{}, &nopStore{}, time.Now())

	rec := doJSON(t, h, http.MethodGet, "/v1/connection", "sk-test-a", nil)
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), `"connected":true`) {
		t.Fatalf("connection: %d %s", rec.Code, rec.Body.String())
	}

	rec = doJSON(t, h, http.MethodGet, "/v1/quota", "sk-test-a", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("quota status %d", rec.Code)
	}
	var q aiport.Quota
	if err := json.Unmarshal(rec.Body.Bytes(), &q); err != nil {
		t.Fatal(err)
	}
	if q.Limit != 100 || q.Remaining != 10 {
		t.Fatalf("unexpected quota: %+v", q)
	}
}

func TestAuthRequired(t *testing.T) {
	h := newTestHandler(t, &stubAI{}, &nopStore{}, time.Now())

	rec := doJSON(t, h, http.MethodGet, "/v1/scans", "", nil)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("missing key should be 401, got %d", rec.Code)
	}

	rec = doJSON(t, h, http.MethodGet, "/v1/scans", "sk-wrong", nil)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("unknown key should be 401, got %d", rec.Code)
	}
}

func TestProbeEndpointsWithoutAuth(t *testing.T) {
	svc, err := appscans.New(context.Background(), &nopStore{}, &stubAI{}, stubDescriber{}, application.SystemClock{})
	if err != nil {
		t.Fatal(err)
	}
	h := NewRouter(svc, nil, map[string]middleware.HealthChecker{
		"analysis_api": middleware.CheckFunc(func(context.Context) error { return nil }),
	})

	for _, target := range []string{"/health", "/ready", "/live", "/metrics"} {
		req := httptest.NewRequest(http.MethodGet, target, nil)
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		if rec.Code != http.StatusOK {
			t.Fatalf("%s returned %d", target, rec.Code)
		}
	}
}

func TestMultipartRejectedWithoutImageStore(t *testing.T) {
	h := newTestHandler(t, &stubAI{}, &nopStore{}, time.Now())

	req := httptest.NewRequest(http.MethodPost, "/v1/scans", strings.NewReader("--x--"))
	req.Header.Set("Content-Type", "multipart/form-data; boundary=x")
	req.Header.Set("Authorization", "Bearer sk-test-a")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("uploads without a store should be 400, got %d", rec.Code)
	}
}
