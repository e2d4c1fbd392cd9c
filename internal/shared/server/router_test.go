package server

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"image"
	"image/color"
	"image/png"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"

	googleauth "resume-builder/internal/auth"
	"resume-builder/internal/generation"
	"resume-builder/internal/profiles"
	"resume-builder/internal/resumes"
	"resume-builder/internal/services/health"
	"resume-builder/internal/shared/config"
	"resume-builder/internal/shared/storage/cache"
	localstore "resume-builder/internal/shared/storage/object/local"
)

func newTestRouter(t *testing.T, perMinute int) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)
	store := localstore.New(t.TempDir(), "http://api.test")
	profileSvc := &profiles.Service{Repo: profiles.NewMemoryRepo()}
	resumeSvc := &resumes.Service{
		Repo:      resumes.NewMemoryRepo(),
		Profiles:  profileSvc,
		Generator: generation.StaticGenerator{},
		Store:     store,
		Cache:     cache.NewMemoryCache(),
	}
	return NewRouter(RouterDeps{
		Config:         config.Config{GenerationRatePerMin: perMinute},
		Health:         health.NewService(nil, nil),
		ProfileHandler: profiles.NewHandler(profileSvc),
		ResumeHandler:  resumes.NewHandler(resumeSvc),
		Files:          store,
	})
}

func call(r http.Handler, method, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Guest-Id", "router-test")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func createProfile(t *testing.T, r http.Handler) string {
	t.Helper()
	w := call(r, http.MethodPost, "/api/v1/profiles", `{"name":"Main","firstName":"Ada","lastName":"Lovelace"}`)
	if w.Code != http.StatusCreated {
		t.Fatalf("create profile: %d %s", w.Code, w.Body.String())
	}
	var p struct {
		ID string `json:"id"`
	}
	_ = json.Unmarshal(w.Body.Bytes(), &p)
	return p.ID
}

func createResume(r http.Handler, profileID string) *httptest.ResponseRecorder {
	return call(r, http.MethodPost, "/api/v1/resumes",
		`{"profileId":"`+profileID+`","jd_job_title":"Backend Engineer","employer":"Globex","jd_post_details":"Go services"}`)
}

func TestPublicRoutesSkipAuth(t *testing.T) {
	r := newTestRouter(t, 0)
	for _, path := range []string{"/api/v1/health", "/api/v1/health/ready", "/metrics"} {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
		if w.Code != http.StatusOK {
			t.Fatalf("%s: expected 200, got %d", path, w.Code)
		}
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/resumes", nil))
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without identity, got %d", w.Code)
	}
	if w.Header().Get("X-Request-Id") == "" {
		t.Fatalf("expected request id header")
	}
}

func TestGoogleSignInIsReachableWithoutIdentity(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := NewRouter(RouterDeps{
		GoogleAuth: googleauth.NewGoogleService("client", "secret", "http://api.test/callback", "http://ui.test", nil),
	})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/auth/google/start", nil))
	if w.Code != http.StatusFound {
		t.Fatalf("expected redirect to google, got %d: %s", w.Code, w.Body.String())
	}

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/auth/google/callback", nil))
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected callback to validate its own query, got %d", w.Code)
	}
}

func TestCreateRouteIsRateLimited(t *testing.T) {
	r := newTestRouter(t, 2)
	profileID := createProfile(t, r)

	for i := 0; i < 2; i++ {
		if w := createResume(r, profileID); w.Code != http.StatusCreated {
			t.Fatalf("create %d: expected 201, got %d: %s", i, w.Code, w.Body.String())
		}
	}
	w := createResume(r, profileID)
	if w.Code != http.StatusTooManyRequests || w.Header().Get("Retry-After") == "" {
		t.Fatalf("expected 429 with Retry-After, got %d", w.Code)
	}
	if w := call(r, http.MethodGet, "/api/v1/resumes", ""); w.Code != http.StatusOK {
		t.Fatalf("reads must not share the generation budget, got %d", w.Code)
	}
}

func TestPreviewIsServedFromLocalStore(t *testing.T) {
	r := newTestRouter(t, 0)
	profileID := createProfile(t, r)
	w := createResume(r, profileID)
	var created struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &created); err != nil || created.ID == "" {
		t.Fatalf("create resume: %d %s", w.Code, w.Body.String())
	}

	img := image.NewRGBA(image.Rect(0, 0, 4, 4))
	img.Set(1, 1, color.RGBA{R: 255, A: 255})
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("encode: %v", err)
	}
	body := `{"image":"data:image/png;base64,` + base64.StdEncoding.EncodeToString(buf.Bytes()) + `"}`
	w = call(r, http.MethodPost, "/api/v1/resumes/"+created.ID+"/preview", body)
	if w.Code != http.StatusOK {
		t.Fatalf("upload preview: %d %s", w.Code, w.Body.String())
	}
	var res struct {
		PreviewImageURL string `json:"previewImageUrl"`
	}
	_ = json.Unmarshal(w.Body.Bytes(), &res)
	path := strings.TrimPrefix(res.PreviewImageURL, "http://api.test")
	if !strings.HasPrefix(path, "/api/v1/files/previews/") {
		t.Fatalf("unexpected preview url %q", res.PreviewImageURL)
	}

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
	if w.Code != http.StatusOK || w.Header().Get("Content-Type") != "image/png" {
		t.Fatalf("expected png, got %d %q", w.Code, w.Header().Get("Content-Type"))
	}
	if _, err := png.Decode(w.Body); err != nil {
		t.Fatalf("served file is not a png: %v", err)
	}

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/files/../../etc/passwd", nil))
	if w.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for traversal, got %d", w.Code)
	}
}

func TestAddr(t *testing.T) {
	tests := map[string]string{"": ":8080", "9000": ":9000", ":7000": ":7000"}
	for in, want := range tests {
		if got := Addr(in); got != want {
			t.Fatalf("Addr(%q) = %q, want %q", in, got, want)
		}
	}
}
