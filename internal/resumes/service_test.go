package resumes

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"io"
	"reflect"
	"strings"
	"sync"
	"testing"
	"time"
	"unicode/utf8"

	"resume-builder/internal/generation"
	"resume-builder/internal/profiles"
	"resume-builder/internal/shared/events"
	"resume-builder/internal/shared/storage/cache"
	"resume-builder/internal/shared/storage/object"
	"resume-builder/resume/model"
)

type fakeGenerator struct {
	mu      sync.Mutex
	calls   int
	last    generation.Request
	content model.Content
	err     error
	block   bool
}

func (g *fakeGenerator) Generate(ctx context.Context, req generation.Request) (model.Content, error) {
	g.mu.Lock()
	g.calls++
	g.last = req
	g.mu.Unlock()
	if g.block {
		<-ctx.Done()
		return model.Content{}, ctx.Err()
	}
	return g.content, g.err
}

func (g *fakeGenerator) Calls() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.calls
}

type fakeStore struct {
	mu      sync.Mutex
	objects map[string][]byte
	err     error
	deleted []string
}

func newFakeStore() *fakeStore { return &fakeStore{objects: make(map[string][]byte)} }

func (s *fakeStore) Put(_ context.Context, key, contentType string, r io.Reader, _ int64) (object.Object, error) {
	if s.err != nil {
		return object.Object{}, s.err
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return object.Object{}, err
	}
	s.mu.Lock()
	s.objects[key] = data
	s.mu.Unlock()
	return object.Object{Key: key, Size: int64(len(data)), ContentType: contentType, URL: s.URL(key)}, nil
}

func (s *fakeStore) Open(_ context.Context, key string) (io.ReadCloser, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	data, ok := s.objects[key]
	if !ok {
		return nil, object.ErrNotFound
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

func (s *fakeStore) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.objects, key)
	s.deleted = append(s.deleted, key)
	return nil
}

func (s *fakeStore) URL(key string) string { return "https://cdn.test/" + key }

type fakePDF struct{ html []byte }

func (f *fakePDF) Export(_ context.Context, html []byte) ([]byte, error) {
	f.html = html
	return []byte("%PDF-1.7 fake"), nil
}

type testEnv struct {
	svc      *Service
	repo     *MemoryRepo
	gen      *fakeGenerator
	store    *fakeStore
	cache    *cache.MemoryCache
	events   *events.Recorder
	profiles *profiles.Service
	profile  profiles.Profile
}

func sampleContent() model.Content {
	return model.Content{
		PersonalDetails: &model.PersonalDetails{
			ResumeJobTitle: "Backend Engineer",
			FirstName:      "Ada",
			LastName:       "Lovelace",
			Email:          "ada@example.com",
			Summary:        "Builds reliable systems.",
		},
		Jobs:      []model.Job{{ID: "job-1", JobTitle: "Senior Engineer", Employer: "Analytical Engines", StartDate: "2020-01-01"}},
		Education: []model.Education{{ID: "edu-1", School: "University of London"}},
		Skills:    []model.Skill{{ID: "skill-1", Name: "Go", ProficiencyLevel: "Expert"}},
		Tools:     []model.Tool{{ID: "tool-1", Name: "Postgres"}},
		Languages: []model.Language{{ID: "lang-1", Name: "English"}},
	}
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	clock := time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)
	var clockMu sync.Mutex
	now := func() time.Time {
		clockMu.Lock()
		defer clockMu.Unlock()
		clock = clock.Add(time.Second)
		return clock
	}
	var idMu sync.Mutex
	seq := 0

	profileSvc := &profiles.Service{Repo: profiles.NewMemoryRepo(), Now: now}
	profile, err := profileSvc.Create(context.Background(), "user-1", profiles.CreateInput{Name: "Main", FirstName: "Ada", LastName: "Lovelace"})
	if err != nil {
		t.Fatalf("create profile: %v", err)
	}

	env := &testEnv{
		repo:     NewMemoryRepo(),
		gen:      &fakeGenerator{content: sampleContent()},
		store:    newFakeStore(),
		cache:    cache.NewMemoryCache(),
		events:   &events.Recorder{},
		profiles: profileSvc,
		profile:  profile,
	}
	env.svc = &Service{
		Repo:      env.repo,
		Profiles:  profileSvc,
		Generator: env.gen,
		Store:     env.store,
		Cache:     env.cache,
		Events:    env.events,
		Now:       now,
		NewID: func() string {
			idMu.Lock()
			defer idMu.Unlock()
			seq++
			return fmt.Sprintf("resume-%d", seq)
		},
	}
	return env
}

func (e *testEnv) validInput() CreateInput {
	return CreateInput{
		ProfileID:  e.profile.ID,
		JobTitle:   "Backend Engineer",
		Employer:   "Globex",
		JobDetails: "Build and run Go services.",
	}
}

func TestCreateAttachesGeneratedContent(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	out, err := env.svc.Create(ctx, "user-1", env.validInput())
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if out.ID == "" || out.ID != out.Data.ID {
		t.Fatalf("unexpected ids %q / %q", out.ID, out.Data.ID)
	}
	if out.Data.Status != StatusGenerated {
		t.Fatalf("expected generated status, got %s", out.Data.Status)
	}
	if !reflect.DeepEqual(out.Data.Content, sampleContent()) {
		t.Fatalf("content differs from generator output:\n%+v", out.Data.Content)
	}
	if out.Data.Profile.ID != env.profile.ID {
		t.Fatalf("expected merged profile, got %+v", out.Data.Profile)
	}
	if env.gen.last.Employer != "Globex" || env.gen.last.Profile.ID != env.profile.ID {
		t.Fatalf("generator got unexpected request %+v", env.gen.last)
	}

	stored, err := env.repo.GetByID(ctx, out.ID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if !stored.UpdatedAt.After(stored.CreatedAt) {
		t.Fatalf("expected updatedAt to advance past createdAt")
	}
	if got := env.events.Types(); !reflect.DeepEqual(got, []string{events.ResumeCreated, events.ResumeGenerated}) {
		t.Fatalf("unexpected events %v", got)
	}
	for _, ev := range env.events.Events() {
		if ev.ResumeID != out.ID || ev.ProfileID != env.profile.ID {
			t.Fatalf("event not keyed by resume: %+v", ev)
		}
	}
}

func TestCreateGivesEachResumeAUniqueID(t *testing.T) {
	env := newTestEnv(t)
	env.svc.NewID = nil
	seen := map[string]bool{}
	for i := 0; i < 5; i++ {
		out, err := env.svc.Create(context.Background(), "user-1", env.validInput())
		if err != nil {
			t.Fatalf("Create: %v", err)
		}
		if seen[out.ID] {
			t.Fatalf("duplicate id %s", out.ID)
		}
		seen[out.ID] = true
	}
}

func TestCreateValidationHasNoSideEffects(t *testing.T) {
	tests := []struct {
		name  string
		edit  func(*CreateInput)
		field string
	}{
		{name: "short employer", edit: func(in *CreateInput) { in.Employer = "AB" }, field: "employer"},
		{name: "short details", edit: func(in *CreateInput) { in.JobDetails = "  x " }, field: "jd_post_details"},
		{name: "missing title", edit: func(in *CreateInput) { in.JobTitle = "" }, field: "jd_job_title"},
		{name: "missing profile", edit: func(in *CreateInput) { in.ProfileID = "" }, field: "profileId"},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t)
			in := env.validInput()
			tt.edit(&in)

			_, err := env.svc.Create(context.Background(), "user-1", in)
			if !errors.Is(err, ErrInvalidInput) {
				t.Fatalf("expected ErrInvalidInput, got %v", err)
			}
			var verr *model.ValidationError
			if !errors.As(err, &verr) {
				t.Fatalf("expected field errors, got %v", err)
			}
			if _, ok := verr.Fields[tt.field]; !ok {
				t.Fatalf("expected error on %s, got %v", tt.field, verr.Fields)
			}
			assertNoResumes(t, env)
		})
	}
}

func TestCreateUnknownProfileWritesNothing(t *testing.T) {
	env := newTestEnv(t)

	in := env.validInput()
	in.ProfileID = "missing"
	if _, err := env.svc.Create(context.Background(), "user-1", in); !errors.Is(err, ErrProfileNotFound) {
		t.Fatalf("expected ErrProfileNotFound, got %v", err)
	}

	// Another user's profile is indistinguishable from a missing one.
	if _, err := env.svc.Create(context.Background(), "user-2", env.validInput()); !errors.Is(err, ErrProfileNotFound) {
		t.Fatalf("expected ErrProfileNotFound for foreign profile, got %v", err)
	}
	assertNoResumes(t, env)
}

func TestCreateGenerationFailureKeepsRow(t *testing.T) {
	env := newTestEnv(t)
	env.gen.err = errors.New("provider exploded")
	ctx := context.Background()

	_, err := env.svc.Create(ctx, "user-1", env.validInput())
	if !errors.Is(err, ErrGenerationFailed) {
		t.Fatalf("expected ErrGenerationFailed, got %v", err)
	}
	if errors.Is(err, ErrNotFound) || errors.Is(err, ErrProfileNotFound) {
		t.Fatalf("generation failure must be distinct from not found")
	}
	var genErr *GenerationError
	if !errors.As(err, &genErr) || genErr.ResumeID == "" {
		t.Fatalf("expected GenerationError with resume id, got %v", err)
	}
	if env.gen.Calls() != 1 {
		t.Fatalf("expected exactly one generation attempt, got %d", env.gen.Calls())
	}

	res, err := env.svc.Get(ctx, "user-1", genErr.ResumeID)
	if err != nil {
		t.Fatalf("row from step 3 must be retrievable: %v", err)
	}
	if res.Status != StatusFailed || !strings.Contains(res.GenerationError, "provider exploded") {
		t.Fatalf("unexpected resume state %+v", res)
	}
	if !res.Content.IsEmpty() {
		t.Fatalf("expected empty content, got %+v", res.Content)
	}
	if res.JobTitle != "Backend Engineer" || res.Employer != "Globex" {
		t.Fatalf("job description not persisted: %+v", res)
	}
	if got := env.events.Types(); !reflect.DeepEqual(got, []string{events.ResumeCreated, events.ResumeGenerationFailed}) {
		t.Fatalf("unexpected events %v", got)
	}
}

func TestCreateGenerationTimeout(t *testing.T) {
	env := newTestEnv(t)
	env.gen.block = true
	env.svc.GenerationTimeout = 20 * time.Millisecond

	_, err := env.svc.Create(context.Background(), "user-1", env.validInput())
	if !errors.Is(err, ErrGenerationFailed) || !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected generation deadline error, got %v", err)
	}
	list, err := env.repo.List(context.Background(), ListFilter{UserID: "user-1"})
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(list) != 1 || list[0].Status != StatusFailed {
		t.Fatalf("expected one failed row, got %+v", list)
	}
}

func TestCreateMarksFailedAfterCallerCancels(t *testing.T) {
	env := newTestEnv(t)
	env.gen.block = true
	ctx, cancel := context.WithCancel(context.Background())
	env.svc.Events = events.Noop{}

	go func() {
		for env.gen.Calls() == 0 {
			time.Sleep(time.Millisecond)
		}
		cancel()
	}()

	_, err := env.svc.Create(ctx, "user-1", env.validInput())
	var genErr *GenerationError
	if !errors.As(err, &genErr) {
		t.Fatalf("expected GenerationError, got %v", err)
	}
	res, err := env.repo.GetByID(context.Background(), genErr.ResumeID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if res.Status != StatusFailed {
		t.Fatalf("expected failed status after cancel, got %s", res.Status)
	}
}

func TestAttachContentOnlyOnce(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	out, err := env.svc.Create(ctx, "user-1", env.validInput())
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if _, err := env.repo.AttachContent(ctx, out.ID, model.Content{}, time.Now()); !errors.Is(err, ErrNotPending) {
		t.Fatalf("expected ErrNotPending on second attach, got %v", err)
	}
	if _, err := env.repo.MarkFailed(ctx, out.ID, "late", time.Now()); !errors.Is(err, ErrNotPending) {
		t.Fatalf("expected ErrNotPending on mark failed, got %v", err)
	}
}

func TestListByProfileAndAll(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	other, err := env.profiles.Create(ctx, "user-1", profiles.CreateInput{Name: "Side"})
	if err != nil {
		t.Fatalf("create profile: %v", err)
	}
	first, err := env.svc.Create(ctx, "user-1", env.validInput())
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	in := env.validInput()
	in.ProfileID = other.ID
	second, err := env.svc.Create(ctx, "user-1", in)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	third, err := env.svc.Create(ctx, "user-1", env.validInput())
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	byProfile, err := env.svc.List(ctx, "user-1", env.profile.ID)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if ids(byProfile) != third.ID+","+first.ID {
		t.Fatalf("unexpected profile listing %s", ids(byProfile))
	}

	all, err := env.svc.List(ctx, "user-1", "")
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if ids(all) != third.ID+","+second.ID+","+first.ID {
		t.Fatalf("expected createdAt desc, got %s", ids(all))
	}

	if _, err := env.svc.List(ctx, "user-2", env.profile.ID); !errors.Is(err, ErrProfileNotFound) {
		t.Fatalf("expected ErrProfileNotFound for foreign profile, got %v", err)
	}
	none, err := env.svc.List(ctx, "user-2", "")
	if err != nil || len(none) != 0 {
		t.Fatalf("expected no resumes for another user, got %v %v", none, err)
	}
}

func TestCacheInvalidatedByIDAfterWrites(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	out, err := env.svc.Create(ctx, "user-1", env.validInput())
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if _, err := env.svc.Get(ctx, "user-1", out.ID); err != nil {
		t.Fatalf("Get: %v", err)
	}
	if _, err := env.svc.List(ctx, "user-1", env.profile.ID); err != nil {
		t.Fatalf("List: %v", err)
	}
	for _, key := range []string{resumeKey(out.ID), profileListKey(env.profile.ID)} {
		if _, err := env.cache.Get(ctx, key); err != nil {
			t.Fatalf("expected %s cached, got %v", key, err)
		}
	}

	unrelated := "resume:someone-else"
	if err := env.cache.Set(ctx, unrelated, []byte(`{}`), time.Minute); err != nil {
		t.Fatalf("Set: %v", err)
	}

	summary := model.PersonalDetails{FirstName: "Augusta", Summary: "Updated summary."}
	if _, err := env.svc.Update(ctx, "user-1", out.ID, ContentPatch{PersonalDetails: &summary}); err != nil {
		t.Fatalf("Update: %v", err)
	}
	for _, key := range []string{resumeKey(out.ID), profileListKey(env.profile.ID), userListKey("user-1")} {
		if _, err := env.cache.Get(ctx, key); !errors.Is(err, cache.ErrMiss) {
			t.Fatalf("expected %s invalidated, got %v", key, err)
		}
	}
	if _, err := env.cache.Get(ctx, unrelated); err != nil {
		t.Fatalf("unrelated key must survive, got %v", err)
	}

	res, err := env.svc.Get(ctx, "user-1", out.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if res.PersonalDetails.FirstName != "Augusta" {
		t.Fatalf("expected fresh read after update, got %+v", res.PersonalDetails)
	}
}

func TestGetHidesForeignAndMissing(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	out, err := env.svc.Create(ctx, "user-1", env.validInput())
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if _, err := env.svc.Get(ctx, "user-2", out.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound for foreign resume, got %v", err)
	}
	if _, err := env.svc.Get(ctx, "user-1", "nope"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestUpdateReplacesOnlyPresentSections(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	out, err := env.svc.Create(ctx, "user-1", env.validInput())
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	skills := []model.Skill{{Name: "Rust"}, {Name: "SQL"}}
	empty := []model.Tool{}
	res, err := env.svc.Update(ctx, "user-1", out.ID, ContentPatch{Skills: &skills, Tools: &empty})
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
	if len(res.Skills) != 2 || res.Skills[0].Name != "Rust" || res.Skills[0].ID == "" {
		t.Fatalf("unexpected skills %+v", res.Skills)
	}
	if len(res.Tools) != 0 {
		t.Fatalf("expected tools cleared, got %+v", res.Tools)
	}
	if !reflect.DeepEqual(res.Jobs, sampleContent().Jobs) || !reflect.DeepEqual(res.PersonalDetails, sampleContent().PersonalDetails) {
		t.Fatalf("untouched sections changed")
	}

	bad := []model.Job{{JobTitle: "Engineer", Employer: "X", StartDate: "2020/01/01"}}
	_, err = env.svc.Update(ctx, "user-1", out.ID, ContentPatch{Jobs: &bad})
	var verr *model.ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if _, ok := verr.Fields["jobs[0].employer"]; !ok {
		t.Fatalf("expected employer error, got %v", verr.Fields)
	}
	if _, ok := verr.Fields["jobs[0].start_date"]; !ok {
		t.Fatalf("expected start_date error, got %v", verr.Fields)
	}

	if _, err := env.svc.Update(ctx, "user-1", out.ID, ContentPatch{}); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput for empty patch, got %v", err)
	}
	if _, err := env.svc.Update(ctx, "user-2", out.ID, ContentPatch{Skills: &skills}); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound for foreign resume, got %v", err)
	}
}

func pngPayload(t *testing.T, w, h int) ImagePayload {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for x := 0; x < w; x++ {
		for y := 0; y < h; y++ {
			img.Set(x, y, color.RGBA{R: uint8(x), G: uint8(y), B: 200, A: 255})
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("encode png: %v", err)
	}
	return ImagePayload{MimeType: "image/png", Data: base64.StdEncoding.EncodeToString(buf.Bytes())}
}

func TestUploadPreviewStoresNormalizedImage(t *testing.T) {
	env := newTestEnv(t)
	env.svc.Preview = PreviewLimits{MaxWidth: 100}
	ctx := context.Background()
	out, err := env.svc.Create(ctx, "user-1", env.validInput())
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	res, err := env.svc.UploadPreview(ctx, "user-1", out.ID, pngPayload(t, 300, 60))
	if err != nil {
		t.Fatalf("UploadPreview: %v", err)
	}
	if !strings.HasPrefix(res.PreviewImageURL, "https://cdn.test/previews/"+out.ID+"/") {
		t.Fatalf("unexpected preview url %q", res.PreviewImageURL)
	}

	key := strings.TrimPrefix(res.PreviewImageURL, "https://cdn.test/")
	rc, err := env.store.Open(ctx, key)
	if err != nil {
		t.Fatalf("open stored preview: %v", err)
	}
	defer rc.Close()
	cfg, format, err := image.DecodeConfig(rc)
	if err != nil {
		t.Fatalf("decode stored preview: %v", err)
	}
	if format != "png" || cfg.Width != 100 || cfg.Height != 20 {
		t.Fatalf("expected 100x20 png, got %s %dx%d", format, cfg.Width, cfg.Height)
	}
	if types := env.events.Types(); types[len(types)-1] != events.ResumePreviewUpdated {
		t.Fatalf("expected preview event last, got %v", types)
	}
}

func TestUploadPreviewFailureLeavesResumeUnchanged(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	out, err := env.svc.Create(ctx, "user-1", env.validInput())
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	before, _ := env.repo.GetByID(ctx, out.ID)

	env.store.err = errors.New("bucket unavailable")
	_, err = env.svc.UploadPreview(ctx, "user-1", out.ID, pngPayload(t, 10, 10))
	if !errors.Is(err, ErrUploadFailed) {
		t.Fatalf("expected ErrUploadFailed, got %v", err)
	}

	after, _ := env.repo.GetByID(ctx, out.ID)
	if after.PreviewImageURL != before.PreviewImageURL || !after.UpdatedAt.Equal(before.UpdatedAt) {
		t.Fatalf("resume mutated after failed upload: %+v", after)
	}
}

func TestUploadPreviewRejectsInvalidImages(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	out, err := env.svc.Create(ctx, "user-1", env.validInput())
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	valid := pngPayload(t, 4, 4)

	tests := []struct {
		name    string
		payload ImagePayload
		limits  PreviewLimits
	}{
		{name: "unsupported type", payload: ImagePayload{MimeType: "image/svg+xml", Data: valid.Data}},
		{name: "declared type mismatch", payload: ImagePayload{MimeType: "image/jpeg", Data: valid.Data}},
		{name: "bad base64", payload: ImagePayload{MimeType: "image/png", Data: "***"}},
		{name: "not an image", payload: ImagePayload{MimeType: "image/png", Data: base64.StdEncoding.EncodeToString([]byte("hello world"))}},
		{name: "too large", payload: valid, limits: PreviewLimits{MaxBytes: 10}},
		{name: "empty", payload: ImagePayload{MimeType: "image/png"}},
		{name: "too many pixels", payload: pngPayload(t, 300, 60), limits: PreviewLimits{MaxPixels: 10_000}},
		{name: "huge dimensions, tiny file", payload: ImagePayload{
			MimeType: "image/png",
			Data:     base64.StdEncoding.EncodeToString(pngHeader(t, 20000, 20000)),
		}},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			env.svc.Preview = tt.limits
			_, err := env.svc.UploadPreview(ctx, "user-1", out.ID, tt.payload)
			if !errors.Is(err, ErrInvalidImage) {
				t.Fatalf("expected ErrInvalidImage, got %v", err)
			}
		})
	}
	if len(env.store.objects) != 0 {
		t.Fatalf("nothing should be uploaded, got %d objects", len(env.store.objects))
	}
}

func TestRenderDocument(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	out, err := env.svc.Create(ctx, "user-1", env.validInput())
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	doc, err := env.svc.RenderDocument(ctx, "user-1", out.ID, "")
	if err != nil {
		t.Fatalf("render html: %v", err)
	}
	if doc.FileName != "backend-engineer-globex.html" || !bytes.Contains(doc.Data, []byte("Ada Lovelace")) {
		t.Fatalf("unexpected html document %s", doc.FileName)
	}

	doc, err = env.svc.RenderDocument(ctx, "user-1", out.ID, "DOCX")
	if err != nil {
		t.Fatalf("render docx: %v", err)
	}
	if !bytes.HasPrefix(doc.Data, []byte("PK")) || !strings.HasSuffix(doc.FileName, ".docx") {
		t.Fatalf("expected a docx zip")
	}

	if _, err := env.svc.RenderDocument(ctx, "user-1", out.ID, "pdf"); !errors.Is(err, ErrUnsupportedFormat) {
		t.Fatalf("expected ErrUnsupportedFormat without exporter, got %v", err)
	}
	pdf := &fakePDF{}
	env.svc.PDF = pdf
	doc, err = env.svc.RenderDocument(ctx, "user-1", out.ID, "pdf")
	if err != nil {
		t.Fatalf("render pdf: %v", err)
	}
	if doc.ContentType != "application/pdf" || !bytes.Contains(pdf.html, []byte("Ada Lovelace")) {
		t.Fatalf("unexpected pdf render")
	}

	if _, err := env.svc.RenderDocument(ctx, "user-1", out.ID, "odt"); !errors.Is(err, ErrUnsupportedFormat) {
		t.Fatalf("expected ErrUnsupportedFormat, got %v", err)
	}
	if _, err := env.svc.RenderDocument(ctx, "user-2", out.ID, "html"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func assertNoResumes(t *testing.T, env *testEnv) {
	t.Helper()
	if env.gen.Calls() != 0 {
		t.Fatalf("generator must not be called, got %d calls", env.gen.Calls())
	}
	all, err := env.repo.List(context.Background(), ListFilter{})
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(all) != 0 {
		t.Fatalf("expected no resume rows, got %d", len(all))
	}
	if len(env.events.Events()) != 0 {
		t.Fatalf("expected no events, got %v", env.events.Types())
	}
}

func ids(list []Resume) string {
	out := make([]string, len(list))
	for i, r := range list {
		out[i] = r.ID
	}
	return strings.Join(out, ",")
}

func TestCreateStoresLongNonASCIIFailureAsValidText(t *testing.T) {
	env := newTestEnv(t)
	env.gen.err = errors.New(strings.Repeat("a", 499) + strings.Repeat("é", 10))
	ctx := context.Background()

	_, err := env.svc.Create(ctx, "user-1", env.validInput())
	var genErr *GenerationError
	if !errors.As(err, &genErr) {
		t.Fatalf("expected GenerationError, got %v", err)
	}
	res, err := env.repo.GetByID(ctx, genErr.ResumeID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if res.Status != StatusFailed {
		t.Fatalf("expected failed status, got %s", res.Status)
	}
	if !utf8.ValidString(res.GenerationError) {
		t.Fatalf("stored reason is not valid UTF-8: %q", res.GenerationError[len(res.GenerationError)-4:])
	}
	if len(res.GenerationError) > maxStoredErrorLen {
		t.Fatalf("stored reason is %d bytes, limit %d", len(res.GenerationError), maxStoredErrorLen)
	}
}

func TestTruncateUTF8(t *testing.T) {
	tests := []struct {
		name string
		in   string
		n    int
		want string
	}{
		{name: "short", in: "abc", n: 10, want: "abc"},
		{name: "ascii cut", in: "abcdef", n: 3, want: "abc"},
		{name: "backs off a split rune", in: "aé", n: 2, want: "a"},
		{name: "keeps whole rune", in: "aé", n: 3, want: "aé"},
		{name: "three byte rune", in: "ab€", n: 4, want: "ab"},
		{name: "repairs invalid input", in: "a\xffb", n: 10, want: "a\uFFFDb"},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			if got := truncateUTF8(tt.in, tt.n); got != tt.want {
				t.Fatalf("truncateUTF8(%q, %d) = %q, want %q", tt.in, tt.n, got, tt.want)
			}
		})
	}
}

type attachFailsRepo struct {
	*MemoryRepo
}

func (r attachFailsRepo) AttachContent(context.Context, string, model.Content, time.Time) (Resume, error) {
	return Resume{}, errors.New("disk full")
}

func TestCreateMarksFailedWhenContentCannotBeStored(t *testing.T) {
	env := newTestEnv(t)
	env.svc.Repo = attachFailsRepo{MemoryRepo: env.repo}
	ctx := context.Background()

	_, err := env.svc.Create(ctx, "user-1", env.validInput())
	if err == nil || !strings.Contains(err.Error(), "disk full") {
		t.Fatalf("expected storage error, got %v", err)
	}

	all, err := env.repo.List(ctx, ListFilter{UserID: "user-1"})
	if err != nil || len(all) != 1 {
		t.Fatalf("expected the initial row, got %d rows (%v)", len(all), err)
	}
	if all[0].Status != StatusFailed || !strings.Contains(all[0].GenerationError, "disk full") {
		t.Fatalf("expected row marked failed, got %+v", all[0])
	}
	if got := env.events.Types(); !reflect.DeepEqual(got, []string{events.ResumeCreated, events.ResumeGenerationFailed}) {
		t.Fatalf("unexpected events %v", got)
	}
}

// interleavedRepo runs during once, after the first GetByID has loaded its
// row but before the caller sees it.
type interleavedRepo struct {
	*MemoryRepo
	fired  bool
	during func()
}

func (r *interleavedRepo) GetByID(ctx context.Context, id string) (Resume, error) {
	res, err := r.MemoryRepo.GetByID(ctx, id)
	if !r.fired && r.during != nil {
		r.fired = true
		r.during()
	}
	return res, err
}

func TestReadDoesNotCacheValueOlderThanConcurrentWrite(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	out, err := env.svc.Create(ctx, "user-1", env.validInput())
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	summary := model.PersonalDetails{FirstName: "Augusta", Summary: "Updated summary."}
	env.svc.Repo = &interleavedRepo{
		MemoryRepo: env.repo,
		during: func() {
			if _, err := env.svc.Update(ctx, "user-1", out.ID, ContentPatch{PersonalDetails: &summary}); err != nil {
				t.Errorf("Update: %v", err)
			}
		},
	}

	stale, err := env.svc.Get(ctx, "user-1", out.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if stale.PersonalDetails.FirstName != "Ada" {
		t.Fatalf("expected the read to return the row it loaded, got %+v", stale.PersonalDetails)
	}
	if _, err := env.cache.Get(ctx, resumeKey(out.ID)); !errors.Is(err, cache.ErrMiss) {
		t.Fatalf("expected no cache fill for a read that raced a write, got %v", err)
	}

	fresh, err := env.svc.Get(ctx, "user-1", out.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if fresh.PersonalDetails.FirstName != "Augusta" {
		t.Fatalf("expected updated row, got %+v", fresh.PersonalDetails)
	}
	if _, err := env.cache.Get(ctx, resumeKey(out.ID)); err != nil {
		t.Fatalf("expected an undisturbed read to fill the cache, got %v", err)
	}
}
