package publish

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oarkflow/releaseit/internal/config"
	"github.com/oarkflow/releaseit/internal/git"
)

type recorded struct {
	Method string
	Path   string
	Query  string
	Header http.Header
	Body   []byte
}

type recorder struct {
	mu       sync.Mutex
	requests []recorded
}

func (r *recorder) record(req *http.Request) recorded {
	body, _ := io.ReadAll(req.Body)
	rec := recorded{
		Method: req.Method,
		Path:   req.URL.EscapedPath(),
		Query:  req.URL.RawQuery,
		Header: req.Header.Clone(),
		Body:   body,
	}
	r.mu.Lock()
	r.requests = append(r.requests, rec)
	r.mu.Unlock()
	return rec
}

func writeAsset(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

var remote = git.RemoteInfo{Host: "github.com", Owner: "acme", Repo: "widget"}

func TestGitHubPublishCreatesRelease(t *testing.T) {
	rec := &recorder{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		req := rec.record(r)
		switch {
		case r.Method == http.MethodGet && req.Path == "/repos/acme/widget/releases/tags/v1.2.0":
			http.Error(w, `{"message":"Not Found"}`, http.StatusNotFound)
		case r.Method == http.MethodPost && req.Path == "/repos/acme/widget/releases":
			w.WriteHeader(http.StatusCreated)
			_, _ = w.Write([]byte(`{"id": 42, "html_url": "https://github.com/acme/widget/releases/tag/v1.2.0"}`))
		case r.Method == http.MethodPost && req.Path == "/repos/acme/widget/releases/42/assets":
			w.WriteHeader(http.StatusCreated)
			_, _ = w.Write([]byte(`{}`))
		default:
			http.Error(w, "unexpected", http.StatusTeapot)
		}
	}))
	defer srv.Close()

	cfg := config.Defaults().GitHub
	p, err := NewGitHubPublisher(cfg, remote, WithToken("secret"), WithBaseURL(srv.URL), WithUploadURL(srv.URL+"/"))
	require.NoError(t, err)
	assert.Equal(t, "github", p.Name())

	asset := writeAsset(t, t.TempDir(), "widget linux.tar.gz", "binary")
	url, err := p.Publish(t.Context(), Release{
		Tag:        "v1.2.0",
		Name:       "Release 1.2.0",
		Notes:      "* feat: add api (aaaaaaaa)\n",
		PreRelease: true,
		Assets:     []string{asset},
	})
	require.NoError(t, err)
	assert.Equal(t, "https://github.com/acme/widget/releases/tag/v1.2.0", url)

	require.Len(t, rec.requests, 3)
	create := rec.requests[1]
	assert.Equal(t, "token secret", create.Header.Get("Authorization"))

	var body map[string]any
	require.NoError(t, json.Unmarshal(create.Body, &body))
	assert.Equal(t, "v1.2.0", body["tag_name"])
	assert.Equal(t, "Release 1.2.0", body["name"])
	assert.Equal(t, "* feat: add api (aaaaaaaa)\n", body["body"])
	assert.Equal(t, true, body["prerelease"])
	assert.Equal(t, false, body["draft"])

	upload := rec.requests[2]
	assert.Equal(t, "name=widget+linux.tar.gz", upload.Query)
	assert.Equal(t, "binary", string(upload.Body))
}

func TestGitHubPublishReusesRelease(t *testing.T) {
	rec := &recorder{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rec.record(r)
		_, _ = w.Write([]byte(`{"id": 7, "html_url": "https://example.test/r/7"}`))
	}))
	defer srv.Close()

	p, err := NewGitHubPublisher(config.Defaults().GitHub, remote, WithToken("secret"), WithBaseURL(srv.URL))
	require.NoError(t, err)

	url, err := p.Publish(t.Context(), Release{Tag: "v1.0.0"})
	require.NoError(t, err)
	assert.Equal(t, "https://example.test/r/7", url)
	assert.Len(t, rec.requests, 1)
}

func TestGitHubPublishErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"message":"Bad credentials"}`, http.StatusUnauthorized)
	}))
	defer srv.Close()

	p, err := NewGitHubPublisher(config.Defaults().GitHub, remote, WithToken("bad"), WithBaseURL(srv.URL))
	require.NoError(t, err)

	_, err = p.Publish(t.Context(), Release{Tag: "v1.0.0"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 401")
	assert.Contains(t, err.Error(), "Bad credentials")
}

func TestNewGitHubPublisherValidation(t *testing.T) {
	cfg := config.Defaults().GitHub
	cfg.TokenRef = "RELEASE_IT_TEST_TOKEN"
	t.Setenv("RELEASE_IT_TEST_TOKEN", "")

	_, err := NewGitHubPublisher(cfg, remote)
	assert.ErrorContains(t, err, "RELEASE_IT_TEST_TOKEN is required")

	t.Setenv("RELEASE_IT_TEST_TOKEN", "from-env")
	p, err := NewGitHubPublisher(cfg, git.RemoteInfo{Host: "git.corp.example"})
	assert.Nil(t, p)
	assert.ErrorContains(t, err, "owner and repo are required")

	p, err = NewGitHubPublisher(cfg, git.RemoteInfo{Host: "git.corp.example", Owner: "team", Repo: "svc"})
	require.NoError(t, err)
	assert.Equal(t, "from-env", p.token)
	assert.Equal(t, "https://git.corp.example/api/v3", p.apiURL)
	assert.Equal(t, "https://git.corp.example/api/uploads", p.uploadURL)
}

func TestGitLabPublish(t *testing.T) {
	rec := &recorder{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		req := rec.record(r)
		switch {
		case r.Method == http.MethodGet:
			http.Error(w, `{"message":"404 Not found"}`, http.StatusNotFound)
		case r.Method == http.MethodPost && req.Path == "/projects/group%2Fsub%2Fwidget/releases":
			w.WriteHeader(http.StatusCreated)
			_, _ = w.Write([]byte(`{"_links": {"self": "https://gitlab.example/group/sub/widget/-/releases/v2.0.0"}}`))
		case r.Method == http.MethodPut:
			w.WriteHeader(http.StatusCreated)
		case r.Method == http.MethodPost:
			w.WriteHeader(http.StatusCreated)
			_, _ = w.Write([]byte(`{}`))
		}
	}))
	defer srv.Close()

	gl := git.RemoteInfo{Host: "gitlab.example", Owner: "group/sub", Repo: "widget"}
	p, err := NewGitLabPublisher(config.Defaults().GitLab, gl, WithToken("glpat"), WithBaseURL(srv.URL))
	require.NoError(t, err)

	asset := writeAsset(t, t.TempDir(), "widget.deb", "deb")
	url, err := p.Publish(t.Context(), Release{Tag: "v2.0.0", Version: "2.0.0", Assets: []string{asset}})
	require.NoError(t, err)
	assert.Equal(t, "https://gitlab.example/group/sub/widget/-/releases/v2.0.0", url)

	require.Len(t, rec.requests, 4)
	assert.Equal(t, "glpat", rec.requests[1].Header.Get("PRIVATE-TOKEN"))

	var create map[string]any
	require.NoError(t, json.Unmarshal(rec.requests[1].Body, &create))
	assert.Equal(t, "v2.0.0", create["name"])
	assert.Equal(t, "Release v2.0.0", create["description"])

	assert.Equal(t, "/projects/group%2Fsub%2Fwidget/packages/generic/release/2.0.0/widget.deb", rec.requests[2].Path)
	assert.Equal(t, "deb", string(rec.requests[2].Body))

	var link map[string]any
	require.NoError(t, json.Unmarshal(rec.requests[3].Body, &link))
	assert.Equal(t, "widget.deb", link["name"])
	assert.Equal(t, "package", link["link_type"])
}

func TestResolveAssets(t *testing.T) {
	dir := t.TempDir()
	writeAsset(t, dir, "a.zip", "a")
	writeAsset(t, dir, "b.zip", "b")
	writeAsset(t, dir, "notes.txt", "n")
	require.NoError(t, os.Mkdir(filepath.Join(dir, "c.zip"), 0o755))

	files, err := ResolveAssets(dir, []string{"*.zip", "a.zip", "missing/*.tar.gz"})
	require.NoError(t, err)
	assert.Equal(t, []string{filepath.Join(dir, "a.zip"), filepath.Join(dir, "b.zip")}, files)

	_, err = ResolveAssets(dir, []string{"[bad"})
	assert.Error(t, err)
}
