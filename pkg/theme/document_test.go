package theme

import (
	"context"
	"encoding/hex"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zeebo/blake3"
	"go.uber.org/zap"
)

type fakeFetcher struct {
	failures map[string]error
}

func (f *fakeFetcher) Fetch(ctx context.Context, kind Kind, url string) (string, error) {
	if err := f.failures[url]; err != nil {
		return "", err
	}
	return "fp-" + url, nil
}

func TestDocument_AppendRemoveRender(t *testing.T) {
	doc := NewDocument()
	doc.Append(Element{ID: "a", Tag: "link", Section: SectionHead, Rel: "stylesheet", Href: "/a.css"})
	doc.Append(Element{ID: "b", Tag: "script", Section: SectionBody, Src: "/b.js?x=1&y=2", Async: true})

	assert.Equal(t, 1, doc.Count("link"))
	assert.Equal(t, 1, doc.Count("script"))
	assert.Equal(t, StatusPending, doc.Head()[0].Status)

	assert.Equal(t, "<link id=\"a\" rel=\"stylesheet\" href=\"/a.css\">\n", doc.RenderHead())
	assert.Equal(t, "<script id=\"b\" src=\"/b.js?x=1&amp;y=2\" async></script>\n", doc.RenderBody())

	doc.SetStatus("b", StatusLoaded, "abc")
	assert.Equal(t, StatusLoaded, doc.Body()[0].Status)
	assert.Equal(t, "abc", doc.Body()[0].Fingerprint)

	assert.True(t, doc.Remove("a"))
	assert.True(t, doc.Remove("b"))
	assert.False(t, doc.Remove("b"))
	assert.Empty(t, doc.RenderHead())
	assert.Empty(t, doc.RenderBody())
}

func TestDocumentPort_Attach(t *testing.T) {
	doc := NewDocument()
	port := NewDocumentPort(doc, &fakeFetcher{}, zap.NewNop(), time.Second)
	ctx := context.Background()

	style := port.AttachStyle("test-style.css")
	script := port.AttachScript("test-script.js")

	// Elements are in the document before the load resolves.
	head := doc.Head()
	require.Len(t, head, 1)
	assert.Equal(t, "link", head[0].Tag)
	assert.Equal(t, "stylesheet", head[0].Rel)
	assert.Equal(t, "test-style.css", head[0].Href)

	body := doc.Body()
	require.Len(t, body, 1)
	assert.Equal(t, "script", body[0].Tag)
	assert.Equal(t, "test-script.js", body[0].Src)
	assert.True(t, body[0].Async)

	require.NoError(t, style.Wait(ctx))
	require.NoError(t, script.Wait(ctx))

	assert.Equal(t, StatusLoaded, doc.Head()[0].Status)
	assert.Equal(t, "fp-test-style.css", doc.Head()[0].Fingerprint)

	port.DetachAll([]Handle{style.Handle(), script.Handle()})
	assert.Empty(t, doc.Head())
	assert.Empty(t, doc.Body())
}

func TestDocumentPort_Failure(t *testing.T) {
	doc := NewDocument()
	port := NewDocumentPort(doc, &fakeFetcher{failures: map[string]error{"bad.css": errors.New("404")}}, nil, 0)

	a := port.AttachStyle("bad.css")
	require.Error(t, a.Wait(context.Background()))
	assert.Equal(t, StatusFailed, doc.Head()[0].Status)
}

func TestDocumentPort_WithLoader(t *testing.T) {
	doc := NewDocument()
	port := NewDocumentPort(doc, &fakeFetcher{}, nil, time.Second)
	loader := NewLoader(port, Default(), nil, nil)

	require.NoError(t, loader.ActivateTheme(context.Background(), newTheme()))

	assert.Equal(t, 2, doc.Count("link"))
	assert.Equal(t, 2, doc.Count("script"))
	assert.Len(t, doc.Head(), 2)
	assert.Len(t, doc.Body(), 2)
}

func TestAttachment_ResolveOnce(t *testing.T) {
	a := NewAttachment(Handle{ID: "x"})
	a.Resolve(errors.New("first"))
	a.Resolve(nil)

	err := a.Wait(context.Background())
	require.Error(t, err)
	assert.Equal(t, "first", err.Error())

	select {
	case <-a.Done():
	default:
		t.Fatal("done should be closed")
	}
}

func TestHTTPFetcher(t *testing.T) {
	var hits atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		switch r.URL.Path {
		case "/themes/site.css":
			w.Write([]byte("body{}"))
		default:
			http.NotFound(w, r)
		}
	}))
	defer server.Close()

	fetcher, err := NewHTTPFetcher(server.URL+"/themes/", time.Minute, server.Client(), zap.NewNop())
	require.NoError(t, err)
	ctx := context.Background()

	sum := blake3.Sum256([]byte("body{}"))
	want := hex.EncodeToString(sum[:])

	t.Run("relative URL resolves against base", func(t *testing.T) {
		fp, err := fetcher.Fetch(ctx, KindStyle, "site.css")
		require.NoError(t, err)
		assert.Equal(t, want, fp)
	})

	t.Run("successful fetches are cached", func(t *testing.T) {
		before := hits.Load()
		fp, err := fetcher.Fetch(ctx, KindStyle, server.URL+"/themes/site.css")
		require.NoError(t, err)
		assert.Equal(t, want, fp)
		assert.Equal(t, before, hits.Load())
	})

	t.Run("non-2xx fails", func(t *testing.T) {
		_, err := fetcher.Fetch(ctx, KindScript, "missing.js")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "unexpected status 404")
	})

	t.Run("forget drops the cache", func(t *testing.T) {
		fetcher.Forget()
		before := hits.Load()
		_, err := fetcher.Fetch(ctx, KindStyle, "site.css")
		require.NoError(t, err)
		assert.Equal(t, before+1, hits.Load())
	})
}

func TestHTTPFetcher_Resolve(t *testing.T) {
	tests := []struct {
		name    string
		base    string
		ref     string
		want    string
		wantErr bool
	}{
		{"absolute untouched", "", "https://cdn.example.com/a.css", "https://cdn.example.com/a.css", false},
		{"relative with base", "http://assets.local/t/", "a.css", "http://assets.local/t/a.css", false},
		{"rooted with base", "http://assets.local/t/", "/x/a.css", "http://assets.local/x/a.css", false},
		{"relative without base", "", "a.css", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fetcher, err := NewHTTPFetcher(tt.base, 0, nil, nil)
			require.NoError(t, err)

			got, err := fetcher.Resolve(tt.ref)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
