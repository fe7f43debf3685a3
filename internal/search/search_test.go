package search

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func emptyRSS(w http.ResponseWriter, r *http.Request) {
	_, _ = w.Write([]byte(`<rss><channel></channel></rss>`))
}

func emptyOpenSearch(w http.ResponseWriter, r *http.Request) {
	_, _ = w.Write([]byte(`["q",[],[],[]]`))
}

func TestOrchestrator_FallsBackToDDGWhenEverythingElseEmpty(t *testing.T) {
	newsSrv := httptest.NewServer(http.HandlerFunc(emptyRSS))
	defer newsSrv.Close()
	wikiSrv := httptest.NewServer(http.HandlerFunc(emptyOpenSearch))
	defer wikiSrv.Close()
	ddgSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`<html><body>
<div class="result">
  <a class="result__a" href="https://news.example.com/x">A long enough headline</a>
  <a class="result__snippet">A snippet that is definitely over thirty characters long.</a>
</div>
</body></html>`))
	}))
	defer ddgSrv.Close()

	o := &Orchestrator{
		newsVN:    NewGNewsProvider(newsSrv.Client(), "vi", "VN"),
		newsEN:    NewGNewsProvider(newsSrv.Client(), "en", "US"),
		wikiVN:    NewWikipediaProvider(wikiSrv.Client(), "vi"),
		wikiEN:    NewWikipediaProvider(wikiSrv.Client(), "en"),
		cse:       NewGoogleCSEProvider(http.DefaultClient, "", ""),
		ddg:       NewDDGProvider(ddgSrv.Client()),
		factCheck: NewFactCheckProvider(http.DefaultClient, ""),
	}
	o.newsVN.baseURL = newsSrv.URL
	o.newsEN.baseURL = newsSrv.URL
	o.wikiVN.baseURL = wikiSrv.URL
	o.wikiEN.baseURL = wikiSrv.URL
	o.ddg.baseURL = ddgSrv.URL

	items := o.Gather(context.Background(), "some claim with no other hits")
	require.Len(t, items, 1)
	assert.Equal(t, "https://news.example.com/x", items[0].URL)
}

func TestOrchestrator_DeduplicatesByURL(t *testing.T) {
	newsSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`<rss><channel>
<item><title>Same story reported twice over</title><link>https://dup.example.com/a</link><description>Identical content appears from two feeds in this test.</description><source>Src</source></item>
</channel></rss>`))
	}))
	defer newsSrv.Close()
	wikiSrv := httptest.NewServer(http.HandlerFunc(emptyOpenSearch))
	defer wikiSrv.Close()

	o := &Orchestrator{
		newsVN:    NewGNewsProvider(newsSrv.Client(), "vi", "VN"),
		newsEN:    NewGNewsProvider(newsSrv.Client(), "en", "US"),
		wikiVN:    NewWikipediaProvider(wikiSrv.Client(), "vi"),
		wikiEN:    NewWikipediaProvider(wikiSrv.Client(), "en"),
		cse:       NewGoogleCSEProvider(http.DefaultClient, "", ""),
		ddg:       NewDDGProvider(http.DefaultClient),
		factCheck: NewFactCheckProvider(http.DefaultClient, ""),
	}
	o.newsVN.baseURL = newsSrv.URL
	o.newsEN.baseURL = newsSrv.URL
	o.wikiVN.baseURL = wikiSrv.URL
	o.wikiEN.baseURL = wikiSrv.URL

	items := o.Gather(context.Background(), "same story reported twice over in two languages")
	require.Len(t, items, 1)
}

func TestOrchestrator_FoldsFactCheckHitsIntoGather(t *testing.T) {
	newsSrv := httptest.NewServer(http.HandlerFunc(emptyRSS))
	defer newsSrv.Close()
	wikiSrv := httptest.NewServer(http.HandlerFunc(emptyOpenSearch))
	defer wikiSrv.Close()
	factCheckSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"claims":[{"text":"Some viral claim","claimReview":[{"publisher":{"name":"Reuters"},"url":"https://reuters.com/fc","title":"Fact check","textualRating":"False","reviewDate":"2024-01-01"}]}]}`))
	}))
	defer factCheckSrv.Close()

	o := &Orchestrator{
		newsVN:    NewGNewsProvider(newsSrv.Client(), "vi", "VN"),
		newsEN:    NewGNewsProvider(newsSrv.Client(), "en", "US"),
		wikiVN:    NewWikipediaProvider(wikiSrv.Client(), "vi"),
		wikiEN:    NewWikipediaProvider(wikiSrv.Client(), "en"),
		cse:       NewGoogleCSEProvider(http.DefaultClient, "", ""),
		ddg:       NewDDGProvider(http.DefaultClient),
		factCheck: NewFactCheckProvider(factCheckSrv.Client(), "key"),
	}
	o.newsVN.baseURL = newsSrv.URL
	o.newsEN.baseURL = newsSrv.URL
	o.wikiVN.baseURL = wikiSrv.URL
	o.wikiEN.baseURL = wikiSrv.URL
	o.factCheck.baseURL = factCheckSrv.URL

	items := o.Gather(context.Background(), "some viral claim")
	require.Len(t, items, 1)
	assert.Equal(t, "https://reuters.com/fc", items[0].URL)
	assert.Contains(t, items[0].Snippet, "False")
}

func TestOrchestrator_GatherToleratesNilFactCheckProvider(t *testing.T) {
	newsSrv := httptest.NewServer(http.HandlerFunc(emptyRSS))
	defer newsSrv.Close()
	wikiSrv := httptest.NewServer(http.HandlerFunc(emptyOpenSearch))
	defer wikiSrv.Close()

	o := &Orchestrator{
		newsVN: NewGNewsProvider(newsSrv.Client(), "vi", "VN"),
		newsEN: NewGNewsProvider(newsSrv.Client(), "en", "US"),
		wikiVN: NewWikipediaProvider(wikiSrv.Client(), "vi"),
		wikiEN: NewWikipediaProvider(wikiSrv.Client(), "en"),
		cse:    NewGoogleCSEProvider(http.DefaultClient, "", ""),
		ddg:    NewDDGProvider(http.DefaultClient),
	}
	o.newsVN.baseURL = newsSrv.URL
	o.newsEN.baseURL = newsSrv.URL
	o.wikiVN.baseURL = wikiSrv.URL
	o.wikiEN.baseURL = wikiSrv.URL

	assert.NotPanics(t, func() {
		o.Gather(context.Background(), "a claim with no fact-check provider wired")
	})
}
