package elasticsearch_test

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/DeafMist/reflink/backend/internal/elasticsearch"
	"github.com/DeafMist/reflink/backend/internal/models"
)

// fakeES answers like an Elasticsearch node so the client's product check passes.
func fakeES(t *testing.T, h http.HandlerFunc) *elasticsearch.Client {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Elastic-Product", "Elasticsearch")
		w.Header().Set("Content-Type", "application/json")
		h(w, r)
	}))
	t.Cleanup(srv.Close)

	client, err := elasticsearch.New(srv.URL, "references", nil)
	require.NoError(t, err)
	return client
}

func TestGetReferenceSet(t *testing.T) {
	var method, path string
	client := fakeES(t, func(w http.ResponseWriter, r *http.Request) {
		method, path = r.Method, r.URL.Path
		fmt.Fprint(w, `{"_index":"references","_id":"1234.5678","found":true,"_source":{
			"document_id":"1234.5678",
			"extraction_id":"ex-1",
			"extracted":"2024-01-02T15:04:05Z",
			"references":[{"identifier":"r1","year":2020,"title":"On Widgets"}]
		}}`)
	})

	set, err := client.GetReferenceSet(context.Background(), "1234.5678")
	require.NoError(t, err)
	require.Equal(t, http.MethodGet, method)
	require.Equal(t, "/references/_doc/1234.5678", path)
	require.Equal(t, "ex-1", set.ExtractionID)
	require.Len(t, set.References, 1)
	require.Equal(t, "2020", set.References[0].Year.String())

	ref, ok := set.Find("r1")
	require.True(t, ok)
	require.Equal(t, "On Widgets", *ref.Title)
}

func TestGetReferenceSetNotFound(t *testing.T) {
	client := fakeES(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		fmt.Fprint(w, `{"_index":"references","_id":"missing","found":false}`)
	})

	_, err := client.GetReferenceSet(context.Background(), "missing")
	require.ErrorIs(t, err, elasticsearch.ErrNotFound)
}

func TestIndexReferenceSet(t *testing.T) {
	var (
		method, path string
		data         []byte
	)
	client := fakeES(t, func(w http.ResponseWriter, r *http.Request) {
		method, path = r.Method, r.URL.Path
		data, _ = io.ReadAll(r.Body)
		w.WriteHeader(http.StatusCreated)
		fmt.Fprint(w, `{"result":"created"}`)
	})

	err := client.IndexReferenceSet(context.Background(), models.ReferenceSet{
		DocumentID: "1234.5678",
		Extracted:  time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC),
		References: []models.Reference{{Identifier: "r1", Year: "2020"}},
	})
	require.NoError(t, err)
	require.Equal(t, http.MethodPut, method)
	require.Equal(t, "/references/_doc/1234.5678", path)

	var body map[string]any
	require.NoError(t, json.Unmarshal(data, &body))
	require.Equal(t, "1234.5678", body["document_id"])
	refs := body["references"].([]any)
	require.EqualValues(t, 2020, refs[0].(map[string]any)["year"])
}

func TestIndexReferenceSetFailure(t *testing.T) {
	client := fakeES(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		fmt.Fprint(w, `{"error":"mapper_parsing_exception"}`)
	})

	err := client.IndexReferenceSet(context.Background(), models.ReferenceSet{DocumentID: "x"})
	require.Error(t, err)
	require.True(t, strings.Contains(err.Error(), "mapper_parsing_exception"))
}

func TestDeleteOlderThanStopsOnShortBatch(t *testing.T) {
	calls := 0
	var path string
	client := fakeES(t, func(w http.ResponseWriter, r *http.Request) {
		calls++
		path = r.URL.Path
		if calls == 1 {
			fmt.Fprint(w, `{"deleted":2}`)
			return
		}
		fmt.Fprint(w, `{"deleted":1}`)
	})

	deleted, err := client.DeleteOlderThan(context.Background(), time.Hour, 2)
	require.NoError(t, err)
	require.EqualValues(t, 3, deleted)
	require.Equal(t, 2, calls)
	require.Equal(t, "/references/_delete_by_query", path)
}
