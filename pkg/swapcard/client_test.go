package swapcard

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"allinattendees/pkg/config"
	"allinattendees/pkg/errors"
	"allinattendees/pkg/logger"
	"allinattendees/pkg/retry"
)

func testConfig(endpoint string) config.SwapcardConfig {
	return config.SwapcardConfig{
		Endpoint:    endpoint,
		EventID:     "event-1",
		EventSlug:   "test-event",
		ViewID:      "view-1",
		BearerToken: "test-token",
		UserAgent:   "TestAgent/1.0",
	}
}

// peopleResponse builds the positional batch response body with one
// people-connection result.
func peopleResponse(ids []string, endCursor string, hasNext bool, totalCount int) []map[string]interface{} {
	nodes := make([]map[string]string, 0, len(ids))
	for _, id := range ids {
		nodes = append(nodes, map[string]string{"id": id, "firstName": "First-" + id})
	}
	return []map[string]interface{}{
		{
			"data": map[string]interface{}{
				"view": map[string]interface{}{
					"people": map[string]interface{}{
						"totalCount": totalCount,
						"nodes":      nodes,
						"pageInfo": map[string]interface{}{
							"hasNextPage": hasNext,
							"endCursor":   endCursor,
						},
					},
				},
			},
		},
	}
}

func TestNewClientHeaders(t *testing.T) {
	client := NewClient(testConfig("https://example.com/graphql"), 30*time.Second, logger.NewNopLogger())

	assert.Equal(t, "Bearer test-token", client.headers["authorization"])
	assert.Equal(t, "TestAgent/1.0", client.headers["user-agent"])
	assert.Equal(t, "application/json", client.headers["content-type"])
	assert.Equal(t, "app.swapcard.com", client.headers["x-client-origin"])
}

func TestFetchFirstPage(t *testing.T) {
	var gotOps []Operation
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "POST", r.Method)
		assert.Equal(t, "Bearer test-token", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotOps))

		json.NewEncoder(w).Encode(peopleResponse([]string{"a", "b"}, "cursor-1", true, 42))
	}))
	defer server.Close()

	client := NewClient(testConfig(server.URL), 30*time.Second, logger.NewNopLogger())
	page, err := client.FetchFirstPage(context.Background())

	require.NoError(t, err)
	assert.Equal(t, 42, page.TotalCount)
	assert.Equal(t, "cursor-1", page.EndCursor)
	assert.True(t, page.HasMore)
	require.Len(t, page.Records, 2)
	assert.Equal(t, "a", page.Records[0].ID)

	// The initial batch carries the view operations without a cursor
	require.Len(t, gotOps, 3)
	for _, op := range gotOps {
		assert.NotEmpty(t, op.OperationName)
		assert.NotEmpty(t, op.Extensions.PersistedQuery.SHA256Hash)
		assert.Equal(t, 1, op.Extensions.PersistedQuery.Version)
	}
}

func TestFetchNextPagePassesCursor(t *testing.T) {
	var gotOps []Operation
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotOps))
		json.NewEncoder(w).Encode(peopleResponse([]string{"c"}, "", false, 0))
	}))
	defer server.Close()

	client := NewClient(testConfig(server.URL), 30*time.Second, logger.NewNopLogger())
	page, err := client.FetchNextPage(context.Background(), "cursor-1")

	require.NoError(t, err)
	assert.False(t, page.HasMore)
	assert.Empty(t, page.EndCursor)
	require.Len(t, page.Records, 1)

	require.Len(t, gotOps, 1)
	vars := gotOps[0].Variables
	assert.Equal(t, "cursor-1", vars["endCursor"])
}

func TestFetchPageMalformedBody(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("<html>not json</html>"))
	}))
	defer server.Close()

	client := NewClient(testConfig(server.URL), 30*time.Second, logger.NewNopLogger())
	_, err := client.FetchFirstPage(context.Background())

	require.Error(t, err)
	var typed *errors.Error
	require.ErrorAs(t, err, &typed)
	assert.Equal(t, errors.ErrorTypeMalformed, typed.Type)
}

func TestFetchPageMissingPeopleIsEmptyPage(t *testing.T) {
	// Structurally valid JSON without the people connection decodes to
	// an empty page, not an error.
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`[{"data":{}},{"data":null}]`))
	}))
	defer server.Close()

	client := NewClient(testConfig(server.URL), 30*time.Second, logger.NewNopLogger())
	page, err := client.FetchFirstPage(context.Background())

	require.NoError(t, err)
	assert.Empty(t, page.Records)
	assert.False(t, page.HasMore)
	assert.Zero(t, page.TotalCount)
}

func TestFetchPageStatusCodes(t *testing.T) {
	tests := []struct {
		name         string
		statusCode   int
		expectedType errors.ErrorType
	}{
		{"401 Unauthorized", http.StatusUnauthorized, errors.ErrorTypeAuth},
		{"403 Forbidden", http.StatusForbidden, errors.ErrorTypeAuth},
		{"429 Too Many Requests", http.StatusTooManyRequests, errors.ErrorTypeRateLimit},
		{"500 Internal Server Error", http.StatusInternalServerError, errors.ErrorTypeServerError},
		{"400 Bad Request", http.StatusBadRequest, errors.ErrorTypeTransport},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.statusCode)
			}))
			defer server.Close()

			client := NewClient(testConfig(server.URL), 30*time.Second, logger.NewNopLogger())
			_, err := client.FetchFirstPage(context.Background())

			require.Error(t, err)
			var typed *errors.Error
			require.ErrorAs(t, err, &typed)
			assert.Equal(t, tt.expectedType, typed.Type)
			assert.Equal(t, tt.statusCode, typed.Code)
		})
	}
}

func TestFetchPageNetworkError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	server.Close() // connection refused

	client := NewClient(testConfig(server.URL), 5*time.Second, logger.NewNopLogger())
	_, err := client.FetchFirstPage(context.Background())

	require.Error(t, err)
	var typed *errors.Error
	require.ErrorAs(t, err, &typed)
	assert.Equal(t, errors.ErrorTypeTransport, typed.Type)
}

func TestFetchPageRetriesServerErrors(t *testing.T) {
	attempts := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		if attempts < 3 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		json.NewEncoder(w).Encode(peopleResponse([]string{"a"}, "", false, 1))
	}))
	defer server.Close()

	ctx := context.Background()
	client := NewClient(testConfig(server.URL), 30*time.Second, logger.NewNopLogger())
	client = client.WithRetry(retry.NewPageFetchConfig(ctx, 3, 10*time.Millisecond, 100*time.Millisecond, logger.NewNopLogger()))

	page, err := client.FetchFirstPage(ctx)

	require.NoError(t, err)
	assert.Equal(t, 3, attempts)
	assert.Len(t, page.Records, 1)
}

func TestFetchPageDoesNotRetryAuthErrors(t *testing.T) {
	attempts := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer server.Close()

	ctx := context.Background()
	client := NewClient(testConfig(server.URL), 30*time.Second, logger.NewNopLogger())
	client = client.WithRetry(retry.NewPageFetchConfig(ctx, 3, 10*time.Millisecond, 100*time.Millisecond, logger.NewNopLogger()))

	_, err := client.FetchFirstPage(ctx)

	require.Error(t, err)
	assert.Equal(t, 1, attempts)
}

func TestFetchPersonDetails(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var ops []Operation
		require.NoError(t, json.NewDecoder(r.Body).Decode(&ops))
		require.Len(t, ops, 1)
		assert.Equal(t, "person-1", ops[0].Variables["personId"])

		w.Write([]byte(`[{"data":{"eventPerson":{"id":"person-1","firstName":"Ada","email":"ada@example.com","city":"London"}}}]`))
	}))
	defer server.Close()

	client := NewClient(testConfig(server.URL), 30*time.Second, logger.NewNopLogger())
	details, err := client.FetchPersonDetails(context.Background(), "person-1")

	require.NoError(t, err)
	assert.Equal(t, "person-1", details.ID)
	assert.Equal(t, "ada@example.com", details.Email)
	assert.Equal(t, "London", details.City)
}

func TestFetchPersonDetailsMissingData(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`[{"data":{}}]`))
	}))
	defer server.Close()

	client := NewClient(testConfig(server.URL), 30*time.Second, logger.NewNopLogger())
	_, err := client.FetchPersonDetails(context.Background(), "person-1")

	require.Error(t, err)
	var typed *errors.Error
	require.ErrorAs(t, err, &typed)
	assert.Equal(t, errors.ErrorTypeMalformed, typed.Type)
}
