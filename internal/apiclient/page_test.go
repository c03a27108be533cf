package apiclient

import (
	"context"
	"io"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodePage_EnvelopeVariants(t *testing.T) {
	tests := []struct {
		name     string
		body     string
		keys     PageKeys
		expected Page[company]
	}{
		{
			name: "items envelope",
			body: `{"items":[{"id":1},{"id":2}],"currentPage":1,"totalPages":3,"totalItems":23}`,
			keys: DefaultPageKeys,
			expected: Page[company]{
				Items: []company{{ID: 1}, {ID: 2}}, CurrentPage: 1, TotalPages: 3, TotalItems: 23, HasTotalPages: true,
			},
		},
		{
			name: "spring style envelope",
			body: `{"content":[{"id":3}],"number":2,"totalPages":3,"totalElements":21}`,
			keys: DefaultPageKeys,
			expected: Page[company]{
				Items: []company{{ID: 3}}, CurrentPage: 2, TotalPages: 3, TotalItems: 21, HasTotalPages: true,
			},
		},
		{
			name: "entity specific key without page count",
			body: `{"companies":[{"id":4}],"page":0,"total":1}`,
			keys: DefaultPageKeys.WithItemsKey("companies"),
			expected: Page[company]{
				Items: []company{{ID: 4}}, TotalItems: 1,
			},
		},
		{
			name: "bare array",
			body: `[{"id":5},{"id":6}]`,
			keys: DefaultPageKeys,
			expected: Page[company]{
				Items: []company{{ID: 5}, {ID: 6}}, TotalPages: 1, TotalItems: 2, HasTotalPages: true,
			},
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			page, err := DecodePage[company]([]byte(tc.body), tc.keys)
			require.NoError(t, err)
			assert.Equal(t, tc.expected, page)
		})
	}
}

func TestDecodePage_MissingItems(t *testing.T) {
	_, err := DecodePage[company]([]byte(`{"totalItems":3}`), DefaultPageKeys)
	assert.Error(t, err)
}

func TestPageQuery(t *testing.T) {
	query := PageQuery(2, 10, map[string][]string{"status": {"ACTIVE"}})
	assert.Equal(t, "page=2&size=10&status=ACTIVE", query.Encode())
}

func TestListPage(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "0", r.URL.Query().Get("page"))
		assert.Equal(t, "5", r.URL.Query().Get("size"))
		io.WriteString(w, `{"items":[{"id":1,"name":"Acme"}],"currentPage":0,"totalPages":1,"totalItems":1}`)
	})

	page, err := ListPage[company](context.Background(), client, "/companies", PageQuery(0, 5, nil), DefaultPageKeys)
	require.NoError(t, err)
	assert.Len(t, page.Items, 1)
	assert.Equal(t, "Acme", page.Items[0].Name)
}
