package docstore

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFilterContainment(t *testing.T) {
	tests := []struct {
		name    string
		filter  Filter
		want    string
		wantErr bool
	}{
		{
			name:   "equality on bool",
			filter: Equal("isAdmin", true),
			want:   `{"isAdmin":true}`,
		},
		{
			name:   "equality on string",
			filter: Equal("status", "pending"),
			want:   `{"status":"pending"}`,
		},
		{
			name:   "array membership",
			filter: ArrayContains("favoriteVenueIDs", "v1"),
			want:   `{"favoriteVenueIDs":["v1"]}`,
		},
		{
			name:    "empty field",
			filter:  Equal("  ", 1),
			wantErr: true,
		},
		{
			name:    "unknown operator",
			filter:  Filter{Field: "x", Op: Op(42), Value: 1},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tt.filter.containment()
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.JSONEq(t, tt.want, got)
		})
	}
}

func TestBuildQuery(t *testing.T) {
	q, args, err := buildQuery("ratings", []Filter{
		Equal("venueId", "v1"),
		Equal("userId", "u1"),
	}, nil)
	require.NoError(t, err)

	assert.Contains(t, q, "collection = $1")
	assert.Contains(t, q, "data @> $2::jsonb")
	assert.Contains(t, q, "data @> $3::jsonb")
	assert.Contains(t, q, "ORDER BY created_at ASC, id ASC")
	assert.NotContains(t, q, "LIMIT")
	require.Len(t, args, 3)
	assert.Equal(t, "ratings", args[0])
	assert.JSONEq(t, `{"venueId":"v1"}`, args[1].(string))
	assert.JSONEq(t, `{"userId":"u1"}`, args[2].(string))
}

func TestBuildQuery_NoFilters(t *testing.T) {
	q, args, err := buildQuery("users", nil, nil)
	require.NoError(t, err)
	assert.NotContains(t, q, "@>")
	assert.Equal(t, []any{"users"}, args)
}

func TestBuildQuery_Page(t *testing.T) {
	q, args, err := buildQuery("ratings", []Filter{Equal("venueId", "v1")}, &Page{Limit: 10, Offset: 20, NewestFirst: true})
	require.NoError(t, err)
	assert.Contains(t, q, "ORDER BY created_at DESC, id DESC LIMIT $3 OFFSET $4")
	assert.Equal(t, 10, args[2])
	assert.Equal(t, 20, args[3])

	q, args, err = buildQuery("ratings", nil, &Page{Limit: 5})
	require.NoError(t, err)
	assert.Contains(t, q, "LIMIT $2")
	assert.NotContains(t, q, "OFFSET")
	assert.Len(t, args, 2)
}

func TestBuildAverage(t *testing.T) {
	q, args, err := buildAverage("ratings", []string{"lineRating", "coverRating"}, []Filter{Equal("venueId", "v1")})
	require.NoError(t, err)
	assert.Contains(t, q, "COUNT(*)")
	assert.Contains(t, q, "jsonb_typeof(data -> $3::text) = 'number'")
	assert.Contains(t, q, "(data ->> $4::text)::float8")
	assert.Equal(t, []any{"ratings", `{"venueId":"v1"}`, "lineRating", "coverRating"}, args)

	_, _, err = buildAverage("ratings", []string{""}, nil)
	assert.Error(t, err)
}

func TestBuildUpdate(t *testing.T) {
	q, conds, err := buildUpdate(nil)
	require.NoError(t, err)
	assert.Contains(t, q, "data = data || $3::jsonb")
	assert.Contains(t, q, "WHERE collection = $1 AND id = $2\n")
	assert.Empty(t, conds)

	q, conds, err = buildUpdate([]Filter{Equal("status", "pending")})
	require.NoError(t, err)
	assert.Contains(t, q, "WHERE collection = $1 AND id = $2 AND data @> $4::jsonb")
	require.Len(t, conds, 1)
	assert.JSONEq(t, `{"status":"pending"}`, conds[0].(string))
}

func TestSnapshotDecode(t *testing.T) {
	type doc struct {
		Name   string `json:"name"`
		Status string `json:"status"`
	}

	t.Run("partial body keeps defaults", func(t *testing.T) {
		snap := &Snapshot{ID: "s1", Collection: "venueSuggestions", Data: []byte(`{"name":"Bar X"}`)}
		var d doc
		require.NoError(t, snap.Decode(&d))
		assert.Equal(t, "Bar X", d.Name)
		assert.Empty(t, d.Status)
	})

	t.Run("nil snapshot is a no-op", func(t *testing.T) {
		var snap *Snapshot
		d := doc{Name: "unchanged"}
		require.NoError(t, snap.Decode(&d))
		assert.Equal(t, "unchanged", d.Name)
	})

	t.Run("type mismatch is reported", func(t *testing.T) {
		snap := &Snapshot{ID: "s1", Collection: "venueSuggestions", Data: []byte(`{"name":7,"status":"pending"}`)}
		var d doc
		err := snap.Decode(&d)
		assert.ErrorContains(t, err, "venueSuggestions/s1")
		assert.Equal(t, "pending", d.Status)
	})
}
