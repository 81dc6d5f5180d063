package triggers

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testDefaults = Bindings{
	"ratingSubmitted":     {Collection: "ratings", Kind: KindCreate},
	"suggestionSubmitted": {Collection: "venueSuggestions", Kind: KindCreate},
	"suggestionApproved":  {Collection: "venueSuggestions", Kind: KindUpdate},
}

func TestLoadBindings_Defaults(t *testing.T) {
	b, err := LoadBindings("", testDefaults)
	require.NoError(t, err)
	assert.Equal(t, testDefaults, b)

	b["ratingSubmitted"] = EventSpec{Collection: "x", Kind: KindCreate}
	assert.Equal(t, "ratings", testDefaults["ratingSubmitted"].Collection, "defaults must not be mutated")
}

func TestLoadBindings_FileOverride(t *testing.T) {
	path := filepath.Join(t.TempDir(), "triggers.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
handlers:
  suggestionApproved:
    collection: venue_suggestions
`), 0o600))

	b, err := LoadBindings(path, testDefaults)
	require.NoError(t, err)
	assert.Equal(t, EventSpec{Collection: "venue_suggestions", Kind: KindUpdate}, b["suggestionApproved"])
	assert.Equal(t, testDefaults["ratingSubmitted"], b["ratingSubmitted"])
}

func TestLoadBindings_Errors(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{"unknown handler", "handlers:\n  somethingElse:\n    collection: ratings\n    kind: create\n"},
		{"bad kind", "handlers:\n  ratingSubmitted:\n    kind: delete\n"},
		{"not yaml", "handlers: [\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := parseBindings([]byte(tt.yaml), Bindings{
				"ratingSubmitted": {Collection: "ratings", Kind: KindCreate},
			})
			assert.Error(t, err)
		})
	}
}

func TestLoadBindings_MissingFile(t *testing.T) {
	_, err := LoadBindings(filepath.Join(t.TempDir(), "nope.yaml"), testDefaults)
	assert.Error(t, err)
}

func TestBindings_Unwritten(t *testing.T) {
	b := Bindings{
		"ratingSubmitted":    {Collection: "ratings", Kind: KindCreate},
		"suggestionApproved": {Collection: "venue_suggestions", Kind: KindUpdate},
	}
	assert.Equal(t, []string{"suggestionApproved"}, b.Unwritten([]string{"ratings", "venueSuggestions"}))
	assert.Empty(t, b.Unwritten([]string{"ratings", "venue_suggestions"}))
}
