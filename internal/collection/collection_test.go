package collection

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type decodedNovel struct {
	Title     string    `firestore:"title"`
	Views     int64     `firestore:"views"`
	Chapters  int       `firestore:"totalChapters"`
	Published bool      `firestore:"published"`
	CreatedAt time.Time `firestore:"createdAt"`
}

func TestDecode(t *testing.T) {
	created := time.Date(2024, 3, 4, 5, 6, 7, 8, time.UTC)

	tests := []struct {
		name string
		data map[string]any
		want decodedNovel
	}{
		{
			name: "native values",
			data: map[string]any{"title": "A", "views": int64(3), "totalChapters": 2, "published": true, "createdAt": created},
			want: decodedNovel{Title: "A", Views: 3, Chapters: 2, Published: true, CreatedAt: created},
		},
		{
			name: "json values",
			data: map[string]any{"title": "A", "views": float64(3), "totalChapters": float64(2), "published": true, "createdAt": created.Format(timeLayout)},
			want: decodedNovel{Title: "A", Views: 3, Chapters: 2, Published: true, CreatedAt: created},
		},
		{
			name: "missing fields stay zero",
			data: map[string]any{"title": "B"},
			want: decodedNovel{Title: "B"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got decodedNovel
			require.NoError(t, Decode(tt.data, &got))
			assert.Equal(t, tt.want.Title, got.Title)
			assert.Equal(t, tt.want.Views, got.Views)
			assert.Equal(t, tt.want.Chapters, got.Chapters)
			assert.Equal(t, tt.want.Published, got.Published)
			assert.True(t, tt.want.CreatedAt.Equal(got.CreatedAt), "expected %v, got %v", tt.want.CreatedAt, got.CreatedAt)
		})
	}
}

func TestSplitPath(t *testing.T) {
	tests := []struct {
		path    string
		col     string
		id      string
		wantErr bool
	}{
		{path: "novels/n1", col: "novels", id: "n1"},
		{path: "/novels/n1/chapters/c1/", col: "novels/n1/chapters", id: "c1"},
		{path: "novels", wantErr: true},
		{path: "novels//n1", wantErr: true},
		{path: "", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			col, id, err := splitPath(tt.path)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidPath)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.col, col)
			assert.Equal(t, tt.id, id)
		})
	}
}

func TestBuildSQL(t *testing.T) {
	created := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	cursor := Document{ID: "n5", Data: map[string]any{"createdAt": created}}.Cursor()

	query, args, err := buildSQL(Query{
		Collection: "novels",
		Filters:    []Filter{{Field: "published", Op: OpEqual, Value: true}},
		OrderBy:    []Order{{Field: "createdAt", Desc: true}},
		Limit:      6,
		StartAfter: cursor,
	})
	require.NoError(t, err)

	assert.Equal(t,
		"SELECT id, path, data FROM documents WHERE collection = $1"+
			" AND data->$2::text = $3::jsonb"+
			" AND (data->$4::text, id) < ($5::jsonb, $6)"+
			" ORDER BY data->$7::text DESC, id DESC LIMIT $8",
		query)
	assert.Equal(t, []any{"novels", "published", "true", "createdAt", `"2024-01-01T00:00:00.000000000Z"`, "n5", "createdAt", 6}, args)

	_, _, err = buildSQL(Query{Collection: "novels", OrderBy: []Order{{Field: "a"}, {Field: "b", Desc: true}}})
	assert.ErrorIs(t, err, ErrInvalidQuery)
}
