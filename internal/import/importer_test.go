package importer

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"adoptik/petfeed/internal/database"
	"adoptik/petfeed/internal/server/storage"
)

func newTestImporter(t *testing.T) (*Importer, *storage.Repository) {
	t.Helper()
	db, err := database.NewDB(database.NewConfig(filepath.Join(t.TempDir(), "pets.db")))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	repo := storage.NewRepository(db)
	return NewImporter(repo), repo
}

func writeCSV(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "data.csv")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestImportAnimals(t *testing.T) {
	imp, repo := newTestImporter(t)
	ctx := context.Background()
	path := writeCSV(t, `Name,Age,Species,Location,Description,Image_URL,Video_URL
Rex,3,dog,CDMX,Playful,https://img.example.com/rex.jpg,https://cdn.example.com/rex.mp4
Luna,,cat,,,,

,,,
Toby,old,dog,,,,
,2,dog,,,,
Milo,1,dog,,,,https://cdn.example.com/rex.mp4
`)

	sum, err := imp.ImportAnimals(ctx, path)
	require.NoError(t, err)
	require.Equal(t, 5, sum.Total)
	require.Equal(t, 3, sum.Imported)
	require.Len(t, sum.Errors, 2)

	animals, err := repo.ListAnimals(ctx, "")
	require.NoError(t, err)
	require.Len(t, animals, 3)
	require.Equal(t, "Rex", animals[0].Name.String)
	require.False(t, animals[1].Age.Valid)

	items, err := repo.VideoPage(ctx, 1, 10)
	require.NoError(t, err)
	require.Len(t, items, 1, "duplicate video URL is skipped")
	require.Equal(t, "Rex", items[0].AnimalInfo.Name)
}

func TestImportAnimals_MissingNameColumn(t *testing.T) {
	imp, _ := newTestImporter(t)
	_, err := imp.ImportAnimals(context.Background(), writeCSV(t, "species,age\ndog,3\n"))
	require.Error(t, err)

	_, err = imp.ImportAnimals(context.Background(), filepath.Join(t.TempDir(), "missing.csv"))
	require.Error(t, err)
}

func TestImportSourcesFromURL(t *testing.T) {
	imp, repo := newTestImporter(t)
	ctx := context.Background()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/csv")
		w.Write([]byte("url,comments,status\n" +
			"https://shelter.example.com/a.xml,main channel,active\n" +
			"https://shelter.example.com/a.xml,dup,active\n" +
			"https://shelter.example.com/b.xml,,paused\n" +
			"https://shelter.example.com/c.xml,,inactive\n"))
	}))
	defer srv.Close()

	sum, err := imp.ImportSources(ctx, srv.URL+"/sources.csv")
	require.NoError(t, err)
	require.Equal(t, 4, sum.Total)
	require.Equal(t, 2, sum.Imported)
	require.Len(t, sum.Errors, 2)

	active, err := repo.ActiveSources(ctx)
	require.NoError(t, err)
	require.Len(t, active, 1)
	require.Equal(t, "main channel", active[0].Comments.String)
}
