package roster

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"loan-desk-backend/internal/store"
	"loan-desk-backend/internal/store/storetest"
)

func writeWorkbook(t *testing.T, sheet string, rows [][]any) string {
	t.Helper()
	f := excelize.NewFile()
	defer f.Close()
	if sheet != "Sheet1" {
		_, err := f.NewSheet(sheet)
		require.NoError(t, err)
	}
	for i, row := range rows {
		cellRef, err := excelize.CoordinatesToCellName(1, i+1)
		require.NoError(t, err)
		require.NoError(t, f.SetSheetRow(sheet, cellRef, &row))
	}
	path := filepath.Join(t.TempDir(), "users.xlsx")
	require.NoError(t, f.SaveAs(path))
	return path
}

func TestSyncer_Sync(t *testing.T) {
	ctx := context.Background()
	path := writeWorkbook(t, "Sheet1", [][]any{
		{"Identifiant", "Mot de passe", "Nom complet", "Service", "Email", "Serveur"},
		{"jdupont", "hunter2", "Jean Dupont", "Compta", "jean@example.com", "SRV-RDS-2"},
		{"mmartin", "", "Marie Martin", "RH", "", ""},
	})
	mem := storetest.NewMemory()
	s := NewSyncer(path, "", mem)
	s.now = func() time.Time { return time.Date(2024, 3, 1, 8, 0, 0, 0, time.UTC) }

	n, err := s.Sync(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	doc, _ := Users(ctx, mem)
	require.Len(t, doc.Users, 2)
	assert.Equal(t, "jdupont", doc.Users[0].Username)
	assert.Equal(t, "SRV-RDS-2", doc.Users[0].Server)
	assert.Equal(t, "SRV-RDS-1", doc.Users[1].Server)
	assert.Equal(t, path, doc.Source)
	assert.Equal(t, 2024, doc.SyncedAt.Year())

	raw, _ := mem.Read(ctx, store.KeyUsers)
	assert.NotContains(t, string(raw), "hunter2")
}

func TestSyncer_NamedSheet(t *testing.T) {
	path := writeWorkbook(t, "Utilisateurs", [][]any{
		{"Identifiant", "Nom complet"},
		{"abc", "A B C"},
	})
	mem := storetest.NewMemory()

	n, err := NewSyncer(path, "Utilisateurs", mem).Sync(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestSyncer_Errors(t *testing.T) {
	ctx := context.Background()
	mem := storetest.NewMemory()

	_, err := NewSyncer("", "", mem).Sync(ctx)
	assert.Error(t, err)

	_, err = NewSyncer(filepath.Join(t.TempDir(), "missing.xlsx"), "", mem).Sync(ctx)
	assert.Error(t, err)

	path := writeWorkbook(t, "Sheet1", [][]any{{"Nom complet"}, {"Nobody"}})
	_, err = NewSyncer(path, "", mem).Sync(ctx)
	assert.Error(t, err)
	assert.Zero(t, mem.Writes(store.KeyUsers))
}

func TestUsers_EmptyStore(t *testing.T) {
	doc, _ := Users(context.Background(), storetest.NewMemory())
	assert.NotNil(t, doc.Users)
	assert.Empty(t, doc.Users)
}
