package artifacts

import (
	"encoding/json"
	"errors"
	"io"
	"os"
	"strings"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/platformbuilds/dashbridge/internal/models"
)

func sampleDashboard() *models.KibanaDashboard {
	return &models.KibanaDashboard{
		ID:   "d1",
		Type: "dashboard",
		Attributes: models.KibanaAttributes{
			Title:       "Ops <prod>",
			PanelsJSON:  `[]`,
			OptionsJSON: `{"hidePanelTitles":false}`,
			KibanaSavedObjectMeta: models.KibanaSavedObjectMeta{
				SearchSourceJSON: `{"query":{"query":"","language":"kuery"},"filter":[]}`,
			},
		},
		References: []models.Reference{},
	}
}

func readAll(t *testing.T, s *Store, id string, f Format) string {
	t.Helper()
	rc, err := s.Open(id, f)
	require.NoError(t, err)
	defer rc.Close()
	b, err := io.ReadAll(rc)
	require.NoError(t, err)
	return string(b)
}

func TestWriteAndOpen(t *testing.T) {
	s := NewMemStore()
	require.NoError(t, s.Write("abc-123", sampleDashboard()))

	pretty := readAll(t, s, "abc-123", FormatJSON)
	assert.Contains(t, pretty, "\n  \"type\": \"dashboard\"")
	assert.Contains(t, pretty, "Ops <prod>")
	var back models.KibanaDashboard
	require.NoError(t, json.Unmarshal([]byte(pretty), &back))
	assert.Equal(t, "d1", back.ID)

	line := readAll(t, s, "abc-123", FormatNDJSON)
	assert.True(t, strings.HasSuffix(line, "\n"))
	assert.Equal(t, 1, strings.Count(line, "\n"))
	assert.Contains(t, line, `"panelsJSON":"[]"`)
}

func TestOpen_Errors(t *testing.T) {
	s := NewMemStore()

	_, err := s.Open("missing", FormatJSON)
	assert.ErrorIs(t, err, ErrNotFound)

	for _, bad := range []string{"../etc/passwd", "a/b", "", ".hidden", "a b"} {
		_, err := s.Open(bad, FormatJSON)
		assert.ErrorIs(t, err, ErrInvalidFileID, bad)
	}

	_, err = s.Open("abc", Format("yaml"))
	assert.ErrorIs(t, err, ErrInvalidFormat)
}

func TestRemove(t *testing.T) {
	fs := afero.NewMemMapFs()
	s, err := NewStore(fs, "/out")
	require.NoError(t, err)
	require.NoError(t, s.Write("x1", sampleDashboard()))

	exists, _ := afero.Exists(fs, "/out/x1.ndjson")
	assert.True(t, exists)

	require.NoError(t, s.Remove("x1"))
	require.NoError(t, s.Remove("x1"))
	exists, _ = afero.Exists(fs, "/out/x1.json")
	assert.False(t, exists)
}

// ndjsonFailFs refuses to create NDJSON files.
type ndjsonFailFs struct {
	afero.Fs
}

func (f ndjsonFailFs) OpenFile(name string, flag int, perm os.FileMode) (afero.File, error) {
	if strings.HasSuffix(name, ".ndjson") {
		return nil, errors.New("disk full")
	}
	return f.Fs.OpenFile(name, flag, perm)
}

func TestWrite_NDJSONFailureLeavesNoJSON(t *testing.T) {
	fs := ndjsonFailFs{Fs: afero.NewMemMapFs()}
	s, err := NewStore(fs, "/out")
	require.NoError(t, err)

	err = s.Write("x2", sampleDashboard())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "disk full")

	exists, _ := afero.Exists(fs, "/out/x2.json")
	assert.False(t, exists)
}

func TestParseFormat(t *testing.T) {
	f, err := ParseFormat("")
	require.NoError(t, err)
	assert.Equal(t, FormatJSON, f)
	f, err = ParseFormat("ndjson")
	require.NoError(t, err)
	assert.Equal(t, FormatNDJSON, f)
	_, err = ParseFormat("xml")
	assert.ErrorIs(t, err, ErrInvalidFormat)

	assert.Equal(t, "kibana_dashboard_id1.ndjson", DownloadName("id1", FormatNDJSON))
}
