package export_test

import (
	"archive/zip"
	"encoding/csv"
	"io"
	"os"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ShahiSoft/shahi-legalops-suite-sub000/internal/dsr"
	"github.com/ShahiSoft/shahi-legalops-suite-sub000/internal/export"
)

func testRequest() *dsr.Request {
	now := time.Date(2026, 1, 5, 9, 0, 0, 0, time.UTC)
	return &dsr.Request{
		ID:          "dsr_test0000000000000001",
		Type:        dsr.TypeAccess,
		Status:      dsr.StatusInProgress,
		Regulation:  dsr.RegulationGDPR,
		SubmittedAt: now,
		SLADays:     30,
		SLADeadline: dsr.DueDate(now, dsr.RegulationGDPR),
	}
}

func testSections() []export.Section {
	return []export.Section{
		{
			Key:   "profile",
			Label: "Account profile",
			Data: map[string]interface{}{
				"id":    "usr_1",
				"email": "alice@example.com",
			},
		},
		{
			Key:   "comments",
			Label: "Comments",
			Data: map[string]interface{}{
				"comments": []interface{}{
					map[string]interface{}{"id": "cmt_1", "body": "hello"},
					map[string]interface{}{"id": "cmt_2", "body": "world"},
				},
			},
		},
	}
}

func TestPackager_Build(t *testing.T) {
	packager, err := export.NewPackager(t.TempDir(), zerolog.Nop())
	require.NoError(t, err)

	archive, err := packager.Build(testRequest(), testSections())
	require.NoError(t, err)

	require.FileExists(t, archive.Path)
	assert.Len(t, archive.Digest, 64)
	assert.Greater(t, archive.SizeBytes, int64(0))

	info, err := os.Stat(archive.Path)
	require.NoError(t, err)
	assert.Equal(t, info.Size(), archive.SizeBytes)

	// The recorded digest matches an independent recomputation.
	digest, size, err := export.FileDigest(archive.Path)
	require.NoError(t, err)
	assert.Equal(t, archive.Digest, digest)
	assert.Equal(t, archive.SizeBytes, size)

	zr, err := zip.OpenReader(archive.Path)
	require.NoError(t, err)
	defer zr.Close()

	names := make(map[string]bool)
	for _, f := range zr.File {
		names[f.Name] = true
	}
	for _, want := range []string{"data.json", "export.xml", "summary.txt", "README.txt", "profile.csv", "comments.csv"} {
		assert.True(t, names[want], "archive missing %s", want)
	}
}

func TestPackager_Build_CSVFlattening(t *testing.T) {
	packager, err := export.NewPackager(t.TempDir(), zerolog.Nop())
	require.NoError(t, err)

	archive, err := packager.Build(testRequest(), testSections())
	require.NoError(t, err)

	zr, err := zip.OpenReader(archive.Path)
	require.NoError(t, err)
	defer zr.Close()

	var rows [][]string
	for _, f := range zr.File {
		if f.Name != "comments.csv" {
			continue
		}
		rc, err := f.Open()
		require.NoError(t, err)
		rows, err = csv.NewReader(rc).ReadAll()
		rc.Close()
		require.NoError(t, err)
	}

	require.Len(t, rows, 2)
	assert.Equal(t, []string{"field", "value"}, rows[0])
	assert.Equal(t, "comments", rows[1][0])
	// Non-scalar values appear JSON-encoded in place.
	assert.Contains(t, rows[1][1], `"id":"cmt_1"`)
}

func TestPackager_Build_SummaryCountsItems(t *testing.T) {
	packager, err := export.NewPackager(t.TempDir(), zerolog.Nop())
	require.NoError(t, err)

	archive, err := packager.Build(testRequest(), testSections())
	require.NoError(t, err)

	zr, err := zip.OpenReader(archive.Path)
	require.NoError(t, err)
	defer zr.Close()

	var summary string
	for _, f := range zr.File {
		if f.Name != "summary.txt" {
			continue
		}
		rc, err := f.Open()
		require.NoError(t, err)
		b, err := io.ReadAll(rc)
		rc.Close()
		require.NoError(t, err)
		summary = string(b)
	}

	assert.Contains(t, summary, "dsr_test0000000000000001")
	assert.Contains(t, summary, "Account profile: 2 item(s)")
	assert.Contains(t, summary, "Comments: 2 item(s)")
}

func TestPackager_Build_NoIntermediateFilesLeft(t *testing.T) {
	dir := t.TempDir()
	packager, err := export.NewPackager(dir, zerolog.Nop())
	require.NoError(t, err)

	archive, err := packager.Build(testRequest(), nil)
	require.NoError(t, err)
	require.FileExists(t, archive.Path)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1, "only the sealed archive should remain")
	assert.False(t, entries[0].IsDir())
}

func TestSection_ItemCount(t *testing.T) {
	s := export.Section{Data: map[string]interface{}{
		"name": "alice",
		"tags": []interface{}{"a", "b", "c"},
	}}
	assert.Equal(t, 4, s.ItemCount())
}
