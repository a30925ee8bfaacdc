package archive

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	kerrors "github.com/bob-anderson-ok/kilonovagen/internal/errors"
	"github.com/bob-anderson-ok/kilonovagen/lightcurve"
)

func testRecords(n int) []lightcurve.Record {
	recs := make([]lightcurve.Record, n)
	for i := range recs {
		x := float64(i)
		recs[i] = lightcurve.Record{
			M1: 1.3 + x/100, M2: 1.2, L1: 400 + x, L2: 300,
			Time: []float64{0, 0.5, 1},
			Bands: []lightcurve.BandCurve{
				{Name: "g", Mag: []float64{-10 - x, -11, -10.5}},
				{Name: "r", Mag: []float64{-9, -10.25, -10}},
			},
		}
	}
	return recs
}

func TestWriteRead(t *testing.T) {
	for _, format := range []Format{FormatJSONL, FormatJSONLZstd} {
		t.Run(string(format), func(t *testing.T) {
			path := Filename(filepath.Join(t.TempDir(), "curves"), 3, format)
			recs := testRecords(5)

			require.NoError(t, Write(path, Header{RunID: "run-1", Partition: 3}, recs))

			_, err := os.Stat(path + ".tmp")
			assert.True(t, os.IsNotExist(err))

			h, got, err := Read(path)
			require.NoError(t, err)
			assert.Equal(t, "run-1", h.RunID)
			assert.Equal(t, 3, h.Partition)
			assert.Equal(t, 5, h.Rows)
			assert.Equal(t, []string{"m1", "m2", "l1", "l2", "time", "g", "r"}, h.Columns)
			assert.Equal(t, []string{"g", "r"}, h.Bands())
			assert.Equal(t, recs, got)

			hh, first, err := ReadHeader(path)
			require.NoError(t, err)
			assert.Equal(t, h.Columns, hh.Columns)
			assert.Equal(t, recs[0], first)
		})
	}
}

func TestFilename(t *testing.T) {
	assert.Equal(t, "out/lc_0.jsonl", Filename("out/lc", 0, FormatJSONL))
	assert.Equal(t, "lc_12.jsonl.zst", Filename("lc", 12, FormatJSONLZstd))
}

func TestParseFormat(t *testing.T) {
	f, err := ParseFormat("")
	require.NoError(t, err)
	assert.Equal(t, FormatJSONL, f)

	f, err = ParseFormat("zst")
	require.NoError(t, err)
	assert.Equal(t, FormatJSONLZstd, f)

	_, err = ParseFormat("hdf5")
	assert.True(t, kerrors.IsConfiguration(err))
}

func TestWriteEmptyPartition(t *testing.T) {
	path := filepath.Join(t.TempDir(), "empty_0.jsonl")
	require.NoError(t, Write(path, Header{Columns: Columns([]string{"g", "r", "i", "z"})}, nil))

	h, recs, err := Read(path)
	require.NoError(t, err)
	assert.Equal(t, 0, h.Rows)
	assert.Empty(t, recs)
	assert.Equal(t, []string{"g", "r", "i", "z"}, h.Bands())
}

func TestWriteFailsWithIOError(t *testing.T) {
	path := filepath.Join(t.TempDir(), "missing", "dir", "x_0.jsonl")
	err := Write(path, Header{}, testRecords(1))
	require.Error(t, err)
	assert.True(t, kerrors.IsIO(err))
}

func TestWriteRejectsMixedBands(t *testing.T) {
	recs := testRecords(2)
	recs[1].Bands = recs[1].Bands[:1]
	err := Write(filepath.Join(t.TempDir(), "x_0.jsonl"), Header{}, recs)
	assert.True(t, kerrors.IsDataFormat(err))
}

func TestReadRejectsCorruptFiles(t *testing.T) {
	dir := t.TempDir()

	garbage := filepath.Join(dir, "garbage.jsonl")
	require.NoError(t, os.WriteFile(garbage, []byte("not json\n"), 0o644))
	_, _, err := Read(garbage)
	assert.True(t, kerrors.IsDataFormat(err))

	short := filepath.Join(dir, "short.jsonl")
	require.NoError(t, os.WriteFile(short,
		[]byte(`{"run_id":"x","partition":0,"rows":2,"columns":["m1","m2","l1","l2","time","g"]}`+"\n"+
			`[1.3,1.2,400,300,[0,1],[-10,-11]]`+"\n"), 0o644))
	_, _, err = Read(short)
	assert.True(t, kerrors.IsDataFormat(err))

	ragged := filepath.Join(dir, "ragged.jsonl")
	require.NoError(t, os.WriteFile(ragged,
		[]byte(`{"run_id":"x","partition":0,"rows":1,"columns":["m1","m2","l1","l2","time","g"]}`+"\n"+
			`[1.3,1.2,400,300,[0,1],[-10]]`+"\n"), 0o644))
	_, _, err = Read(ragged)
	assert.True(t, kerrors.IsDataFormat(err))

	_, _, err = Read(filepath.Join(dir, "absent.jsonl"))
	assert.True(t, kerrors.IsIO(err))
}

func TestCombine(t *testing.T) {
	dir := t.TempDir()
	recs := testRecords(6)

	var inputs []string
	for i := 0; i < 3; i++ {
		format := FormatJSONL
		if i == 1 {
			format = FormatJSONLZstd
		}
		path := Filename(filepath.Join(dir, "lc"), i, format)
		require.NoError(t, Write(path, Header{RunID: "run-7", Partition: i}, recs[2*i:2*i+2]))
		inputs = append(inputs, path)
	}

	out := filepath.Join(dir, "combined.jsonl.zst")
	h, err := Combine(out, inputs)
	require.NoError(t, err)
	assert.Equal(t, 6, h.Rows)
	assert.Equal(t, "run-7", h.RunID)

	got, all, err := Read(out)
	require.NoError(t, err)
	assert.Equal(t, -1, got.Partition)
	assert.Equal(t, inputs, got.Sources)
	assert.Equal(t, recs, all)
}

func TestCombineRejectsMismatchedColumns(t *testing.T) {
	dir := t.TempDir()
	a := filepath.Join(dir, "a_0.jsonl")
	b := filepath.Join(dir, "a_1.jsonl")
	require.NoError(t, Write(a, Header{}, testRecords(1)))

	narrow := testRecords(1)
	narrow[0].Bands = narrow[0].Bands[:1]
	require.NoError(t, Write(b, Header{}, narrow))

	_, err := Combine(filepath.Join(dir, "all.jsonl"), []string{a, b})
	assert.True(t, kerrors.IsDataFormat(err))

	_, err = Combine(filepath.Join(dir, "all.jsonl"), nil)
	assert.True(t, kerrors.IsConfiguration(err))
}

func TestObjectStoreConfig(t *testing.T) {
	cfg := ObjectStoreConfig{Endpoint: "localhost:9000", AccessKey: "a", SecretKey: "s", Bucket: "curves"}
	require.NoError(t, cfg.Validate())

	for _, mutate := range []func(*ObjectStoreConfig){
		func(c *ObjectStoreConfig) { c.Endpoint = "" },
		func(c *ObjectStoreConfig) { c.Bucket = " " },
		func(c *ObjectStoreConfig) { c.SecretKey = "" },
	} {
		bad := cfg
		mutate(&bad)
		assert.True(t, kerrors.IsConfiguration(bad.Validate()))
	}

	assert.Equal(t, "lc_0.jsonl", objectKey("", "/tmp/out/lc_0.jsonl"))
	assert.Equal(t, "runs/abc/lc_0.jsonl", objectKey("/runs/abc/", "/tmp/out/lc_0.jsonl"))
}
