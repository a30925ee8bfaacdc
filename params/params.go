// Package params loads the neutron-star binary parameters that drive light-curve
// generation and splits them into per-worker partitions.
package params

import (
	"encoding/csv"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	json "github.com/KevinWang15/go-json5"
	"github.com/xuri/excelize/v2"

	kerrors "github.com/bob-anderson-ok/kilonovagen/internal/errors"
)

// DefaultDataset is the name of the table holding the binary parameters.
const DefaultDataset = "labels"

// Row is one physical scenario.
type Row struct {
	M1, M2 float64 // Gravitational masses (solar masses)
	L1, L2 float64 // Tidal deformabilities
}

// Columns holds the four aligned parameter sequences.
type Columns struct {
	M1, M2, L1, L2 []float64
}

// Len returns the number of rows.
func (c Columns) Len() int { return len(c.M1) }

// Row returns row i.
func (c Columns) Row(i int) Row {
	return Row{M1: c.M1[i], M2: c.M2[i], L1: c.L1[i], L2: c.L2[i]}
}

// Load reads the named dataset from path. The file type is chosen by extension:
//
//	.json, .json5   top-level object; the dataset is a key holding an array of rows
//	.xlsx           the dataset is a sheet name; an optional non-numeric header row is skipped
//	.csv, .txt      a single table; an optional header row is skipped
//
// Each row must have at least four columns: m1, m2, ln(lambda1), ln(lambda2).
// The deformability columns are exponentiated on load and otherwise passed through;
// values the physics cannot use are rejected per row during generation.
func Load(path, dataset string) (Columns, error) {
	if dataset == "" {
		dataset = DefaultDataset
	}

	var (
		table [][]float64
		err   error
	)
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".json", ".json5":
		table, err = readJSON5(path, dataset)
	case ".xlsx":
		table, err = readExcel(path, dataset)
	case ".csv", ".txt":
		table, err = readCSV(path)
	default:
		return Columns{}, kerrors.DataFormat("unsupported parameter file type %q", ext)
	}
	if err != nil {
		return Columns{}, err
	}

	return fromTable(table, dataset)
}

func fromTable(table [][]float64, dataset string) (Columns, error) {
	if len(table) == 0 {
		return Columns{}, kerrors.DataFormat("dataset %q has no rows", dataset)
	}

	n := len(table)
	cols := Columns{
		M1: make([]float64, n),
		M2: make([]float64, n),
		L1: make([]float64, n),
		L2: make([]float64, n),
	}
	for i, row := range table {
		if len(row) < 4 {
			return Columns{}, kerrors.DataFormat("dataset %q row %d has %d columns, need at least 4", dataset, i, len(row))
		}
		cols.M1[i] = row[0]
		cols.M2[i] = row[1]
		cols.L1[i] = math.Exp(row[2])
		cols.L2[i] = math.Exp(row[3])
	}
	return cols, nil
}

func readJSON5(path, dataset string) ([][]float64, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, kerrors.WithCode(kerrors.CodeDataFormat, err, fmt.Sprintf("reading %s", path))
	}

	var jsonTable map[string]interface{}
	if err := json.Unmarshal(data, &jsonTable); err != nil {
		return nil, kerrors.WithCode(kerrors.CodeDataFormat, err, fmt.Sprintf("format error in %s", path))
	}

	raw, ok := jsonTable[dataset]
	if !ok {
		return nil, kerrors.DataFormat("dataset %q not found in %s", dataset, path)
	}
	rows, ok := raw.([]interface{})
	if !ok {
		return nil, kerrors.DataFormat("dataset %q in %s is not an array of rows", dataset, path)
	}

	table := make([][]float64, len(rows))
	for i, r := range rows {
		cells, ok := r.([]interface{})
		if !ok {
			return nil, kerrors.DataFormat("dataset %q row %d is not an array", dataset, i)
		}
		table[i] = make([]float64, len(cells))
		for j, cell := range cells {
			v, ok := cell.(float64)
			if !ok {
				return nil, kerrors.DataFormat("dataset %q row %d column %d is not a number", dataset, i, j)
			}
			table[i][j] = v
		}
	}
	return table, nil
}

func readExcel(path, dataset string) (table [][]float64, err error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, kerrors.WithCode(kerrors.CodeDataFormat, err, fmt.Sprintf("opening %s", path))
	}
	defer func() {
		if cerr := f.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}()

	if idx, _ := f.GetSheetIndex(dataset); idx < 0 {
		return nil, kerrors.DataFormat("dataset (sheet) %q not found in %s", dataset, path)
	}
	rows, err := f.GetRows(dataset)
	if err != nil {
		return nil, kerrors.WithCode(kerrors.CodeDataFormat, err, fmt.Sprintf("reading sheet %q", dataset))
	}
	return parseTextRows(rows, dataset)
}

func readCSV(path string) (table [][]float64, err error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, kerrors.WithCode(kerrors.CodeDataFormat, err, fmt.Sprintf("opening %s", path))
	}
	defer func() {
		if cerr := f.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}()

	reader := csv.NewReader(f)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true
	rows, err := reader.ReadAll()
	if err != nil {
		return nil, kerrors.WithCode(kerrors.CodeDataFormat, err, fmt.Sprintf("reading %s", path))
	}
	return parseTextRows(rows, filepath.Base(path))
}

// parseTextRows converts string cells to numbers. A first row whose leading cell is not
// numeric is treated as a header; blank rows are skipped.
func parseTextRows(rows [][]string, dataset string) ([][]float64, error) {
	if len(rows) > 0 && len(rows[0]) > 0 {
		if _, err := strconv.ParseFloat(strings.TrimSpace(rows[0][0]), 64); err != nil {
			rows = rows[1:]
		}
	}

	table := make([][]float64, 0, len(rows))
	for i, row := range rows {
		if len(row) == 0 || (len(row) == 1 && strings.TrimSpace(row[0]) == "") {
			continue
		}
		values := make([]float64, len(row))
		for j, cell := range row {
			v, err := strconv.ParseFloat(strings.TrimSpace(cell), 64)
			if err != nil {
				return nil, kerrors.DataFormat("dataset %q row %d column %d: %q is not a number", dataset, i, j, cell)
			}
			values[j] = v
		}
		table = append(table, values)
	}
	return table, nil
}

// Partition is one worker's contiguous share of the parameter columns.
type Partition struct {
	Index  int // Position of the partition, 0-based
	Offset int // Index of the first row in the unsplit columns
	Columns
}

// Split cuts the columns into k contiguous partitions of equal size, preserving row order.
// The length must be divisible by k.
func Split(c Columns, k int) ([]Partition, error) {
	if k < 1 {
		return nil, kerrors.Configuration("partition count must be at least 1, got %d", k)
	}
	n := c.Len()
	if len(c.M2) != n || len(c.L1) != n || len(c.L2) != n {
		return nil, kerrors.DataFormat("parameter columns differ in length: %d %d %d %d", n, len(c.M2), len(c.L1), len(c.L2))
	}
	if n%k != 0 {
		return nil, kerrors.Configuration("%d rows cannot be split evenly into %d partitions", n, k)
	}

	size := n / k
	parts := make([]Partition, k)
	for i := range parts {
		lo, hi := i*size, (i+1)*size
		parts[i] = Partition{
			Index:  i,
			Offset: lo,
			Columns: Columns{
				M1: c.M1[lo:hi:hi],
				M2: c.M2[lo:hi:hi],
				L1: c.L1[lo:hi:hi],
				L2: c.L2[lo:hi:hi],
			},
		}
	}
	return parts, nil
}
