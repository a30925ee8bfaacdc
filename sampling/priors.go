package sampling

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/montanaflynn/stats"

	kerrors "github.com/bob-anderson-ok/kilonovagen/internal/errors"
	"github.com/bob-anderson-ok/kilonovagen/params"
)

// LoadPriors reads a whitespace separated prior table. The first four fields of each line
// are m1 m2 lambda1 lambda2; any further fields are ignored, as are blank and # lines.
func LoadPriors(path string) (priors []params.Row, err error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, kerrors.WithCode(kerrors.CodeDataFormat, err, fmt.Sprintf("opening %s", path))
	}
	defer func() {
		if cerr := f.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}()

	scanner := bufio.NewScanner(f)
	line := 0
	for scanner.Scan() {
		line++
		text := strings.TrimSpace(scanner.Text())
		if text == "" || strings.HasPrefix(text, "#") {
			continue
		}
		fields := strings.Fields(text)
		if len(fields) < 4 {
			return nil, kerrors.DataFormat("%s line %d: need 4 fields, got %d", path, line, len(fields))
		}
		var v [4]float64
		for i := range v {
			v[i], err = strconv.ParseFloat(fields[i], 64)
			if err != nil {
				return nil, kerrors.DataFormat("%s line %d: %q is not a number", path, line, fields[i])
			}
		}
		priors = append(priors, params.Row{M1: v[0], M2: v[1], L1: v[2], L2: v[3]})
	}
	if err := scanner.Err(); err != nil {
		return nil, kerrors.WithCode(kerrors.CodeDataFormat, err, fmt.Sprintf("reading %s", path))
	}
	if len(priors) == 0 {
		return nil, kerrors.DataFormat("%s holds no priors", path)
	}
	return priors, nil
}

// ConditioningVector averages each column of the priors.
func ConditioningVector(priors []params.Row) (params.Row, error) {
	if len(priors) == 0 {
		return params.Row{}, kerrors.DataFormat("no priors to average")
	}
	cols := [4][]float64{}
	for _, p := range priors {
		cols[0] = append(cols[0], p.M1)
		cols[1] = append(cols[1], p.M2)
		cols[2] = append(cols[2], p.L1)
		cols[3] = append(cols[3], p.L2)
	}
	var mean [4]float64
	for i, c := range cols {
		m, err := stats.Mean(c)
		if err != nil {
			return params.Row{}, kerrors.WithCode(kerrors.CodeDataFormat, err, "averaging priors")
		}
		mean[i] = m
	}
	return params.Row{M1: mean[0], M2: mean[1], L1: mean[2], L2: mean[3]}, nil
}
