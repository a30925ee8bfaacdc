package config

import (
	"math"
	"time"

	"github.com/bob-anderson-ok/kilonovagen/archive"
	kerrors "github.com/bob-anderson-ok/kilonovagen/internal/errors"
)

func getLeafValue(table map[string]interface{}, path ...string) (interface{}, bool) {
	var cur interface{} = table
	for _, p := range path {
		m, ok := cur.(map[string]interface{})
		if !ok {
			return nil, false
		}
		cur, ok = m[p]
		if !ok {
			return nil, false
		}
	}
	return cur, true
}

func keyName(path []string) string {
	name := path[0]
	for _, p := range path[1:] {
		name += "." + p
	}
	return name
}

// json5 gives every number as float64, yaml gives whole numbers as int.
func asNumber(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint64:
		return float64(n), true
	}
	return 0, false
}

// Each setter leaves dst untouched when the key is missing.

func setFloat(table map[string]interface{}, dst *float64, path ...string) error {
	v, ok := getLeafValue(table, path...)
	if !ok {
		return nil
	}
	f, ok := asNumber(v)
	if !ok {
		return kerrors.Configuration("%s: is not a number", keyName(path))
	}
	*dst = f
	return nil
}

func setInt(table map[string]interface{}, dst *int, path ...string) error {
	v, ok := getLeafValue(table, path...)
	if !ok {
		return nil
	}
	f, ok := asNumber(v)
	if !ok || f != math.Trunc(f) {
		return kerrors.Configuration("%s: is not an integer", keyName(path))
	}
	*dst = int(f)
	return nil
}

func setBool(table map[string]interface{}, dst *bool, path ...string) error {
	v, ok := getLeafValue(table, path...)
	if !ok {
		return nil
	}
	b, ok := v.(bool)
	if !ok {
		return kerrors.Configuration("%s: is not a bool", keyName(path))
	}
	*dst = b
	return nil
}

func setString(table map[string]interface{}, dst *string, path ...string) error {
	v, ok := getLeafValue(table, path...)
	if !ok {
		return nil
	}
	s, ok := v.(string)
	if !ok {
		return kerrors.Configuration("%s: is not a string", keyName(path))
	}
	*dst = s
	return nil
}

func setIntSlice(table map[string]interface{}, dst *[]int, path ...string) error {
	v, ok := getLeafValue(table, path...)
	if !ok {
		return nil
	}
	items, ok := v.([]interface{})
	if !ok {
		return kerrors.Configuration("%s: is not a list", keyName(path))
	}
	out := make([]int, len(items))
	for i, item := range items {
		f, ok := asNumber(item)
		if !ok || f != math.Trunc(f) {
			return kerrors.Configuration("%s[%d]: is not an integer", keyName(path), i)
		}
		out[i] = int(f)
	}
	*dst = out
	return nil
}

// fill copies every recognised key of the parameter table into cfg. Unknown keys are ignored.
func fill(table map[string]interface{}, cfg *Config) error {
	g := &cfg.Generation
	var (
		format  = string(g.Format)
		timeout = g.Timeout.Seconds()
	)
	for _, err := range []error{
		setInt(table, &g.Workers, "generation", "workers"),
		setString(table, &g.Input, "generation", "input"),
		setString(table, &g.Dataset, "generation", "dataset"),
		setString(table, &g.OutputBase, "generation", "output_base"),
		setString(table, &format, "generation", "format"),
		setBool(table, &g.FailFast, "generation", "fail_fast"),
		setFloat(table, &timeout, "generation", "timeout_seconds"),
		setInt(table, &g.ReportEvery, "generation", "report_every"),
	} {
		if err != nil {
			return err
		}
	}
	f, err := archive.ParseFormat(format)
	if err != nil {
		return err
	}
	g.Format = f
	g.Timeout = time.Duration(timeout * float64(time.Second))

	s := &cfg.Simulation
	for _, err := range []error{
		setFloat(table, &s.TIni, "simulation", "tini"),
		setFloat(table, &s.TMax, "simulation", "tmax"),
		setFloat(table, &s.Dt, "simulation", "dt"),
		setFloat(table, &s.Kappa, "simulation", "kappa"),
		setFloat(table, &s.Eps0, "simulation", "eps0"),
		setFloat(table, &s.Alpha, "simulation", "alpha"),
		setFloat(table, &s.Eth, "simulation", "eth"),
		setFloat(table, &s.VMin, "simulation", "vmin"),
		setBool(table, &s.HalfLifeCorrection, "simulation", "half_life_correction"),
		setIntSlice(table, &cfg.Bands, "bands", "indices"),
		setString(table, &cfg.Manifest, "manifest"),
		setString(table, &cfg.LogLevel, "log_level"),
	} {
		if err != nil {
			return err
		}
	}

	// The object_store group is optional, but when present it must name an endpoint and a bucket.
	if _, ok := getLeafValue(table, "object_store"); ok {
		store := &archive.ObjectStoreConfig{Region: "us-east-1"}
		for _, err := range []error{
			setString(table, &store.Endpoint, "object_store", "endpoint"),
			setString(table, &store.AccessKey, "object_store", "access_key"),
			setString(table, &store.SecretKey, "object_store", "secret_key"),
			setString(table, &store.Bucket, "object_store", "bucket"),
			setString(table, &store.Prefix, "object_store", "prefix"),
			setString(table, &store.Region, "object_store", "region"),
			setBool(table, &store.UseSSL, "object_store", "use_ssl"),
		} {
			if err != nil {
				return err
			}
		}
		cfg.ObjectStore = store
	}

	sm := &cfg.Sampling
	seed := float64(sm.Seed)
	for _, err := range []error{
		setString(table, &sm.Priors, "sampling", "priors"),
		setString(table, &sm.Archive, "sampling", "archive"),
		setString(table, &sm.Mode, "sampling", "mode"),
		setInt(table, &sm.Samples, "sampling", "samples"),
		setInt(table, &sm.Neighbours, "sampling", "neighbours"),
		setFloat(table, &sm.RangeThreshold, "sampling", "range_threshold"),
		setFloat(table, &sm.Sigma, "sampling", "sigma"),
		setFloat(table, &seed, "sampling", "seed"),
		setString(table, &sm.Plot, "sampling", "plot"),
	} {
		if err != nil {
			return err
		}
	}
	sm.Seed = int64(seed)
	return nil
}
