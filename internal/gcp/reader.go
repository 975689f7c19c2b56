// Package gcp reads matched point pairs (ground control points) from CSV.
//
// One pair per record:
//
//	id, master_row, master_col, slave_row, slave_col[, quality[, geo_row, geo_col]]
//
// An empty quality field means no score. A first record whose id field is
// not an integer is taken as a header.
// Blank lines and lines starting with '#' are skipped.
package gcp

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"sar-coreg/internal/alignment"
	"sar-coreg/pkg/geometry"
)

const (
	minFields = 5
	maxFields = 8
)

// Read parses point pairs from r.
func Read(r io.Reader) ([]alignment.PointPair, error) {
	cr := csv.NewReader(r)
	cr.Comment = '#'
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	var pairs []alignment.PointPair
	for line := 1; ; line++ {
		record, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read record %d: %w", line, err)
		}
		if line == 1 && isHeader(record) {
			continue
		}
		pair, err := parseRecord(record)
		if err != nil {
			return nil, fmt.Errorf("record %d: %w", line, err)
		}
		pairs = append(pairs, pair)
	}
	return pairs, nil
}

// ReadFile parses point pairs from the named file.
func ReadFile(path string) ([]alignment.PointPair, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	pairs, err := Read(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return pairs, nil
}

func isHeader(record []string) bool {
	if len(record) == 0 {
		return false
	}
	_, err := strconv.Atoi(strings.TrimSpace(record[0]))
	return err != nil
}

func parseRecord(record []string) (alignment.PointPair, error) {
	if n := len(record); n < minFields || n > maxFields || n == 7 {
		return alignment.PointPair{}, fmt.Errorf("want 5, 6 or 8 fields, got %d", n)
	}

	id, err := strconv.Atoi(strings.TrimSpace(record[0]))
	if err != nil {
		return alignment.PointPair{}, fmt.Errorf("id: %w", err)
	}

	const qualityField = 5
	v := make([]float64, len(record)-1)
	for i, field := range record[1:] {
		field = strings.TrimSpace(field)
		if i+1 == qualityField && field == "" {
			continue
		}
		v[i], err = strconv.ParseFloat(field, 64)
		if err != nil {
			return alignment.PointPair{}, fmt.Errorf("field %d: %w", i+2, err)
		}
	}

	pair := alignment.PointPair{
		ID:     id,
		Master: geometry.NewPixel(v[0], v[1]),
		Slave:  geometry.NewPixel(v[2], v[3]),
	}
	if len(record) > qualityField && strings.TrimSpace(record[qualityField]) != "" {
		pair.Quality, pair.HasQuality = v[4], true
	}
	if len(v) > 6 {
		pair.Geometric = geometry.NewPixel(v[5], v[6])
	}
	return pair, nil
}

// Write writes pairs in the format Read accepts, with a header.
func Write(w io.Writer, pairs []alignment.PointPair) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"id", "master_row", "master_col", "slave_row", "slave_col", "quality", "geo_row", "geo_col"}); err != nil {
		return err
	}
	f := func(v float64) string { return strconv.FormatFloat(v, 'g', -1, 64) }
	for _, p := range pairs {
		quality := ""
		if p.HasQuality {
			quality = f(p.Quality)
		}
		record := []string{
			strconv.Itoa(p.ID),
			f(p.Master.Row), f(p.Master.Col),
			f(p.Slave.Row), f(p.Slave.Col),
			quality,
			f(p.Geometric.Row), f(p.Geometric.Col),
		}
		if err := cw.Write(record); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}
