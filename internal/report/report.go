// Package report persists estimated coregistration polynomials so later
// processing steps can evaluate them without re-running the estimation.
package report

import (
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"time"

	"sar-coreg/internal/alignment"
	"sar-coreg/internal/poly"
	"sar-coreg/pkg/geometry"
)

// FormatVersion is written to every file and checked on load.
const FormatVersion = 1

// File is a coregistration result file (.cpm.json).
type File struct {
	Version int       `json:"version"`
	Name    string    `json:"name"`
	Created time.Time `json:"created"`

	// Input paths (relative to the result file)
	PointsPath      string `json:"points,omitempty"`
	MasterImagePath string `json:"master_image,omitempty"`

	// Polynomials are offsets over master coordinates normalized with Window
	Degree int             `json:"degree"`
	Window geometry.Window `json:"window"`
	Row    poly.Polynomial `json:"row"`
	Col    poly.Polynomial `json:"col"`

	Termination string  `json:"termination"`
	Converged   bool    `json:"converged"`
	Iterations  int     `json:"iterations"`
	Used        int     `json:"used"`
	RemovedIDs  []int   `json:"removed_ids,omitempty"`
	Summary     Summary `json:"summary"`
}

// Summary is the JSON form of alignment.Statistics. Model tests are absent
// when the final fit had no redundancy.
type Summary struct {
	RowStd       float64  `json:"row_std"`
	ColStd       float64  `json:"col_std"`
	RMSMean      float64  `json:"rms_mean"`
	RMSStd       float64  `json:"rms_std"`
	MaxWRow      float64  `json:"max_w_row"`
	MaxWCol      float64  `json:"max_w_col"`
	ModelTestRow *float64 `json:"model_test_row,omitempty"`
	ModelTestCol *float64 `json:"model_test_col,omitempty"`
	Coverage     float64  `json:"coverage"`
}

// New creates a result file from an estimation result.
func New(name string, res *alignment.Result) *File {
	st := res.Statistics
	f := &File{
		Version:     FormatVersion,
		Name:        name,
		Created:     time.Now().UTC(),
		Degree:      res.Degree,
		Window:      res.Window(),
		Row:         res.Row.Clone(),
		Col:         res.Col.Clone(),
		Termination: res.Termination.String(),
		Converged:   res.Converged,
		Iterations:  res.Iterations,
		Used:        len(res.Observations),
		Summary: Summary{
			RowStd:       st.RowStd,
			ColStd:       st.ColStd,
			RMSMean:      st.RMSMean,
			RMSStd:       st.RMSStd,
			MaxWRow:      st.MaxWRow,
			MaxWCol:      st.MaxWCol,
			ModelTestRow: finiteOrNil(st.ModelTestRow),
			ModelTestCol: finiteOrNil(st.ModelTestCol),
			Coverage:     st.Coverage,
		},
	}
	for _, r := range res.Removed {
		f.RemovedIDs = append(f.RemovedIDs, r.ID)
	}
	return f
}

func finiteOrNil(v float64) *float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return nil
	}
	return &v
}

// Load loads a result file.
func Load(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var f File
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	if f.Version != FormatVersion {
		return nil, fmt.Errorf("%s: unsupported version %d", path, f.Version)
	}
	if err := f.check(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return &f, nil
}

func (f *File) check() error {
	u := poly.NumberOfCoefficients(f.Degree)
	if len(f.Row.Coefficients) != u || len(f.Col.Coefficients) != u {
		return fmt.Errorf("degree %d needs %d coefficients, have %d/%d",
			f.Degree, u, len(f.Row.Coefficients), len(f.Col.Coefficients))
	}
	return f.Window.Validate()
}

// Save writes the result file.
func (f *File) Save(path string) error {
	data, err := json.MarshalIndent(f, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

// SetPoints records the point-pair file, relative to the result file when possible.
func (f *File) SetPoints(filePath, pointsPath string) {
	f.PointsPath = relativeTo(filePath, pointsPath)
}

// SetMasterImage records the master image, relative to the result file when possible.
func (f *File) SetMasterImage(filePath, imagePath string) {
	f.MasterImagePath = relativeTo(filePath, imagePath)
}

// GetPointsPath returns the absolute path of the point-pair file.
func (f *File) GetPointsPath(filePath string) string {
	return resolve(filePath, f.PointsPath)
}

// GetMasterImagePath returns the absolute path of the master image.
func (f *File) GetMasterImagePath(filePath string) string {
	return resolve(filePath, f.MasterImagePath)
}

func relativeTo(filePath, target string) string {
	abs, err := filepath.Abs(target)
	if err != nil {
		return target
	}
	dir, err := filepath.Abs(filepath.Dir(filePath))
	if err != nil {
		return target
	}
	rel, err := filepath.Rel(dir, abs)
	if err != nil {
		return target
	}
	return rel
}

func resolve(filePath, p string) string {
	if p == "" {
		return ""
	}
	if filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(filepath.Dir(filePath), p)
}

// Offset evaluates the stored slave − master offset at a raw master position.
func (f *File) Offset(master geometry.Pixel) (geometry.Pixel, error) {
	n, err := poly.NewNormalizer(f.Window)
	if err != nil {
		return geometry.Pixel{}, err
	}
	x, y := n.Apply(master)
	return geometry.Pixel{Row: f.Row.Eval(x, y), Col: f.Col.Eval(x, y)}, nil
}

// DefaultPath returns the result file name used for a point-pair file in dir.
func DefaultPath(dir, pointsPath string) string {
	base := filepath.Base(pointsPath)
	return filepath.Join(dir, base[:len(base)-len(filepath.Ext(base))]+".cpm.json")
}
