//go:build hdf5

package annbench

import (
	"fmt"

	"github.com/gasparian/lsh-evolve-go/vector"
	"gonum.org/v1/hdf5"
)

// Objects inside the ann-benchmarks hdf5 files:
// train
// test
// distances
// neighbors

// LoadHDF5Points reads a 2d float32 dataset from the hdf5 file
func LoadHDF5Points(path, datasetName string) ([][]float64, error) {
	table, err := hdf5.OpenFile(path, hdf5.F_ACC_RDONLY)
	if err != nil {
		return nil, err
	}
	defer table.Close()

	dataset, err := table.OpenDataset(datasetName)
	if err != nil {
		return nil, err
	}
	defer dataset.Close()

	fileSpace := dataset.Space()
	dims, _, err := fileSpace.SimpleExtentDims()
	if err != nil {
		return nil, err
	}
	if len(dims) != 2 {
		return nil, fmt.Errorf("dataset %s: expected 2 dimensions, got %d", datasetName, len(dims))
	}
	rows, cols := int(dims[0]), int(dims[1])
	flat := make([]float32, fileSpace.SimpleExtentNPoints())
	if err := dataset.Read(&flat); err != nil {
		return nil, err
	}
	vecs := make([][]float64, rows)
	for i := range vecs {
		vecs[i] = vector.ConvertTo64(flat[i*cols : (i+1)*cols])
	}
	return vecs, nil
}
