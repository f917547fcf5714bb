//go:build !hdf5

package annbench

import "errors"

var ErrHDF5Disabled = errors.New("hdf5 support is disabled, rebuild with -tags hdf5")

// LoadHDF5Points needs the hdf5 C library, see hdf5.go
func LoadHDF5Points(path, datasetName string) ([][]float64, error) {
	return nil, ErrHDF5Disabled
}
