package nec

import (
	"bytes"
	"fmt"

	"github.com/icza/bitio"
)

const faultBytes = 4

// Error status bits, numbered reading DATA01 to DATA04 from the most
// significant bit.
var faultBits = map[int]string{
	0:  "lamp",
	1:  "power",
	2:  "fan",
	5:  "temperature",
	7:  "lamp cover",
	14: "lamp 2",
	15: "lamp life",
	22: "lamp 2 life",
	29: "formatter",
	30: "foreign object",
	31: "iris calibration",
}

// decodeFaults returns the names of the faults set in an error status
// response.
func decodeFaults(data []byte) ([]string, error) {
	if len(data) < faultBytes {
		return nil, fmt.Errorf("error status needs %d bytes, got %d", faultBytes, len(data))
	}
	r := bitio.NewReader(bytes.NewReader(data[:faultBytes]))
	var faults []string
	for ii := 0; ii < faultBytes*8; ii++ {
		set, err := r.ReadBool()
		if err != nil {
			return nil, err
		}
		if !set {
			continue
		}
		if name, ok := faultBits[ii]; ok {
			faults = append(faults, name)
		} else {
			faults = append(faults, fmt.Sprintf("bit %d", ii))
		}
	}
	return faults, nil
}
