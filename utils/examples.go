package utils

import (
	"bufio"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
)

// Examples is a batch of input vectors and their expected outputs.
type Examples struct {
	Inputs  [][]float64
	Targets [][]float64
}

// Len returns the number of examples.
func (e Examples) Len() int {
	return len(e.Inputs)
}

// LoadExamples reads a CSV file where every row holds inputNum input values
// followed by outputNum targets. Blank lines and lines starting with '#' are
// skipped.
func LoadExamples(filename string, inputNum, outputNum int) (Examples, error) {
	file, err := os.Open(filename)
	if err != nil {
		return Examples{}, fmt.Errorf("failed to open examples: %w", err)
	}
	defer file.Close()
	return ReadExamples(bufio.NewReader(file), inputNum, outputNum)
}

// ReadExamples parses CSV examples from r, see LoadExamples.
func ReadExamples(r io.Reader, inputNum, outputNum int) (Examples, error) {
	cr := csv.NewReader(r)
	cr.Comment = '#'
	cr.FieldsPerRecord = inputNum + outputNum
	cr.TrimLeadingSpace = true

	var ex Examples
	for row := 1; ; row++ {
		record, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return Examples{}, fmt.Errorf("failed to read examples: %w", err)
		}

		values := make([]float64, len(record))
		for i, field := range record {
			values[i], err = strconv.ParseFloat(strings.TrimSpace(field), 64)
			if err != nil {
				return Examples{}, fmt.Errorf("row %d column %d: %w", row, i+1, err)
			}
		}
		ex.Inputs = append(ex.Inputs, values[:inputNum:inputNum])
		ex.Targets = append(ex.Targets, values[inputNum:])
	}
	if ex.Len() == 0 {
		return Examples{}, fmt.Errorf("no examples found")
	}
	return ex, nil
}
