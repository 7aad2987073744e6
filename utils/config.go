package utils

import (
	"fmt"
	"strconv"
	"strings"

	"annealnet/neuron"
)

// Config holds training configuration
type Config struct {
	Architecture  []int // input size, hidden layer sizes..., output size
	Aggregation   string
	Activation    string
	Iterations    int
	Population    int
	InitialWeight float64
	Workers       int
	Seed          uint64 // 0 picks a random seed
	DataPath      string
	LogEvery      int
}

// DefaultConfig trains a 2-2-1 rectifier network.
func DefaultConfig() Config {
	return Config{
		Architecture: []int{2, 2, 1},
		Aggregation:  "sum",
		Activation:   "relu",
		Iterations:   300,
		Population:   100,
		Workers:      1,
		LogEvery:     50,
	}
}

// Inputs returns the network input size.
func (c Config) Inputs() int {
	return c.Architecture[0]
}

// Outputs returns the network output size.
func (c Config) Outputs() int {
	return c.Architecture[len(c.Architecture)-1]
}

// Layers returns the neuron count of each layer, excluding the input size.
func (c Config) Layers() []int {
	return c.Architecture[1:]
}

// ParseArchitecture parses architecture string into slice of integers
func ParseArchitecture(archStr string) ([]int, error) {
	archParts := strings.Fields(strings.ReplaceAll(archStr, ",", " "))
	arch := make([]int, len(archParts))
	for i, s := range archParts {
		n, err := strconv.Atoi(s)
		if err != nil {
			return nil, fmt.Errorf("architecture entry %d: %w", i, err)
		}
		arch[i] = n
	}
	return arch, nil
}

// ValidateConfig validates training configuration
func ValidateConfig(config *Config) error {
	if len(config.Architecture) < 2 {
		return fmt.Errorf("architecture must have at least 2 sizes (input and output)")
	}

	for i, n := range config.Architecture {
		if n <= 0 {
			return fmt.Errorf("architecture size %d must be positive, got %d", i, n)
		}
	}

	if config.Iterations < 0 {
		return fmt.Errorf("iterations must not be negative")
	}

	if config.Population <= 0 {
		return fmt.Errorf("population must be positive")
	}

	if config.LogEvery < 0 {
		return fmt.Errorf("log interval must not be negative")
	}

	if _, err := neuron.Lookup(config.Aggregation, config.Activation); err != nil {
		return fmt.Errorf("neuron unit: %w", err)
	}

	return nil
}
