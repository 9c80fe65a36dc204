package process

import (
	"bufio"
	"fmt"
	"os"
	"strings"
)

// LoadLabels reads a class-name file (one label per line, class ID is
// the line number).
func LoadLabels(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var labels []string
	s := bufio.NewScanner(f)
	for s.Scan() {
		labels = append(labels, strings.TrimSpace(s.Text()))
	}
	if err := s.Err(); err != nil {
		return nil, err
	}
	if len(labels) == 0 {
		return nil, fmt.Errorf("no labels found in %v", path)
	}
	return labels, nil
}
