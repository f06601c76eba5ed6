package main

import (
	"fmt"
	"os"
)

func readConfigFile(path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("mapcachectl: read %s: %w", path, err)
	}
	return data, nil
}
