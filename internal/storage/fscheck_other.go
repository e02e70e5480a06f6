//go:build !darwin && !linux

package storage

import "fmt"

func filesystemType(path string) (string, error) {
	return "", fmt.Errorf("cannot detect filesystem type on this platform")
}
