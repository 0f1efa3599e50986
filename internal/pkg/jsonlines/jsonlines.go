// Copyright 2026 Peter Edge
//
// All rights reserved.

// Package jsonlines provides functions for reading and writing newline-separated JSON files.
package jsonlines

import (
	"bytes"
	"encoding/json"
	"errors"
	"os"

	"github.com/bufdev/tsctl/internal/standard/xos"
)

// WriteFile writes the values as newline-separated JSON to a file, replacing it.
func WriteFile[T any](filePath string, values []T) error {
	data, err := marshal(values)
	if err != nil {
		return err
	}
	return xos.WriteFileAtomic(filePath, data, 0o644)
}

// AppendFile appends the values as newline-separated JSON to a file, creating it if needed.
func AppendFile[T any](filePath string, values ...T) (retErr error) {
	data, err := marshal(values)
	if err != nil {
		return err
	}
	file, err := os.OpenFile(filePath, os.O_WRONLY|os.O_CREATE|os.O_APPEND, 0o644)
	if err != nil {
		return err
	}
	defer func() {
		retErr = errors.Join(retErr, file.Close())
	}()
	_, err = file.Write(data)
	return err
}

// ReadFile reads newline-separated JSON values from a file.
//
// Blank lines are skipped.
func ReadFile[T any](filePath string) ([]T, error) {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return nil, err
	}
	var values []T
	for line := range bytes.SplitSeq(data, []byte("\n")) {
		if len(bytes.TrimSpace(line)) == 0 {
			continue
		}
		var value T
		if err := json.Unmarshal(line, &value); err != nil {
			return nil, err
		}
		values = append(values, value)
	}
	return values, nil
}

func marshal[T any](values []T) ([]byte, error) {
	var buffer bytes.Buffer
	for _, value := range values {
		data, err := json.Marshal(value)
		if err != nil {
			return nil, err
		}
		buffer.Write(data)
		buffer.WriteByte('\n')
	}
	return buffer.Bytes(), nil
}
