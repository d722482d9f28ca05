// Copyright 2025 Kadir Pekel
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package utils provides small helpers shared across lexserve's packages.
package utils

import (
	"fmt"
	"os"
	"path/filepath"
)

// EnsureDataDir makes sure dir exists, creating any missing parents, and
// returns its absolute path. Used for the cache's disk path before the
// cache opens it, so a fresh deployment doesn't fail with a
// missing-directory error on first run.
func EnsureDataDir(dir string) (string, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return "", fmt.Errorf("failed to resolve data directory %q: %w", dir, err)
	}
	if err := os.MkdirAll(abs, 0755); err != nil {
		return "", fmt.Errorf("failed to create data directory %q: %w", abs, err)
	}
	return abs, nil
}
