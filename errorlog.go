// Copyright 2016 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package jpkg

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/pkg/errors"
)

// LogError captures the long-form (cause-chain-inclusive) message of the
// most recently surfaced error to the project's error log, truncating any
// prior contents. It is best-effort: a failure to write the log is never
// allowed to mask the original error.
func LogError(cfg Config, cause error) {
	path := cfg.ErrorLogPath()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return
	}

	f, err := os.Create(path)
	if err != nil {
		return
	}
	defer f.Close()

	fmt.Fprintf(f, "%+v\n", errors.Wrap(cause, "jpkg command failed"))
}
