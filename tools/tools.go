//go:build tools
// +build tools

// This file ensures tool dependencies are kept in sync. To install the
// following tools at the version used by this repo run:
// $ go generate -tags tools tools/tools.go

package tools

// NOTE: This must not be indented, so to stop goimports from trying to be
// helpful, it's separated out from the import block below.
//go:generate go install mvdan.cc/gofumpt

import (
	_ "mvdan.cc/gofumpt"
)
