// Shared helpers for g2meta CLI commands.
package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/dairiki/g2-metadata/internal/dump"
	"github.com/dairiki/g2-metadata/internal/snapshot"
	"github.com/dairiki/g2-metadata/pkg/types"
)

// snapshotExt marks files holding the binary snapshot form rather
// than the YAML dump.
const snapshotExt = ".snap"

// readMetadata loads a metadata document from a YAML dump or a binary
// snapshot, chosen by the file extension. "-" reads a YAML dump from
// standard input.
func readMetadata(name string) (*types.Document, error) {
	if name == "-" {
		return dump.Load(os.Stdin)
	}

	f, err := os.Open(name)
	if err != nil {
		return nil, fmt.Errorf("open metadata: %w", err)
	}
	defer f.Close()

	if strings.HasSuffix(name, snapshotExt) {
		doc, err := snapshot.Read(f)
		if err != nil {
			return nil, fmt.Errorf("read snapshot %s: %w", name, err)
		}
		return doc, nil
	}

	doc, err := dump.Load(f)
	if err != nil {
		return nil, fmt.Errorf("load metadata %s: %w", name, err)
	}
	return doc, nil
}

// openOutput opens the named file for writing; "-" means stdout. The
// returned close func is a no-op for stdout.
func openOutput(name string) (io.Writer, func() error, error) {
	if name == "-" {
		return os.Stdout, func() error { return nil }, nil
	}
	f, err := os.Create(name)
	if err != nil {
		return nil, nil, fmt.Errorf("create output: %w", err)
	}
	return f, f.Close, nil
}
