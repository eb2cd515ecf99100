package document

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"cwmcp/internal/model"
	"cwmcp/internal/protocol"
)

// FindCodeFile picks the code file to import from dir: diagram.cw when
// present, otherwise the first *.cw entry in lexical order.
func FindCodeFile(dir string) (string, error) {
	info, err := os.Stat(dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return "", model.Errorf(protocol.ErrorCodePathNotFound, fmt.Sprintf("Directory not found: %s", dir), nil)
		}
		return "", model.Errorf(protocol.ErrorCodeReadError, fmt.Sprintf("Failed to inspect %s", dir), err)
	}
	if !info.IsDir() {
		return "", model.Errorf(protocol.ErrorCodePathNotFound, fmt.Sprintf("Not a directory: %s", dir), nil)
	}

	preferred := filepath.Join(dir, protocol.CodeFileName)
	if st, err := os.Stat(preferred); err == nil && st.Mode().IsRegular() {
		return preferred, nil
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return "", model.Errorf(protocol.ErrorCodeReadError, fmt.Sprintf("Failed to list %s", dir), err)
	}
	var names []string
	for _, entry := range entries {
		if entry.Type().IsRegular() && strings.HasSuffix(entry.Name(), protocol.CodeFileExt) {
			names = append(names, entry.Name())
		}
	}
	if len(names) == 0 {
		return "", model.Errorf(protocol.ErrorCodeFileNotFound, fmt.Sprintf("No %s files found in %s", protocol.CodeFileExt, dir), nil)
	}
	sort.Strings(names)
	return filepath.Join(dir, names[0]), nil
}
