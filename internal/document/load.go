package document

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"cwmcp/internal/model"
	"cwmcp/internal/protocol"
)

// Load reads a source document. A missing file maps to FILE_NOT_FOUND, any
// other failure to READ_ERROR.
func Load(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return "", model.Errorf(protocol.ErrorCodeFileNotFound, fmt.Sprintf("File not found: %s", path), nil)
		}
		return "", model.Errorf(protocol.ErrorCodeReadError, "Failed to read file", err)
	}
	return string(data), nil
}
