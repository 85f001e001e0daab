package router

import (
	"errors"
	"fmt"
	"io/fs"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/niels/tinyhttpd/pkg/message"
)

// filePath maps a /files/ request path onto the filesystem. The directory and
// the name are concatenated without inserting a separator.
func (rt *Router) filePath(path string) (string, bool) {
	if rt.options.Directory == "" {
		return "", false
	}
	name := strings.TrimPrefix(path, PrefixFiles)
	if !rt.options.AllowUnsafePaths && !filepath.IsLocal(name) {
		return "", false
	}
	return rt.options.Directory + name, true
}

func (rt *Router) getFile(path string, resp *message.Response) error {
	fullPath, ok := rt.filePath(path)
	if !ok {
		resp.SetStatus(http.StatusNotFound)
		return nil
	}

	if _, err := os.Stat(fullPath); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			resp.SetStatus(http.StatusNotFound)
			return nil
		}
		return fmt.Errorf("%w: stat %s: %v", ErrIOFailure, fullPath, err)
	}

	contents, err := os.ReadFile(fullPath)
	if err != nil {
		return fmt.Errorf("%w: read %s: %v", ErrIOFailure, fullPath, err)
	}

	resp.SetStatus(http.StatusOK)
	resp.SetBody(message.ContentTypeBinary, contents)
	return nil
}

func (rt *Router) postFile(req *message.Request, path string, resp *message.Response) error {
	fullPath, ok := rt.filePath(path)
	if !ok {
		return nil
	}

	// Never write more than the declared length, even if more was read
	n := min(req.BodySize(), len(req.Body))

	file, err := os.Create(fullPath)
	if err != nil {
		return fmt.Errorf("%w: create %s: %v", ErrIOFailure, fullPath, err)
	}
	if _, err := file.Write(req.Body[:n]); err != nil {
		file.Close()
		return fmt.Errorf("%w: write %s: %v", ErrIOFailure, fullPath, err)
	}
	if err := file.Close(); err != nil {
		return fmt.Errorf("%w: close %s: %v", ErrIOFailure, fullPath, err)
	}

	resp.SetStatus(http.StatusCreated)
	return nil
}
