package commands

import (
	"io"
	"os"

	"github.com/jmylchreest/menuscrape/internal/logger"
	"github.com/jmylchreest/menuscrape/internal/output"
)

// openWriter creates the result writer for the format, writing to path or
// stdout. The returned close function flushes the writer and closes the
// file.
func openWriter(path, formatStr string, pretty bool) (output.Writer, func() error, error) {
	format, err := output.ParseFormat(formatStr)
	if err != nil {
		return nil, nil, err
	}

	var out io.Writer = os.Stdout
	var file *os.File
	if path != "" {
		file, err = os.Create(path) //#nosec G304 -- CLI tool writes to user-specified output file
		if err != nil {
			logger.Error("failed to create output file", "path", path, "error", err)
			return nil, nil, err
		}
		out = file
	}

	w, err := output.NewWriter(out, format, output.WithPretty(pretty))
	if err != nil {
		if file != nil {
			_ = file.Close()
		}
		return nil, nil, err
	}

	closeFn := func() error {
		err := w.Close()
		if file != nil {
			if cerr := file.Close(); err == nil {
				err = cerr
			}
		}
		return err
	}
	return w, closeFn, nil
}
