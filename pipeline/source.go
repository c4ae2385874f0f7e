package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/zeebo/xxh3"

	"github.com/darianmavgo/hotelload/config"
	"github.com/darianmavgo/hotelload/converters"
	"github.com/darianmavgo/hotelload/converters/common"
	_ "github.com/darianmavgo/hotelload/converters/all"
	"github.com/darianmavgo/hotelload/entity"
)

// ErrSourceOpen marks a source that could not be opened or parsed. Its scope
// is the one table; the missing-source policy decides whether the run goes on.
var ErrSourceOpen = errors.New("source unavailable")

// fingerprint hashes the whole file and rewinds it.
func fingerprint(f *os.File) (string, error) {
	h := xxh3.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		return "", err
	}
	return fmt.Sprintf("%016x", h.Sum64()), nil
}

// readSource opens the entity's export, checks its header and materialises
// every row. A source that cannot be read to the end yields no rows at all.
// The reader's handle is released before returning on every path.
func (r *Runner) readSource(ctx context.Context, d *entity.Descriptor, src config.Source, res *TableResult) ([]common.Row, error) {
	if src.Path == "" {
		return nil, fmt.Errorf("%w: no source configured for %s", ErrSourceOpen, d.Name)
	}
	driverName, err := converters.DriverFor(src.Path)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrSourceOpen, src.Path, err)
	}

	f, err := os.Open(src.Path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSourceOpen, err)
	}
	defer f.Close()

	if res.Fingerprint, err = fingerprint(f); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrSourceOpen, src.Path, err)
	}

	provider, err := converters.Open(driverName, f, &common.ConversionConfig{
		Delimiter: src.DelimiterRune(),
		TableName: src.Table,
		Columns:   d.Columns(),
		Verbose:   r.Config.Verbose,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrSourceOpen, src.Path, err)
	}
	if closer, ok := provider.(io.Closer); ok {
		defer closer.Close()
	}

	if err := d.CheckHeaders(provider.Headers()); err != nil {
		return nil, err
	}

	var rows []common.Row
	err = provider.ScanRows(ctx, func(row common.Row, rowErr error) error {
		res.Read++
		if rowErr != nil {
			return fmt.Errorf("%w: %s line %d: %v", ErrSourceOpen, src.Path, row.Line, rowErr)
		}
		rows = append(rows, row)
		return nil
	})
	if err != nil {
		if errors.Is(err, ErrSourceOpen) {
			return nil, err
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, fmt.Errorf("%w: failed to read %s: %v", ErrSourceOpen, src.Path, err)
	}
	return rows, nil
}
