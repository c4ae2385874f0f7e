package converters

import (
	"fmt"
	"io"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/darianmavgo/hotelload/converters/common"
)

var (
	driversMu sync.RWMutex
	drivers   = make(map[string]common.Driver)
)

// Register makes a converter driver available by the provided name.
// If Register is called twice with the same name or if driver is nil, it panics.
func Register(name string, driver common.Driver) {
	driversMu.Lock()
	defer driversMu.Unlock()
	if driver == nil {
		panic("converters: Register driver is nil")
	}
	if _, dup := drivers[name]; dup {
		panic("converters: Register called twice for driver " + name)
	}
	drivers[name] = driver
}

// Open opens a converter by driver name and source reader.
func Open(driverName string, source io.Reader, config *common.ConversionConfig) (common.RowProvider, error) {
	driversMu.RLock()
	driver, ok := drivers[driverName]
	driversMu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("converters: unknown driver %q (forgotten import?)", driverName)
	}
	return driver.Open(source, config)
}

// Drivers returns a sorted list of the names of the registered drivers.
func Drivers() []string {
	driversMu.RLock()
	defer driversMu.RUnlock()
	list := make([]string, 0, len(drivers))
	for name := range drivers {
		list = append(list, name)
	}
	sort.Strings(list)
	return list
}

// DriverFor picks a driver name from a file extension.
func DriverFor(path string) (string, error) {
	ext := strings.ToLower(filepath.Ext(path))
	switch ext {
	case ".csv", ".tsv", ".txt":
		return "csv", nil
	case ".xlsx", ".xlsm":
		return "excel", nil
	case ".db", ".sqlite", ".sqlite3":
		return "sqlite", nil
	case ".json":
		return "json", nil
	}
	return "", fmt.Errorf("unsupported file type: %s", ext)
}
