package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net"
	"net/url"
	"os"
	"path/filepath"
	"strconv"

	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"
	"github.com/hashicorp/hcl/v2/hclwrite"
	"github.com/joho/godotenv"
	"github.com/zclconf/go-cty/cty"

	"github.com/darianmavgo/hotelload/entity"
)

// Missing-source policies.
const (
	MissingSkip  = "skip"
	MissingAbort = "abort"
)

// Config represents the application configuration.
type Config struct {
	BatchSize     int    `hcl:"batch_size,optional"`
	Verbose       bool   `hcl:"verbose,optional"`
	MissingSource string `hcl:"missing_source,optional"`
	Coercion      string `hcl:"coercion,optional"`
	ChainMinID    int64  `hcl:"chain_min_id,optional"`
	LogRejects    bool   `hcl:"log_rejects,optional"`
	HashSecrets   bool   `hcl:"hash_secrets,optional"`
	SourceDir     string `hcl:"source_dir,optional"`

	Database *Database `hcl:"database,block"`
	Sources  []Source  `hcl:"source,block"`
}

// Database holds the destination session parameters.
type Database struct {
	Driver   string `hcl:"driver,optional"`
	Host     string `hcl:"host,optional"`
	Port     int    `hcl:"port,optional"`
	User     string `hcl:"user,optional"`
	Password string `hcl:"password,optional"`
	Name     string `hcl:"name,optional"`
	SSLMode  string `hcl:"sslmode,optional"`
	Path     string `hcl:"path,optional"` // sqlite only
}

// Source points an entity at its export file.
type Source struct {
	Entity    string `hcl:"entity,label"`
	Path      string `hcl:"path"`
	Table     string `hcl:"table,optional"`
	Delimiter string `hcl:"delimiter,optional"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		BatchSize:     1000,
		MissingSource: MissingSkip,
		Coercion:      string(entity.CoerceReject),
		ChainMinID:    1,
		SourceDir:     "Raw_Data",
		Database:      DefaultDatabase(),
	}
}

// DefaultDatabase returns a local Postgres session.
func DefaultDatabase() *Database {
	return &Database{
		Driver:  "postgres",
		Host:    "localhost",
		Port:    5432,
		User:    "postgres",
		Name:    "hotel",
		SSLMode: "disable",
		Path:    "hotel.db",
	}
}

// defaultSources are the export files of the original data drop.
var defaultSources = map[string]Source{
	entity.Chain:              {Path: "chains.csv"},
	entity.Hotel:              {Path: "hotel.csv"},
	entity.Employee:           {Path: "employee.csv"},
	entity.Login:              {Path: "login.xlsx"},
	entity.RoomDescription:    {Path: "roomdetails.json"},
	entity.Room:               {Path: "room.db", Table: "room"},
	entity.Client:             {Path: "client.xlsx"},
	entity.RoomUnavailability: {Path: "roomunavailable.json"},
	entity.Reservation:        {Path: "reserve.db", Table: "reserve"},
}

// Load reads the configuration from the given HCL file.
func Load(path string) (*Config, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	parser := hclparse.NewParser()
	file, diags := parser.ParseHCL(content, path)
	if diags.HasErrors() {
		return nil, fmt.Errorf("failed to parse config file: %s", diags.Error())
	}

	cfg := DefaultConfig()
	cfg.Database = nil
	diags = gohcl.DecodeBody(file.Body, nil, cfg)
	if diags.HasErrors() {
		return nil, fmt.Errorf("failed to decode config: %s", diags.Error())
	}
	cfg.Database = mergeDatabase(cfg.Database, DefaultDatabase())

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadOrDefault loads path when it exists and falls back to DefaultConfig.
func LoadOrDefault(path string) (*Config, error) {
	cfg, err := Load(path)
	if errors.Is(err, fs.ErrNotExist) {
		return DefaultConfig(), nil
	}
	return cfg, err
}

func mergeDatabase(db, def *Database) *Database {
	if db == nil {
		return def
	}
	if db.Driver == "" {
		db.Driver = def.Driver
	}
	if db.Host == "" {
		db.Host = def.Host
	}
	if db.Port == 0 {
		db.Port = def.Port
	}
	if db.User == "" {
		db.User = def.User
	}
	if db.Name == "" {
		db.Name = def.Name
	}
	if db.SSLMode == "" {
		db.SSLMode = def.SSLMode
	}
	if db.Path == "" {
		db.Path = def.Path
	}
	return db
}

// Validate checks policy values and source labels.
func (c *Config) Validate() error {
	if c.BatchSize <= 0 {
		return fmt.Errorf("batch_size must be positive, got %d", c.BatchSize)
	}
	if c.MissingSource != MissingSkip && c.MissingSource != MissingAbort {
		return fmt.Errorf("missing_source must be %q or %q, got %q", MissingSkip, MissingAbort, c.MissingSource)
	}
	if _, err := entity.ParseCoercionPolicy(c.Coercion); err != nil {
		return err
	}
	if c.Database != nil && c.Database.Driver != "postgres" && c.Database.Driver != "sqlite" {
		return fmt.Errorf("database driver must be \"postgres\" or \"sqlite\", got %q", c.Database.Driver)
	}

	seen := map[string]bool{}
	for _, s := range c.Sources {
		if _, ok := defaultSources[s.Entity]; !ok {
			return fmt.Errorf("source %q is not a known entity", s.Entity)
		}
		if seen[s.Entity] {
			return fmt.Errorf("source %q is declared twice", s.Entity)
		}
		seen[s.Entity] = true
		if len([]rune(s.Delimiter)) > 1 {
			return fmt.Errorf("source %q: delimiter must be a single character", s.Entity)
		}
	}
	return nil
}

// SourceFor returns the source of an entity, falling back to the default
// export file. Relative paths are resolved against SourceDir.
func (c *Config) SourceFor(name string) Source {
	src, found := defaultSources[name]
	for _, s := range c.Sources {
		if s.Entity == name {
			src, found = s, true
		}
	}
	if !found {
		return Source{Entity: name}
	}
	src.Entity = name
	if src.Path != "" && !filepath.IsAbs(src.Path) && c.SourceDir != "" {
		src.Path = filepath.Join(c.SourceDir, src.Path)
	}
	return src
}

// DelimiterRune returns the configured delimiter, or 0 for auto-detection.
func (s Source) DelimiterRune() rune {
	for _, r := range s.Delimiter {
		return r
	}
	return 0
}

// DSN builds the connection string for the configured driver.
func (d *Database) DSN() string {
	if d.Driver == "sqlite" {
		return d.Path
	}
	u := url.URL{
		Scheme: "postgres",
		Host:   net.JoinHostPort(d.Host, strconv.Itoa(d.Port)),
		Path:   "/" + d.Name,
	}
	if d.Password != "" {
		u.User = url.UserPassword(d.User, d.Password)
	} else if d.User != "" {
		u.User = url.User(d.User)
	}
	if d.SSLMode != "" {
		u.RawQuery = url.Values{"sslmode": {d.SSLMode}}.Encode()
	}
	return u.String()
}

// ApplyEnv overrides session parameters from HOTELLOAD_DB_* variables.
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) error {
	if c.Database == nil {
		c.Database = DefaultDatabase()
	}
	db := c.Database
	strs := map[string]*string{
		"HOTELLOAD_DB_DRIVER":   &db.Driver,
		"HOTELLOAD_DB_HOST":     &db.Host,
		"HOTELLOAD_DB_USER":     &db.User,
		"HOTELLOAD_DB_PASSWORD": &db.Password,
		"HOTELLOAD_DB_NAME":     &db.Name,
		"HOTELLOAD_DB_SSLMODE":  &db.SSLMode,
		"HOTELLOAD_DB_PATH":     &db.Path,
	}
	for key, dst := range strs {
		if v, ok := lookup(key); ok && v != "" {
			*dst = v
		}
	}
	if v, ok := lookup("HOTELLOAD_DB_PORT"); ok && v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid HOTELLOAD_DB_PORT %q: %w", v, err)
		}
		db.Port = port
	}
	return c.Validate()
}

// LoadDotEnv loads the given .env files that exist. Variables already set in
// the process environment are not overridden.
func LoadDotEnv(paths ...string) error {
	for _, p := range paths {
		if _, err := os.Stat(p); errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err := godotenv.Load(p); err != nil {
			return fmt.Errorf("failed to load %s: %w", p, err)
		}
	}
	return nil
}

// Export writes the configuration to the specified file in HCL format.
func Export(path string, cfg *Config) error {
	f := hclwrite.NewEmptyFile()
	root := f.Body()

	root.SetAttributeValue("batch_size", cty.NumberIntVal(int64(cfg.BatchSize)))
	root.SetAttributeValue("verbose", cty.BoolVal(cfg.Verbose))
	root.SetAttributeValue("missing_source", cty.StringVal(cfg.MissingSource))
	root.SetAttributeValue("coercion", cty.StringVal(cfg.Coercion))
	root.SetAttributeValue("chain_min_id", cty.NumberIntVal(cfg.ChainMinID))
	root.SetAttributeValue("log_rejects", cty.BoolVal(cfg.LogRejects))
	root.SetAttributeValue("hash_secrets", cty.BoolVal(cfg.HashSecrets))
	root.SetAttributeValue("source_dir", cty.StringVal(cfg.SourceDir))

	if db := cfg.Database; db != nil {
		root.AppendNewline()
		body := root.AppendNewBlock("database", nil).Body()
		body.SetAttributeValue("driver", cty.StringVal(db.Driver))
		body.SetAttributeValue("host", cty.StringVal(db.Host))
		body.SetAttributeValue("port", cty.NumberIntVal(int64(db.Port)))
		body.SetAttributeValue("user", cty.StringVal(db.User))
		if db.Password != "" {
			body.SetAttributeValue("password", cty.StringVal(db.Password))
		}
		body.SetAttributeValue("name", cty.StringVal(db.Name))
		body.SetAttributeValue("sslmode", cty.StringVal(db.SSLMode))
		body.SetAttributeValue("path", cty.StringVal(db.Path))
	}

	for _, s := range cfg.Sources {
		root.AppendNewline()
		body := root.AppendNewBlock("source", []string{s.Entity}).Body()
		body.SetAttributeValue("path", cty.StringVal(s.Path))
		if s.Table != "" {
			body.SetAttributeValue("table", cty.StringVal(s.Table))
		}
		if s.Delimiter != "" {
			body.SetAttributeValue("delimiter", cty.StringVal(s.Delimiter))
		}
	}

	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create config file: %w", err)
	}
	defer file.Close()

	_, err = file.Write(f.Bytes())
	if err != nil {
		return fmt.Errorf("failed to write config to file: %w", err)
	}

	return nil
}
