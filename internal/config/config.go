// SPDX-License-Identifier: MPL-2.0

package config

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/invowk/contentpipe/internal/issue"
	"github.com/invowk/contentpipe/pkg/cueutil"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	// AppName is the application name.
	AppName = "contentpipe"
	// ConfigFileName is the name of the config file (without extension).
	ConfigFileName = "contentpipe"
	// ConfigFileExt is the config file extension.
	ConfigFileExt = "cue"
	// EnvPrefix prefixes every environment override, e.g. CONTENTPIPE_WORKERS.
	EnvPrefix = "CONTENTPIPE"
	// ConfigDirEnv overrides the user config directory.
	ConfigDirEnv = EnvPrefix + "_CONFIG_DIR"
)

//go:embed config_schema.cue
var configSchema string

// ConfigDir returns the user configuration directory for contentpipe.
//
//nolint:revive // ConfigDir is more descriptive than Dir for external callers
func ConfigDir() (string, error) {
	if dir := os.Getenv(ConfigDirEnv); dir != "" {
		return dir, nil
	}
	base, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("failed to get user config directory: %w", err)
	}
	return filepath.Join(base, AppName), nil
}

// Load reads configuration with default options.
func Load(ctx context.Context) (*Config, error) {
	return loadWithOptions(ctx, LoadOptions{})
}

func loadWithOptions(ctx context.Context, opts LoadOptions) (*Config, error) {
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("load config canceled: %w", ctx.Err())
	default:
	}

	baseDir := opts.BaseDir
	if baseDir == "" {
		wd, err := os.Getwd()
		if err != nil {
			return nil, fmt.Errorf("failed to get working directory: %w", err)
		}
		baseDir = wd
	}

	// godotenv.Load never overrides variables that are already set.
	if envPath := filepath.Join(baseDir, ".env"); fileExists(envPath) {
		if err := godotenv.Load(envPath); err != nil {
			return nil, loadError(envPath, "Check the .env file for malformed lines", err)
		}
	}

	v := viper.New()
	setDefaults(v, DefaultConfig())
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	resolvedPath, err := resolveConfigFile(opts, baseDir)
	if err != nil {
		return nil, err
	}
	if resolvedPath != "" {
		if err := loadCUEIntoViper(v, resolvedPath); err != nil {
			return nil, loadError(resolvedPath, "Check that the file contains valid CUE syntax", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, loadError(resolvedPath, "Check CONTENTPIPE_* environment variables for malformed values", err)
	}
	cfg.Roots = splitList(cfg.Roots)
	cfg.Exclude = splitList(cfg.Exclude)
	cfg.File = resolvedPath

	if err := cfg.Validate(); err != nil {
		return nil, issue.NewErrorContext().
			WithOperation("validate configuration").
			WithResource(resolvedPath).
			WithSuggestion("Run 'contentpipe config show' to see the effective values").
			WithIssue(issue.ConfigLoadFailedId).
			Wrap(err).
			BuildError()
	}
	return &cfg, nil
}

// resolveConfigFile picks the explicit path, then BaseDir/contentpipe.cue,
// then the user config directory. No file is not an error.
func resolveConfigFile(opts LoadOptions, baseDir string) (string, error) {
	if opts.ConfigFilePath != "" {
		if !fileExists(opts.ConfigFilePath) {
			return "", issue.NewErrorContext().
				WithOperation("load configuration").
				WithResource(opts.ConfigFilePath).
				WithSuggestion("Verify the file path is correct").
				WithSuggestion("Use 'contentpipe config show' to see the default configuration").
				WithIssue(issue.ConfigLoadFailedId).
				Wrap(fmt.Errorf("config file not found: %s", opts.ConfigFilePath)).
				BuildError()
		}
		return opts.ConfigFilePath, nil
	}

	name := ConfigFileName + "." + ConfigFileExt
	if local := filepath.Join(baseDir, name); fileExists(local) {
		return local, nil
	}

	cfgDir := opts.ConfigDirPath
	if cfgDir == "" {
		dir, err := ConfigDir()
		if err != nil {
			// Without a home directory there is simply no user config.
			return "", nil //nolint:nilerr // absent user config is not an error
		}
		cfgDir = dir
	}
	if user := filepath.Join(cfgDir, name); fileExists(user) {
		return user, nil
	}
	return "", nil
}

func loadError(resource, suggestion string, err error) error {
	return issue.NewErrorContext().
		WithOperation("load configuration").
		WithResource(resource).
		WithSuggestion(suggestion).
		WithSuggestion("Verify the configuration values match the expected schema").
		WithIssue(issue.ConfigLoadFailedId).
		Wrap(err).
		BuildError()
}

func setDefaults(v *viper.Viper, d *Config) {
	v.SetDefault("roots", d.Roots)
	v.SetDefault("override_policy", d.OverridePolicy)
	v.SetDefault("workers", d.Workers)
	v.SetDefault("max_texture_size", d.MaxTextureSize)
	v.SetDefault("exclude", d.Exclude)
	v.SetDefault("log.level", d.Log.Level)
	v.SetDefault("log.file", d.Log.File)
	v.SetDefault("hot_reload.interval", d.HotReload.Interval)
	v.SetDefault("hot_reload.watch", d.HotReload.Watch)
	v.SetDefault("bucket.endpoint", d.Bucket.Endpoint)
	v.SetDefault("bucket.access_key", d.Bucket.AccessKey)
	v.SetDefault("bucket.secret_key", d.Bucket.SecretKey)
	v.SetDefault("bucket.use_ssl", d.Bucket.UseSSL)
	v.SetDefault("bucket.region", d.Bucket.Region)
}

// loadCUEIntoViper parses a CUE file, validates it against the #Config schema,
// and merges its contents into Viper.
//
// Note: This uses manual CUE parsing instead of cueutil.ParseAndDecode because
// the result is merged into Viper as a map and optional fields must not be
// forced concrete.
func loadCUEIntoViper(v *viper.Viper, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}
	if err := cueutil.CheckFileSize(data, cueutil.DefaultMaxFileSize, path); err != nil {
		return err
	}

	ctx := cuecontext.New()
	schemaValue := ctx.CompileString(configSchema)
	if schemaValue.Err() != nil {
		return fmt.Errorf("internal error: failed to compile config schema: %w", schemaValue.Err())
	}

	userValue := ctx.CompileBytes(data, cue.Filename(path))
	if userValue.Err() != nil {
		return cueutil.FormatError(userValue.Err(), path)
	}

	schema := schemaValue.LookupPath(cue.ParsePath("#Config"))
	unified := schema.Unify(userValue)
	if err := unified.Validate(cue.Concrete(false)); err != nil {
		return cueutil.FormatError(err, path)
	}

	var configMap map[string]any
	if err := unified.Decode(&configMap); err != nil {
		return cueutil.FormatError(err, path)
	}

	if err := v.MergeConfigMap(configMap); err != nil {
		return fmt.Errorf("failed to merge config: %w", err)
	}
	return nil
}

// splitList flattens comma-separated elements, which is how list values
// arrive from environment variables.
func splitList(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		for part := range strings.SplitSeq(s, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	if errors.Is(err, os.ErrNotExist) {
		return false
	}
	return err == nil && !info.IsDir()
}

// GenerateCUE renders cfg as a contentpipe.cue document.
func GenerateCUE(cfg *Config) string {
	var sb strings.Builder

	sb.WriteString("// contentpipe configuration\n\n")

	writeList(&sb, "roots", cfg.Roots)
	fmt.Fprintf(&sb, "override_policy: %q\n", cfg.OverridePolicy)
	fmt.Fprintf(&sb, "workers: %d\n", cfg.Workers)
	fmt.Fprintf(&sb, "max_texture_size: %d\n", cfg.MaxTextureSize)
	if len(cfg.Exclude) > 0 {
		writeList(&sb, "exclude", cfg.Exclude)
	}

	sb.WriteString("\nlog: {\n")
	fmt.Fprintf(&sb, "\tlevel: %q\n", cfg.Log.Level)
	if cfg.Log.File != "" {
		fmt.Fprintf(&sb, "\tfile: %q\n", cfg.Log.File)
	}
	sb.WriteString("}\n")

	sb.WriteString("\nhot_reload: {\n")
	fmt.Fprintf(&sb, "\tinterval: %q\n", cfg.HotReload.Interval.String())
	fmt.Fprintf(&sb, "\twatch: %v\n", cfg.HotReload.Watch)
	sb.WriteString("}\n")

	if cfg.Bucket.Endpoint != "" {
		sb.WriteString("\nbucket: {\n")
		fmt.Fprintf(&sb, "\tendpoint: %q\n", cfg.Bucket.Endpoint)
		fmt.Fprintf(&sb, "\tuse_ssl: %v\n", cfg.Bucket.UseSSL)
		if cfg.Bucket.Region != "" {
			fmt.Fprintf(&sb, "\tregion: %q\n", cfg.Bucket.Region)
		}
		// Credentials are never written out.
		sb.WriteString("}\n")
	}

	return sb.String()
}

func writeList(sb *strings.Builder, key string, values []string) {
	fmt.Fprintf(sb, "%s: [", key)
	for i, val := range values {
		if i > 0 {
			sb.WriteString(", ")
		}
		fmt.Fprintf(sb, "%q", val)
	}
	sb.WriteString("]\n")
}
