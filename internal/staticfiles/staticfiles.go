// Package staticfiles embeds the site assets and compiles the script
// bundle referenced by the pages.
package staticfiles

import (
	"bytes"
	"crypto/sha256"
	"embed"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"
)

//go:embed assets
var embedded embed.FS

// ManifestPath is the location of the compiled bundle manifest below the static root.
const ManifestPath = "CACHE/manifest.json"

// URLPrefix is where the static files are served.
const URLPrefix = "/static/"

// Assets returns the embedded source assets rooted at their top directory.
func Assets() fs.FS {
	sub, err := fs.Sub(embedded, "assets")
	if err != nil {
		panic(err)
	}
	return sub
}

// Bundle is the compiled output: the concatenated scripts and a manifest
// mapping the hash of the inputs to the tag that loads them.
type Bundle struct {
	// Files holds generated files keyed by their path below the static root.
	Files     map[string][]byte
	Key       string
	ScriptTag string
}

// Build concatenates the embedded scripts in name order into
// CACHE/js/<hash>.js and writes the manifest.
func Build() (*Bundle, error) {
	assets := Assets()
	names, err := fs.Glob(assets, "js/*.js")
	if err != nil {
		return nil, err
	}
	sort.Strings(names)

	var buf bytes.Buffer
	for _, name := range names {
		data, err := fs.ReadFile(assets, name)
		if err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", name, err)
		}
		fmt.Fprintf(&buf, "/* %s */\n", name)
		buf.Write(data)
		if !bytes.HasSuffix(data, []byte("\n")) {
			buf.WriteByte('\n')
		}
	}

	sum := sha256.Sum256(buf.Bytes())
	key := hex.EncodeToString(sum[:])
	jsPath := "CACHE/js/" + key[:12] + ".js"
	tag := fmt.Sprintf(`<script type="text/javascript" src="%s%s"></script>`, URLPrefix, jsPath)

	manifest, err := json.MarshalIndent(map[string]string{key: tag}, "", "  ")
	if err != nil {
		return nil, err
	}

	return &Bundle{
		Files: map[string][]byte{
			jsPath:       buf.Bytes(),
			ManifestPath: manifest,
		},
		Key:       key,
		ScriptTag: tag,
	}, nil
}

// Collect writes the assets and the compiled bundle to dest, replacing
// files that already exist. It returns the number of files written.
func Collect(dest string) (int, error) {
	b, err := Build()
	if err != nil {
		return 0, err
	}

	written := 0
	write := func(name string, data []byte) error {
		target := filepath.Join(dest, filepath.FromSlash(name))
		if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
			return err
		}
		if err := os.WriteFile(target, data, 0o644); err != nil { //nolint:gosec
			return err
		}
		written++
		return nil
	}

	assets := Assets()
	err = fs.WalkDir(assets, ".", func(name string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return err
		}
		data, err := fs.ReadFile(assets, name)
		if err != nil {
			return err
		}
		return write(name, data)
	})
	if err != nil {
		return written, fmt.Errorf("failed to collect assets: %w", err)
	}

	generated := make([]string, 0, len(b.Files))
	for name := range b.Files {
		generated = append(generated, name)
	}
	sort.Strings(generated)
	for _, name := range generated {
		if err := write(name, b.Files[name]); err != nil {
			return written, fmt.Errorf("failed to write %s: %w", name, err)
		}
	}
	return written, nil
}

// IsCollected reports whether root holds a collected static tree.
func IsCollected(root string) bool {
	if root == "" {
		return false
	}
	info, err := os.Stat(filepath.Join(root, filepath.FromSlash(ManifestPath)))
	return err == nil && !info.IsDir()
}

// FS serves root when it was collected, and the embedded assets with an
// in-memory build otherwise.
func FS(root string) (fs.FS, error) {
	if IsCollected(root) {
		return os.DirFS(root), nil
	}
	b, err := Build()
	if err != nil {
		return nil, err
	}
	return &overlayFS{base: Assets(), files: b.Files}, nil
}

// ScriptTag returns the tag of the compiled bundle listed in the manifest
// of fsys.
func ScriptTag(fsys fs.FS) (string, error) {
	data, err := fs.ReadFile(fsys, ManifestPath)
	if err != nil {
		return "", err
	}
	var manifest map[string]string
	if err := json.Unmarshal(data, &manifest); err != nil {
		return "", fmt.Errorf("invalid manifest: %w", err)
	}
	tags := make([]string, 0, len(manifest))
	for _, tag := range manifest {
		tags = append(tags, tag)
	}
	sort.Strings(tags)
	return strings.Join(tags, "\n"), nil
}

// cleanName validates an fs.FS path.
func cleanName(op, name string) (string, error) {
	if !fs.ValidPath(name) {
		return "", &fs.PathError{Op: op, Path: name, Err: fs.ErrInvalid}
	}
	return path.Clean(name), nil
}
