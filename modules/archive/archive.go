// Package archive implements the "archive" module: create or extract
// tar/tar.gz/zip archives locally before/after transfer. Built on
// archive/tar, archive/zip, and compress/gzip from the standard
// library — no example repo in the corpus vendors an archive format
// library, so this is one of the few components without a third-party
// grounding (see DESIGN.md).
package archive

import (
	"archive/tar"
	"archive/zip"
	"compress/gzip"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/furkankose/katmer/core/module"
	"github.com/furkankose/katmer/core/types"
)

func init() {
	module.Register("archive", func() module.Module { return &Module{} })
}

// Module packs src (a directory or file) into dest, or unpacks src
// into the dest directory, inferring format from dest's extension
// unless format is set explicitly.
type Module struct{}

func (m *Module) Name() string { return "archive" }

func (m *Module) Constraints() *module.Constraints { return nil }

func (m *Module) Schema() map[string]any {
	return map[string]any{
		"type":     "object",
		"required": []any{"src", "dest"},
		"properties": map[string]any{
			"src":    map[string]any{"type": "string"},
			"dest":   map[string]any{"type": "string"},
			"action": map[string]any{"type": "string", "enum": []any{"pack", "unpack"}},
			"format": map[string]any{"type": "string", "enum": []any{"tar", "tar.gz", "zip"}},
		},
	}
}

func (m *Module) Check(ctx context.Context, mc *module.Context) error      { return nil }
func (m *Module) Initialize(ctx context.Context, mc *module.Context) error { return nil }
func (m *Module) Cleanup(ctx context.Context, mc *module.Context) error    { return nil }

func (m *Module) Execute(ctx context.Context, mc *module.Context) (types.ModuleResult, error) {
	src, _ := mc.Params["src"].(string)
	dest, _ := mc.Params["dest"].(string)
	action, _ := mc.Params["action"].(string)
	if action == "" {
		action = "pack"
	}
	format, _ := mc.Params["format"].(string)
	if format == "" {
		format = inferFormat(dest)
		if format == "" {
			format = inferFormat(src)
		}
	}

	switch action {
	case "pack":
		if _, err := os.Stat(dest); err == nil {
			return types.ModuleResult{Changed: false, Msg: dest + " already exists"}, nil
		}
		if err := pack(src, dest, format); err != nil {
			return types.ModuleResult{Failed: true, Msg: err.Error()}, nil
		}
		return types.ModuleResult{Changed: true, Msg: fmt.Sprintf("packed %s into %s", src, dest)}, nil
	case "unpack":
		if err := os.MkdirAll(dest, 0o755); err != nil {
			return types.ModuleResult{Failed: true, Msg: err.Error()}, nil
		}
		if err := unpack(src, dest, format); err != nil {
			return types.ModuleResult{Failed: true, Msg: err.Error()}, nil
		}
		return types.ModuleResult{Changed: true, Msg: fmt.Sprintf("unpacked %s into %s", src, dest)}, nil
	default:
		return types.ModuleResult{Failed: true, Msg: "action must be pack or unpack, got " + action}, nil
	}
}

func inferFormat(path string) string {
	switch {
	case strings.HasSuffix(path, ".tar.gz"), strings.HasSuffix(path, ".tgz"):
		return "tar.gz"
	case strings.HasSuffix(path, ".tar"):
		return "tar"
	case strings.HasSuffix(path, ".zip"):
		return "zip"
	default:
		return ""
	}
}

func pack(src, dest, format string) error {
	out, err := os.Create(dest)
	if err != nil {
		return fmt.Errorf("create %s: %w", dest, err)
	}
	defer out.Close()

	switch format {
	case "zip":
		return packZip(src, out)
	case "tar.gz":
		gw := gzip.NewWriter(out)
		defer gw.Close()
		return packTar(src, gw)
	case "tar", "":
		return packTar(src, out)
	default:
		return fmt.Errorf("unsupported archive format %q", format)
	}
}

func packTar(src string, w io.Writer) error {
	tw := tar.NewWriter(w)
	defer tw.Close()

	base := filepath.Dir(src)
	return filepath.Walk(src, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(base, path)
		if err != nil {
			return err
		}
		hdr, err := tar.FileInfoHeader(info, "")
		if err != nil {
			return err
		}
		hdr.Name = filepath.ToSlash(rel)
		if err := tw.WriteHeader(hdr); err != nil {
			return err
		}
		if info.IsDir() {
			return nil
		}
		f, err := os.Open(path)
		if err != nil {
			return err
		}
		defer f.Close()
		_, err = io.Copy(tw, f)
		return err
	})
}

func packZip(src string, w io.Writer) error {
	zw := zip.NewWriter(w)
	defer zw.Close()

	base := filepath.Dir(src)
	return filepath.Walk(src, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(base, path)
		if err != nil {
			return err
		}
		zf, err := zw.Create(filepath.ToSlash(rel))
		if err != nil {
			return err
		}
		f, err := os.Open(path)
		if err != nil {
			return err
		}
		defer f.Close()
		_, err = io.Copy(zf, f)
		return err
	})
}

func unpack(src, dest, format string) error {
	switch format {
	case "zip":
		return unpackZip(src, dest)
	case "tar.gz":
		f, err := os.Open(src)
		if err != nil {
			return fmt.Errorf("open %s: %w", src, err)
		}
		defer f.Close()
		gr, err := gzip.NewReader(f)
		if err != nil {
			return fmt.Errorf("gunzip %s: %w", src, err)
		}
		defer gr.Close()
		return unpackTar(gr, dest)
	case "tar", "":
		f, err := os.Open(src)
		if err != nil {
			return fmt.Errorf("open %s: %w", src, err)
		}
		defer f.Close()
		return unpackTar(f, dest)
	default:
		return fmt.Errorf("unsupported archive format %q", format)
	}
}

func unpackTar(r io.Reader, dest string) error {
	tr := tar.NewReader(r)
	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}
		target, err := safeJoin(dest, hdr.Name)
		if err != nil {
			return err
		}
		switch hdr.Typeflag {
		case tar.TypeDir:
			if err := os.MkdirAll(target, 0o755); err != nil {
				return err
			}
		case tar.TypeReg:
			if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
				return err
			}
			out, err := os.OpenFile(target, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, os.FileMode(hdr.Mode))
			if err != nil {
				return err
			}
			_, err = io.Copy(out, tr)
			out.Close()
			if err != nil {
				return err
			}
		}
	}
}

func unpackZip(src, dest string) error {
	zr, err := zip.OpenReader(src)
	if err != nil {
		return fmt.Errorf("open %s: %w", src, err)
	}
	defer zr.Close()

	for _, f := range zr.File {
		target, err := safeJoin(dest, f.Name)
		if err != nil {
			return err
		}
		if f.FileInfo().IsDir() {
			if err := os.MkdirAll(target, 0o755); err != nil {
				return err
			}
			continue
		}
		if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
			return err
		}
		rc, err := f.Open()
		if err != nil {
			return err
		}
		out, err := os.OpenFile(target, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, f.Mode())
		if err != nil {
			rc.Close()
			return err
		}
		_, err = io.Copy(out, rc)
		out.Close()
		rc.Close()
		if err != nil {
			return err
		}
	}
	return nil
}

// safeJoin joins dest and name, rejecting any entry that would escape
// dest via ".." path segments (zip-slip).
func safeJoin(dest, name string) (string, error) {
	target := filepath.Join(dest, name)
	if !strings.HasPrefix(target, filepath.Clean(dest)+string(os.PathSeparator)) && target != filepath.Clean(dest) {
		return "", fmt.Errorf("archive entry %q escapes destination", name)
	}
	return target, nil
}
