package skills

import (
	"archive/zip"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
)

// ArtifactExt is the extension of packed skill artifacts.
const ArtifactExt = ".skill"

// skipOnPack lists directory names never copied into an artifact.
var skipOnPack = map[string]bool{
	".git":         true,
	"__pycache__":  true,
	"node_modules": true,
}

// ArtifactName returns the default artifact file name for a package
// directory: the directory base name plus ArtifactExt.
func ArtifactName(dir string) string {
	return packageName(dir) + ArtifactExt
}

// packageName is the base name of dir, resolved so that "." and ".." name the
// actual directory.
func packageName(dir string) string {
	if abs, err := filepath.Abs(dir); err == nil {
		return filepath.Base(abs)
	}
	return filepath.Base(filepath.Clean(dir))
}

// Pack archives the skill package into out as a zip whose single top-level
// folder is the package directory name. It returns the number of files
// written. The archive is built in a temporary file next to out and only
// renamed into place once complete, so a failed pack leaves no artifact.
func Pack(skill *Skill, out string) (int, error) {
	tmp, err := os.CreateTemp(filepath.Dir(out), "."+filepath.Base(out)+".*"+ArtifactExt)
	if err != nil {
		return 0, errors.Wrap(err, "failed to create artifact")
	}

	if err := tmp.Chmod(0o644); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return 0, errors.Wrap(err, "failed to create artifact")
	}

	count, err := writeArchive(skill, tmp)
	if err != nil {
		os.Remove(tmp.Name())
		return 0, err
	}
	if err := os.Rename(tmp.Name(), out); err != nil {
		os.Remove(tmp.Name())
		return 0, errors.Wrap(err, "failed to move artifact into place")
	}
	return count, nil
}

// writeArchive writes the package to f and closes it.
func writeArchive(skill *Skill, f *os.File) (int, error) {
	root := filepath.Clean(skill.Directory)
	prefix := packageName(root)

	zw := zip.NewWriter(f)
	count := 0
	walkErr := filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() {
			if path != root && skipOnPack[info.Name()] {
				return filepath.SkipDir
			}
			return nil
		}
		if !info.Mode().IsRegular() || strings.HasSuffix(info.Name(), ArtifactExt) {
			return nil
		}

		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		if err := addFile(zw, path, prefix+"/"+filepath.ToSlash(rel), info); err != nil {
			return err
		}
		count++
		return nil
	})

	closeErr := zw.Close()
	fileErr := f.Close()
	switch {
	case walkErr != nil:
		return 0, errors.Wrap(walkErr, "failed to pack skill")
	case closeErr != nil:
		return 0, errors.Wrap(closeErr, "failed to finalize artifact")
	case fileErr != nil:
		return 0, errors.Wrap(fileErr, "failed to close artifact")
	}
	return count, nil
}

func addFile(zw *zip.Writer, path, name string, info os.FileInfo) error {
	header, err := zip.FileInfoHeader(info)
	if err != nil {
		return err
	}
	header.Name = name
	header.Method = zip.Deflate

	w, err := zw.CreateHeader(header)
	if err != nil {
		return err
	}
	src, err := os.Open(path)
	if err != nil {
		return err
	}
	defer src.Close()

	_, err = io.Copy(w, src)
	return err
}
