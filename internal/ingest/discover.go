package ingest

import (
	"fmt"
	"path/filepath"
	"slices"
	"strings"

	"github.com/banshee-data/labrun/internal/fsutil"
)

// Folder name fragments that identify each source, matched case-insensitively.
const (
	RecorderKey = "datarecorder"
	ProtocolKey = "protocoll_series"
	LoggerKey   = "lascar"
	DrynessKey  = "dryness"
)

// Folders are the source folders of one machine run. Dryness is optional and
// may be empty.
type Folders struct {
	Recorder string
	Protocol string
	Logger   string
	Dryness  string
}

// DiscoverFolders lists the sub-directories of root in name order.
func DiscoverFolders(fsys fsutil.FileSystem, root string) ([]string, error) {
	if err := requireDir(fsys, root); err != nil {
		return nil, err
	}
	entries, err := fsys.ReadDir(root)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrInvalidFolder, root, err)
	}
	var dirs []string
	for _, e := range entries {
		if e.IsDir() {
			dirs = append(dirs, filepath.Join(root, e.Name()))
		}
	}
	return dirs, nil
}

// Locate assigns discovered folders to sources. The first folder whose name
// contains a source key wins. Recorder, protocol and logger folders are
// required.
func Locate(folders []string) (Folders, error) {
	var f Folders
	for _, dir := range folders {
		name := strings.ToLower(filepath.Base(dir))
		switch {
		case f.Recorder == "" && strings.Contains(name, RecorderKey):
			f.Recorder = dir
		case f.Protocol == "" && strings.Contains(name, ProtocolKey):
			f.Protocol = dir
		case f.Logger == "" && strings.Contains(name, LoggerKey):
			f.Logger = dir
		case f.Dryness == "" && strings.Contains(name, DrynessKey):
			f.Dryness = dir
		}
	}

	var missing []string
	if f.Recorder == "" {
		missing = append(missing, RecorderKey)
	}
	if f.Protocol == "" {
		missing = append(missing, ProtocolKey)
	}
	if f.Logger == "" {
		missing = append(missing, LoggerKey)
	}
	if len(missing) > 0 {
		return f, fmt.Errorf("%w: no folder matching %s", ErrMissingSource, strings.Join(missing, ", "))
	}
	return f, nil
}

// CSVFiles returns the .csv files of folder in name order. A folder without
// any is a missing source.
func CSVFiles(fsys fsutil.FileSystem, folder string) ([]string, error) {
	if err := requireDir(fsys, folder); err != nil {
		return nil, err
	}
	entries, err := fsys.ReadDir(folder)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrInvalidFolder, folder, err)
	}
	var files []string
	for _, e := range entries {
		if !e.IsDir() && strings.EqualFold(filepath.Ext(e.Name()), ".csv") {
			files = append(files, filepath.Join(folder, e.Name()))
		}
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("%w: no .csv files in %s", ErrMissingSource, folder)
	}
	slices.Sort(files)
	return files, nil
}

func requireDir(fsys fsutil.FileSystem, path string) error {
	info, err := fsys.Stat(path)
	if err != nil {
		return fmt.Errorf("%w: %s does not exist", ErrInvalidFolder, path)
	}
	if !info.IsDir() {
		return fmt.Errorf("%w: %s is not a directory", ErrInvalidFolder, path)
	}
	return nil
}
