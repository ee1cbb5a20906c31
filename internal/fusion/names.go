package fusion

import (
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

const dateLayout = "2006-01-02"

// ExtractDate reads the date out of an export file name: the second-to-last
// underscore-separated field of the stem, e.g. site_mean_2020-01-01_2020-01-31.tif.
func ExtractDate(name string) (time.Time, bool) {
	stem := strings.TrimSuffix(filepath.Base(name), filepath.Ext(name))
	parts := strings.Split(stem, "_")
	if len(parts) < 2 {
		return time.Time{}, false
	}
	date, err := time.Parse(dateLayout, parts[len(parts)-2])
	if err != nil {
		return time.Time{}, false
	}
	return date, true
}

// ExtractYearMonth truncates ExtractDate to the first of the month.
func ExtractYearMonth(name string) (time.Time, bool) {
	date, ok := ExtractDate(name)
	if !ok {
		return time.Time{}, false
	}
	return time.Date(date.Year(), date.Month(), 1, 0, 0, 0, 0, time.UTC), true
}

// IndexOutputName turns a band export name into the name of the index
// derived from it: the tag before the two dates (mean, median, masked)
// becomes the lower-case index.
func IndexOutputName(name, index string) string {
	base := filepath.Base(name)
	ext := filepath.Ext(base)
	parts := strings.Split(strings.TrimSuffix(base, ext), "_")
	if len(parts) < 4 {
		return strings.Replace(base, "mean", strings.ToLower(index), 1)
	}
	parts[len(parts)-3] = strings.ToLower(index)
	return strings.Join(parts, "_") + ext
}

// ListTifs returns the sorted .tif files directly inside dir. A missing
// directory yields no files.
func ListTifs(dir string) ([]string, error) {
	return listExt(dir, ".tif")
}

func ListPNGs(dir string) ([]string, error) {
	return listExt(dir, ".png")
}

func listExt(dir, ext string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var files []string
	for _, e := range entries {
		if e.IsDir() || !strings.EqualFold(filepath.Ext(e.Name()), ext) {
			continue
		}
		files = append(files, filepath.Join(dir, e.Name()))
	}
	sort.Strings(files)
	return files, nil
}
