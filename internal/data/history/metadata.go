package history

import (
	"bufio"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
)

// VersionSource reports the project version, if it can find one.
type VersionSource interface {
	Version(projectRoot string) (string, bool)
}

// DefaultVersionFiles is the lookup order of FileVersionSource.
var DefaultVersionFiles = []string{"pyproject.toml", "Cargo.toml", "package.json", "VERSION"}

// FileVersionSource reads the version from the first metadata file that
// declares one. Unreadable or malformed files are skipped.
type FileVersionSource struct {
	Files []string
}

func (s FileVersionSource) Version(projectRoot string) (string, bool) {
	files := s.Files
	if len(files) == 0 {
		files = DefaultVersionFiles
	}
	for _, name := range files {
		data, err := os.ReadFile(filepath.Join(projectRoot, name))
		if err != nil {
			continue
		}
		if v, ok := parseVersion(filepath.Base(name), data); ok {
			return v, true
		}
	}
	return "", false
}

func parseVersion(base string, data []byte) (string, bool) {
	switch strings.ToLower(base) {
	case "pyproject.toml":
		var doc struct {
			Project struct {
				Version string `toml:"version"`
			} `toml:"project"`
			Tool struct {
				Poetry struct {
					Version string `toml:"version"`
				} `toml:"poetry"`
			} `toml:"tool"`
		}
		if _, err := toml.Decode(string(data), &doc); err != nil {
			return "", false
		}
		return firstNonEmpty(doc.Project.Version, doc.Tool.Poetry.Version)
	case "cargo.toml":
		var doc struct {
			Package struct {
				Version string `toml:"version"`
			} `toml:"package"`
		}
		if _, err := toml.Decode(string(data), &doc); err != nil {
			return "", false
		}
		return firstNonEmpty(doc.Package.Version)
	case "package.json":
		var doc struct {
			Version string `json:"version"`
		}
		if err := json.Unmarshal(data, &doc); err != nil {
			return "", false
		}
		return firstNonEmpty(doc.Version)
	default:
		line, _, _ := strings.Cut(string(data), "\n")
		return firstNonEmpty(line)
	}
}

func firstNonEmpty(values ...string) (string, bool) {
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			return v, true
		}
	}
	return "", false
}

// ReadGitCommit resolves HEAD to an abbreviated (12 character) commit hash by
// reading the repository files directly. Worktrees and submodules with a
// ".git" file pointing elsewhere are followed.
func ReadGitCommit(projectRoot string) (string, bool) {
	gitDir, ok := resolveGitDir(projectRoot)
	if !ok {
		return "", false
	}
	head, err := os.ReadFile(filepath.Join(gitDir, "HEAD"))
	if err != nil {
		return "", false
	}
	ref := strings.TrimSpace(string(head))
	if !strings.HasPrefix(ref, "ref:") {
		return abbreviate(ref)
	}
	ref = strings.TrimSpace(strings.TrimPrefix(ref, "ref:"))

	for _, dir := range refDirs(gitDir) {
		if data, err := os.ReadFile(filepath.Join(dir, filepath.FromSlash(ref))); err == nil {
			return abbreviate(strings.TrimSpace(string(data)))
		}
		if hash, ok := packedRef(filepath.Join(dir, "packed-refs"), ref); ok {
			return abbreviate(hash)
		}
	}
	return "", false
}

func resolveGitDir(projectRoot string) (string, bool) {
	p := filepath.Join(projectRoot, ".git")
	info, err := os.Stat(p)
	if err != nil {
		return "", false
	}
	if info.IsDir() {
		return p, true
	}
	data, err := os.ReadFile(p)
	if err != nil {
		return "", false
	}
	line := strings.TrimSpace(string(data))
	if !strings.HasPrefix(line, "gitdir:") {
		return "", false
	}
	dir := strings.TrimSpace(strings.TrimPrefix(line, "gitdir:"))
	if !filepath.IsAbs(dir) {
		dir = filepath.Join(projectRoot, dir)
	}
	return dir, true
}

// refDirs lists the git dir and, for linked worktrees, the common dir.
func refDirs(gitDir string) []string {
	dirs := []string{gitDir}
	if data, err := os.ReadFile(filepath.Join(gitDir, "commondir")); err == nil {
		common := strings.TrimSpace(string(data))
		if !filepath.IsAbs(common) {
			common = filepath.Join(gitDir, common)
		}
		dirs = append(dirs, common)
	}
	return dirs
}

func packedRef(path, ref string) (string, bool) {
	f, err := os.Open(path)
	if err != nil {
		return "", false
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") || strings.HasPrefix(line, "^") {
			continue
		}
		hash, name, ok := strings.Cut(line, " ")
		if ok && strings.TrimSpace(name) == ref {
			return hash, true
		}
	}
	return "", false
}

func abbreviate(hash string) (string, bool) {
	if len(hash) < 7 {
		return "", false
	}
	for _, r := range hash {
		if !strings.ContainsRune("0123456789abcdef", r) {
			return "", false
		}
	}
	if len(hash) > 12 {
		hash = hash[:12]
	}
	return hash, true
}
