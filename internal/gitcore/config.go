package gitcore

import (
	"os"
	"path/filepath"
	"strings"
)

type GitConfig struct {
	Core CoreConfig `json:"core"`
}

type CoreConfig struct {
	RepositoryFormatVersion string `json:"repositoryformatversion"`
	FileMode                string `json:"filemode"`
	Bare                    string `json:"bare"`
	LogAllRefUpdates        string `json:"logallrefupdates"`
	Worktree                string `json:"worktree"`
}

// GetConfig reads the [core] section of the repository config.
func (r *Repository) GetConfig() (*GitConfig, error) {
	config := &GitConfig{}

	if err := parseGitConfig(filepath.Join(r.commonDir, "config"), config); err != nil {
		return nil, err
	}
	return config, nil
}

// IsBare reports whether the repository has no working tree.
func (r *Repository) IsBare() bool {
	config, err := r.GetConfig()
	if err != nil {
		return false
	}
	return strings.EqualFold(config.Core.Bare, "true")
}

func parseGitConfig(configPath string, config *GitConfig) error {
	data, err := os.ReadFile(configPath)
	if err != nil {
		return err
	}

	var currentSection string
	for _, line := range strings.Split(string(data), "\n") {
		line := strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") || strings.HasPrefix(line, ";") {
			continue
		}

		if strings.HasPrefix(line, "[") && strings.HasSuffix(line, "]") {
			currentSection, _ = parseSectionLine(line)
			continue
		}

		key, value, ok := strings.Cut(line, "=")
		if !ok {
			continue
		}
		key, value = strings.ToLower(strings.TrimSpace(key)), strings.TrimSpace(value)

		switch currentSection {
		case "core":
			parseCoreConfigParam(key, value, &config.Core)
		}
	}

	return nil
}

func parseCoreConfigParam(key, value string, core *CoreConfig) {
	switch key {
	case "repositoryformatversion":
		core.RepositoryFormatVersion = value
	case "filemode":
		core.FileMode = value
	case "bare":
		core.Bare = value
	case "logallrefupdates":
		core.LogAllRefUpdates = value
	case "worktree":
		core.Worktree = value
	}
}

func parseSectionLine(line string) (string, string) {
	section := strings.Trim(line, "[]")
	name, subsection, _ := strings.Cut(section, " ")
	return strings.ToLower(name), strings.Trim(subsection, "\"")
}
