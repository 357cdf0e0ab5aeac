package validator

import (
	"encoding/json"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
)

// ProjectIndex is the subset of `.auto-claude/project_index.json` the
// validator pipeline reads. The file itself is produced by the framework
// detection step, an external collaborator; this package only consumes it.
type ProjectIndex struct {
	Services map[string]ServiceEntry `json:"services"`
}

// ServiceEntry describes one detected service/app inside the project.
type ServiceEntry struct {
	Name             string `json:"name"`
	Framework        string `json:"framework"`
	LintCommand      string `json:"lint_command"`
	BuildCommand     string `json:"build_command"`
	TestCommand      string `json:"test_command"`
	DevCommand       string `json:"dev_command"`
	WebDevCommand    string `json:"web_dev_command"`
	WebSetupCommand  string `json:"web_setup_command"`
	DefaultPort      int    `json:"default_port"`
}

// loadProjectIndex reads and unmarshals project_index.json from the
// project's .auto-claude directory. A missing or malformed file is not an
// error — callers treat a nil index as "nothing detected".
func loadProjectIndex(projectDir string) *ProjectIndex {
	path := filepath.Join(projectDir, ".auto-claude", "project_index.json")
	data, err := os.ReadFile(path)
	if err != nil {
		return nil
	}

	// services may be an object keyed by name (the common case) or, from
	// older detector versions, a JSON array — tolerate both shapes.
	var obj struct {
		Services json.RawMessage `json:"services"`
	}
	if err := json.Unmarshal(data, &obj); err != nil {
		return nil
	}

	idx := &ProjectIndex{Services: map[string]ServiceEntry{}}
	if len(obj.Services) == 0 {
		return idx
	}

	var asMap map[string]ServiceEntry
	if err := json.Unmarshal(obj.Services, &asMap); err == nil {
		idx.Services = asMap
		return idx
	}

	var asList []ServiceEntry
	if err := json.Unmarshal(obj.Services, &asList); err == nil {
		for i, svc := range asList {
			name := svc.Name
			if name == "" {
				name = "service_" + strconv.Itoa(i)
			}
			idx.Services[name] = svc
		}
	}
	return idx
}

// buildCommands is the {lint, build, test} triple the build validator runs.
type buildCommands struct {
	Lint  string
	Build string
	Test  string
}

// getBuildCommands collects the first non-empty lint/build/test command
// across every detected service (§4.6 Build validator).
func getBuildCommands(projectDir string) *buildCommands {
	idx := loadProjectIndex(projectDir)
	if idx == nil {
		return nil
	}

	var out buildCommands
	for _, svc := range idx.Services {
		if out.Lint == "" && svc.LintCommand != "" {
			out.Lint = svc.LintCommand
		}
		if out.Build == "" && svc.BuildCommand != "" {
			out.Build = svc.BuildCommand
		}
		if out.Test == "" && svc.TestCommand != "" {
			out.Test = svc.TestCommand
		}
	}
	if out.Lint == "" && out.Build == "" && out.Test == "" {
		return nil
	}
	return &out
}

// devServerConfig is what the browser validator needs to start and reach a
// dev server (§4.6 Browser validator step 1).
type devServerConfig struct {
	Command   string
	Port      int
	Framework string
	SetupCmd  string
}

var portFlagPattern = regexp.MustCompile(`--(?:web-)?port[=\s]+(\d+)`)
var portInURLPattern = regexp.MustCompile(`:(\d{4,5})\b`)

// frameworkDefaultPorts is consulted when project_index.json names a
// framework but not an explicit port.
var frameworkDefaultPorts = map[string]int{
	"flutter": 8080,
	"next":    3000,
	"nuxt":    3000,
	"vite":    5173,
	"react":   3000,
	"angular": 4200,
	"vue":     8080,
	"expo":    8081,
	"svelte":  5173,
}

// getDevServerConfig parses the first service with a dev command into a
// devServerConfig, inferring a port from flags, URL-shaped substrings, or
// framework defaults when the index doesn't name one explicitly.
func getDevServerConfig(projectDir string) *devServerConfig {
	idx := loadProjectIndex(projectDir)
	if idx == nil {
		return nil
	}

	for _, svc := range idx.Services {
		cmd := svc.DevCommand
		if cmd == "" {
			cmd = svc.WebDevCommand
		}
		if cmd == "" {
			continue
		}

		port := svc.DefaultPort
		if port == 0 {
			if m := portFlagPattern.FindStringSubmatch(cmd); m != nil {
				port, _ = strconv.Atoi(m[1])
			} else if m := portInURLPattern.FindStringSubmatch(cmd); m != nil {
				port, _ = strconv.Atoi(m[1])
			}
		}
		if port == 0 {
			fw := strings.ToLower(svc.Framework)
			for key, defPort := range frameworkDefaultPorts {
				if strings.Contains(fw, key) {
					port = defPort
					break
				}
			}
		}
		if port == 0 {
			continue
		}

		return &devServerConfig{
			Command:   cmd,
			Port:      port,
			Framework: svc.Framework,
			SetupCmd:  svc.WebSetupCommand,
		}
	}
	return nil
}

// readyPatterns returns the framework-specific stdout substrings that mark a
// dev server fully compiled and serving, or nil for an unrecognized
// framework (callers fall back to TCP port polling).
func readyPatterns(framework string) []string {
	fw := strings.ToLower(framework)
	for key, patterns := range frameworkReadyPatterns {
		if strings.Contains(fw, key) {
			return patterns
		}
	}
	return nil
}

var frameworkReadyPatterns = map[string][]string{
	"flutter": {"is being served at", "running at http"},
	"next":    {"ready started server", "ready on http", "compiled client and server"},
	"nuxt":    {"listening on", "ready in", "nitro built in"},
	"vite":    {"local:   http", "ready in", "dev server running"},
	"react":   {"compiled successfully", "you can now view"},
	"angular": {"compiled successfully", "angular live development server"},
	"vue":     {"local:   http", "app running at"},
	"expo":    {"starting project at", "web is waiting on"},
	"svelte":  {"local:   http", "ready in"},
}
