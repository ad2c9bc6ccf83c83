package config

import (
	"encoding/json"
	"fmt"

	"gopkg.in/yaml.v3"
)

// Lifecycle hook names.
const (
	BeforeInit    = "before:init"
	AfterInit     = "after:init"
	BeforeBump    = "before:bump"
	AfterBump     = "after:bump"
	BeforeRelease = "before:release"
	AfterRelease  = "after:release"
)

// HookNames lists the lifecycle hooks in execution order.
var HookNames = []string{BeforeInit, AfterInit, BeforeBump, AfterBump, BeforeRelease, AfterRelease}

// Hook represents a single hook command
type Hook struct {
	// Command to run
	Cmd string `yaml:"cmd" json:"cmd"`

	// Directory to run the command in
	Dir string `yaml:"dir,omitempty" json:"dir,omitempty"`

	// Environment variables
	Env map[string]string `yaml:"env,omitempty" json:"env,omitempty"`

	// Output handling
	Output string `yaml:"output,omitempty" json:"output,omitempty"`

	// If condition
	If string `yaml:"if,omitempty" json:"if,omitempty"`

	// FailFast stops on error
	FailFast bool `yaml:"failFast,omitempty" json:"failFast,omitempty"`

	// Shell runs command in shell
	Shell bool `yaml:"shell,omitempty" json:"shell,omitempty"`
}

// HookList is a list of hooks. It accepts a single command string, a list of
// command strings, or a list of hook objects.
type HookList []Hook

func commandHook(cmd string) Hook {
	return Hook{Cmd: cmd, FailFast: true, Output: "true", Shell: true}
}

// UnmarshalYAML implements yaml.Unmarshaler.
func (l *HookList) UnmarshalYAML(value *yaml.Node) error {
	switch value.Kind {
	case yaml.ScalarNode:
		*l = HookList{commandHook(value.Value)}
		return nil
	case yaml.SequenceNode:
		hooks := make(HookList, 0, len(value.Content))
		for _, item := range value.Content {
			if item.Kind == yaml.ScalarNode {
				hooks = append(hooks, commandHook(item.Value))
				continue
			}
			var h Hook
			if err := item.Decode(&h); err != nil {
				return err
			}
			hooks = append(hooks, h)
		}
		*l = hooks
		return nil
	case yaml.MappingNode:
		var h Hook
		if err := value.Decode(&h); err != nil {
			return err
		}
		*l = HookList{h}
		return nil
	default:
		return fmt.Errorf("line %d: hooks must be a string, a list or a mapping", value.Line)
	}
}

// UnmarshalJSON implements json.Unmarshaler.
func (l *HookList) UnmarshalJSON(data []byte) error {
	var single string
	if err := json.Unmarshal(data, &single); err == nil {
		*l = HookList{commandHook(single)}
		return nil
	}

	var items []json.RawMessage
	if err := json.Unmarshal(data, &items); err != nil {
		var h Hook
		if err := json.Unmarshal(data, &h); err != nil {
			return fmt.Errorf("hooks must be a string, a list or an object: %w", err)
		}
		*l = HookList{h}
		return nil
	}

	hooks := make(HookList, 0, len(items))
	for _, item := range items {
		var cmd string
		if err := json.Unmarshal(item, &cmd); err == nil {
			hooks = append(hooks, commandHook(cmd))
			continue
		}
		var h Hook
		if err := json.Unmarshal(item, &h); err != nil {
			return err
		}
		hooks = append(hooks, h)
	}
	*l = hooks
	return nil
}

// Git contains git-related configuration
type Git struct {
	RequireCleanWorkingDir *bool    `yaml:"requireCleanWorkingDir,omitempty" json:"requireCleanWorkingDir,omitempty"`
	RequireBranch          string   `yaml:"requireBranch,omitempty" json:"requireBranch,omitempty"`
	RequireUpstream        *bool    `yaml:"requireUpstream,omitempty" json:"requireUpstream,omitempty"`
	RequireCommits         *bool    `yaml:"requireCommits,omitempty" json:"requireCommits,omitempty"`
	AddUntrackedFiles      *bool    `yaml:"addUntrackedFiles,omitempty" json:"addUntrackedFiles,omitempty"`
	Commit                 *bool    `yaml:"commit,omitempty" json:"commit,omitempty"`
	CommitMessage          string   `yaml:"commitMessage,omitempty" json:"commitMessage,omitempty"`
	Tag                    *bool    `yaml:"tag,omitempty" json:"tag,omitempty"`
	TagName                string   `yaml:"tagName,omitempty" json:"tagName,omitempty"`
	TagAnnotation          string   `yaml:"tagAnnotation,omitempty" json:"tagAnnotation,omitempty"`
	Push                   *bool    `yaml:"push,omitempty" json:"push,omitempty"`
	PushArgs               []string `yaml:"pushArgs,omitempty" json:"pushArgs,omitempty"`
	PushRepo               string   `yaml:"pushRepo,omitempty" json:"pushRepo,omitempty"`
}

// ReleaseTarget configures a hosted release (GitHub or GitLab).
type ReleaseTarget struct {
	Release     bool     `yaml:"release,omitempty" json:"release,omitempty"`
	ReleaseName string   `yaml:"releaseName,omitempty" json:"releaseName,omitempty"`
	Draft       bool     `yaml:"draft,omitempty" json:"draft,omitempty"`
	PreRelease  *bool    `yaml:"preRelease,omitempty" json:"preRelease,omitempty"`
	Assets      []string `yaml:"assets,omitempty" json:"assets,omitempty"`
	TokenRef    string   `yaml:"tokenRef,omitempty" json:"tokenRef,omitempty"`
	Host        string   `yaml:"host,omitempty" json:"host,omitempty"`
	Owner       string   `yaml:"owner,omitempty" json:"owner,omitempty"`
	Repo        string   `yaml:"repo,omitempty" json:"repo,omitempty"`
}

// Changelog configures release notes generation.
type Changelog struct {
	File    string           `yaml:"file,omitempty" json:"file,omitempty"`
	Sort    string           `yaml:"sort,omitempty" json:"sort,omitempty"`
	Header  string           `yaml:"header,omitempty" json:"header,omitempty"`
	Footer  string           `yaml:"footer,omitempty" json:"footer,omitempty"`
	Divider string           `yaml:"divider,omitempty" json:"divider,omitempty"`
	Filters ChangelogFilters `yaml:"filters,omitempty" json:"filters,omitempty"`
	Groups  []ChangelogGroup `yaml:"groups,omitempty" json:"groups,omitempty"`
}

// ChangelogFilters for filtering commits
type ChangelogFilters struct {
	Exclude []string `yaml:"exclude,omitempty" json:"exclude,omitempty"`
	Include []string `yaml:"include,omitempty" json:"include,omitempty"`
}

// ChangelogGroup for grouping commits
type ChangelogGroup struct {
	Title  string `yaml:"title" json:"title"`
	Regexp string `yaml:"regexp,omitempty" json:"regexp,omitempty"`
	Order  int    `yaml:"order,omitempty" json:"order,omitempty"`
}

// Bump lists the files that carry the project version.
type Bump struct {
	Files []string `yaml:"files,omitempty" json:"files,omitempty"`
}

// Announce configures release announcements
type Announce struct {
	Slack   Slack   `yaml:"slack,omitempty" json:"slack,omitempty"`
	Discord Discord `yaml:"discord,omitempty" json:"discord,omitempty"`
	Webhook Webhook `yaml:"webhook,omitempty" json:"webhook,omitempty"`
}

// Slack announcement settings. The webhook URL comes from SLACK_WEBHOOK_URL.
type Slack struct {
	Enabled         bool   `yaml:"enabled,omitempty" json:"enabled,omitempty"`
	Channel         string `yaml:"channel,omitempty" json:"channel,omitempty"`
	Username        string `yaml:"username,omitempty" json:"username,omitempty"`
	IconEmoji       string `yaml:"iconEmoji,omitempty" json:"iconEmoji,omitempty"`
	MessageTemplate string `yaml:"messageTemplate,omitempty" json:"messageTemplate,omitempty"`
}

// Discord announcement settings. The webhook URL comes from DISCORD_WEBHOOK_URL.
type Discord struct {
	Enabled         bool   `yaml:"enabled,omitempty" json:"enabled,omitempty"`
	Author          string `yaml:"author,omitempty" json:"author,omitempty"`
	MessageTemplate string `yaml:"messageTemplate,omitempty" json:"messageTemplate,omitempty"`
}

// Webhook posts a JSON payload to an arbitrary endpoint.
type Webhook struct {
	Enabled         bool              `yaml:"enabled,omitempty" json:"enabled,omitempty"`
	EndpointURL     string            `yaml:"endpointUrl,omitempty" json:"endpointUrl,omitempty"`
	Headers         map[string]string `yaml:"headers,omitempty" json:"headers,omitempty"`
	MessageTemplate string            `yaml:"messageTemplate,omitempty" json:"messageTemplate,omitempty"`
}

// Enabled dereferences an optional boolean, treating nil as false.
func Enabled(b *bool) bool {
	return b != nil && *b
}

// Bool returns a pointer to b.
func Bool(b bool) *bool {
	return &b
}
