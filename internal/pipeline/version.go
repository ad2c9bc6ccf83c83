package pipeline

import (
	"fmt"
	"slices"

	"github.com/Masterminds/semver/v3"
	"github.com/charmbracelet/log"

	"github.com/oarkflow/releaseit/internal/prompt"
	"github.com/oarkflow/releaseit/internal/tmpl"
	"github.com/oarkflow/releaseit/internal/version"
)

// otherVersion is the select value that asks for a custom version.
const otherVersion = "other"

// tagFor renders git.tagName for v.
func (p *Pipeline) tagFor(v string) (string, error) {
	p.tmplCtx.Set(tmpl.Version, v)
	tag, err := p.tmplCtx.Apply(p.config.Git.TagName)
	if err != nil {
		return "", fmt.Errorf("failed to render git.tagName: %w", err)
	}
	return tag, nil
}

// resolveLatestVersion picks the highest version among tags rendered from
// git.tagName, falling back to 0.0.0.
func (p *Pipeline) resolveLatestVersion() error {
	prefix, err := p.tagFor("")
	if err != nil {
		return err
	}

	tags, err := p.repo.Tags()
	if err != nil {
		return err
	}
	names := make([]string, 0, len(tags))
	for _, t := range tags {
		names = append(names, t.Name)
	}

	p.latestVersion = semver.MustParse(version.Zero)
	p.latestTag = ""
	if latest, ok := version.Latest(names, prefix); ok {
		p.latestVersion = latest.Version
		p.latestTag = latest.Tag
	} else {
		log.Info("No previous release tag found", "prefix", prefix, "fallback", version.Zero)
	}

	p.tmplCtx.Set(tmpl.LatestVersion, p.latestVersion.String())
	p.tmplCtx.Set(tmpl.LatestTag, p.latestTag)
	return nil
}

// resolveNextVersion determines the version to release from flags and
// configuration, prompting when interactive.
func (p *Pipeline) resolveNextVersion() error {
	next, err := p.nextVersionFor()
	if err != nil {
		return err
	}
	p.nextVersion = next

	tag, err := p.tagFor(next.String())
	if err != nil {
		return err
	}
	p.tag = tag
	p.tmplCtx.Set(tmpl.Tag, tag)
	return nil
}

func (p *Pipeline) nextVersionFor() (*semver.Version, error) {
	if p.options.NoIncrement {
		return p.latestVersion, nil
	}

	preID := p.config.PreReleaseID
	if inc := p.config.Increment; inc != "" {
		return version.Next(p.latestVersion, inc, preID)
	}
	if p.options.CI {
		return version.Next(p.latestVersion, version.Patch, preID)
	}

	choices := make([]prompt.Choice, 0, len(version.Increments)+1)
	for _, inc := range version.Increments {
		if preID == "" && inc != version.Patch && inc != version.Minor && inc != version.Major && p.latestVersion.Prerelease() == "" {
			continue
		}
		v, err := version.Next(p.latestVersion, inc, preID)
		if err != nil {
			return nil, err
		}
		value := v.String()
		if slices.ContainsFunc(choices, func(c prompt.Choice) bool { return c.Value == value }) {
			continue
		}
		choices = append(choices, prompt.Choice{Label: fmt.Sprintf("%s (%s)", inc, value), Value: value})
	}
	choices = append(choices, prompt.Choice{Label: "Other, please specify...", Value: otherVersion})

	title := fmt.Sprintf("Select increment (next version), current is %s", p.latestVersion)
	selected, err := p.prompt.Select(title, choices, "")
	if err != nil {
		return nil, err
	}
	if selected == otherVersion {
		selected, err = p.prompt.Input("Please enter a valid version", func(s string) error {
			_, err := version.Parse(s)
			return err
		})
		if err != nil {
			return nil, err
		}
	}
	return version.Parse(selected)
}
