/*
Package releaseit automates versioning and publishing of releases.

A release bumps the version, writes the changelog, commits, tags and pushes,
creates GitHub or GitLab releases and announces them. Every step can be
confirmed interactively, or run unattended with --ci.

# Configuration

release-it reads .release-it.json, .release-it.jsonc, .release-it.yaml or
.release-it.yml from the repository root. Values are Go text/template
strings with access to the version, tag, repository and changelog:

	git:
	  commitMessage: "chore: release v{{ .Version }}"
	  tagName: "v{{ .Version }}"
	github:
	  release: true

# Usage

	release-it                    # Prompt for the next version
	release-it minor --ci         # Release the next minor version unattended
	release-it --dry-run          # Show what would happen
	release-it --release-version  # Print the next version
	release-it changelog          # Preview the changelog
*/
package releaseit

// Version is the current version of release-it
const Version = "1.0.0"

// BuildDate is set at build time
var BuildDate string

// GitCommit is set at build time
var GitCommit string
