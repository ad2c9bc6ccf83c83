package git

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"
)

// RemoteInfo identifies a hosted repository.
type RemoteInfo struct {
	Host  string
	Owner string
	Repo  string
}

// Project returns owner/repo.
func (r RemoteInfo) Project() string {
	return r.Owner + "/" + r.Repo
}

var scpLikeRe = regexp.MustCompile(`^(?:[\w.-]+@)?([\w.-]+):(.+)$`)

// ParseRemoteURL extracts host, owner and repository from https, ssh and
// scp-like remote URLs. Owners may contain slashes (GitLab subgroups).
func ParseRemoteURL(raw string) (RemoteInfo, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return RemoteInfo{}, fmt.Errorf("empty remote URL")
	}

	var host, path string
	if strings.Contains(raw, "://") {
		u, err := url.Parse(raw)
		if err != nil {
			return RemoteInfo{}, fmt.Errorf("invalid remote URL %q: %w", raw, err)
		}
		host, path = u.Hostname(), u.Path
	} else if m := scpLikeRe.FindStringSubmatch(raw); m != nil {
		host, path = m[1], m[2]
	} else {
		return RemoteInfo{}, fmt.Errorf("unsupported remote URL %q", raw)
	}

	path = strings.TrimSuffix(strings.Trim(path, "/"), ".git")
	idx := strings.LastIndex(path, "/")
	if idx <= 0 || idx == len(path)-1 {
		return RemoteInfo{}, fmt.Errorf("remote URL %q has no owner/repository path", raw)
	}

	return RemoteInfo{Host: host, Owner: path[:idx], Repo: path[idx+1:]}, nil
}
