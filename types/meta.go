package types

import (
	"runtime"
	"time"
)

// NewMeta builds run metadata from the Go runtime and an environment
// lookup. CI details are filled in when a known CI system is detected.
func NewMeta(at time.Time, getenv func(string) string) *Meta {
	return &Meta{
		At:              at,
		ProtocolVersion: ContractVersion,
		Implementation:  Product{Name: ToolName, Version: Version},
		Runtime:         Product{Name: "go", Version: runtime.Version()},
		OS:              Product{Name: runtime.GOOS},
		CPU:             Product{Name: runtime.GOARCH},
		CI:              detectCI(getenv),
	}
}

func detectCI(getenv func(string) string) *CI {
	if getenv == nil {
		return nil
	}
	switch {
	case getenv("GITHUB_ACTIONS") == "true":
		ci := &CI{
			Name:   "GitHub Actions",
			Branch: getenv("GITHUB_REF_NAME"),
			Commit: getenv("GITHUB_SHA"),
		}
		if server, repo, id := getenv("GITHUB_SERVER_URL"), getenv("GITHUB_REPOSITORY"), getenv("GITHUB_RUN_ID"); server != "" && repo != "" && id != "" {
			ci.URL = server + "/" + repo + "/actions/runs/" + id
		}
		return ci
	case getenv("GITLAB_CI") == "true":
		return &CI{
			Name:   "GitLab",
			URL:    getenv("CI_PIPELINE_URL"),
			Branch: getenv("CI_COMMIT_REF_NAME"),
			Commit: getenv("CI_COMMIT_SHA"),
		}
	case getenv("BUILDKITE") == "true":
		return &CI{
			Name:   "Buildkite",
			URL:    getenv("BUILDKITE_BUILD_URL"),
			Branch: getenv("BUILDKITE_BRANCH"),
			Commit: getenv("BUILDKITE_COMMIT"),
		}
	case getenv("CIRCLECI") == "true":
		return &CI{
			Name:   "CircleCI",
			URL:    getenv("CIRCLE_BUILD_URL"),
			Branch: getenv("CIRCLE_BRANCH"),
			Commit: getenv("CIRCLE_SHA1"),
		}
	case getenv("JENKINS_URL") != "":
		return &CI{
			Name:   "Jenkins",
			URL:    getenv("BUILD_URL"),
			Branch: getenv("GIT_BRANCH"),
			Commit: getenv("GIT_COMMIT"),
		}
	}
	return nil
}
