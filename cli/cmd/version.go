package cmd

import (
	"runtime"

	"github.com/urfave/cli/v2"

	"github.com/pithecene-io/verdict/cli/render"
	"github.com/pithecene-io/verdict/types"
)

// VersionResponse is the response for the version command.
type VersionResponse struct {
	Version         string `json:"version" yaml:"version"`
	ContractVersion string `json:"contract_version" yaml:"contract_version"`
	Commit          string `json:"commit" yaml:"commit"`
	GoVersion       string `json:"go_version" yaml:"go_version"`
}

// VersionCommand returns the version command.
func VersionCommand(commit string) *cli.Command {
	return &cli.Command{
		Name:   "version",
		Usage:  "Show version information",
		Flags:  OutputFlags(),
		Action: versionAction(commit),
	}
}

func versionAction(commit string) cli.ActionFunc {
	return func(c *cli.Context) error {
		r, err := render.NewRenderer(c)
		if err != nil {
			return err
		}
		return r.Render(NewVersionResponse(commit))
	}
}

// NewVersionResponse describes this build.
func NewVersionResponse(commit string) VersionResponse {
	return VersionResponse{
		Version:         types.Version,
		ContractVersion: types.ContractVersion,
		Commit:          commit,
		GoVersion:       runtime.Version(),
	}
}
