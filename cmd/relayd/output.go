package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"runtime"
	"strings"

	"github.com/samber/lo"
	"github.com/urfave/cli/v3"
	"golang.org/x/term"
)

const (
	formatJSON  = "json"
	formatTable = "table"
)

var outputFormats = []string{formatJSON, formatTable}

type versionInfo struct {
	Version   string `json:"version"`
	GoVersion string `json:"go_version"`
	Platform  string `json:"platform"`
}

func runVersion(ctx context.Context, c *cli.Command) error {
	info := versionInfo{
		Version:   Version,
		GoVersion: runtime.Version(),
		Platform:  runtime.GOOS + "/" + runtime.GOARCH,
	}

	format, err := resolveOutputFormat(c.String("output-format"))
	if err != nil {
		return err
	}

	switch format {
	case formatJSON:
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(info)
	default:
		rows := [][2]string{
			{"version", info.Version},
			{"go", info.GoVersion},
			{"platform", info.Platform},
		}
		lines := lo.Map(rows, func(row [2]string, _ int) string {
			return fmt.Sprintf("%-10s %s", row[0], row[1])
		})
		fmt.Println(strings.Join(lines, "\n"))
		return nil
	}
}

// resolveOutputFormat applies the flag when set, otherwise picks table for
// interactive terminals and json for pipes.
func resolveOutputFormat(flag string) (string, error) {
	if flag == "" {
		if term.IsTerminal(int(os.Stdout.Fd())) {
			return formatTable, nil
		}
		return formatJSON, nil
	}
	if !lo.Contains(outputFormats, flag) {
		return "", fmt.Errorf("invalid output format %q (want one of %v)", flag, outputFormats)
	}
	return flag, nil
}
