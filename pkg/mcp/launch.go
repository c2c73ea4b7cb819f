package mcp

import (
	"errors"
	"fmt"
	"os/exec"
	"path/filepath"
	"strings"
)

type LaunchKind string

const (
	KindPython LaunchKind = "python"
	KindNode   LaunchKind = "node"
	// KindNative runs an extension-less executable directly.
	KindNative LaunchKind = "native"
)

// LaunchDescriptor says how to start a tool server from a script path.
type LaunchDescriptor struct {
	Kind LaunchKind
	Path string
	Args []string
}

// Interpreters overrides the commands used per kind.
type Interpreters struct {
	Python string
	Node   string
}

// ParseLaunchPath classifies a server path by extension. It never starts a process.
func ParseLaunchPath(path string) (LaunchDescriptor, error) {
	trimmed := strings.TrimSpace(path)
	if trimmed == "" {
		return LaunchDescriptor{}, NewConnectionError(path, errors.New("server path is empty"))
	}
	switch ext := strings.ToLower(filepath.Ext(trimmed)); ext {
	case ".py":
		return LaunchDescriptor{Kind: KindPython, Path: trimmed}, nil
	case ".js":
		return LaunchDescriptor{Kind: KindNode, Path: trimmed}, nil
	case "":
		return LaunchDescriptor{Kind: KindNative, Path: trimmed}, nil
	default:
		return LaunchDescriptor{}, NewConnectionError(trimmed,
			fmt.Errorf("server script must be a .py or .js file, got %q", ext))
	}
}

// Command builds the process for the descriptor.
func (d LaunchDescriptor) Command(in Interpreters) (*exec.Cmd, error) {
	switch d.Kind {
	case KindPython:
		return exec.Command(orDefault(in.Python, "python"), append([]string{d.Path}, d.Args...)...), nil
	case KindNode:
		return exec.Command(orDefault(in.Node, "node"), append([]string{d.Path}, d.Args...)...), nil
	case KindNative:
		return exec.Command(d.Path, d.Args...), nil
	default:
		return nil, fmt.Errorf("unknown launch kind %q", d.Kind)
	}
}

func orDefault(v, fallback string) string {
	if strings.TrimSpace(v) == "" {
		return fallback
	}
	return v
}
