package deps

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"time"
)

const probeTimeout = 10 * time.Second

// CheckEncoder reports whether ffmpeg lists encoder among its encoders,
// e.g. prores_ks for the deliverable.
func CheckEncoder(ctx context.Context, ffmpeg, encoder string) Status {
	result := Status{
		Name:        "FFmpeg " + encoder,
		Command:     ffmpeg,
		Description: "Required for the ProRes deliverable",
	}
	out, err := runProbe(ctx, ffmpeg, "-hide_banner", "-encoders")
	if err != nil {
		result.Detail = err.Error()
		return result
	}
	scanner := bufio.NewScanner(bytes.NewReader(out))
	for scanner.Scan() {
		fields := strings.Fields(scanner.Text())
		if len(fields) >= 2 && fields[1] == encoder {
			result.Available = true
			return result
		}
	}
	result.Detail = fmt.Sprintf("encoder %q not available in this ffmpeg build", encoder)
	return result
}

// Version returns the first line the tool prints for versionFlag.
func Version(ctx context.Context, command, versionFlag string) (string, error) {
	out, err := runProbe(ctx, command, versionFlag)
	if err != nil {
		return "", err
	}
	line, _, _ := strings.Cut(strings.TrimSpace(string(out)), "\n")
	return strings.TrimSpace(line), nil
}

func runProbe(ctx context.Context, command string, args ...string) ([]byte, error) {
	command = strings.TrimSpace(command)
	if command == "" {
		return nil, fmt.Errorf("command not configured")
	}
	probeCtx, cancel := context.WithTimeout(ctx, probeTimeout)
	defer cancel()
	cmd := exec.CommandContext(probeCtx, command, args...)
	out, err := cmd.CombinedOutput()
	if err != nil {
		tail := strings.TrimSpace(string(out))
		if i := strings.LastIndexByte(tail, '\n'); i >= 0 {
			tail = tail[i+1:]
		}
		if tail != "" {
			return nil, fmt.Errorf("%s failed: %v (%s)", command, err, tail)
		}
		return nil, fmt.Errorf("%s failed: %w", command, err)
	}
	return out, nil
}

// CheckFile reports whether path is a readable regular file.
func CheckFile(name, path, description string) Status {
	result := Status{Name: name, Command: path, Description: description}
	path = strings.TrimSpace(path)
	if path == "" {
		result.Detail = "path not configured"
		return result
	}
	info, err := os.Stat(path)
	if err != nil {
		result.Detail = fmt.Sprintf("%s: %v", path, err)
		return result
	}
	if !info.Mode().IsRegular() {
		result.Detail = fmt.Sprintf("%s is not a regular file", path)
		return result
	}
	f, err := os.Open(path)
	if err != nil {
		result.Detail = fmt.Sprintf("%s is not readable: %v", path, err)
		return result
	}
	_ = f.Close()
	result.Available = true
	return result
}
