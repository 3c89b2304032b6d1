package invite

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"github.com/vovakirdan/voiceaccess/internal/registry"
)

// CommandFallback runs argv with the channel username (or numeric id when
// the channel has none) appended and reads the link from the first
// non-empty line of stdout. timeout bounds the command when non-zero.
func CommandFallback(argv []string, timeout time.Duration) FallbackFunc {
	if len(argv) == 0 {
		return nil
	}
	return func(ctx context.Context, entry registry.Entry) (string, error) {
		if timeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, timeout)
			defer cancel()
		}

		target := entry.Username
		if target == "" {
			target = strconv.FormatInt(entry.ID, 10)
		}
		args := append(append([]string(nil), argv[1:]...), target)

		var stderr bytes.Buffer
		cmd := exec.CommandContext(ctx, argv[0], args...)
		cmd.Stderr = &stderr
		out, err := cmd.Output()
		if err != nil {
			return "", fmt.Errorf("run %s: %w: %s", argv[0], err, strings.TrimSpace(stderr.String()))
		}

		sc := bufio.NewScanner(bytes.NewReader(out))
		for sc.Scan() {
			line := strings.TrimSpace(sc.Text())
			if line == "" {
				continue
			}
			if !strings.HasPrefix(line, "https://") && !strings.HasPrefix(line, "tg://") {
				return "", fmt.Errorf("run %s: unexpected output %q", argv[0], line)
			}
			return line, nil
		}
		return "", errors.New("fallback command printed no link")
	}
}
