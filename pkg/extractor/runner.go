// Package extractor invokes the external yt-dlp executable for one fetch
// strategy at a time.
package extractor

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"tubegate/internal/model"

	"github.com/lrstanley/go-ytdlp"
)

// Invocation is a single extractor run
type Invocation struct {
	Target   string
	Strategy model.FetchStrategy

	CookieHeader string // sent when the strategy uses header cookies
	CookieFile   string // passed when the strategy uses a jar

	Output       string // download output template
	Print        string // search print template
	FlatPlaylist bool
}

// Runner executes an invocation and returns its standard output
type Runner interface {
	Run(ctx context.Context, inv Invocation) (string, error)
}

// ToolError carries the diagnostic text of a failed run
type ToolError struct {
	Strategy string
	ExitCode int
	Message  string
}

func (e *ToolError) Error() string {
	return fmt.Sprintf("yt-dlp [%s] exit %d: %s", e.Strategy, e.ExitCode, e.Message)
}

// YtDLP runs invocations through github.com/lrstanley/go-ytdlp
type YtDLP struct {
	executable string
}

// New creates a runner; an empty executable resolves yt-dlp from PATH
func New(executable string) *YtDLP {
	return &YtDLP{executable: executable}
}

// Run executes inv and returns stdout, or a *ToolError
func (y *YtDLP) Run(ctx context.Context, inv Invocation) (string, error) {
	cmd := ytdlp.New().NoProgress()
	if y.executable != "" {
		cmd.SetExecutable(y.executable)
	}

	if inv.FlatPlaylist {
		cmd.FlatPlaylist()
	}
	if inv.Print != "" {
		cmd.Print(inv.Print)
	}
	if inv.Output != "" {
		// Artifact age is commit time, not upload date.
		cmd.NoPlaylist().NoMtime().Output(inv.Output)
	}
	if media := inv.Strategy.Media; media != nil {
		if media.Format != "" {
			cmd.Format(media.Format)
		}
		if media.ExtractAudio {
			cmd.ExtractAudio()
		}
		if media.AudioFormat != "" {
			cmd.AudioFormat(media.AudioFormat)
		}
		if media.MergeOutputFormat != "" {
			cmd.MergeOutputFormat(media.MergeOutputFormat)
		}
	}
	ApplyStrategy(cmd, inv)

	args := append(HeaderArgs(inv), "--", inv.Target)
	res, err := cmd.Run(ctx, args...)
	if err != nil {
		toolErr := &ToolError{Strategy: inv.Strategy.Name, ExitCode: -1, Message: err.Error()}
		if res != nil {
			toolErr.ExitCode = res.ExitCode
			if msg := strings.TrimSpace(res.Stderr); msg != "" {
				toolErr.Message = msg
			}
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			toolErr.Message = ctxErr.Error() + ": " + toolErr.Message
		}
		return "", toolErr
	}
	return res.Stdout, nil
}

// StrategyBuilder is the part of the go-ytdlp command builder a strategy sets
type StrategyBuilder interface {
	UserAgent(ua string) *ytdlp.Command
	Referer(url string) *ytdlp.Command
	Cookies(file string) *ytdlp.Command
	Retries(retries string) *ytdlp.Command
	FragmentRetries(retries string) *ytdlp.Command
	SleepInterval(interval float64) *ytdlp.Command
	MaxSleepInterval(interval float64) *ytdlp.Command
	ExtractorArgs(args string) *ytdlp.Command
	NoCheckCertificates() *ytdlp.Command
	NoWarnings() *ytdlp.Command
}

// ApplyStrategy sets the request shape of a strategy on b. Calls are not
// chained so b may be any StrategyBuilder.
func ApplyStrategy(b StrategyBuilder, inv Invocation) {
	s := inv.Strategy

	if s.UserAgent != "" {
		b.UserAgent(s.UserAgent)
	}
	if s.Referer != "" {
		b.Referer(s.Referer)
	}
	if s.Cookies == model.CookiesJar && inv.CookieFile != "" {
		b.Cookies(inv.CookieFile)
	}

	b.Retries(strconv.Itoa(s.Retries))
	b.FragmentRetries(strconv.Itoa(s.FragmentRetries))
	if s.SleepInterval > 0 {
		b.SleepInterval(s.SleepInterval)
	}
	if s.MaxSleepInterval > 0 {
		b.MaxSleepInterval(s.MaxSleepInterval)
	}
	if s.ExtractorArgs != "" {
		b.ExtractorArgs(s.ExtractorArgs)
	}
	if s.NoCheckCertificates {
		b.NoCheckCertificates()
	}
	if s.NoWarnings {
		b.NoWarnings()
	}
}

// HeaderArgs renders the extra request headers of a strategy. The builder
// keeps a single --add-headers value, so each header is passed as its own
// raw argument.
func HeaderArgs(inv Invocation) []string {
	var args []string
	for _, h := range inv.Strategy.Headers {
		args = append(args, "--add-headers", h)
	}
	if inv.Strategy.Cookies == model.CookiesHeader && inv.CookieHeader != "" {
		args = append(args, "--add-headers", "Cookie:"+inv.CookieHeader)
	}
	return args
}
